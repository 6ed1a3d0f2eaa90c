package api

import (
	"net/http"

	"github.com/Friday56/Goblin-miner/internal/models"

	"github.com/go-chi/chi/v5"
)

type createListingRequest struct {
	GoodsAmount int64        `json:"goods_amount"`
	Price       models.Nanos `json:"price"`
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.market.ListListings(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	listing, err := s.market.GetListing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	listing, err := s.market.CreateListing(r.Context(), playerFrom(r.Context()), req.GoodsAmount, req.Price)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (s *Server) handleCancelListing(w http.ResponseWriter, r *http.Request) {
	listingId := chi.URLParam(r, "id")
	if err := s.market.CancelListing(r.Context(), listingId, playerFrom(r.Context())); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": listingId, "status": "cancelled"})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	purchase, err := s.market.Buy(r.Context(), chi.URLParam(r, "id"), playerFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}
