package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/store"
)

func (s *Service) GetListing(ctx context.Context, listingId string) (*models.Listing, error) {
	return getListing(ctx, s.db, listingId)
}

// ListListings returns open listings, newest first.
func (s *Service) ListListings(ctx context.Context) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, queryListListings)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer closeRows(rows)

	var listings []models.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, *listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listing rows: %w", err)
	}
	return listings, nil
}

func getListing(ctx context.Context, q queryer, listingId string) (*models.Listing, error) {
	listing, err := scanListing(q.QueryRowContext(ctx, queryGetListing, listingId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrListingNotFound, listingId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return listing, nil
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var listing models.Listing
	var price, createdAt int64
	if err := row.Scan(&listing.Id, &listing.SellerId, &listing.GoodsAmount, &price, &createdAt); err != nil {
		return nil, err
	}
	listing.Price = models.Nanos(price)
	listing.CreatedAt = fromMillis(createdAt)
	return &listing, nil
}

func insertListing(ctx context.Context, q queryer, listing *models.Listing) error {
	_, err := q.ExecContext(ctx, queryInsertListing,
		listing.Id, listing.SellerId, listing.GoodsAmount, int64(listing.Price), toMillis(listing.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: listing %s already exists", store.ErrDuplicateTransaction, listing.Id)
		}
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

func deleteListing(ctx context.Context, q queryer, listingId string) error {
	result, err := q.ExecContext(ctx, queryDeleteListing, listingId)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrListingNotFound, listingId)
	}
	return nil
}
