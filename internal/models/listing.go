package models

import "time"

// Listing is a fixed-price offer whose goods are escrowed from the seller.
type Listing struct {
	Id          string    `json:"id"`
	SellerId    string    `json:"seller_id"`
	GoodsAmount int64     `json:"goods_amount"`
	Price       Nanos     `json:"price"`
	CreatedAt   time.Time `json:"created_at"`
}

// Purchase is the result of buying a listing.
type Purchase struct {
	ListingId     string    `json:"listing_id"`
	SellerId      string    `json:"seller_id"`
	BuyerId       string    `json:"buyer_id"`
	GoodsAmount   int64     `json:"goods_amount"`
	Price         Nanos     `json:"price"`
	Fee           Nanos     `json:"fee"`
	SellerReceive Nanos     `json:"seller_receive"`
	PurchasedAt   time.Time `json:"purchased_at"`
}
