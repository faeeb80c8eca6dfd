package domain

import "time"

const (
	TopicStockChanged = "listing.stock-changed"
	TopicOrderPlaced  = "order.placed"
)

// StockChangedEvent asks the stock worker to recompute and push the
// sellable sizes for a style code.
type StockChangedEvent struct {
	StyleCode string    `json:"style_code"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderPlacedEvent struct {
	OrderNo     string    `json:"order_no"`
	ListingID   string    `json:"listing_id"`
	BuyerID     string    `json:"buyer_id"`
	BuyerEmail  string    `json:"buyer_email"`
	ProductName string    `json:"product_name"`
	ProductSize string    `json:"product_size"`
	TotalPrice  int64     `json:"total_price"`
	Timestamp   time.Time `json:"timestamp"`
}
