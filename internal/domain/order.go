package domain

import (
	"errors"
	"time"

	"github.com/joao-fontenele/marketplace-orderflow/internal/pricing"
)

var (
	// ErrOrderExists is returned when an order number or listing already has
	// an order.
	ErrOrderExists = errors.New("order already exists")
	// ErrOrderConflict is returned by order repositories when a conditional
	// update finds the stored version ahead of the caller's copy.
	ErrOrderConflict = errors.New("order version conflict")
)

const (
	OrderNoPrefix = "TSM-"
	SellerType    = "Business"
)

type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "PLACED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusComplete  OrderStatus = "COMPLETE"
)

type ShipmentStatus string

const (
	ShipmentStatusUnshipped ShipmentStatus = "UNSHIPPED"
	ShipmentStatusShipped   ShipmentStatus = "SHIPPED"
)

type Order struct {
	OrderNo            string            `json:"order_no"`
	ListingID          string            `json:"listing_id"`
	BuyerID            string            `json:"-"`
	BuyerEmail         string            `json:"buyer_email"`
	BuyerAddresses     Addresses         `json:"buyer_addresses"`
	PaymentMethod      string            `json:"payment_method"`
	CardNumber         string            `json:"card_number"`
	PSPReference       string            `json:"psp_reference,omitempty"`
	ProductID          int64             `json:"product_id"`
	ProductName        string            `json:"product_name"`
	ProductSize        string            `json:"product_size"`
	Images             map[string]string `json:"images"`
	SellerType         string            `json:"seller_type"`
	Status             OrderStatus       `json:"status"`
	ShipmentStatus     ShipmentStatus    `json:"shipment_status"`
	TrackingLink       string            `json:"tracking_link,omitempty"`
	ShippedTime        int64             `json:"shipped_time,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	CancellationTime   int64             `json:"cancellation_time,omitempty"`
	CreatedAt          int64             `json:"created_at"`
	Version            int64             `json:"-"`
	pricing.Breakdown
}

// PaymentSnapshot is what the gateway reports about the instrument used.
type PaymentSnapshot struct {
	Method       string
	CardSummary  string
	PSPReference string
}

// NewOrder builds a placed order from a listing whose live reservation has
// just been paid for. Pricing comes from the reservation, never from the
// listing's current price.
func NewOrder(l *Listing, payment PaymentSnapshot, now time.Time) *Order {
	r := l.Reservation

	var addresses Addresses
	if r.Addresses != nil {
		addresses = *r.Addresses
	}

	return &Order{
		OrderNo:        r.OrderNo,
		ListingID:      l.ID,
		BuyerID:        r.BuyerID,
		BuyerEmail:     r.BuyerEmail,
		BuyerAddresses: addresses,
		PaymentMethod:  payment.Method,
		CardNumber:     payment.CardSummary,
		PSPReference:   payment.PSPReference,
		ProductID:      l.ProductID,
		ProductName:    l.ProductName,
		ProductSize:    l.Size,
		Images:         l.Images,
		SellerType:     SellerType,
		Status:         OrderStatusPlaced,
		ShipmentStatus: ShipmentStatusUnshipped,
		CreatedAt:      now.Unix(),
		Version:        1,
		Breakdown:      r.Pricing,
	}
}

func (o *Order) Clone() *Order {
	c := *o
	if o.Images != nil {
		c.Images = make(map[string]string, len(o.Images))
		for k, v := range o.Images {
			c.Images[k] = v
		}
	}
	return &c
}
