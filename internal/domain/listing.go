package domain

import (
	"errors"
	"time"

	"github.com/joao-fontenele/marketplace-orderflow/internal/pricing"
)

// ErrVersionConflict is returned by listing stores when a conditional write
// finds the listing at a different version than the caller read.
var ErrVersionConflict = errors.New("listing version conflict")

type ListingStatus string

const (
	ListingStatusAwaitingApproval ListingStatus = "AWAITING_APPROVAL"
	ListingStatusApproved         ListingStatus = "APPROVED"
	ListingStatusRejected         ListingStatus = "REJECTED"
	ListingStatusDisabled         ListingStatus = "DISABLED"
	ListingStatusPurchased        ListingStatus = "PURCHASED"
)

// Settable reports whether an admin update may put a listing into s.
// PURCHASED is only reachable through checkout.
func (s ListingStatus) Settable() bool {
	switch s {
	case ListingStatusAwaitingApproval, ListingStatusApproved, ListingStatusRejected, ListingStatusDisabled:
		return true
	}
	return false
}

const ReservationTTL = 10 * time.Minute

type Address struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	AddressLine1    string `json:"address_line_1"`
	AddressLine2    string `json:"address_line_2,omitempty"`
	City            string `json:"city"`
	Postcode        string `json:"postcode"`
	TelephoneNumber string `json:"telephone_number,omitempty"`
}

type Addresses struct {
	Billing  Address `json:"billing_address"`
	Delivery Address `json:"delivery_address"`
}

// Reservation is a buyer's time-boxed hold on a listing. The pricing and
// order number are fixed when the hold is first acquired.
type Reservation struct {
	BuyerID    string            `json:"buyer_id"`
	BuyerEmail string            `json:"buyer_email"`
	OrderNo    string            `json:"order_no"`
	ExpiresAt  time.Time         `json:"expires_at"`
	Pricing    pricing.Breakdown `json:"pricing"`
	Addresses  *Addresses        `json:"addresses,omitempty"`
}

// LiveAt reports whether the reservation has not expired at now. A nil
// reservation is never live.
func (r *Reservation) LiveAt(now time.Time) bool {
	return r != nil && r.ExpiresAt.After(now)
}

// HolderAt returns the buyer holding a live reservation, or "".
func (r *Reservation) HolderAt(now time.Time) string {
	if !r.LiveAt(now) {
		return ""
	}
	return r.BuyerID
}

type Listing struct {
	ID          string            `json:"id"`
	StyleCode   string            `json:"style_code"`
	Size        string            `json:"size"`
	Price       int64             `json:"price"`
	Images      map[string]string `json:"images"`
	Status      ListingStatus     `json:"status"`
	ProductID   int64             `json:"product_id"`
	ProductName string            `json:"product_name"`
	BuyerID     string            `json:"buyer_id,omitempty"`
	OrderID     string            `json:"order_id,omitempty"`
	Reservation *Reservation      `json:"-"`
	Version     int64             `json:"-"`
	CreatedAt   time.Time         `json:"-"`
	UpdatedAt   time.Time         `json:"-"`
}

// Sellable reports whether the listing counts towards stock at now.
func (l *Listing) Sellable(now time.Time) bool {
	return l.Status == ListingStatusApproved && !l.Reservation.LiveAt(now)
}

// Clone returns a deep copy, so stores never share mutable state with
// callers.
func (l *Listing) Clone() *Listing {
	c := *l
	if l.Images != nil {
		c.Images = make(map[string]string, len(l.Images))
		for k, v := range l.Images {
			c.Images[k] = v
		}
	}
	if l.Reservation != nil {
		r := *l.Reservation
		if r.Addresses != nil {
			a := *r.Addresses
			r.Addresses = &a
		}
		c.Reservation = &r
	}
	return &c
}

// PendingOrder is the projection of a live reservation shown to its holder
// before checkout.
type PendingOrder struct {
	OrderID        string            `json:"order_id"`
	ListingID      string            `json:"listing_id"`
	BuyerAddresses *Addresses        `json:"buyer_addresses,omitempty"`
	Images         map[string]string `json:"images"`
	ProductID      int64             `json:"product_id"`
	ProductName    string            `json:"product_name"`
	ProductSize    string            `json:"product_size"`
	ReservedUntil  int64             `json:"reserved_until"`
	pricing.Breakdown
}

// NewPendingOrder projects the listing's reservation. The caller must have
// checked that the reservation is live.
func NewPendingOrder(l *Listing) *PendingOrder {
	r := l.Reservation
	return &PendingOrder{
		OrderID:        r.OrderNo,
		ListingID:      l.ID,
		BuyerAddresses: r.Addresses,
		Images:         l.Images,
		ProductID:      l.ProductID,
		ProductName:    l.ProductName,
		ProductSize:    l.Size,
		ReservedUntil:  r.ExpiresAt.Unix(),
		Breakdown:      r.Pricing,
	}
}

// ListingFilter narrows a listing search. Zero fields match everything.
type ListingFilter struct {
	StyleCode string
	ProductID int64
	Size      string
}

func (f ListingFilter) Matches(l *Listing) bool {
	if f.StyleCode != "" && l.StyleCode != f.StyleCode {
		return false
	}
	if f.ProductID != 0 && l.ProductID != f.ProductID {
		return false
	}
	if f.Size != "" && l.Size != f.Size {
		return false
	}
	return true
}
