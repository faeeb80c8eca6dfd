package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joao-fontenele/marketplace-orderflow/internal/pricing"
)

func TestReservationLiveAt(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &Reservation{BuyerID: "member-a", ExpiresAt: start.Add(ReservationTTL)}

	assert.True(t, r.LiveAt(start))
	assert.True(t, r.LiveAt(start.Add(9*time.Minute+59*time.Second)))
	assert.False(t, r.LiveAt(start.Add(10*time.Minute)))
	assert.Equal(t, "member-a", r.HolderAt(start))
	assert.Equal(t, "", r.HolderAt(start.Add(10*time.Minute)))

	var none *Reservation
	assert.False(t, none.LiveAt(start))
	assert.Equal(t, "", none.HolderAt(start))
}

func TestListingClone(t *testing.T) {
	l := &Listing{
		ID:     "l1",
		Images: map[string]string{"left_outside": "a.jpg"},
		Reservation: &Reservation{
			BuyerID:   "member-a",
			Addresses: &Addresses{Billing: Address{City: "London"}},
		},
	}

	c := l.Clone()
	c.Images["left_outside"] = "b.jpg"
	c.Reservation.BuyerID = "member-b"
	c.Reservation.Addresses.Billing.City = "Leeds"

	assert.Equal(t, "a.jpg", l.Images["left_outside"])
	assert.Equal(t, "member-a", l.Reservation.BuyerID)
	assert.Equal(t, "London", l.Reservation.Addresses.Billing.City)
}

func TestNewOrderUsesReservationPricing(t *testing.T) {
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	l := &Listing{
		ID:          "l1",
		Size:        "1.5",
		Price:       5000,
		ProductID:   123456,
		ProductName: "Shoe",
		Reservation: &Reservation{
			BuyerID:    "member-a",
			BuyerEmail: "memberA@test.com",
			OrderNo:    "TSM-1",
			ExpiresAt:  now.Add(ReservationTTL),
			Pricing:    pricing.Calculate(999),
		},
	}

	o := NewOrder(l, PaymentSnapshot{Method: "visa", CardSummary: "1142"}, now)

	assert.Equal(t, int64(1828), o.TotalPrice)
	assert.Equal(t, int64(999), o.ProductPrice)
	assert.Equal(t, OrderStatusPlaced, o.Status)
	assert.Equal(t, ShipmentStatusUnshipped, o.ShipmentStatus)
	assert.Equal(t, int64(1577836800), o.CreatedAt)
	assert.Equal(t, "Business", o.SellerType)
}

func TestSortListingsBySize(t *testing.T) {
	listings := []Listing{{Size: "10"}, {Size: "9"}, {Size: "1.5"}, {Size: "XL"}, {Size: "16"}}

	SortListingsBySize(listings)

	var got []string
	for _, l := range listings {
		got = append(got, l.Size)
	}
	assert.Equal(t, []string{"1.5", "9", "10", "16", "XL"}, got)
}
