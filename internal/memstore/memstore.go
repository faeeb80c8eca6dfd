// Package memstore holds in-memory listing and order stores with the same
// conditional-write semantics as the Postgres repositories. They back unit
// tests and local runs without a database.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
)

type Listings struct {
	mu       sync.Mutex
	listings map[string]*domain.Listing
	// byBuyer indexes the listing each buyer last reserved.
	byBuyer map[string]string
}

func NewListings() *Listings {
	return &Listings{
		listings: make(map[string]*domain.Listing),
		byBuyer:  make(map[string]string),
	}
}

func (s *Listings) Create(_ context.Context, l *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.Version = 1
	s.listings[l.ID] = l.Clone()
	return nil
}

func (s *Listings) Get(_ context.Context, id string) (*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, nil
	}
	return l.Clone(), nil
}

// Save writes l if the stored version still matches l.Version, then bumps
// the version on both copies. Clearing the reservation drops the buyer
// index entry pointing at this listing.
func (s *Listings) Save(_ context.Context, l *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.listings[l.ID]
	if !ok || current.Version != l.Version {
		return domain.ErrVersionConflict
	}

	l.Version++
	s.listings[l.ID] = l.Clone()

	if l.Reservation == nil {
		s.dropIndexFor(l.ID)
	}
	return nil
}

// Reserve writes l, which carries the new reservation, and moves the
// holder's buyer index entry to it. Any reservation the holder had on a
// different listing is cleared in the same step.
func (s *Listings) Reserve(_ context.Context, l *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.listings[l.ID]
	if !ok || current.Version != l.Version {
		return domain.ErrVersionConflict
	}

	buyer := l.Reservation.BuyerID
	if priorID, ok := s.byBuyer[buyer]; ok && priorID != l.ID {
		if prior, ok := s.listings[priorID]; ok && prior.Reservation != nil && prior.Reservation.BuyerID == buyer {
			prior.Reservation = nil
			prior.Version++
		}
	}

	l.Version++
	s.listings[l.ID] = l.Clone()

	s.dropIndexFor(l.ID)
	s.byBuyer[buyer] = l.ID
	return nil
}

func (s *Listings) dropIndexFor(listingID string) {
	for buyer, id := range s.byBuyer {
		if id == listingID {
			delete(s.byBuyer, buyer)
		}
	}
}

// ReservedBy returns the listing the buyer index points at, which may hold
// an expired reservation. The caller decides liveness.
func (s *Listings) ReservedBy(_ context.Context, buyerID string) (*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byBuyer[buyerID]
	if !ok {
		return nil, nil
	}
	l, ok := s.listings[id]
	if !ok {
		return nil, nil
	}
	return l.Clone(), nil
}

func (s *Listings) Search(_ context.Context, f domain.ListingFilter) ([]domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Listing{}
	for _, l := range s.listings {
		if f.Matches(l) {
			out = append(out, *l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type Orders struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func NewOrders() *Orders {
	return &Orders{orders: make(map[string]*domain.Order)}
}

func (s *Orders) Create(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.OrderNo]; exists {
		return domain.ErrOrderExists
	}
	for _, existing := range s.orders {
		if o.ListingID != "" && existing.ListingID == o.ListingID {
			return domain.ErrOrderExists
		}
	}
	if o.Version == 0 {
		o.Version = 1
	}
	s.orders[o.OrderNo] = o.Clone()
	return nil
}

func (s *Orders) Get(_ context.Context, orderNo string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderNo]
	if !ok {
		return nil, nil
	}
	return o.Clone(), nil
}

// ListByBuyer returns the buyer's orders, newest first.
func (s *Orders) ListByBuyer(_ context.Context, buyerID string) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Order{}
	for _, o := range s.orders {
		if o.BuyerID == buyerID {
			out = append(out, *o.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].OrderNo > out[j].OrderNo
	})
	return out, nil
}

// Update replaces the order if the stored version still matches o.Version,
// then bumps it.
func (s *Orders) Update(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[o.OrderNo]
	if !ok || current.Version != o.Version {
		return domain.ErrOrderConflict
	}
	o.Version++
	s.orders[o.OrderNo] = o.Clone()
	return nil
}
