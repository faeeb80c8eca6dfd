// Package orders owns the order lifecycle after checkout: reads, tracking,
// cancellation and the admin status change. Every write is conditional on
// the status the order was read in.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joao-fontenele/marketplace-orderflow/internal/apperr"
	"github.com/joao-fontenele/marketplace-orderflow/internal/authz"
	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
)

const maxWriteAttempts = 3

const (
	MessageTrackingNotPlaced     = "Order tracking can only be updated on placed or shipped orders"
	MessageCancellationNotPlaced = "Order cancellation can only be updated on placed orders"
	MessageStatusNotPlaced       = "Order status can only be updated on placed orders"
)

// ListingReader is the slice of the listing store the order reads need.
type ListingReader interface {
	Get(ctx context.Context, id string) (*domain.Listing, error)
}

type Tracking struct {
	Link        string `json:"link"`
	ShippedTime int64  `json:"shipped_time"`
}

type Cancellation struct {
	Reason string `json:"reason"`
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	store    Store
	listings ListingReader
	now      func() time.Time
	logger   *slog.Logger
}

func NewService(store Store, listings ListingReader, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		listings: listings,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) load(ctx context.Context, orderNo string) (*domain.Order, error) {
	o, err := s.store.Get(ctx, orderNo)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o == nil {
		return nil, apperr.ErrNotFound
	}
	return o, nil
}

func (s *Service) loadListing(ctx context.Context, id string) (*domain.Listing, error) {
	l, err := s.listings.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if l == nil {
		return nil, apperr.ErrNotFound
	}
	return l, nil
}

// Get returns the order to its buyer or to an admin.
func (s *Service) Get(ctx context.Context, actor authz.Actor, orderNo string) (*domain.Order, error) {
	if err := authz.Authorize(actor, authz.SearchOrders, authz.Resource{}); err != nil {
		return nil, err
	}

	o, err := s.load(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ReadOrder, authz.Resource{OwnerID: o.BuyerID}); err != nil {
		return nil, err
	}
	return o, nil
}

// Search returns the actor's own orders, newest first.
func (s *Service) Search(ctx context.Context, actor authz.Actor) ([]domain.Order, error) {
	if err := authz.Authorize(actor, authz.SearchOrders, authz.Resource{}); err != nil {
		return nil, err
	}

	orders, err := s.store.ListByBuyer(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// ForListing returns the order a listing was purchased through.
func (s *Service) ForListing(ctx context.Context, actor authz.Actor, listingID string) (*domain.Order, error) {
	if err := authz.Authorize(actor, authz.SearchOrders, authz.Resource{}); err != nil {
		return nil, err
	}

	l, err := s.loadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.OrderID == "" {
		return nil, apperr.ErrNotFound
	}

	o, err := s.load(ctx, l.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ReadOrder, authz.Resource{OwnerID: o.BuyerID}); err != nil {
		return nil, err
	}
	return o, nil
}

// ListingForOrder returns the listing an order was placed for.
func (s *Service) ListingForOrder(ctx context.Context, actor authz.Actor, orderNo string) (*domain.Listing, error) {
	if err := authz.Authorize(actor, authz.ViewListings, authz.Resource{}); err != nil {
		return nil, err
	}

	o, err := s.load(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	return s.loadListing(ctx, o.ListingID)
}

// transition applies fn to an order still in PLACED, re-reading and
// re-checking when a concurrent write landed first.
func (s *Service) transition(ctx context.Context, orderNo, notPlaced string, fn func(o *domain.Order, now time.Time)) (*domain.Order, error) {
	for attempt := 1; ; attempt++ {
		o, err := s.load(ctx, orderNo)
		if err != nil {
			return nil, err
		}
		if o.Status != domain.OrderStatusPlaced {
			return nil, apperr.Validation(notPlaced)
		}

		fn(o, s.now())

		err = s.store.Update(ctx, o)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, domain.ErrOrderConflict) || attempt == maxWriteAttempts {
			return nil, fmt.Errorf("update order: %w", err)
		}
	}
}

// UpdateTracking marks a placed order as shipped with the given link. A
// zero shipped time is taken as now.
func (s *Service) UpdateTracking(ctx context.Context, actor authz.Actor, orderNo string, t Tracking) (*domain.Order, error) {
	if err := authz.Authorize(actor, authz.UpdateOrder, authz.Resource{}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(t.Link) == "" {
		return nil, apperr.Validation("link is required")
	}

	o, err := s.transition(ctx, orderNo, MessageTrackingNotPlaced, func(o *domain.Order, now time.Time) {
		o.ShipmentStatus = domain.ShipmentStatusShipped
		o.TrackingLink = t.Link
		o.ShippedTime = t.ShippedTime
		if o.ShippedTime == 0 {
			o.ShippedTime = now.Unix()
		}
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order tracking updated", "order_no", o.OrderNo, "tracking_link", o.TrackingLink)
	return o, nil
}

func (s *Service) Cancel(ctx context.Context, actor authz.Actor, orderNo string, c Cancellation) (*domain.Order, error) {
	if err := authz.Authorize(actor, authz.UpdateOrder, authz.Resource{}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.Reason) == "" {
		return nil, apperr.Validation("reason is required")
	}

	o, err := s.transition(ctx, orderNo, MessageCancellationNotPlaced, func(o *domain.Order, now time.Time) {
		o.Status = domain.OrderStatusCancelled
		o.CancellationReason = c.Reason
		o.CancellationTime = now.Unix()
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order cancelled", "order_no", o.OrderNo)
	return o, nil
}

// UpdateStatus closes a placed order as COMPLETE or CANCELLED.
func (s *Service) UpdateStatus(ctx context.Context, actor authz.Actor, orderNo string, status domain.OrderStatus) (*domain.Order, error) {
	if err := authz.Authorize(actor, authz.UpdateOrder, authz.Resource{}); err != nil {
		return nil, err
	}
	if status != domain.OrderStatusComplete && status != domain.OrderStatusCancelled {
		return nil, apperr.Validation("status must be one of COMPLETE or CANCELLED")
	}

	o, err := s.transition(ctx, orderNo, MessageStatusNotPlaced, func(o *domain.Order, now time.Time) {
		o.Status = status
		if status == domain.OrderStatusCancelled {
			o.CancellationTime = now.Unix()
		}
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order status updated", "order_no", o.OrderNo, "status", o.Status)
	return o, nil
}
