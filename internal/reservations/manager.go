// Package reservations grants and releases the time-boxed hold a buyer
// takes on a listing before checkout. A listing has at most one live hold
// and a buyer holds at most one listing; expiry is evaluated lazily against
// the clock.
package reservations

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
	"github.com/joao-fontenele/marketplace-orderflow/internal/idgen"
	"github.com/joao-fontenele/marketplace-orderflow/internal/listings"
	"github.com/joao-fontenele/marketplace-orderflow/internal/pricing"
	"github.com/joao-fontenele/marketplace-orderflow/internal/telemetry"
)

const maxWriteAttempts = 3

type StockNotifier interface {
	StockChanged(ctx context.Context, styleCode string)
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

type Manager struct {
	store  listings.Store
	stock  StockNotifier
	ids    idgen.Generator
	now    func() time.Time
	logger *slog.Logger
}

func NewManager(store listings.Store, stock StockNotifier, ids idgen.Generator, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		stock:  stock,
		ids:    ids,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) load(ctx context.Context, id string) (*domain.Listing, error) {
	l, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if l == nil {
		return nil, apperr.ErrNotFound
	}
	return l, nil
}

// Acquire places or renews the actor's hold on a listing for
// domain.ReservationTTL. A first hold fixes the order number and pricing;
// a renewal by the live holder only moves the expiry. Any hold the actor
// had on another listing is released.
func (m *Manager) Acquire(ctx context.Context, actor authz.Actor, listingID string) (*domain.PendingOrder, error) {
	if err := authz.Authorize(actor, authz.ReserveListing, authz.Resource{}); err != nil {
		return nil, err
	}

	prior, err := m.store.ReservedBy(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("find existing reservation: %w", err)
	}

	l, err := m.load(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.Status == domain.ListingStatusPurchased {
		return nil, apperr.ErrForbidden
	}

	now := m.now()
	switch holder := l.Reservation.HolderAt(now); holder {
	case "":
		l.Reservation = &domain.Reservation{
			BuyerID:    actor.UserID,
			BuyerEmail: actor.Email,
			OrderNo:    domain.OrderNoPrefix + m.ids.Generate(),
			Pricing:    pricing.Calculate(l.Price),
		}
	case actor.UserID:
	default:
		return nil, apperr.ErrForbidden
	}
	l.Reservation.ExpiresAt = now.Add(domain.ReservationTTL)
	l.UpdatedAt = now

	err = m.store.Reserve(ctx, l)
	telemetry.RecordReservationOperation("acquire", err)
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			m.logger.WarnContext(ctx, "lost reservation race", "listing_id", l.ID, "buyer_id", actor.UserID)
			return nil, apperr.ErrForbidden
		}
		return nil, fmt.Errorf("reserve listing: %w", err)
	}

	m.logger.InfoContext(ctx, "listing reserved",
		"listing_id", l.ID,
		"buyer_id", actor.UserID,
		"order_no", l.Reservation.OrderNo,
		"expires_at", l.Reservation.ExpiresAt,
	)

	m.stock.StockChanged(ctx, l.StyleCode)
	if prior != nil && prior.ID != l.ID && prior.Reservation.HolderAt(now) == actor.UserID && prior.StyleCode != l.StyleCode {
		m.stock.StockChanged(ctx, prior.StyleCode)
	}

	return domain.NewPendingOrder(l), nil
}

// mutateHeld applies fn to the listing while the actor holds its live
// reservation, retrying on concurrent writes.
func (m *Manager) mutateHeld(ctx context.Context, actor authz.Actor, listingID string, fn func(l *domain.Listing, now time.Time)) (*domain.Listing, error) {
	for attempt := 1; ; attempt++ {
		l, err := m.load(ctx, listingID)
		if err != nil {
			return nil, err
		}

		now := m.now()
		res := authz.Resource{OwnerID: l.Reservation.HolderAt(now)}
		if err := authz.Authorize(actor, authz.ManageReservation, res); err != nil {
			return nil, err
		}

		fn(l, now)
		l.UpdatedAt = now

		err = m.store.Save(ctx, l)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt == maxWriteAttempts {
			return nil, fmt.Errorf("save listing: %w", err)
		}
	}
}

// Release drops the actor's live hold on the listing.
func (m *Manager) Release(ctx context.Context, actor authz.Actor, listingID string) (*domain.Listing, error) {
	if err := authz.Authorize(actor, authz.ReserveListing, authz.Resource{}); err != nil {
		return nil, err
	}

	l, err := m.mutateHeld(ctx, actor, listingID, func(l *domain.Listing, _ time.Time) {
		l.Reservation = nil
	})
	telemetry.RecordReservationOperation("release", err)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "reservation released", "listing_id", l.ID, "buyer_id", actor.UserID)
	m.stock.StockChanged(ctx, l.StyleCode)
	return l, nil
}

// AttachAddresses records billing and delivery addresses on the actor's
// live hold.
func (m *Manager) AttachAddresses(ctx context.Context, actor authz.Actor, listingID string, addresses domain.Addresses) (*domain.PendingOrder, error) {
	if err := authz.Authorize(actor, authz.ReserveListing, authz.Resource{}); err != nil {
		return nil, err
	}
	if err := validateAddresses(addresses); err != nil {
		return nil, err
	}

	l, err := m.mutateHeld(ctx, actor, listingID, func(l *domain.Listing, _ time.Time) {
		a := addresses
		l.Reservation.Addresses = &a
	})
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "reservation addresses updated", "listing_id", l.ID, "buyer_id", actor.UserID)
	return domain.NewPendingOrder(l), nil
}

func validateAddresses(a domain.Addresses) error {
	if err := validateAddress("billing_address", a.Billing); err != nil {
		return err
	}
	return validateAddress("delivery_address", a.Delivery)
}

func validateAddress(name string, a domain.Address) error {
	required := []struct {
		field string
		value string
	}{
		{"first_name", a.FirstName},
		{"last_name", a.LastName},
		{"address_line_1", a.AddressLine1},
		{"city", a.City},
		{"postcode", a.Postcode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return apperr.Validation(fmt.Sprintf("%s.%s is required", name, r.field))
		}
	}
	return nil
}

// PendingForListing projects the actor's live hold on a listing.
func (m *Manager) PendingForListing(ctx context.Context, actor authz.Actor, listingID string) (*domain.PendingOrder, error) {
	if err := authz.Authorize(actor, authz.ReserveListing, authz.Resource{}); err != nil {
		return nil, err
	}

	l, err := m.load(ctx, listingID)
	if err != nil {
		return nil, err
	}

	res := authz.Resource{OwnerID: l.Reservation.HolderAt(m.now())}
	if err := authz.Authorize(actor, authz.ManageReservation, res); err != nil {
		return nil, err
	}
	return domain.NewPendingOrder(l), nil
}

// PendingForBuyer projects whichever listing the actor currently holds.
func (m *Manager) PendingForBuyer(ctx context.Context, actor authz.Actor) (*domain.PendingOrder, error) {
	if err := authz.Authorize(actor, authz.ReserveListing, authz.Resource{}); err != nil {
		return nil, err
	}

	l, err := m.store.ReservedBy(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	if l == nil || l.Reservation.HolderAt(m.now()) != actor.UserID {
		return nil, apperr.ErrNotFound
	}
	return domain.NewPendingOrder(l), nil
}
