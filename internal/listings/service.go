// Package listings owns the listing lifecycle: creation, the approval
// workflow, visibility rules and search.
package listings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joao-fontenele/marketplace-orderflow/internal/apperr"
	"github.com/joao-fontenele/marketplace-orderflow/internal/authz"
	"github.com/joao-fontenele/marketplace-orderflow/internal/catalog"
	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
	"github.com/joao-fontenele/marketplace-orderflow/internal/idgen"
	"github.com/joao-fontenele/marketplace-orderflow/internal/pricing"
)

const maxWriteAttempts = 3

const (
	MessageProductNotFound  = "No product found for style code"
	MessageSizeNeedsProduct = "Listings cannot be queried by size without productId"
)

type ProductResolver interface {
	ProductByStyleCode(ctx context.Context, styleCode string) (*catalog.Product, error)
}

// StockNotifier is told about every style code whose sellable stock may
// have changed. It must not block or fail the caller.
type StockNotifier interface {
	StockChanged(ctx context.Context, styleCode string)
}

// Input is the body of a listing create or update. Price is in major
// units.
type Input struct {
	StyleCode string               `json:"style_code"`
	Size      string               `json:"size"`
	Price     float64              `json:"price"`
	Images    map[string]string    `json:"images"`
	Status    domain.ListingStatus `json:"status,omitempty"`
}

func (in Input) validate() error {
	switch {
	case strings.TrimSpace(in.StyleCode) == "":
		return apperr.Validation("style_code is required")
	case strings.TrimSpace(in.Size) == "":
		return apperr.Validation("size is required")
	case in.Price <= 0:
		return apperr.Validation("price must be greater than zero")
	case len(in.Images) == 0:
		return apperr.Validation("at least one image is required")
	case in.Status != "" && !in.Status.Settable():
		return apperr.Validation(fmt.Sprintf("status %q cannot be set", in.Status))
	}
	return nil
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	store    Store
	products ProductResolver
	stock    StockNotifier
	ids      idgen.Generator
	now      func() time.Time
	logger   *slog.Logger
}

func NewService(store Store, products ProductResolver, stock StockNotifier, ids idgen.Generator, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		products: products,
		stock:    stock,
		ids:      ids,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) resolveProduct(ctx context.Context, styleCode string) (*catalog.Product, error) {
	product, err := s.products.ProductByStyleCode(ctx, styleCode)
	if err != nil {
		return nil, fmt.Errorf("resolve product %s: %w", styleCode, err)
	}
	if product == nil {
		return nil, apperr.NotFound(MessageProductNotFound)
	}
	return product, nil
}

// Create stores a new listing awaiting approval, with the product snapshot
// taken from the catalog.
func (s *Service) Create(ctx context.Context, actor authz.Actor, in Input) (*domain.Listing, error) {
	if err := authz.Authorize(actor, authz.CreateListing, authz.Resource{}); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	product, err := s.resolveProduct(ctx, in.StyleCode)
	if err != nil {
		return nil, err
	}

	now := s.now()
	l := &domain.Listing{
		ID:          s.ids.Generate(),
		StyleCode:   in.StyleCode,
		Size:        in.Size,
		Price:       pricing.ToMinor(in.Price),
		Images:      in.Images,
		Status:      domain.ListingStatusAwaitingApproval,
		ProductID:   product.TrackingID,
		ProductName: product.Name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}

	s.logger.InfoContext(ctx, "listing created", "listing_id", l.ID, "style_code", l.StyleCode)
	s.stock.StockChanged(ctx, l.StyleCode)
	return l, nil
}

// resolveStatus applies the approval workflow to a requested status. Only
// approvers may approve or reject, and any edit of an approved listing by a
// non-approver sends it back for approval unless it is being disabled.
func resolveStatus(actor authz.Actor, current, requested domain.ListingStatus) domain.ListingStatus {
	if requested == "" {
		requested = current
	}
	if actor.Can(authz.CapApproveListings) {
		return requested
	}
	switch {
	case requested == domain.ListingStatusApproved, requested == domain.ListingStatusRejected:
		return domain.ListingStatusAwaitingApproval
	case current == domain.ListingStatusApproved && requested != domain.ListingStatusDisabled:
		return domain.ListingStatusAwaitingApproval
	}
	return requested
}

// Update replaces the listing's editable fields. Purchased listings never
// change.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id string, in Input) (*domain.Listing, error) {
	if err := authz.Authorize(actor, authz.UpdateListing, authz.Resource{}); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var (
		product *catalog.Product
		before  domain.Listing
		l       *domain.Listing
	)
	for attempt := 1; ; attempt++ {
		var err error
		l, err = s.store.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get listing: %w", err)
		}
		if l == nil {
			return nil, apperr.ErrNotFound
		}
		if l.Status == domain.ListingStatusPurchased {
			return nil, apperr.Forbidden("Purchased listings cannot be updated")
		}
		before = *l

		if in.StyleCode != l.StyleCode {
			if product == nil {
				if product, err = s.resolveProduct(ctx, in.StyleCode); err != nil {
					return nil, err
				}
			}
			l.ProductID = product.TrackingID
			l.ProductName = product.Name
		}

		l.StyleCode = in.StyleCode
		l.Size = in.Size
		l.Price = pricing.ToMinor(in.Price)
		l.Images = in.Images
		l.Status = resolveStatus(actor, before.Status, in.Status)
		l.UpdatedAt = s.now()

		err = s.store.Save(ctx, l)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt == maxWriteAttempts {
			return nil, fmt.Errorf("save listing: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "listing updated", "listing_id", l.ID, "status", l.Status)

	if before.Status == domain.ListingStatusApproved || l.Status == domain.ListingStatusApproved {
		s.stock.StockChanged(ctx, l.StyleCode)
		if before.StyleCode != l.StyleCode {
			s.stock.StockChanged(ctx, before.StyleCode)
		}
	}
	return l, nil
}

// visibleTo reports whether a non-admin actor may see the listing.
func visibleTo(actor authz.Actor, l *domain.Listing, now time.Time) bool {
	holder := l.Reservation.HolderAt(now)
	switch {
	case holder != "" && holder == actor.UserID:
		return true
	case l.Status == domain.ListingStatusPurchased:
		return actor.UserID != "" && l.BuyerID == actor.UserID
	case l.Status == domain.ListingStatusApproved:
		return holder == ""
	}
	return false
}

// Get returns the listing if the actor may see it. Listings the actor may
// not see are reported as not found.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id string) (*domain.Listing, error) {
	if err := authz.Authorize(actor, authz.ViewListings, authz.Resource{}); err != nil {
		return nil, err
	}

	l, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if l == nil {
		return nil, apperr.ErrNotFound
	}
	if !actor.IsAdmin() && !visibleTo(actor, l, s.now()) {
		return nil, apperr.ErrNotFound
	}
	return l, nil
}

// Search returns matching listings ordered by size. Non-admins see the same
// listings Get would show them.
func (s *Service) Search(ctx context.Context, actor authz.Actor, f domain.ListingFilter) ([]domain.Listing, error) {
	if err := authz.Authorize(actor, authz.ViewListings, authz.Resource{}); err != nil {
		return nil, err
	}
	if f.Size != "" && f.ProductID == 0 {
		return nil, apperr.Validation(MessageSizeNeedsProduct)
	}

	found, err := s.store.Search(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("search listings: %w", err)
	}

	out := found
	if !actor.IsAdmin() {
		now := s.now()
		out = make([]domain.Listing, 0, len(found))
		for i := range found {
			if visibleTo(actor, &found[i], now) {
				out = append(out, found[i])
			}
		}
	}

	domain.SortListingsBySize(out)
	return out, nil
}
