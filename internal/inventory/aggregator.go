// Package inventory keeps the catalog's marketplace availability in step
// with the listings: for a style code it recomputes the sellable sizes and
// lowest price and pushes them to the catalog.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/joao-fontenele/marketplace-orderflow/internal/catalog"
	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
	"github.com/joao-fontenele/marketplace-orderflow/internal/pricing"
	"github.com/joao-fontenele/marketplace-orderflow/internal/telemetry"
)

const AffiliateID = "affiliate:marketplace"

// ListingSource is the read side of the listing store.
type ListingSource interface {
	Search(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, error)
}

type StockPusher interface {
	UpdateStock(ctx context.Context, update catalog.StockUpdate) error
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

type Aggregator struct {
	listings      ListingSource
	catalog       StockPusher
	storefrontURL string
	now           func() time.Time
	logger        *slog.Logger
}

func NewAggregator(listings ListingSource, catalog StockPusher, storefrontURL string, logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		listings:      listings,
		catalog:       catalog,
		storefrontURL: storefrontURL,
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compute builds the stock update for a style code from the listings that
// are APPROVED and not under a live reservation.
func (a *Aggregator) Compute(ctx context.Context, styleCode string) (catalog.StockUpdate, error) {
	ls, err := a.listings.Search(ctx, domain.ListingFilter{StyleCode: styleCode})
	if err != nil {
		return catalog.StockUpdate{}, fmt.Errorf("search listings for %s: %w", styleCode, err)
	}

	now := a.now()
	seen := make(map[string]struct{})
	sizes := []string{}
	var lowest int64
	for i := range ls {
		l := &ls[i]
		if !l.Sellable(now) {
			continue
		}
		if lowest == 0 || l.Price < lowest {
			lowest = l.Price
		}
		if _, ok := seen[l.Size]; !ok {
			seen[l.Size] = struct{}{}
			sizes = append(sizes, l.Size)
		}
	}
	sort.SliceStable(sizes, func(i, j int) bool { return domain.LessSize(sizes[i], sizes[j]) })

	update := catalog.StockUpdate{
		AffiliateID: AffiliateID,
		Currency:    pricing.Currency,
		Sizes:       sizes,
		StockStatus: catalog.StockSoldOut,
		StyleCode:   styleCode,
		URL:         a.storefrontURL,
	}
	if len(sizes) > 0 {
		price := pricing.ToMajor(lowest)
		update.Price = &price
		update.StockStatus = catalog.StockInStock
	}
	return update, nil
}

// Push recomputes the style code's stock and sends it to the catalog.
func (a *Aggregator) Push(ctx context.Context, styleCode string) error {
	update, err := a.Compute(ctx, styleCode)
	if err != nil {
		return err
	}

	err = a.catalog.UpdateStock(ctx, update)
	telemetry.RecordStockPush(err)
	if err != nil {
		return fmt.Errorf("update stock for %s: %w", styleCode, err)
	}

	a.logger.InfoContext(ctx, "stock pushed",
		"style_code", styleCode,
		"stock_status", update.StockStatus,
		"sizes", len(update.Sizes),
	)
	return nil
}
