package listings

import (
	"context"

	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
)

// Store persists listings. Get and ReservedBy return nil, nil when there is
// nothing to return. Save and Reserve are conditional on the listing's
// Version and fail with domain.ErrVersionConflict when it is stale; on
// success they advance l.Version.
type Store interface {
	Create(ctx context.Context, l *domain.Listing) error
	Get(ctx context.Context, id string) (*domain.Listing, error)
	Save(ctx context.Context, l *domain.Listing) error
	Reserve(ctx context.Context, l *domain.Listing) error
	ReservedBy(ctx context.Context, buyerID string) (*domain.Listing, error)
	Search(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, error)
}
