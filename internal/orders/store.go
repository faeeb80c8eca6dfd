package orders

import (
	"context"

	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
)

// Store persists orders. Get returns nil, nil for an unknown order number.
// Create fails with domain.ErrOrderExists when the order number or the
// listing already has an order. Update compares o.Version with the stored
// version, fails with domain.ErrOrderConflict when it is stale and advances
// o.Version on success.
type Store interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, orderNo string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
}
