package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
)

const orderColumns = `order_no, listing_id, buyer_id, buyer_email, buyer_addresses, payment_method, card_number,
	psp_reference, product_id, product_name, product_size, images, seller_type, status, shipment_status,
	tracking_link, shipped_time, cancellation_reason, cancellation_time, product_price, delivery_method,
	delivery_price, processing_fee, processing_fee_description, seller_fee, total_price, created_at, version`

const uniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o         domain.Order
		addresses []byte
		images    []byte
	)
	err := row.Scan(&o.OrderNo, &o.ListingID, &o.BuyerID, &o.BuyerEmail, &addresses, &o.PaymentMethod, &o.CardNumber,
		&o.PSPReference, &o.ProductID, &o.ProductName, &o.ProductSize, &images, &o.SellerType, &o.Status, &o.ShipmentStatus,
		&o.TrackingLink, &o.ShippedTime, &o.CancellationReason, &o.CancellationTime, &o.ProductPrice, &o.DeliveryMethod,
		&o.DeliveryPrice, &o.ProcessingFee, &o.ProcessingFeeDescription, &o.SellerFee, &o.TotalPrice, &o.CreatedAt, &o.Version)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(addresses, &o.BuyerAddresses); err != nil {
		return nil, fmt.Errorf("decode addresses of order %s: %w", o.OrderNo, err)
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &o.Images); err != nil {
			return nil, fmt.Errorf("decode images of order %s: %w", o.OrderNo, err)
		}
	}
	return &o, nil
}

func (r *PostgresRepository) Create(ctx context.Context, o *domain.Order) error {
	addresses, err := json.Marshal(o.BuyerAddresses)
	if err != nil {
		return fmt.Errorf("encode addresses: %w", err)
	}
	images, err := json.Marshal(o.Images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	if o.Version == 0 {
		o.Version = 1
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28)
	`, o.OrderNo, o.ListingID, o.BuyerID, o.BuyerEmail, addresses, o.PaymentMethod, o.CardNumber,
		o.PSPReference, o.ProductID, o.ProductName, o.ProductSize, images, o.SellerType, o.Status, o.ShipmentStatus,
		o.TrackingLink, o.ShippedTime, o.CancellationReason, o.CancellationTime, o.ProductPrice, o.DeliveryMethod,
		o.DeliveryPrice, o.ProcessingFee, o.ProcessingFeeDescription, o.SellerFee, o.TotalPrice, o.CreatedAt, o.Version)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrOrderExists
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, orderNo string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_no = $1`, orderNo))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

func (r *PostgresRepository) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE buyer_id = $1
		ORDER BY created_at DESC, order_no DESC
	`, buyerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// Update writes the mutable lifecycle fields if the stored version still
// matches o.Version. Pricing and snapshots are fixed at creation and never
// rewritten.
func (r *PostgresRepository) Update(ctx context.Context, o *domain.Order) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, shipment_status = $2, tracking_link = $3, shipped_time = $4,
			cancellation_reason = $5, cancellation_time = $6, version = version + 1
		WHERE order_no = $7 AND version = $8
	`, o.Status, o.ShipmentStatus, o.TrackingLink, o.ShippedTime,
		o.CancellationReason, o.CancellationTime, o.OrderNo, o.Version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrOrderConflict
	}
	o.Version++
	return nil
}
