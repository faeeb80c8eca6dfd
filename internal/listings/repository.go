package listings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
)

const listingColumns = `id, style_code, size, price, images, status, product_id, product_name,
	buyer_id, order_id, reservation, version, created_at, updated_at`

// PostgresStore keeps listings in the listings table and the one-hold-per-
// buyer index in buyer_reservations. Every write is conditional on the
// listing version.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*domain.Listing, error) {
	var (
		l           domain.Listing
		images      []byte
		reservation []byte
	)
	err := row.Scan(&l.ID, &l.StyleCode, &l.Size, &l.Price, &images, &l.Status, &l.ProductID, &l.ProductName,
		&l.BuyerID, &l.OrderID, &reservation, &l.Version, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(images) > 0 {
		if err := json.Unmarshal(images, &l.Images); err != nil {
			return nil, fmt.Errorf("decode images of listing %s: %w", l.ID, err)
		}
	}
	if len(reservation) > 0 {
		l.Reservation = &domain.Reservation{}
		if err := json.Unmarshal(reservation, l.Reservation); err != nil {
			return nil, fmt.Errorf("decode reservation of listing %s: %w", l.ID, err)
		}
	}
	return &l, nil
}

// reservationColumns returns the JSON document plus the two columns the
// reservation is indexed by, all NULL when there is no reservation.
func reservationColumns(r *domain.Reservation) (doc, buyerID, expiresAt any, err error) {
	if r == nil {
		return nil, nil, nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode reservation: %w", err)
	}
	return data, r.BuyerID, r.ExpiresAt.UTC(), nil
}

func (s *PostgresStore) Create(ctx context.Context, l *domain.Listing) error {
	images, err := json.Marshal(l.Images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO listings (id, style_code, size, price, images, status, product_id, product_name,
			buyer_id, order_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12)
	`, l.ID, l.StyleCode, l.Size, l.Price, images, l.Status, l.ProductID, l.ProductName,
		l.BuyerID, l.OrderID, l.CreatedAt.UTC(), l.UpdatedAt.UTC())
	if err != nil {
		return err
	}

	l.Version = 1
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Listing, error) {
	l, err := scanListing(s.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

func (s *PostgresStore) ReservedBy(ctx context.Context, buyerID string) (*domain.Listing, error) {
	l, err := scanListing(s.db.QueryRowContext(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE id = (SELECT listing_id FROM buyer_reservations WHERE buyer_id = $1)
	`, buyerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

func (s *PostgresStore) Search(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, error) {
	var (
		where []string
		args  []any
	)
	if f.StyleCode != "" {
		args = append(args, f.StyleCode)
		where = append(where, fmt.Sprintf("style_code = $%d", len(args)))
	}
	if f.ProductID != 0 {
		args = append(args, f.ProductID)
		where = append(where, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if f.Size != "" {
		args = append(args, f.Size)
		where = append(where, fmt.Sprintf("size = $%d", len(args)))
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	listings := []domain.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return listings, nil
}

func (s *PostgresStore) Save(ctx context.Context, l *domain.Listing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := updateListing(ctx, tx, l); err != nil {
		return err
	}

	if l.Reservation == nil {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM buyer_reservations WHERE listing_id = $1`, l.ID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	l.Version++
	return nil
}

// Reserve writes the listing carrying its new reservation and points the
// holder's index row at it. A hold the buyer had on another listing is
// cleared in the same transaction. Reserves by the same buyer serialize on a
// transaction-scoped advisory lock keyed by the buyer, which also covers a
// buyer who has no index row yet.
func (s *PostgresStore) Reserve(ctx context.Context, l *domain.Listing) error {
	if l.Reservation == nil {
		return errors.New("reserve listing without a reservation")
	}
	buyerID := l.Reservation.BuyerID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, buyerID); err != nil {
		return err
	}

	var priorID string
	err = tx.QueryRowContext(ctx,
		`SELECT listing_id FROM buyer_reservations WHERE buyer_id = $1 FOR UPDATE`, buyerID).Scan(&priorID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if priorID != "" && priorID != l.ID {
		_, err = tx.ExecContext(ctx, `
			UPDATE listings
			SET reservation = NULL, reservation_buyer_id = NULL, reservation_expires_at = NULL,
				version = version + 1, updated_at = $3
			WHERE id = $1 AND reservation_buyer_id = $2
		`, priorID, buyerID, time.Now().UTC())
		if err != nil {
			return err
		}
	}

	if err := updateListing(ctx, tx, l); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM buyer_reservations WHERE listing_id = $1 AND buyer_id <> $2`, l.ID, buyerID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO buyer_reservations (buyer_id, listing_id)
		VALUES ($1, $2)
		ON CONFLICT (buyer_id) DO UPDATE SET listing_id = EXCLUDED.listing_id
	`, buyerID, l.ID)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	l.Version++
	return nil
}

func updateListing(ctx context.Context, tx *sql.Tx, l *domain.Listing) error {
	images, err := json.Marshal(l.Images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	doc, holder, expiresAt, err := reservationColumns(l.Reservation)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE listings
		SET style_code = $2, size = $3, price = $4, images = $5, status = $6,
			product_id = $7, product_name = $8, buyer_id = $9, order_id = $10,
			reservation = $11, reservation_buyer_id = $12, reservation_expires_at = $13,
			version = version + 1, updated_at = $14
		WHERE id = $1 AND version = $15
	`, l.ID, l.StyleCode, l.Size, l.Price, images, l.Status,
		l.ProductID, l.ProductName, l.BuyerID, l.OrderID,
		doc, holder, expiresAt, l.UpdatedAt.UTC(), l.Version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}
