package orders

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
)

var orderRowColumns = []string{
	"order_no", "listing_id", "buyer_id", "buyer_email", "buyer_addresses", "payment_method", "card_number",
	"psp_reference", "product_id", "product_name", "product_size", "images", "seller_type", "status", "shipment_status",
	"tracking_link", "shipped_time", "cancellation_reason", "cancellation_time", "product_price", "delivery_method",
	"delivery_price", "processing_fee", "processing_fee_description", "seller_fee", "total_price", "created_at", "version",
}

func newMockRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func orderRow(orderNo string, createdAt int64) []driver.Value {
	return []driver.Value{
		orderNo, "l1", "member-a", "memberA@test.com",
		[]byte(`{"billing_address":{"city":"London"},"delivery_address":{"city":"Leeds"}}`),
		"visa", "1142", "psp-1", int64(123456), "Shoe", "1.5", []byte(`{"left_outside":"a.jpg"}`), "Business",
		"PLACED", "UNSHIPPED", "", int64(0), "", int64(0), int64(999), "Express Service",
		int64(799), int64(30), "3%", int64(30), int64(1828), createdAt, int64(2),
	}
}

func TestPostgresRepositoryGet(t *testing.T) {
	t.Run("decodes json columns", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE order_no = $1")).
			WithArgs("TSM-1").
			WillReturnRows(sqlmock.NewRows(orderRowColumns).AddRow(orderRow("TSM-1", 1577836801)...))

		o, err := repo.Get(context.Background(), "TSM-1")

		require.NoError(t, err)
		require.NotNil(t, o)
		assert.Equal(t, "London", o.BuyerAddresses.Billing.City)
		assert.Equal(t, "Leeds", o.BuyerAddresses.Delivery.City)
		assert.Equal(t, "a.jpg", o.Images["left_outside"])
		assert.Equal(t, int64(1828), o.TotalPrice)
		assert.Equal(t, domain.ShipmentStatusUnshipped, o.ShipmentStatus)
		assert.Equal(t, int64(2), o.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing order is nil", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE order_no = $1")).
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(orderRowColumns))

		o, err := repo.Get(context.Background(), "nope")

		require.NoError(t, err)
		assert.Nil(t, o)
	})
}

func TestPostgresRepositoryListByBuyer(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, order_no DESC")).
		WithArgs("member-a").
		WillReturnRows(sqlmock.NewRows(orderRowColumns).
			AddRow(orderRow("TSM-2", 1577836803)...).
			AddRow(orderRow("TSM-1", 1577836801)...))

	orders, err := repo.ListByBuyer(context.Background(), "member-a")

	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "TSM-2", orders[0].OrderNo)
	assert.Equal(t, "TSM-1", orders[1].OrderNo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryCreate(t *testing.T) {
	o := &domain.Order{OrderNo: "TSM-1", ListingID: "l1", Status: domain.OrderStatusPlaced}

	t.Run("inserts", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(context.Background(), o))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate is reported as existing", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(context.Background(), o)

		assert.ErrorIs(t, err, domain.ErrOrderExists)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		boom := errors.New("connection reset")
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).WillReturnError(boom)

		assert.ErrorIs(t, repo.Create(context.Background(), o), boom)
	})
}

func TestPostgresRepositoryUpdate(t *testing.T) {
	o := &domain.Order{
		OrderNo:        "TSM-1",
		Status:         domain.OrderStatusPlaced,
		ShipmentStatus: domain.ShipmentStatusShipped,
		TrackingLink:   "http://dhl.com/tracking",
		ShippedTime:    123456,
	}
	query := regexp.QuoteMeta("WHERE order_no = $7 AND version = $8")

	t.Run("conditional on the read version", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		o := o.Clone()
		o.Version = 4
		mock.ExpectExec(query).
			WithArgs(domain.OrderStatusPlaced, domain.ShipmentStatusShipped, "http://dhl.com/tracking", int64(123456),
				"", int64(0), "TSM-1", int64(4)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(context.Background(), o))
		assert.Equal(t, int64(5), o.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no row updated is a conflict", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		o := o.Clone()
		o.Version = 4
		mock.ExpectExec(query).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(context.Background(), o)

		assert.ErrorIs(t, err, domain.ErrOrderConflict)
		assert.Equal(t, int64(4), o.Version)
	})
}
