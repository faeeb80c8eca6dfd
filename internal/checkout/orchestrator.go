// Package checkout turns a buyer's live reservation into a paid order: it
// authorises the frozen total with the payment gateway, records the order
// and moves the listing to PURCHASED.
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/joao-fontenele/marketplace-orderflow/internal/apperr"
	"github.com/joao-fontenele/marketplace-orderflow/internal/authz"
	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
	"github.com/joao-fontenele/marketplace-orderflow/internal/listings"
	"github.com/joao-fontenele/marketplace-orderflow/internal/payment"
	"github.com/joao-fontenele/marketplace-orderflow/internal/pricing"
	"github.com/joao-fontenele/marketplace-orderflow/internal/telemetry"
)

var tracer = otel.Tracer("marketplace/checkout")

const maxWriteAttempts = 3

const (
	MessageAddressesRequired     = "Delivery and billing addresses are required before checkout"
	MessagePaymentMethodRequired = "A payment method is required"
	MessagePaymentFailed         = "Payment failed. Please check your details or try again using a different payment method or card."
)

type Gateway interface {
	Authorize(ctx context.Context, req payment.Request) (*payment.Result, error)
}

type OrderCreator interface {
	Create(ctx context.Context, o *domain.Order) error
}

type StockNotifier interface {
	StockChanged(ctx context.Context, styleCode string)
}

// Publisher emits the order.placed event. *messaging.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithEvents publishes an order.placed event after every successful
// checkout.
func WithEvents(p Publisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

type Orchestrator struct {
	listings      listings.Store
	orders        OrderCreator
	gateway       Gateway
	stock         StockNotifier
	events        Publisher
	sellerAccount string
	now           func() time.Time
	logger        *slog.Logger
}

func NewOrchestrator(
	listingStore listings.Store,
	orders OrderCreator,
	gateway Gateway,
	stock StockNotifier,
	sellerAccount string,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		listings:      listingStore,
		orders:        orders,
		gateway:       gateway,
		stock:         stock,
		sellerAccount: sellerAccount,
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Checkout pays for the listing the actor holds. A refused payment leaves
// the reservation, listing and orders untouched.
func (c *Orchestrator) Checkout(ctx context.Context, actor authz.Actor, listingID string, paymentMethod json.RawMessage) (*domain.Order, error) {
	// capability only; the reservation owner is checked once the listing is loaded
	if err := authz.Authorize(actor, authz.Checkout, authz.Resource{OwnerID: actor.UserID}); err != nil {
		return nil, err
	}
	if isEmpty(paymentMethod) {
		return nil, apperr.Validation(MessagePaymentMethodRequired)
	}

	l, err := c.listings.Get(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if l == nil {
		return nil, apperr.ErrNotFound
	}

	now := c.now()
	if err := authz.Authorize(actor, authz.Checkout, authz.Resource{OwnerID: l.Reservation.HolderAt(now)}); err != nil {
		return nil, err
	}
	if l.Reservation.Addresses == nil {
		return nil, apperr.Validation(MessageAddressesRequired)
	}

	result, err := c.authorize(ctx, l, paymentMethod)
	if err != nil {
		telemetry.RecordCheckout("error")
		return nil, err
	}
	if !result.Authorised() {
		telemetry.RecordCheckout("refused")
		c.logger.WarnContext(ctx, "payment refused",
			"listing_id", l.ID,
			"order_no", l.Reservation.OrderNo,
			"result_code", result.ResultCode,
			"refusal_reason_code", result.RefusalReasonCode,
			"refusal_reason", result.RefusalReason,
		)
		return nil, apperr.Validation(MessagePaymentFailed)
	}

	order := domain.NewOrder(l, domain.PaymentSnapshot{
		Method:       result.PaymentMethod(),
		CardSummary:  result.CardSummary(),
		PSPReference: result.PSPReference,
	}, now)

	if err := c.orders.Create(ctx, order); err != nil {
		telemetry.RecordCheckout("error")
		c.logger.ErrorContext(ctx, "payment authorised but order not recorded",
			"order_no", order.OrderNo,
			"psp_reference", order.PSPReference,
			"error", err,
		)
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := c.markPurchased(ctx, l, order, now); err != nil {
		telemetry.RecordCheckout("error")
		c.logger.ErrorContext(ctx, "order recorded but listing not marked purchased",
			"order_no", order.OrderNo,
			"listing_id", l.ID,
			"error", err,
		)
		return nil, err
	}
	telemetry.RecordCheckout("authorised")

	c.logger.InfoContext(ctx, "order placed",
		"order_no", order.OrderNo,
		"listing_id", l.ID,
		"buyer_id", order.BuyerID,
		"total_price", order.TotalPrice,
	)

	c.stock.StockChanged(ctx, l.StyleCode)
	c.publish(ctx, order, now)

	return order, nil
}

func isEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// PaymentRequest builds the gateway request for a reservation: the frozen
// total, with the seller's payout and both fees as separate splits.
func PaymentRequest(r *domain.Reservation, sellerAccount string, paymentMethod json.RawMessage) payment.Request {
	no := r.OrderNo
	return payment.Request{
		Amount:        payment.Amount{Currency: pricing.Currency, Value: r.Pricing.TotalPrice},
		PaymentMethod: paymentMethod,
		Reference:     no,
		Splits: []payment.Split{
			{
				Account:   sellerAccount,
				Amount:    payment.Amount{Value: r.Pricing.SellerPayout()},
				Reference: "payment_" + no,
				Type:      payment.SplitMarketPlace,
			},
			{
				Amount:    payment.Amount{Value: r.Pricing.ProcessingFee},
				Reference: "processing_fee_" + no,
				Type:      payment.SplitPaymentFee,
			},
			{
				Amount:    payment.Amount{Value: r.Pricing.SellerFee},
				Reference: "seller_fee_" + no,
				Type:      payment.SplitPaymentFee,
			},
		},
	}
}

func (c *Orchestrator) authorize(ctx context.Context, l *domain.Listing, paymentMethod json.RawMessage) (*payment.Result, error) {
	req := PaymentRequest(l.Reservation, c.sellerAccount, paymentMethod)

	ctx, span := tracer.Start(ctx, "payment.authorize")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.no", req.Reference),
		attribute.String("listing.id", l.ID),
		attribute.Int64("payment.amount", req.Amount.Value),
	)

	result, err := c.gateway.Authorize(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("authorize payment: %w", err)
	}
	span.SetAttributes(attribute.String("payment.result_code", result.ResultCode))
	return result, nil
}

// markPurchased moves the listing to PURCHASED and drops the reservation.
// The payment has been taken, so a concurrent write is retried against the
// fresh listing rather than reported to the buyer.
func (c *Orchestrator) markPurchased(ctx context.Context, l *domain.Listing, order *domain.Order, now time.Time) error {
	for attempt := 1; ; attempt++ {
		l.Status = domain.ListingStatusPurchased
		l.BuyerID = order.BuyerID
		l.OrderID = order.OrderNo
		l.Reservation = nil
		l.UpdatedAt = now

		err := c.listings.Save(ctx, l)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt == maxWriteAttempts {
			return fmt.Errorf("mark listing purchased: %w", err)
		}

		fresh, err := c.listings.Get(ctx, l.ID)
		if err != nil {
			return fmt.Errorf("get listing: %w", err)
		}
		if fresh == nil {
			return fmt.Errorf("listing %s disappeared during checkout", l.ID)
		}
		l = fresh
	}
}

func (c *Orchestrator) publish(ctx context.Context, o *domain.Order, now time.Time) {
	if c.events == nil {
		return
	}
	event := domain.OrderPlacedEvent{
		OrderNo:     o.OrderNo,
		ListingID:   o.ListingID,
		BuyerID:     o.BuyerID,
		BuyerEmail:  o.BuyerEmail,
		ProductName: o.ProductName,
		ProductSize: o.ProductSize,
		TotalPrice:  o.TotalPrice,
		Timestamp:   now,
	}
	if err := c.events.Publish(ctx, o.OrderNo, event); err != nil {
		c.logger.ErrorContext(ctx, "failed to publish order placed event", "error", err, "order_no", o.OrderNo)
	}
}
