package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
	"github.com/joao-fontenele/marketplace-orderflow/internal/email"
	"github.com/joao-fontenele/marketplace-orderflow/internal/httpx"
	"github.com/joao-fontenele/marketplace-orderflow/internal/messaging"
)

// NotificationHandler sends the order confirmation email for order.placed
// events. Transient email service failures are retried until the worker
// shuts down. A 4xx other than 429 will not succeed on retry and is skipped.
type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	backoff         time.Duration
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		backoff:         defaultBackoff,
		logger:          logger,
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: unmarshal order placed event: %v", messaging.ErrSkip, err)
	}
	if event.BuyerEmail == "" {
		h.logger.WarnContext(ctx, "order has no buyer email, skipping confirmation", "order_no", event.OrderNo)
		return nil
	}

	h.logger.InfoContext(ctx, "processing order placed event", "order_no", event.OrderNo, "buyer_id", event.BuyerID)

	req := email.OrderConfirmation{
		To:          event.BuyerEmail,
		OrderNo:     event.OrderNo,
		ProductName: event.ProductName,
		ProductSize: event.ProductSize,
		TotalPrice:  event.TotalPrice,
	}
	err := retryUntilDone(ctx, h.backoff, rejected, func(attempt int) error {
		err := httpx.DoJSON(ctx, h.httpClient, http.MethodPost, h.emailServiceURL+"/send", nil, req, nil)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to send confirmation email",
				"error", err, "order_no", event.OrderNo, "attempt", attempt)
		}
		return err
	})
	if rejected(err) {
		return fmt.Errorf("%w: confirmation email for %s rejected: %v", messaging.ErrSkip, event.OrderNo, err)
	}
	if err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}

	h.logger.InfoContext(ctx, "order confirmation sent", "order_no", event.OrderNo)
	return nil
}

// rejected reports whether the email service refused the request itself.
func rejected(err error) bool {
	var statusErr *httpx.StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusTooManyRequests
}
