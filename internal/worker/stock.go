// Package worker holds the kafka message handlers run by cmd/worker.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
	"github.com/joao-fontenele/marketplace-orderflow/internal/messaging"
)

type StockPusher interface {
	Push(ctx context.Context, styleCode string) error
}

// StockSyncHandler recomputes and pushes stock for listing.stock-changed
// events. A failing push is retried with backoff until it succeeds or the
// worker shuts down, so a catalog outage stalls this topic without stopping
// the process or its other consumers.
type StockSyncHandler struct {
	pusher  StockPusher
	backoff time.Duration
	logger  *slog.Logger
}

func NewStockSyncHandler(pusher StockPusher, logger *slog.Logger) *StockSyncHandler {
	return &StockSyncHandler{pusher: pusher, backoff: defaultBackoff, logger: logger}
}

func (h *StockSyncHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.StockChangedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: unmarshal stock changed event: %v", messaging.ErrSkip, err)
	}
	if event.StyleCode == "" {
		return fmt.Errorf("%w: stock changed event without style code", messaging.ErrSkip)
	}

	h.logger.InfoContext(ctx, "processing stock changed event", "style_code", event.StyleCode)

	err := retryUntilDone(ctx, h.backoff, nil, func(attempt int) error {
		err := h.pusher.Push(ctx, event.StyleCode)
		if err != nil {
			h.logger.WarnContext(ctx, "stock push failed", "style_code", event.StyleCode, "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("push stock for %s: %w", event.StyleCode, err)
	}
	return nil
}
