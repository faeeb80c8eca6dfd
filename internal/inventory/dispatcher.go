package inventory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
)

const defaultPushTimeout = 15 * time.Second

type Pusher interface {
	Push(ctx context.Context, styleCode string) error
}

// AsyncDispatcher pushes stock in a background goroutine so the triggering
// request never waits on, or fails because of, the catalog.
type AsyncDispatcher struct {
	pusher  Pusher
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewAsyncDispatcher(pusher Pusher, logger *slog.Logger) *AsyncDispatcher {
	return &AsyncDispatcher{pusher: pusher, timeout: defaultPushTimeout, logger: logger}
}

func (d *AsyncDispatcher) StockChanged(ctx context.Context, styleCode string) {
	if styleCode == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		if err := d.pusher.Push(ctx, styleCode); err != nil {
			d.logger.ErrorContext(ctx, "stock push failed", "style_code", styleCode, "error", err)
		}
	}()
}

// Wait blocks until every dispatched push has finished.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// EventDispatcher hands stock recomputation to the worker through a
// listing.stock-changed event keyed by style code.
type EventDispatcher struct {
	publisher Publisher
	now       func() time.Time
	logger    *slog.Logger
}

func NewEventDispatcher(publisher Publisher, logger *slog.Logger) *EventDispatcher {
	return &EventDispatcher{publisher: publisher, now: time.Now, logger: logger}
}

func (d *EventDispatcher) StockChanged(ctx context.Context, styleCode string) {
	if styleCode == "" {
		return
	}

	event := domain.StockChangedEvent{StyleCode: styleCode, Timestamp: d.now()}
	if err := d.publisher.Publish(ctx, styleCode, event); err != nil {
		d.logger.ErrorContext(ctx, "failed to publish stock changed event", "style_code", styleCode, "error", err)
	}
}
