package inventory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
)

type recordingPusher struct {
	mu     sync.Mutex
	styles []string
	ctxErr []error
	err    error
}

func (p *recordingPusher) Push(ctx context.Context, styleCode string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.styles = append(p.styles, styleCode)
	p.ctxErr = append(p.ctxErr, ctx.Err())
	return p.err
}

func TestAsyncDispatcher(t *testing.T) {
	t.Run("survives the request context", func(t *testing.T) {
		pusher := &recordingPusher{}
		d := NewAsyncDispatcher(pusher, slog.New(slog.NewTextHandler(io.Discard, nil)))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		d.StockChanged(ctx, "ABC-123")
		d.Wait()

		assert.Equal(t, []string{"ABC-123"}, pusher.styles)
		assert.NoError(t, pusher.ctxErr[0])
	})

	t.Run("push errors are swallowed", func(t *testing.T) {
		pusher := &recordingPusher{err: errors.New("catalog down")}
		d := NewAsyncDispatcher(pusher, slog.New(slog.NewTextHandler(io.Discard, nil)))

		d.StockChanged(context.Background(), "ABC-123")
		d.StockChanged(context.Background(), "XYZ-999")
		d.Wait()

		assert.ElementsMatch(t, []string{"ABC-123", "XYZ-999"}, pusher.styles)
	})

	t.Run("empty style code is ignored", func(t *testing.T) {
		pusher := &recordingPusher{}
		d := NewAsyncDispatcher(pusher, slog.New(slog.NewTextHandler(io.Discard, nil)))

		d.StockChanged(context.Background(), "")
		d.Wait()

		assert.Empty(t, pusher.styles)
	})
}

type recordingPublisher struct {
	keys   []string
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event any) error {
	p.keys = append(p.keys, key)
	p.events = append(p.events, event)
	return p.err
}

func TestEventDispatcher(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewEventDispatcher(pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.now = func() time.Time { return now }

	d.StockChanged(context.Background(), "ABC-123")

	require.Len(t, pub.events, 1)
	assert.Equal(t, "ABC-123", pub.keys[0])
	assert.Equal(t, domain.StockChangedEvent{StyleCode: "ABC-123", Timestamp: now}, pub.events[0])

	pub.err = errors.New("broker down")
	assert.NotPanics(t, func() { d.StockChanged(context.Background(), "ABC-123") })
}
