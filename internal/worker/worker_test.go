package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
	"github.com/joao-fontenele/marketplace-orderflow/internal/email"
	"github.com/joao-fontenele/marketplace-orderflow/internal/messaging"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type scriptedPusher struct {
	errs   []error
	styles []string
}

func (p *scriptedPusher) Push(_ context.Context, styleCode string) error {
	p.styles = append(p.styles, styleCode)
	if len(p.errs) == 0 {
		return nil
	}
	err := p.errs[0]
	p.errs = p.errs[1:]
	return err
}

func stockEvent(t *testing.T, styleCode string) []byte {
	t.Helper()
	data, err := json.Marshal(domain.StockChangedEvent{StyleCode: styleCode, Timestamp: time.Now()})
	require.NoError(t, err)
	return data
}

func TestStockSyncHandler(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("catalog down")

	t.Run("pushes the style code", func(t *testing.T) {
		pusher := &scriptedPusher{}
		h := NewStockSyncHandler(pusher, discardLogger())

		require.NoError(t, h.Handle(ctx, stockEvent(t, "ABC-123")))
		assert.Equal(t, []string{"ABC-123"}, pusher.styles)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		pusher := &scriptedPusher{errs: []error{boom, boom}}
		h := NewStockSyncHandler(pusher, discardLogger())
		h.backoff = time.Millisecond

		require.NoError(t, h.Handle(ctx, stockEvent(t, "ABC-123")))
		assert.Len(t, pusher.styles, 3)
	})

	t.Run("keeps retrying through a long outage", func(t *testing.T) {
		pusher := &scriptedPusher{errs: []error{boom, boom, boom, boom, boom, boom}}
		h := NewStockSyncHandler(pusher, discardLogger())
		h.backoff = time.Millisecond

		require.NoError(t, h.Handle(ctx, stockEvent(t, "ABC-123")))
		assert.Len(t, pusher.styles, 7)
	})

	t.Run("stops when the worker shuts down", func(t *testing.T) {
		errs := make([]error, 1000)
		for i := range errs {
			errs[i] = boom
		}
		pusher := &scriptedPusher{errs: errs}
		h := NewStockSyncHandler(pusher, discardLogger())
		h.backoff = time.Millisecond

		shutdown, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		err := h.Handle(shutdown, stockEvent(t, "ABC-123"))

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, messaging.ErrSkip)
		assert.Greater(t, len(pusher.styles), 1)
	})

	t.Run("undecodable payload is skipped", func(t *testing.T) {
		h := NewStockSyncHandler(&scriptedPusher{}, discardLogger())

		assert.ErrorIs(t, h.Handle(ctx, []byte(`{`)), messaging.ErrSkip)
		assert.ErrorIs(t, h.Handle(ctx, []byte(`{}`)), messaging.ErrSkip)
	})
}

func TestNotificationHandler(t *testing.T) {
	ctx := context.Background()
	event, err := json.Marshal(domain.OrderPlacedEvent{
		OrderNo:     "TSM-1",
		BuyerEmail:  "memberA@test.com",
		ProductName: "Shoe",
		ProductSize: "1.5",
		TotalPrice:  1828,
	})
	require.NoError(t, err)

	t.Run("posts the confirmation", func(t *testing.T) {
		var got email.OrderConfirmation
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/send", r.URL.Path)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"status":"sent"}`))
		}))
		defer server.Close()

		h := NewNotificationHandler(server.URL, server.Client(), discardLogger())

		require.NoError(t, h.Handle(ctx, event))
		assert.Equal(t, email.OrderConfirmation{
			To:          "memberA@test.com",
			OrderNo:     "TSM-1",
			ProductName: "Shoe",
			ProductSize: "1.5",
			TotalPrice:  1828,
		}, got)
	})

	t.Run("retries while the email service is unavailable", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 4 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"status":"sent"}`))
		}))
		defer server.Close()

		h := NewNotificationHandler(server.URL, server.Client(), discardLogger())
		h.backoff = time.Millisecond

		require.NoError(t, h.Handle(ctx, event))
		assert.Equal(t, int32(4), calls.Load())
	})

	t.Run("outage is returned on shutdown", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		h := NewNotificationHandler(server.URL, server.Client(), discardLogger())
		h.backoff = time.Millisecond

		shutdown, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		err := h.Handle(shutdown, event)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, messaging.ErrSkip)
	})

	t.Run("rejected request is skipped", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		h := NewNotificationHandler(server.URL, server.Client(), discardLogger())
		h.backoff = time.Millisecond

		assert.ErrorIs(t, h.Handle(ctx, event), messaging.ErrSkip)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("undecodable payload is skipped", func(t *testing.T) {
		h := NewNotificationHandler("http://unused", http.DefaultClient, discardLogger())
		assert.ErrorIs(t, h.Handle(ctx, []byte(`nope`)), messaging.ErrSkip)
	})
}
