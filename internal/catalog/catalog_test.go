package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientProductByStyleCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		switch r.URL.Query().Get("style_code") {
		case "DD1391-100":
			_, _ = w.Write([]byte(`{"name":"Nike Dunk Low Panda","tracking_id":4411}`))
		case "BOOM":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", server.Client())

	t.Run("found", func(t *testing.T) {
		p, err := c.ProductByStyleCode(context.Background(), "DD1391-100")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Nike Dunk Low Panda", p.Name)
		assert.Equal(t, int64(4411), p.TrackingID)
	})

	t.Run("missing product is nil without error", func(t *testing.T) {
		p, err := c.ProductByStyleCode(context.Background(), "UNKNOWN")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("server error surfaces", func(t *testing.T) {
		_, err := c.ProductByStyleCode(context.Background(), "BOOM")
		assert.Error(t, err)
	})
}

func TestClientUpdateStock(t *testing.T) {
	var got StockUpdate
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/stock", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NotContains(t, string(body), `"price"`)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewClient(server.URL, "", server.Client())
	err := c.UpdateStock(context.Background(), StockUpdate{
		StyleCode:   "DD1391-100",
		Sizes:       []string{},
		StockStatus: StockSoldOut,
		Currency:    "GBP",
	})

	require.NoError(t, err)
	assert.Equal(t, StockSoldOut, got.StockStatus)
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

type countingSource struct {
	calls    int
	products map[string]*Product
}

func (s *countingSource) ProductByStyleCode(_ context.Context, styleCode string) (*Product, error) {
	s.calls++
	return s.products[styleCode], nil
}

func (s *countingSource) UpdateStock(context.Context, StockUpdate) error { return nil }

func TestCachedClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("second lookup is served from cache", func(t *testing.T) {
		src := &countingSource{products: map[string]*Product{"A": {Name: "Shoe A", TrackingID: 1}}}
		cache := &memCache{entries: map[string][]byte{}}
		c := NewCachedClient(src, cache, time.Minute, logger)

		for i := 0; i < 2; i++ {
			p, err := c.ProductByStyleCode(context.Background(), "A")
			require.NoError(t, err)
			assert.Equal(t, "Shoe A", p.Name)
		}

		assert.Equal(t, 1, src.calls)
		assert.Contains(t, cache.entries, "catalog:product:A")
	})

	t.Run("misses are not cached", func(t *testing.T) {
		src := &countingSource{products: map[string]*Product{}}
		cache := &memCache{entries: map[string][]byte{}}
		c := NewCachedClient(src, cache, time.Minute, logger)

		p, err := c.ProductByStyleCode(context.Background(), "MISSING")
		require.NoError(t, err)
		assert.Nil(t, p)
		assert.Empty(t, cache.entries)
	})

	t.Run("cache failure falls back to catalog", func(t *testing.T) {
		src := &countingSource{products: map[string]*Product{"A": {Name: "Shoe A"}}}
		cache := &memCache{entries: map[string][]byte{}, getErr: errors.New("connection refused")}
		c := NewCachedClient(src, cache, time.Minute, logger)

		p, err := c.ProductByStyleCode(context.Background(), "A")
		require.NoError(t, err)
		assert.Equal(t, "Shoe A", p.Name)
		assert.Equal(t, 1, src.calls)
	})
}
