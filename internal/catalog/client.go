// Package catalog talks to the external product catalog: product lookups
// by style code and marketplace stock updates.
package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/marketplace-orderflow/internal/circuitbreaker"
	"github.com/joao-fontenele/marketplace-orderflow/internal/httpx"
)

const (
	StockInStock = "in-stock"
	StockSoldOut = "sold-out"
)

type Product struct {
	Name       string `json:"name"`
	TrackingID int64  `json:"tracking_id"`
}

// StockUpdate is the marketplace availability shown against a product.
// Price is in major units and omitted when nothing is for sale.
type StockUpdate struct {
	AffiliateID string   `json:"affiliate_id"`
	Currency    string   `json:"currency"`
	Price       *float64 `json:"price,omitempty"`
	Sizes       []string `json:"sizes"`
	StockStatus string   `json:"stock_status"`
	StyleCode   string   `json:"style_code"`
	URL         string   `json:"url"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

// NewClient builds a catalog client. A nil httpClient gets a traced client
// with a 10 second timeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpClient,
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
}

// ProductByStyleCode returns nil, nil when the catalog has no product for
// the style code.
func (c *Client) ProductByStyleCode(ctx context.Context, styleCode string) (*Product, error) {
	endpoint := c.baseURL + "/products?style_code=" + url.QueryEscape(styleCode)

	var (
		product  Product
		notFound bool
	)
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		err := httpx.DoJSON(ctx, c.http, http.MethodGet, endpoint, c.header(), nil, &product)
		var statusErr *httpx.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			notFound = true
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, nil
	}
	return &product, nil
}

func (c *Client) UpdateStock(ctx context.Context, update StockUpdate) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return httpx.DoJSON(ctx, c.http, http.MethodPost, c.baseURL+"/stock", c.header(), update, nil)
	})
}

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.apiKey != "" {
		h.Set("X-API-Key", c.apiKey)
	}
	return h
}
