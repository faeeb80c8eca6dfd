// Package payment is the client for the third-party payment gateway:
// authorisation with split settlement, and the payment methods offered to
// a storefront channel.
package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/marketplace-orderflow/internal/circuitbreaker"
	"github.com/joao-fontenele/marketplace-orderflow/internal/httpx"
)

const (
	ResultAuthorised = "Authorised"

	SplitMarketPlace = "MarketPlace"
	SplitPaymentFee  = "PaymentFee"

	ChannelWeb = "Web"
	ChannelIOS = "iOS"
)

type Amount struct {
	Currency string `json:"currency,omitempty"`
	Value    int64  `json:"value"`
}

// Split routes part of the captured amount. Account is empty for the
// platform's own fee splits.
type Split struct {
	Account   string `json:"account,omitempty"`
	Amount    Amount `json:"amount"`
	Reference string `json:"reference"`
	Type      string `json:"type"`
}

type Request struct {
	Amount          Amount          `json:"amount"`
	MerchantAccount string          `json:"merchantAccount"`
	PaymentMethod   json.RawMessage `json:"paymentMethod"`
	Reference       string          `json:"reference"`
	Splits          []Split         `json:"splits"`
}

// Result is the gateway's reply. Refusals carry a numeric refusalReasonCode
// and usually a human readable refusalReason.
type Result struct {
	ResultCode        string            `json:"resultCode"`
	PSPReference      string            `json:"pspReference,omitempty"`
	RefusalReason     string            `json:"refusalReason,omitempty"`
	RefusalReasonCode string            `json:"refusalReasonCode,omitempty"`
	AdditionalData    map[string]string `json:"additionalData,omitempty"`
}

func (r *Result) Authorised() bool {
	return r != nil && r.ResultCode == ResultAuthorised
}

// CardSummary is the last four digits of the card, when the gateway
// returned them.
func (r *Result) CardSummary() string {
	return r.AdditionalData["cardSummary"]
}

func (r *Result) PaymentMethod() string {
	return r.AdditionalData["paymentMethod"]
}

type Client struct {
	baseURL         string
	apiKey          string
	merchantAccount string
	http            *http.Client
	breaker         *circuitbreaker.CircuitBreaker
}

func NewClient(baseURL, apiKey, merchantAccount string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{
		baseURL:         baseURL,
		apiKey:          apiKey,
		merchantAccount: merchantAccount,
		http:            httpClient,
		breaker:         circuitbreaker.New(5, 30*time.Second),
	}
}

// Authorize submits the payment once; it is never retried, since a retry
// after a timeout could charge the buyer twice. A refusal is a successful
// call whose result is not Authorised.
func (c *Client) Authorize(ctx context.Context, req Request) (*Result, error) {
	if req.MerchantAccount == "" {
		req.MerchantAccount = c.merchantAccount
	}

	var result Result
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return httpx.DoJSON(ctx, c.http, http.MethodPost, c.baseURL+"/payments", c.header(), req, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type methodsRequest struct {
	Channel         string `json:"channel"`
	MerchantAccount string `json:"merchantAccount"`
}

// PaymentMethods returns the gateway's payment methods document for the
// channel untouched.
func (c *Client) PaymentMethods(ctx context.Context, channel string) (json.RawMessage, error) {
	var methods json.RawMessage
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return httpx.DoJSON(ctx, c.http, http.MethodPost, c.baseURL+"/paymentMethods", c.header(),
			methodsRequest{Channel: channel, MerchantAccount: c.merchantAccount}, &methods)
	})
	if err != nil {
		return nil, err
	}
	return methods, nil
}

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.apiKey != "" {
		h.Set("X-API-Key", c.apiKey)
	}
	return h
}
