package checkout

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/marketplace-orderflow/internal/authz"
	"github.com/joao-fontenele/marketplace-orderflow/internal/payment"
)

func post(h *Handler, actor authz.Actor, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/listings/l1/checkout", strings.NewReader(body))
	req.SetPathValue("id", "l1")
	req = req.WithContext(authz.WithActor(req.Context(), actor))
	rec := httptest.NewRecorder()
	h.HandleCheckout(rec, req)
	return rec
}

func TestHandleCheckout(t *testing.T) {
	t.Run("returns the placed order", func(t *testing.T) {
		f := newFixture(t)
		f.reserve(t, memberA, true)
		h := NewHandler(f.orchestrator, slog.New(slog.NewTextHandler(io.Discard, nil)))

		rec := post(h, memberA, `{"paymentMethod":{"type":"scheme"}}`)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"order_no":"TSM-testOrderId1"`)
		assert.JSONEq(t, `{"type":"scheme"}`, string(f.gateway.requests[0].PaymentMethod))
	})

	t.Run("refused payment is a bad request", func(t *testing.T) {
		f := newFixture(t)
		f.reserve(t, memberA, true)
		f.gateway.result = &payment.Result{ResultCode: "Refused"}
		h := NewHandler(f.orchestrator, slog.New(slog.NewTextHandler(io.Discard, nil)))

		rec := post(h, memberA, `{"paymentMethod":{"type":"scheme"}}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"message":"`+MessagePaymentFailed+`","status":400}`, rec.Body.String())
	})

	t.Run("missing payment method", func(t *testing.T) {
		f := newFixture(t)
		f.reserve(t, memberA, true)
		h := NewHandler(f.orchestrator, slog.New(slog.NewTextHandler(io.Discard, nil)))

		rec := post(h, memberA, `{}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), MessagePaymentMethodRequired)
	})
}
