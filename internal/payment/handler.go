package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/marketplace-orderflow/internal/apperr"
	"github.com/joao-fontenele/marketplace-orderflow/internal/authz"
	"github.com/joao-fontenele/marketplace-orderflow/internal/httpx"
)

type MethodLister interface {
	PaymentMethods(ctx context.Context, channel string) (json.RawMessage, error)
}

type Handler struct {
	methods MethodLister
	logger  *slog.Logger
}

func NewHandler(methods MethodLister, logger *slog.Logger) *Handler {
	return &Handler{methods: methods, logger: logger}
}

var channels = map[string]string{
	"web": ChannelWeb,
	"ios": ChannelIOS,
}

// ListMethods serves GET /payment/methods?client=web|ios.
func (h *Handler) ListMethods(w http.ResponseWriter, r *http.Request) {
	actor := authz.ActorFrom(r.Context())
	if err := authz.Authorize(actor, authz.ListPaymentMethods, authz.Resource{}); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	channel, ok := channels[r.URL.Query().Get("client")]
	if !ok {
		httpx.WriteError(w, r, h.logger, apperr.Validation("client must be one of web or ios"))
		return
	}

	methods, err := h.methods.PaymentMethods(r.Context(), channel)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, methods)
}
