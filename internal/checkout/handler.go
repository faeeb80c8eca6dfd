package checkout

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/marketplace-orderflow/internal/authz"
	"github.com/joao-fontenele/marketplace-orderflow/internal/httpx"
)

type Handler struct {
	orchestrator *Orchestrator
	logger       *slog.Logger
}

func NewHandler(orchestrator *Orchestrator, logger *slog.Logger) *Handler {
	return &Handler{orchestrator: orchestrator, logger: logger}
}

type checkoutRequest struct {
	PaymentMethod json.RawMessage `json:"paymentMethod"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	order, err := h.orchestrator.Checkout(r.Context(), authz.ActorFrom(r.Context()), r.PathValue("id"), req.PaymentMethod)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, order)
}
