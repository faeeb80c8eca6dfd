package orders

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/marketplace-orderflow/internal/authz"
	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
	"github.com/joao-fontenele/marketplace-orderflow/internal/httpx"
	"github.com/joao-fontenele/marketplace-orderflow/internal/listings"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Get(r.Context(), authz.ActorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, o)
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.Search(r.Context(), authz.ActorFrom(r.Context()))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "orders listed", "count", len(orders))
	httpx.WriteJSON(w, h.logger, http.StatusOK, orders)
}

func (h *Handler) HandleForListing(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.ForListing(r.Context(), authz.ActorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, o)
}

func (h *Handler) HandleListingForOrder(w http.ResponseWriter, r *http.Request) {
	actor := authz.ActorFrom(r.Context())
	l, err := h.service.ListingForOrder(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, listings.View(actor, l))
}

func (h *Handler) HandleTracking(w http.ResponseWriter, r *http.Request) {
	var req Tracking
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	o, err := h.service.UpdateTracking(r.Context(), authz.ActorFrom(r.Context()), r.PathValue("id"), req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, o)
}

func (h *Handler) HandleCancellation(w http.ResponseWriter, r *http.Request) {
	var req Cancellation
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	o, err := h.service.Cancel(r.Context(), authz.ActorFrom(r.Context()), r.PathValue("id"), req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, o)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	o, err := h.service.UpdateStatus(r.Context(), authz.ActorFrom(r.Context()), r.PathValue("id"), req.Status)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, o)
}
