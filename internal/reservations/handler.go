package reservations

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/marketplace-orderflow/internal/authz"
	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
	"github.com/joao-fontenele/marketplace-orderflow/internal/httpx"
	"github.com/joao-fontenele/marketplace-orderflow/internal/listings"
)

type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

func (h *Handler) HandleAcquire(w http.ResponseWriter, r *http.Request) {
	pending, err := h.manager.Acquire(r.Context(), authz.ActorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, pending)
}

func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	l, err := h.manager.Release(r.Context(), authz.ActorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, listings.Public(l))
}

func (h *Handler) HandleAddresses(w http.ResponseWriter, r *http.Request) {
	var addresses domain.Addresses
	if err := httpx.DecodeJSON(r, &addresses); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	pending, err := h.manager.AttachAddresses(r.Context(), authz.ActorFrom(r.Context()), r.PathValue("id"), addresses)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, pending)
}

func (h *Handler) HandlePendingForListing(w http.ResponseWriter, r *http.Request) {
	pending, err := h.manager.PendingForListing(r.Context(), authz.ActorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, pending)
}

func (h *Handler) HandlePendingForBuyer(w http.ResponseWriter, r *http.Request) {
	pending, err := h.manager.PendingForBuyer(r.Context(), authz.ActorFrom(r.Context()))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, pending)
}
