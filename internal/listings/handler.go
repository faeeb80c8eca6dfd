package listings

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/marketplace-orderflow/internal/apperr"
	"github.com/joao-fontenele/marketplace-orderflow/internal/authz"
	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
	"github.com/joao-fontenele/marketplace-orderflow/internal/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	actor := authz.ActorFrom(r.Context())
	l, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, View(actor, l))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor := authz.ActorFrom(r.Context())
	l, err := h.service.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, View(actor, l))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	actor := authz.ActorFrom(r.Context())
	l, err := h.service.Update(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, View(actor, l))
}

// HandleSearch serves GET /listings?styleCode=&productId=&size=.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.ListingFilter{
		StyleCode: q.Get("styleCode"),
		Size:      q.Get("size"),
	}
	if raw := q.Get("productId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.WriteError(w, r, h.logger, apperr.Validation("productId must be a number"))
			return
		}
		f.ProductID = id
	}

	actor := authz.ActorFrom(r.Context())
	found, err := h.service.Search(r.Context(), actor, f)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, Views(actor, found))
}

// HandleSizes serves the size run offered when listing a product.
func (h *Handler) HandleSizes(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, h.logger, http.StatusOK, domain.Sizes)
}
