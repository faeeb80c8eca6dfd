// Package api assembles the marketplace services behind one chi router.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/marketplace-orderflow/internal/apperr"
	"github.com/joao-fontenele/marketplace-orderflow/internal/authz"
	"github.com/joao-fontenele/marketplace-orderflow/internal/checkout"
	"github.com/joao-fontenele/marketplace-orderflow/internal/httpx"
	"github.com/joao-fontenele/marketplace-orderflow/internal/idgen"
	"github.com/joao-fontenele/marketplace-orderflow/internal/listings"
	"github.com/joao-fontenele/marketplace-orderflow/internal/orders"
	"github.com/joao-fontenele/marketplace-orderflow/internal/payment"
	"github.com/joao-fontenele/marketplace-orderflow/internal/reservations"
)

// StockNotifier satisfies the stock hook of every service that changes
// sellable stock.
type StockNotifier interface {
	StockChanged(ctx context.Context, styleCode string)
}

// Deps are the collaborators the API is built from. Events, Metrics,
// Health and Clock are optional.
type Deps struct {
	Listings listings.Store
	Orders   orders.Store
	Products listings.ProductResolver
	Gateway  checkout.Gateway
	Methods  payment.MethodLister
	Stock    StockNotifier
	Events   checkout.Publisher
	IDs      idgen.Generator
	Resolver httpx.ActorResolver

	SellerMerchantAccount string

	Metrics http.Handler
	Health  func(ctx context.Context) error
	Clock   func() time.Time
	Logger  *slog.Logger
}

type handlers struct {
	listings     *listings.Handler
	reservations *reservations.Handler
	orders       *orders.Handler
	checkout     *checkout.Handler
	payment      *payment.Handler
}

func newHandlers(d Deps) handlers {
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}

	checkoutOpts := []checkout.Option{checkout.WithClock(clock)}
	if d.Events != nil {
		checkoutOpts = append(checkoutOpts, checkout.WithEvents(d.Events))
	}

	listingService := listings.NewService(d.Listings, d.Products, d.Stock, d.IDs, d.Logger, listings.WithClock(clock))
	manager := reservations.NewManager(d.Listings, d.Stock, d.IDs, d.Logger, reservations.WithClock(clock))
	orderService := orders.NewService(d.Orders, d.Listings, d.Logger, orders.WithClock(clock))
	orchestrator := checkout.NewOrchestrator(d.Listings, d.Orders, d.Gateway, d.Stock, d.SellerMerchantAccount, d.Logger, checkoutOpts...)

	return handlers{
		listings:     listings.NewHandler(listingService, d.Logger),
		reservations: reservations.NewHandler(manager, d.Logger),
		orders:       orders.NewHandler(orderService, d.Logger),
		checkout:     checkout.NewHandler(orchestrator, d.Logger),
		payment:      payment.NewHandler(d.Methods, d.Logger),
	}
}

// New returns the traced HTTP handler serving every marketplace route.
func New(d Deps) http.Handler {
	h := newHandlers(d)
	logger := d.Logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httpx.RouteAttribute)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, r, logger, apperr.ErrNotFound)
	})

	r.Get("/healthz", handleHealth(d.Health, logger))
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	r.Get("/sizes", h.listings.HandleSizes)

	r.Group(func(r chi.Router) {
		r.Use(httpx.Authenticate(d.Resolver, logger))

		r.Get("/permissions", handlePermissions(logger))
		r.Get("/payment/methods", h.payment.ListMethods)

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", h.listings.HandleSearch)
			r.Post("/", h.listings.HandleCreate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.listings.HandleGet)
				r.Put("/", h.listings.HandleUpdate)
				r.Put("/reservation", h.reservations.HandleAcquire)
				r.Delete("/reservation", h.reservations.HandleRelease)
				r.Put("/addresses", h.reservations.HandleAddresses)
				r.Get("/pending-order", h.reservations.HandlePendingForListing)
				r.Get("/order", h.orders.HandleForListing)
				r.Post("/checkout", h.checkout.HandleCheckout)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.orders.HandleSearch)
			r.Get("/pending", h.reservations.HandlePendingForBuyer)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.orders.HandleGet)
				r.Get("/listing", h.orders.HandleListingForOrder)
				r.Put("/tracking", h.orders.HandleTracking)
				r.Put("/cancellation", h.orders.HandleCancellation)
				r.Put("/status", h.orders.HandleUpdateStatus)
			})
		})
	})

	return otelhttp.NewHandler(r, "marketplace-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func handlePermissions(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := authz.ActorFrom(r.Context())
		if err := authz.Authorize(actor, authz.ViewPermissions, authz.Resource{}); err != nil {
			httpx.WriteError(w, r, logger, err)
			return
		}
		httpx.WriteJSON(w, logger, http.StatusOK, authz.PermissionsFor(actor))
	}
}

type healthResponse struct {
	Status string `json:"status"`
}

func handleHealth(check func(ctx context.Context) error, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				logger.ErrorContext(ctx, "health check failed", "error", err)
				httpx.WriteJSON(w, logger, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		httpx.WriteJSON(w, logger, http.StatusOK, healthResponse{Status: "ok"})
	}
}
