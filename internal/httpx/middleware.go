package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/marketplace-orderflow/internal/authz"
)

// ActorResolver turns an Authorization header into the calling actor.
type ActorResolver interface {
	Actor(header string) (authz.Actor, error)
}

// Authenticate resolves the caller and stores it on the request context.
// Requests without a valid client identity are rejected here.
func Authenticate(resolver ActorResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := resolver.Actor(r.Header.Get("Authorization"))
			if err != nil {
				WriteError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(authz.WithActor(r.Context(), actor)))
		})
	}
}

// RouteAttribute adds the matched chi route pattern to the server span once
// routing has completed.
func RouteAttribute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				span := oteltrace.SpanFromContext(r.Context())
				span.SetAttributes(semconv.HTTPRoute(pattern))
				span.SetName(r.Method + " " + pattern)
			}
		}
	})
}
