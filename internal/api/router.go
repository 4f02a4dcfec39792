// Package api assembles the HTTP surface: routes, per-route limits and the
// middleware chain shared by every request.
package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tes-agency/portal/internal/api/handlers"
	"github.com/tes-agency/portal/internal/api/middleware"
	"github.com/tes-agency/portal/internal/api/respond"
	"github.com/tes-agency/portal/internal/auth"
	"github.com/tes-agency/portal/internal/config"
	"github.com/tes-agency/portal/internal/domain/accesskeys"
	"github.com/tes-agency/portal/internal/domain/content"
	"github.com/tes-agency/portal/internal/domain/photos"
	"github.com/tes-agency/portal/internal/domain/users"
	"github.com/tes-agency/portal/internal/metrics"
)

// Services are the domain registries behind the routes.
type Services struct {
	AccessKeys *accesskeys.Service
	Users      *users.Service
	Photos     *photos.Service
	Content    *content.Service
}

type RouterDeps struct {
	Config   config.Config
	Logger   zerolog.Logger
	Services Services
	Sessions *auth.JWTManager
	Health   *handlers.HealthChecker
	Limiter  *middleware.RateLimiter
}

// NewRouter returns the server's root handler.
func NewRouter(deps RouterDeps) http.Handler {
	keys := handlers.NewAccessKeysHandler(deps.Services.AccessKeys, deps.Services.Users)
	accounts := handlers.NewUsersHandler(deps.Services.Users)
	sections := handlers.NewPhotoSectionsHandler(deps.Services.Photos, deps.Services.Users)
	pages := handlers.NewPageContentHandler(deps.Services.Content, deps.Services.Users)

	public := chain(deps.Limiter.Limit(middleware.TierPublic), middleware.RequestSize(middleware.DefaultMaxBodySize))
	guarded := chain(deps.Limiter.Limit(middleware.TierAuth), middleware.RequestSize(middleware.DefaultMaxBodySize))
	upload := chain(deps.Limiter.Limit(middleware.TierPublic), middleware.RequestSize(middleware.PhotoMaxBodySize))

	mux := http.NewServeMux()
	mux.Handle("/healthz", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(deps.Health.Healthz),
	}))
	mux.Handle("/readyz", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(deps.Health.Readyz),
	}))
	mux.Handle("/version", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(deps.Health.Version),
	}))
	mux.Handle("/metrics", methodMux(map[string]http.Handler{
		http.MethodGet: metrics.Handler(),
	}))

	mux.Handle("/api/access-key/{key}", methodMux(map[string]http.Handler{
		http.MethodGet: guarded(keys.Lookup),
	}))
	mux.Handle("/api/users/register", methodMux(map[string]http.Handler{
		http.MethodPost: guarded(accounts.Register),
	}))
	mux.Handle("/api/auth/login", methodMux(map[string]http.Handler{
		http.MethodPost: guarded(accounts.Login),
	}))

	mux.Handle("/api/access-keys", methodMux(map[string]http.Handler{
		http.MethodGet: public(keys.List),
	}))
	mux.Handle("/api/access-keys/create", methodMux(map[string]http.Handler{
		http.MethodPost: public(keys.Create),
	}))
	mux.Handle("/api/access-keys/{keyId}", methodMux(map[string]http.Handler{
		http.MethodDelete: public(keys.Delete),
	}))

	mux.Handle("/api/photo-sections", methodMux(map[string]http.Handler{
		http.MethodGet:  public(sections.List),
		http.MethodPost: upload(sections.Create),
	}))
	mux.Handle("/api/photo-sections/{sectionId}", methodMux(map[string]http.Handler{
		http.MethodDelete: public(sections.Delete),
	}))

	mux.Handle("/api/page-content", methodMux(map[string]http.Handler{
		http.MethodGet: public(pages.List),
		http.MethodPut: public(pages.Update),
	}))
	mux.Handle("/api/page-content/{page}", methodMux(map[string]http.Handler{
		http.MethodGet: public(pages.Page),
	}))
	mux.Handle("/api/page-content/{page}/{key}", methodMux(map[string]http.Handler{
		http.MethodGet: public(pages.Entry),
	}))

	mux.Handle("/", http.HandlerFunc(notFound))

	var handler http.Handler = mux
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.SpanRoute(handler)
	handler = middleware.Identity(auth.IdentityResolver{
		Sessions:    deps.Sessions,
		TrustHeader: deps.Config.Auth.TrustUserIDHeader,
	})(handler)
	handler = middleware.RequestLogging(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.ClientIP(deps.Config.RateLimit.TrustedProxyCIDRs)(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	handler = middleware.SecurityHeaders(deps.Config.Environment == "production")(handler)
	return handler
}

// chain applies mws outermost first and adapts a handler func.
func chain(mws ...func(http.Handler) http.Handler) func(http.HandlerFunc) http.Handler {
	return func(h http.HandlerFunc) http.Handler {
		var handler http.Handler = h
		for i := len(mws) - 1; i >= 0; i-- {
			handler = mws[i](handler)
		}
		return handler
	}
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		respond.Error(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}

func notFound(w http.ResponseWriter, r *http.Request) {
	respond.Error(w, r, http.StatusNotFound, "Not found", nil)
}
