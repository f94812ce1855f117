package app

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/odyssey-erp/fincore/internal/observability"
	"github.com/odyssey-erp/fincore/internal/platform/httpx"
	"github.com/odyssey-erp/fincore/internal/shared"
)

// Identity headers set by the upstream authentication proxy.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
	HeaderCountryID = "X-Country-ID"
	HeaderBranchID  = "X-Branch-ID"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// MiddlewareStack installs the common middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}
	limit := 120
	if cfg.Config != nil && cfg.Config.RateLimitPerMinute > 0 {
		limit = cfg.Config.RateLimitPerMinute
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		httprate.Limit(limit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return middlewares
}

// CallerIdentity reads the caller from the identity headers. Requests without
// a valid identity are rejected with 401; an unknown role is rejected with 403.
func CallerIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFromHeaders(r.Header)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithCaller(r.Context(), caller)))
	})
}

func callerFromHeaders(h http.Header) (shared.Caller, error) {
	userID, err := strconv.ParseInt(strings.TrimSpace(h.Get(HeaderUserID)), 10, 64)
	if err != nil || userID <= 0 {
		return shared.Caller{}, httpx.ErrUnauthorized
	}
	role, ok := shared.ParseRole(strings.ToLower(strings.TrimSpace(h.Get(HeaderUserRole))))
	if !ok {
		return shared.Caller{}, shared.Forbiddenf("unknown role %q", h.Get(HeaderUserRole))
	}
	caller := shared.Caller{UserID: userID, Role: role}
	if caller.CountryID, err = optionalID(h, HeaderCountryID); err != nil {
		return shared.Caller{}, err
	}
	if caller.BranchID, err = optionalID(h, HeaderBranchID); err != nil {
		return shared.Caller{}, err
	}
	switch role {
	case shared.RoleCountryAdmin:
		if caller.CountryID == nil {
			return shared.Caller{}, shared.Forbiddenf("country admin requires %s", HeaderCountryID)
		}
	case shared.RoleBranchAdmin, shared.RoleStaff:
		if caller.CountryID == nil || caller.BranchID == nil {
			return shared.Caller{}, shared.Forbiddenf("%s requires %s and %s", role, HeaderCountryID, HeaderBranchID)
		}
	}
	return caller, nil
}

func optionalID(h http.Header, name string) (*int64, error) {
	raw := strings.TrimSpace(h.Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, shared.Validationf("invalid %s header", name)
	}
	return &id, nil
}
