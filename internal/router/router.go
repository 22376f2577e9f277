package router

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/account"
	accountentity "github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/setting"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/stats"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/pkg/utilities"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs requests at debug level using the provided sugared
// logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
				"request_id", w.Header().Get("X-Request-Id"),
			)
		})
	}
}

// RequestIDMiddleware stamps each response with a KSUID when the caller did
// not supply one.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = utilities.NewKSUID()
			}
			w.Header().Set("X-Request-Id", id)
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers. Conservative
// defaults that work with most setups.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware verifies the bearer token and requires the admin role; the
// protected endpoints are all operator self-service.
func AuthMiddleware(tokens *token.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" || raw == r.Header.Get("Authorization") {
				utilities.Fail(w, http.StatusUnauthorized, "authentication required")
				return
			}
			claims, err := tokens.Parse(raw)
			if err != nil {
				utilities.Fail(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if claims.Role != accountentity.RoleAdmin {
				utilities.Fail(w, http.StatusForbidden, "admin role required")
				return
			}
			next.ServeHTTP(w, r.WithContext(token.WithClaims(r.Context(), claims)))
		})
	}
}

// RegisterRoutes mounts HTTP handlers using the standard library's
// http.ServeMux. Keeps wiring simple and testable.
func RegisterRoutes(
	logger *zap.SugaredLogger,
	accounts *account.Handler,
	settings *setting.Handler,
	site *stats.Handler,
	tokens *token.Service,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /blog-identity/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /blog-identity/metrics", promhttp.Handler())
	mux.HandleFunc("GET /blog-identity/jwks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tokens.JWKS())
	})

	mux.HandleFunc("POST /blog-identity/admin/login", accounts.Login)
	mux.HandleFunc("POST /blog-identity/miniapp/login", accounts.MiniAppLogin)
	mux.HandleFunc("GET /blog-identity/site/stats", site.Site)

	auth := AuthMiddleware(tokens)
	mux.Handle("POST /blog-identity/admin/password", auth(http.HandlerFunc(accounts.ChangePassword)))
	mux.Handle("GET /blog-identity/admin/profile", auth(http.HandlerFunc(accounts.Profile)))
	mux.Handle("PUT /blog-identity/admin/profile", auth(http.HandlerFunc(accounts.SaveProfile)))
	mux.Handle("GET /blog-identity/admin/settings/{key}", auth(http.HandlerFunc(settings.Get)))
	mux.Handle("PUT /blog-identity/admin/settings/{key}", auth(http.HandlerFunc(settings.Put)))

	handler := LoggingMiddleware(logger)(RequestIDMiddleware()(SecurityHeadersMiddleware()(mux)))
	return handler
}
