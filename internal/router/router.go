package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/account"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/carbon"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/organization"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/reward"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/subscriber"
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

// LoggingMiddleware logs every request at debug level, and 5xx answers at warn.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			log := logger.Debugw
			if status >= http.StatusInternalServerError {
				log = logger.Warnw
			}
			log("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			h.Set("Cache-Control", "no-store")
			if h.Get("Content-Security-Policy") == "" {
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			if r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Deps are the handlers mounted by RegisterRoutes.
type Deps struct {
	Logger       *zap.SugaredLogger
	Issuer       *session.Issuer
	SignInPath   string
	Accounts     *account.Handler
	Rewards      *reward.Handler
	Organization *organization.Handler
	Subscribers  *subscriber.Handler
	PageBytes    int64
}

// RegisterRoutes mounts the API on a standard library ServeMux. Reward and
// organization routes sit behind the session guard.
func RegisterRoutes(d Deps) http.Handler {
	logger := d.Logger
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/carbon", carbon.Handler(d.PageBytes))
	mux.HandleFunc("POST /api/subscriptions", d.Subscribers.Subscribe)

	// auth
	mux.HandleFunc("POST /api/auth/signup", d.Accounts.Signup)
	mux.HandleFunc("GET /api/auth/verify", d.Accounts.Verify)
	mux.HandleFunc("POST /api/auth/resend", d.Accounts.Resend)
	mux.HandleFunc("POST /api/auth/signin", d.Accounts.SignIn)
	mux.HandleFunc("POST /api/auth/signout", d.Accounts.SignOut)
	mux.HandleFunc("POST /api/auth/reset/check", d.Accounts.CheckEmail)
	mux.HandleFunc("POST /api/auth/reset", d.Accounts.Reset)

	guard := session.Guard(d.Issuer, d.SignInPath, logger)
	protect := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, guard(h))
	}

	// rewards
	protect("GET /api/rewards", d.Rewards.List)
	protect("GET /api/rewards/stats", d.Rewards.Stats)
	protect("POST /api/rewards", d.Rewards.Create)
	protect("GET /api/rewards/{id}", d.Rewards.Get)
	protect("PUT /api/rewards/{id}", d.Rewards.Replace)

	// organization
	protect("GET /api/organization", d.Organization.Get)
	protect("PUT /api/organization", d.Organization.Rename)
	protect("GET /api/organization/members", d.Organization.ListMembers)
	protect("POST /api/organization/members", d.Organization.Grant)

	// wrap with security headers middleware then logging middleware
	return LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux))
}
