package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"attendance-auth/internal/domain"
	"attendance-auth/internal/netutil"
	"attendance-auth/internal/observability/middleware"
	"attendance-auth/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PolicyProvider reads the settings collaborator. The handler fetches the
// policy per login attempt and hands the value to the orchestrator.
type PolicyProvider interface {
	CurrentPolicy(ctx context.Context) (domain.GlobalPolicy, error)
}

type Config struct {
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration
	CORSOrigins  []string
}

func NewRouter(cfg Config, auth service.AuthService, tokens service.TokenService, policies PolicyProvider) http.Handler {
	h := &handler{cfg: cfg, auth: auth, tokens: tokens, policies: policies}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.WithRequestAndTrace)
	r.Use(middleware.WithMetrics)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/verify-2fa", h.verifySecondFactor)
		r.Post("/logout", h.logout)
		r.Post("/forgot-password", h.forgotPassword)
		r.Post("/reset-password", h.resetPassword)
	})

	r.Route("/v1/2fa", func(r chi.Router) {
		r.Use(h.requireSession)
		r.Post("/setup", h.setupTwoFactor)
		r.Post("/verify-setup", h.confirmTwoFactor)
		r.Get("/status", h.twoFactorStatus)
		r.Post("/disable", h.disableTwoFactor)
		r.Post("/regenerate-backup-codes", h.regenerateBackupCodes)
	})

	return r
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if normalized, ok := netutil.NormalizeIP(ip); ok {
			return normalized
		}
	}
	if xr := r.Header.Get("X-Real-IP"); xr != "" {
		if normalized, ok := netutil.NormalizeIP(xr); ok {
			return normalized
		}
	}
	if normalized, ok := netutil.NormalizeIP(r.RemoteAddr); ok {
		return normalized
	}
	return r.RemoteAddr
}
