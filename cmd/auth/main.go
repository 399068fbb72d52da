package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"attendance-auth/internal/config"
	"attendance-auth/internal/domain"
	"attendance-auth/internal/observability/logging"
	"attendance-auth/internal/observability/metrics"
	"attendance-auth/internal/service/impl"
	"attendance-auth/internal/store"
	httpx "attendance-auth/internal/transport/http"
	"attendance-auth/pkg/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	logger := logging.NewLogger(logging.Config{
		ServiceName: "auth",
		Environment: env,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	slog.SetDefault(logger)

	logger.Info("starting service")

	cfg := config.Load()

	gdb, err := db.OpenGorm(db.Config{DSN: cfg.DatabaseURL, LogSQL: cfg.LogSQL})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}

	if cfg.AutoMigrate {
		if err := gdb.AutoMigrate(&domain.Account{}, &domain.TwoFactorRecord{}, &domain.Settings{}); err != nil {
			logger.Error("auto migrate", "error", err)
			os.Exit(1)
		}
	}

	metrics.MustRegister("auth")

	st := store.New(gdb)

	pw := impl.NewPasswordServiceArgon2id()
	ts := impl.NewTokenServiceHS256(impl.TokenConfig{
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		SessionTTL: cfg.SessionTTL,
		PendingTTL: cfg.PendingTTL,
		SigningKey: []byte(cfg.SigningKey),
	})
	lockout := impl.NewLockoutService(st)
	twofa := impl.NewTwoFactorService(st)
	notifier := impl.NewLogNotifier(logger)

	as := impl.NewAuthServiceImpl(st, pw, ts, lockout, twofa, notifier)

	go sweepExpiredLocks(lockout, cfg.LockSweepInterval, logger)

	mux := httpx.NewRouter(httpx.Config{
		CookieName:   cfg.CookieName,
		CookieSecure: cfg.CookieSecure,
		SessionTTL:   cfg.SessionTTL,
		CORSOrigins:  cfg.CORSOrigins,
	}, as, ts, st.Settings())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("auth service listening", "addr", srv.Addr, "issuer", cfg.Issuer)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// sweepExpiredLocks periodically clears lockouts whose window has passed so
// the stored counters reflect reality even for accounts nobody logs into.
func sweepExpiredLocks(lockout *impl.LockoutServiceImpl, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		cleared, err := lockout.SweepExpiredLocks(ctx)
		cancel()
		if err != nil {
			logger.Error("lock sweep failed", "error", err)
			continue
		}
		if cleared > 0 {
			logger.Info("cleared expired lockouts", "count", cleared)
		}
	}
}
