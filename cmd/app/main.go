// File: cmd/app/main.go
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"voice-clone-studio/internal/config"
	"voice-clone-studio/internal/infra/adapters/speech"
	"voice-clone-studio/internal/infra/db"
	"voice-clone-studio/internal/infra/i18n"
	"voice-clone-studio/internal/infra/logging"
	"voice-clone-studio/internal/infra/metrics"
	"voice-clone-studio/internal/infra/ratelimit"
	red "voice-clone-studio/internal/infra/redis"
	"voice-clone-studio/internal/infra/sched"
	"voice-clone-studio/internal/infra/web"
	"voice-clone-studio/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file (optional)")
	devMode := flag.Bool("dev", false, "developer mode: unmasked codes in logs, console output")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}
	if cfg.Runtime.DefaultAdminPassword {
		logger.Warn().Msg("ADMIN_PASSWORD not set, using the built-in default; change it before exposing the service")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Backend())

	// ---- Ledger ----
	codes, err := db.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Backend()).Msg("open activation ledger")
	}
	defer codes.Close()
	logger.Info().Str("backend", codes.Backend()).Msg("activation ledger ready")

	// ---- Speech API ----
	sf := speech.NewSiliconFlowClient(cfg.Speech.APIKey, cfg.Speech.Model, cfg.Speech.BaseURL, cfg.Speech.Timeout, logger)
	if cfg.Speech.APIKey == "" {
		logger.Warn().Msg("API_KEY not set; cloning requests will fail until it is configured")
	} else {
		logger.Info().Str("key", speech.KeyPreview(cfg.Speech.APIKey)).Str("model", cfg.Speech.Model).Msg("speech api configured")
	}
	synth := speech.NewLimited(sf, cfg.Speech.ConcurrentLimit)

	// ---- Use cases ----
	quotaUC := usecase.NewQuotaUseCase(codes, logger)
	adminUC := usecase.NewAdminUseCase(codes, logger)
	cloneUC := usecase.NewCloneUseCase(codes, quotaUC, synth, cfg.Speech.MaxReferenceBytes, cfg.Runtime.Dev, logger)

	// ---- Login rate limiting (Redis when configured) ----
	var limiter ratelimit.Limiter
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		limiter = red.NewRateLimiter(rc, cfg.RateLimit.Limit, cfg.RateLimit.Window)
	} else {
		limiter = ratelimit.NewLocal(cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}
	defer limiter.Close()

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.I18n.Lang)
	if err != nil {
		logger.Fatal().Err(err).Msg("translations")
	}

	secret := cfg.Admin.SessionSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn().Msg("SESSION_SECRET not set; admin sessions will not survive a restart")
	}
	auth := web.NewAuthManager(secret, cfg.Admin.SecureCookie, cfg.Admin.CookieDomain, cfg.Admin.SessionTTL)

	srv := web.NewServer(web.Deps{
		Admin:             adminUC,
		Clone:             cloneUC,
		Speech:            synth,
		Limiter:           limiter,
		Auth:              auth,
		Translator:        tr,
		AdminPassword:     cfg.Admin.Password,
		Dev:               cfg.Runtime.Dev,
		RequestTimeout:    cfg.Server.RequestTimeout,
		CloneTimeout:      cfg.Server.CloneTimeout,
		MaxReferenceBytes: cfg.Speech.MaxReferenceBytes,
	}, logger)

	httpServer := &http.Server{Addr: cfg.Addr(), Handler: srv.Router()}
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Stats worker ----
	worker := sched.NewStatsWorker(cfg.Stats.Interval, codes, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("session secret: %v", err)
	}
	return hex.EncodeToString(b)
}
