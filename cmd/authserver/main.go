// Command authserver runs the authcore HTTP API: local accounts plus the
// federated providers enabled by configuration.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panyam/authcore"
	"github.com/panyam/authcore/appleid"
	"github.com/panyam/authcore/oauth2"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := authcore.LoadConfig(*envFile)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open account store", "store", cfg.Store, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	handler, err := newHandler(ctx, cfg, store, logger)
	if err != nil {
		logger.Error("failed to initialize auth service", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()
	logger.Info("authserver started",
		"addr", cfg.Addr,
		"store", cfg.Store,
		"providers", cfg.Capabilities().Providers())

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("authserver stopped cleanly")
}

func newLogger(format string) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// newHandler builds the service and attaches the providers the config enables
func newHandler(ctx context.Context, cfg *authcore.Config, store authcore.AccountStore, logger *slog.Logger) (*authcore.Handler, error) {
	tokens, err := authcore.NewTokenIssuer(cfg.TokenConfig())
	if err != nil {
		return nil, err
	}
	caps := cfg.Capabilities()
	svc := authcore.NewService(store,
		authcore.NewBcryptHasher(cfg.PasswordCost),
		tokens,
		authcore.WithCapabilities(caps),
		authcore.WithLogger(logger),
	)

	h := authcore.NewHandler(svc)
	h.Logger = logger
	h.AllowedOrigins = cfg.AllowedCORSOrigins
	h.Session.Lifetime = cfg.SessionLifetime
	h.Session.Cookie.HttpOnly = true
	h.Session.Cookie.SameSite = http.SameSiteLaxMode

	if caps.Google() {
		google := oauth2.NewGoogleOAuth2(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL, h.Session, h.HandleProviderLogin)
		google.HandleError = h.WriteError
		google.Logger = logger
		h.GoogleFlow = google
	}
	if caps.Apple() {
		apple := appleid.NewVerifier(ctx, cfg.AppleClientID)
		apple.Logger = logger
		h.AppleVerifier = apple
	}
	return h, nil
}
