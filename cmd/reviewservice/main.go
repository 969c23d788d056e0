// review-service/cmd/reviewservice/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jmoiron/sqlx"

	httpAPI "review-service/internal/api"
	"review-service/internal/config"
	"review-service/internal/logging"
	"review-service/internal/mailer"
	"review-service/internal/store"
	"review-service/pkg/auth"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logger.Info("Configuration loaded", slog.String("environment", cfg.Environment), slog.Int("port", cfg.Server.Port))
	if cfg.UsingDevSecret {
		logger.Warn("JWT secret not set, using default insecure key for development.")
	}

	tokenManager, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	if err != nil {
		logger.Error("Failed to create token manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Token manager initialized.")

	ctx := context.Background()
	stores, db, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize stores", slog.String("error", err.Error()))
		os.Exit(1)
	}
	var pinger httpAPI.Pinger
	if db != nil {
		pinger = db
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close PostgreSQL connection", slog.String("error", err.Error()))
			} else {
				logger.Info("PostgreSQL connection closed.")
			}
		}()
	}

	handler := httpAPI.NewHTTPHandler(stores, logger, tokenManager, newMailer(cfg, logger), pinger, httpAPI.Options{
		DefaultPageSize: cfg.API.DefaultPageSize,
		MaxPageSize:     cfg.API.MaxPageSize,
		CodeLength:      cfg.Auth.CodeLength,
	})
	router := httpAPI.NewHTTPRouter(handler, httpAPI.RouterOptions{
		CORSOrigins:       cfg.Security.CORSOrigins,
		AuthRateLimit:     cfg.Security.AuthRateLimitRequests,
		AuthRateWindow:    cfg.Security.AuthRateLimitWindow,
		RateLimitDisabled: cfg.Security.RateLimitDisabled,
	})

	httpSrv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Review HTTP Service starting", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Review HTTP Service ListenAndServe() failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Review Service shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Review HTTP Server Shutdown Failed", slog.String("error", err.Error()))
	} else {
		logger.Info("Review HTTP Server gracefully stopped.")
	}
}

// openStores connects to PostgreSQL when a database URL is configured and
// falls back to the in-memory stores otherwise.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store.Stores, *sqlx.DB, error) {
	if cfg.Database.URL == "" {
		logger.Warn("Database URL not set, using in-memory stores. Data is lost on restart.")
		return store.NewMockStores(), nil, nil
	}

	db, err := store.Connect(ctx, cfg.Database.URL, store.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.ApplySchema {
		if err := store.ApplySchema(ctx, db, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	stores, err := store.NewPostgresStores(db, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("PostgreSQL stores initialized.")
	return stores, db, nil
}

func newMailer(cfg *config.Config, logger *slog.Logger) mailer.Sender {
	if cfg.Mail.Mode == config.MailModeSMTP {
		logger.Info("Using SMTP mail transport", slog.String("host", cfg.Mail.SMTPHost), slog.Int("port", cfg.Mail.SMTPPort))
		return mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
			From:     cfg.Mail.From,
			Timeout:  cfg.Mail.Timeout,
		}, logger)
	}
	logger.Warn("Using log mail transport, confirmation codes are written to the log.")
	return mailer.NewLogSender(logger)
}
