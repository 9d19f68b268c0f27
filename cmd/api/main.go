// Package main is the entry point for the lexflow alert engine API server.
//
// It loads configuration, connects to Postgres, wires the alert engine
// (classifier, planner, recorder, sender, orchestrator) behind the HTTP
// chassis, and serves the scheduler trigger and health endpoints.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"lexflow/internal/alerts"
	"lexflow/internal/config"
	"lexflow/internal/core"
	"lexflow/internal/db"
	"lexflow/internal/external"
	"lexflow/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	// Secret resolution is bypassed when APP_ENV=local; elsewhere the
	// _SECRET_PARAM references are resolved through the provider.
	cfg, err := config.LoadConfig(config.NewEnvVarProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("lexflow alert engine starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	orchestrator, notifRepo := buildEngine(ctx, cfg, pool, logger)

	srv, err := core.NewServer(cfg, logger, orchestrator, &retentionCleaner{
		repo:          notifRepo,
		retentionDays: cfg.Alerts.RetentionDays,
	}, pool)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.MountRoutes()

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// buildEngine wires the alert engine from configuration and the shared pool.
func buildEngine(ctx context.Context, cfg *config.Config, pool db.DBTX, logger *slog.Logger) (*alerts.Orchestrator, *db.NotificationRepository) {
	typedLogger := &slogAdapter{logger: logger}

	deadlineRepo := db.NewDeadlineRepository(pool)
	prefRepo := db.NewPreferenceRepository(pool)
	notifRepo := db.NewNotificationRepository(pool)

	provider := external.NewSendGridClient(
		&http.Client{Timeout: cfg.Email.SendTimeout},
		external.SendGridClientConfig{
			APIKey: cfg.Email.SendGridAPIKey.Unmask(),
			Logger: logger,
		},
	)

	sender := alerts.NewSender(provider, alerts.SenderConfig{
		Provider:     "sendgrid",
		RetryBackoff: cfg.Alerts.RetryBackoff,
	}, typedLogger)

	metrics := buildMetrics(ctx, cfg, typedLogger)

	return alerts.NewOrchestrator(
		deadlineRepo,
		prefRepo,
		alerts.NewRecorder(notifRepo, typedLogger),
		alerts.NewRenderer(cfg.Server.AppBaseURL),
		sender,
		metrics,
		types.RealClock{},
		typedLogger,
		alerts.OrchestratorConfig{
			Workers:    cfg.Alerts.Workers,
			BatchLimit: cfg.Alerts.BatchLimit,
			From: types.SenderIdentity{
				Name:    cfg.Email.FromName,
				Address: cfg.Email.FromAddress,
			},
		},
	), notifRepo
}

// buildMetrics returns CloudWatch-backed run metrics, or the noop
// implementation when metrics are disabled or the AWS config cannot load.
func buildMetrics(ctx context.Context, cfg *config.Config, logger types.Logger) alerts.RunMetrics {
	if !cfg.Observability.EnableMetrics {
		return alerts.NoopRunMetrics{}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Observability.AWSRegion))
	if err != nil {
		logger.Warn("metrics disabled: AWS config load failed", "error", err.Error())
		return alerts.NoopRunMetrics{}
	}

	return alerts.NewCloudWatchRunMetrics(
		cloudwatch.NewFromConfig(awsCfg),
		cfg.Observability.MetricNamespace,
		logger,
	)
}

// retentionCleaner adapts the notification repository to the chassis'
// RetentionCleaner interface using the configured retention window.
type retentionCleaner struct {
	repo          *db.NotificationRepository
	retentionDays int
}

func (c *retentionCleaner) CleanupNotifications(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -c.retentionDays)
	return c.repo.DeleteBefore(ctx, cutoff)
}

// newLogger builds the application-wide JSON logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger satisfies Info, Error, and Warn directly but With returns
// *slog.Logger, not types.Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

var _ types.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}
