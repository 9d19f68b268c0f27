// Package main is the entrypoint for the scheduled runner Lambda.
//
// EventBridge rules invoke this function with a JSON payload naming the task
// to execute. The runner multiplexes low-frequency scheduled work (the alert
// run, notification retention cleanup) into a single function, mirroring the
// HTTP trigger for deployments that schedule via EventBridge instead of an
// external cron hitting the API.
//
// In local mode (APP_ENV=local) the payload is read from stdin instead of
// starting the Lambda runtime:
//
//	echo '{"task":"run_alerts"}' | go run ./cmd/runner
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"lexflow/internal/alerts"
	"lexflow/internal/config"
	"lexflow/internal/db"
	"lexflow/internal/external"
	"lexflow/internal/types"
)

// Task type constants routed by the multiplexer.
const (
	TaskRunAlerts            = "run_alerts"
	TaskCleanupNotifications = "cleanup_notifications"
)

// RunnerPayload is the EventBridge invocation payload.
type RunnerPayload struct {
	Task string `json:"task"`
}

// RunnerResult is returned to the invoker for operational visibility.
type RunnerResult struct {
	Task    string             `json:"task"`
	Summary *alerts.RunSummary `json:"summary,omitempty"`
	Deleted int64              `json:"deleted,omitempty"`
}

// Handler holds the dependencies for the runner, built once at cold start and
// reused across invocations.
type Handler struct {
	orchestrator  *alerts.Orchestrator
	notifications *db.NotificationRepository
	retentionDays int
	logger        types.Logger
}

// Handle routes one invocation to the named task.
func (h *Handler) Handle(ctx context.Context, payload RunnerPayload) (RunnerResult, error) {
	h.logger.Info("runner invoked", "task", payload.Task)

	switch payload.Task {
	case TaskRunAlerts:
		summary, err := h.orchestrator.Run(ctx)
		if err != nil {
			return RunnerResult{Task: payload.Task}, fmt.Errorf("alert run: %w", err)
		}
		return RunnerResult{Task: payload.Task, Summary: &summary}, nil

	case TaskCleanupNotifications:
		cutoff := time.Now().UTC().AddDate(0, 0, -h.retentionDays)
		deleted, err := h.notifications.DeleteBefore(ctx, cutoff)
		if err != nil {
			return RunnerResult{Task: payload.Task}, fmt.Errorf("cleanup notifications: %w", err)
		}
		h.logger.Info("notification cleanup complete", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
		return RunnerResult{Task: payload.Task, Deleted: deleted}, nil

	default:
		return RunnerResult{Task: payload.Task}, fmt.Errorf("unknown task type: %q", payload.Task)
	}
}

func main() {
	cfg, err := config.LoadConfig(config.NewEnvVarProvider())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	typedLogger := &slogAdapter{logger: logger}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

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

	var metrics alerts.RunMetrics = alerts.NoopRunMetrics{}
	if cfg.Observability.EnableMetrics {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Observability.AWSRegion))
		if err != nil {
			typedLogger.Warn("metrics disabled: AWS config load failed", "error", err.Error())
		} else {
			metrics = alerts.NewCloudWatchRunMetrics(
				cloudwatch.NewFromConfig(awsCfg),
				cfg.Observability.MetricNamespace,
				typedLogger,
			)
		}
	}

	orchestrator := alerts.NewOrchestrator(
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
	)

	handler := &Handler{
		orchestrator:  orchestrator,
		notifications: notifRepo,
		retentionDays: cfg.Alerts.RetentionDays,
		logger:        typedLogger,
	}

	// Local mode: read the payload from stdin instead of starting the Lambda
	// runtime. Enables local testing without the Lambda RIE.
	if cfg.Environment == "local" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil || len(raw) == 0 {
			fmt.Fprintln(os.Stderr, "fatal: no payload on stdin")
			os.Exit(1)
		}
		var payload RunnerPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: parsing payload: %v\n", err)
			os.Exit(1)
		}
		result, err := handler.Handle(ctx, payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return
	}

	lambda.Start(handler.Handle)
}

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
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
