package alerts

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"lexflow/internal/types"
)

// DeadlineSource is the persistence surface the orchestrator reads deadlines
// from and writes cached urgency labels to.
type DeadlineSource interface {
	ListOpen(ctx context.Context, limit int) ([]*types.Deadline, error)
	UpdateAlertStatus(ctx context.Context, deadlineID string, status types.AlertStatus) error
}

// PreferenceSource is the read-through preference lookup keyed by owner.
// found=false means the engine-wide default was substituted.
type PreferenceSource interface {
	GetByUserID(ctx context.Context, userID string) (types.NotificationPreference, bool, error)
}

// RunSummary aggregates the counters for one run. Counters are observability
// output only; nothing in the engine branches on them.
type RunSummary struct {
	DeadlinesChecked int `json:"deadlines_checked"`
	Acknowledged     int `json:"acknowledged"`
	StatusUpdates    int `json:"status_updates"`
	InAppCreated     int `json:"in_app_created"`
	EmailsSent       int `json:"emails_sent"`
	EmailsFailed     int `json:"emails_failed"`
	EmailsSkipped    int `json:"emails_skipped"`
	ItemErrors       int `json:"item_errors"`
}

// OrchestratorConfig configures one run of the engine.
type OrchestratorConfig struct {
	// Workers bounds the deadline fan-out. Safety does not depend on this
	// value; the atomic claim in the store is what makes concurrency safe.
	Workers int

	// BatchLimit caps the deadlines loaded per run.
	BatchLimit int

	// From is the sender identity for outgoing email.
	From types.SenderIdentity
}

// Orchestrator is the batch entry point of the alert engine. One Run loads
// open deadlines and drives classification, planning, eligibility, claiming,
// and delivery for each. Failures at the level of a single deadline or plan
// are logged and counted, never abort the run; the only hard failure is being
// unable to read deadlines at all.
type Orchestrator struct {
	deadlines DeadlineSource
	prefs     PreferenceSource
	recorder  *Recorder
	renderer  *Renderer
	sender    *Sender
	metrics   RunMetrics
	clock     types.Clock
	logger    types.Logger
	cfg       OrchestratorConfig
}

// NewOrchestrator wires an Orchestrator from its collaborators.
func NewOrchestrator(
	deadlines DeadlineSource,
	prefs PreferenceSource,
	recorder *Recorder,
	renderer *Renderer,
	sender *Sender,
	metrics RunMetrics,
	clock types.Clock,
	logger types.Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 500
	}
	if metrics == nil {
		metrics = NoopRunMetrics{}
	}
	if clock == nil {
		clock = types.RealClock{}
	}

	return &Orchestrator{
		deadlines: deadlines,
		prefs:     prefs,
		recorder:  recorder,
		renderer:  renderer,
		sender:    sender,
		metrics:   metrics,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run executes one batch pass. Safe to re-execute at any point: every step
// downstream of the claim is conditioned on a successful claim, and the claim
// is idempotent per dedupe key, so overlapping or repeated runs cannot double
// deliver.
func (o *Orchestrator) Run(ctx context.Context) (RunSummary, error) {
	started := o.clock.Now()

	deadlines, err := o.deadlines.ListOpen(ctx, o.cfg.BatchLimit)
	if err != nil {
		return RunSummary{}, err
	}

	var (
		mu      sync.Mutex
		summary RunSummary
	)
	summary.DeadlinesChecked = len(deadlines)

	now := o.clock.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for _, d := range deadlines {
		d := d
		g.Go(func() error {
			o.processDeadline(gctx, d, now, &mu, &summary)
			return nil
		})
	}
	// Workers never return errors; per-item failures land in the summary.
	_ = g.Wait()

	duration := o.clock.Now().Sub(started)
	o.metrics.RecordRun(ctx, summary, duration)

	o.logger.Info("alert run complete",
		"deadlines_checked", summary.DeadlinesChecked,
		"acknowledged", summary.Acknowledged,
		"status_updates", summary.StatusUpdates,
		"in_app_created", summary.InAppCreated,
		"emails_sent", summary.EmailsSent,
		"emails_failed", summary.EmailsFailed,
		"emails_skipped", summary.EmailsSkipped,
		"item_errors", summary.ItemErrors,
		"duration_ms", duration.Milliseconds(),
	)

	return summary, nil
}

func (o *Orchestrator) processDeadline(ctx context.Context, d *types.Deadline, now time.Time, mu *sync.Mutex, summary *RunSummary) {
	log := o.logger.With("deadline_id", d.ID, "user_id", d.UserID)

	// Acknowledgement is set only by the owner and never alters planning; it
	// is surfaced in the summary for operators watching a run.
	if d.IsAcknowledged() {
		mu.Lock()
		summary.Acknowledged++
		mu.Unlock()
	}

	// Rewrite the cached urgency label when it diverges. A failed write is
	// healed on the next run; delivery below is computed from raw dates and
	// never reads the cache.
	if computed := ClassifyDeadline(d, now); computed != d.AlertStatus {
		if err := o.deadlines.UpdateAlertStatus(ctx, d.ID, computed); err != nil {
			log.Warn("alert status update failed", "error", err.Error())
		} else {
			mu.Lock()
			summary.StatusUpdates++
			mu.Unlock()
		}
	}

	pref, found, err := o.prefs.GetByUserID(ctx, d.UserID)
	if err != nil {
		log.Error("preference lookup failed", "error", err.Error())
		mu.Lock()
		summary.ItemErrors++
		mu.Unlock()
		return
	}
	if !found {
		log.Info("no preference row, using defaults")
	}

	for _, plan := range BuildPlans(d, now, pref) {
		o.processPlan(ctx, plan, pref, mu, summary)
	}
}

func (o *Orchestrator) processPlan(ctx context.Context, plan types.AlertPlan, pref types.NotificationPreference, mu *sync.Mutex, summary *RunSummary) {
	log := o.logger.With("deadline_id", plan.DeadlineID, "user_id", plan.UserID, "rule", plan.Rule)

	// The in-app record is created unconditionally; it has no delivery step
	// and no eligibility gate.
	created, _, err := o.recorder.ClaimInApp(ctx, plan)
	if err != nil {
		log.Error("in-app claim failed", "error", err.Error())
		mu.Lock()
		summary.ItemErrors++
		mu.Unlock()
	} else if created {
		mu.Lock()
		summary.InAppCreated++
		mu.Unlock()
	}

	if !IsEligible(pref.EmailEnabled, pref.ThresholdDays, plan.DaysRemaining, pref.ResolvedAddress()) {
		mu.Lock()
		summary.EmailsSkipped++
		mu.Unlock()
		return
	}

	created, notificationID, err := o.recorder.ClaimEmail(ctx, plan)
	if err != nil {
		log.Error("email claim failed", "error", err.Error())
		mu.Lock()
		summary.ItemErrors++
		mu.Unlock()
		return
	}
	if !created {
		// Already handled by an earlier or concurrent run.
		mu.Lock()
		summary.EmailsSkipped++
		mu.Unlock()
		return
	}

	subject, bodyHTML, bodyText, err := o.renderer.Render(plan)
	if err != nil {
		log.Error("email render failed", "error", err.Error())
		o.markFailed(ctx, notificationID, err.Error(), log)
		mu.Lock()
		summary.EmailsFailed++
		mu.Unlock()
		return
	}

	result := o.sender.Deliver(ctx, notificationID, plan, types.SendInput{
		To:          pref.ResolvedAddress(),
		From:        o.cfg.From,
		Subject:     subject,
		BodyHTML:    bodyHTML,
		BodyText:    bodyText,
		ReferenceID: notificationID,
	}, pref.FallbackEmail)

	if result.Status == types.NotificationSent {
		if err := o.recorder.MarkSent(ctx, notificationID); err != nil {
			log.Error("mark sent failed", "error", err.Error())
		}
		o.metrics.RecordDelivery(ctx, "sent")
		mu.Lock()
		summary.EmailsSent++
		mu.Unlock()
		return
	}

	o.markFailed(ctx, notificationID, result.ErrorMessage, log)
	o.metrics.RecordDelivery(ctx, "failed")
	mu.Lock()
	summary.EmailsFailed++
	mu.Unlock()
}

func (o *Orchestrator) markFailed(ctx context.Context, notificationID, errMsg string, log types.Logger) {
	if err := o.recorder.MarkFailed(ctx, notificationID, errMsg); err != nil {
		log.Error("mark failed failed", "error", err.Error())
	}
}
