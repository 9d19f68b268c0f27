package alerts

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"lexflow/internal/types"
)

// ErrorKind is the closed classification of a delivery failure. Classification
// is a total function over error values; the raw provider text heuristic
// lives only in classifyByText.
type ErrorKind string

const (
	// KindTransient errors are expected to succeed on retry: timeouts,
	// network failures, rate limits, provider 5xx.
	KindTransient ErrorKind = "transient"

	// KindPermanent errors will not succeed on retry: invalid recipient,
	// suppressed address, rejected content.
	KindPermanent ErrorKind = "permanent"

	// KindConfig errors indicate the engine itself is misconfigured. They are
	// treated as permanent for the delivery in hand but should fail loudly.
	KindConfig ErrorKind = "config"
)

// EmailGateway is the transport boundary the sender depends on. Satisfied by
// external.SendGridClient; the retry and fallback discipline depends only on
// this contract, never on a specific provider.
type EmailGateway interface {
	Send(ctx context.Context, input types.SendInput) (providerMsgID string, err error)
}

// DeliveryLog is the structured audit record produced for every terminal
// delivery outcome, success included. It is the only audit trail for a send.
type DeliveryLog struct {
	NotificationID string                   `json:"notification_id"`
	UserID         string                   `json:"user_id"`
	DeadlineID     string                   `json:"deadline_id"`
	Provider       string                   `json:"provider"`
	ErrorKind      ErrorKind                `json:"error_kind,omitempty"`
	ErrorCode      string                   `json:"error_code,omitempty"`
	Attempt        int                      `json:"attempt"`
	FallbackUsed   bool                     `json:"fallback_used"`
	FinalStatus    types.NotificationStatus `json:"final_status"`
	AddressUsed    string                   `json:"address_used"`
}

// SendResult is the terminal outcome of one logical send.
type SendResult struct {
	Status        types.NotificationStatus // sent or failed
	Attempt       int                      // attempt number that produced the terminal state
	FallbackUsed  bool
	AddressUsed   string
	ProviderMsgID string
	ErrorMessage  string
}

// SenderConfig configures the retry-and-fallback sender.
type SenderConfig struct {
	// Provider names the gateway in delivery logs, e.g. "sendgrid".
	Provider string

	// RetryBackoff is the fixed wait before the single automatic retry of a
	// transient failure.
	RetryBackoff time.Duration
}

// Sender drives one logical email send through a bounded state machine:
// attempt 1 on the primary address, one backoff-then-retry for transient
// failures, then one fallback-address attempt if a distinct fallback is
// configured. At most three outbound calls are ever made; there is no retry
// loop.
type Sender struct {
	gateway EmailGateway
	cfg     SenderConfig
	logger  types.Logger
	sleepFn func(time.Duration) // for testability; defaults to time.Sleep
}

// SenderOption is a functional option for configuring a Sender.
type SenderOption func(*Sender)

// WithSenderSleepFunc overrides the backoff sleep. Intended for tests.
func WithSenderSleepFunc(fn func(time.Duration)) SenderOption {
	return func(s *Sender) {
		s.sleepFn = fn
	}
}

// NewSender creates a Sender over the given gateway.
func NewSender(gateway EmailGateway, cfg SenderConfig, logger types.Logger, opts ...SenderOption) *Sender {
	if cfg.Provider == "" {
		cfg.Provider = "sendgrid"
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}

	s := &Sender{
		gateway: gateway,
		cfg:     cfg,
		logger:  logger,
		sleepFn: time.Sleep,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Deliver executes the full send state machine for a claimed notification.
// input.To must hold the primary address; fallback may be empty or equal to
// the primary, in which case no fallback attempt is made. The terminal
// DeliveryLog is emitted before returning, on success as well as failure.
func (s *Sender) Deliver(ctx context.Context, notificationID string, plan types.AlertPlan, input types.SendInput, fallback string) SendResult {
	primary := input.To
	attempt := 0

	// Attempt 1: primary.
	attempt++
	msgID, err := s.gateway.Send(ctx, input)
	if err == nil {
		return s.finish(notificationID, plan, SendResult{
			Status:        types.NotificationSent,
			Attempt:       attempt,
			AddressUsed:   primary,
			ProviderMsgID: msgID,
		}, nil)
	}

	kind, _ := ClassifySendError(err)

	// Attempt 2: primary again, only for transient failures, after a fixed
	// backoff.
	if kind == KindTransient {
		s.sleepFn(s.cfg.RetryBackoff)

		attempt++
		msgID, err = s.gateway.Send(ctx, input)
		if err == nil {
			return s.finish(notificationID, plan, SendResult{
				Status:        types.NotificationSent,
				Attempt:       attempt,
				AddressUsed:   primary,
				ProviderMsgID: msgID,
			}, nil)
		}
	}

	// Attempt 3: fallback address, once, if configured and distinct.
	if fallback != "" && fallback != primary {
		fbInput := input
		fbInput.To = fallback

		attempt++
		msgID, fbErr := s.gateway.Send(ctx, fbInput)
		if fbErr == nil {
			return s.finish(notificationID, plan, SendResult{
				Status:        types.NotificationSent,
				Attempt:       attempt,
				FallbackUsed:  true,
				AddressUsed:   fallback,
				ProviderMsgID: msgID,
			}, nil)
		}

		return s.finish(notificationID, plan, SendResult{
			Status:       types.NotificationFailed,
			Attempt:      attempt,
			FallbackUsed: true,
			AddressUsed:  fallback,
			ErrorMessage: fbErr.Error(),
		}, fbErr)
	}

	return s.finish(notificationID, plan, SendResult{
		Status:       types.NotificationFailed,
		Attempt:      attempt,
		AddressUsed:  primary,
		ErrorMessage: err.Error(),
	}, err)
}

// finish emits the terminal delivery log and returns the result unchanged.
func (s *Sender) finish(notificationID string, plan types.AlertPlan, res SendResult, err error) SendResult {
	rec := DeliveryLog{
		NotificationID: notificationID,
		UserID:         plan.UserID,
		DeadlineID:     plan.DeadlineID,
		Provider:       s.cfg.Provider,
		Attempt:        res.Attempt,
		FallbackUsed:   res.FallbackUsed,
		FinalStatus:    res.Status,
		AddressUsed:    res.AddressUsed,
	}
	if err != nil {
		rec.ErrorKind, rec.ErrorCode = ClassifySendError(err)
	}

	args := []any{
		"notification_id", rec.NotificationID,
		"user_id", rec.UserID,
		"deadline_id", rec.DeadlineID,
		"provider", rec.Provider,
		"attempt", rec.Attempt,
		"fallback_used", rec.FallbackUsed,
		"final_status", string(rec.FinalStatus),
		"address_used", rec.AddressUsed,
	}
	if rec.ErrorKind != "" {
		args = append(args, "error_kind", string(rec.ErrorKind), "error_code", rec.ErrorCode)
	}

	if res.Status == types.NotificationSent {
		s.logger.Info("email delivery terminal", args...)
	} else {
		s.logger.Error("email delivery terminal", args...)
	}

	return res
}

// ClassifySendError maps a delivery error to its kind and, when extractable,
// the machine error code. AppError codes classify exactly; anything without a
// typed code falls through to the text heuristic.
func ClassifySendError(err error) (ErrorKind, string) {
	if err == nil {
		return "", ""
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrCodeUpstreamRateLimited, types.ErrCodeUpstreamUnavailable:
			return KindTransient, string(appErr.Code)
		case types.ErrCodeConfigInvalid:
			return KindConfig, string(appErr.Code)
		default:
			return KindPermanent, string(appErr.Code)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient, "timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTransient, "timeout"
		}
		return KindTransient, "network_error"
	}

	return classifyByText(err.Error()), ""
}

// classifyByText is the only place raw provider text is inspected. It exists
// for errors that arrive without a typed code; keep the substring list short
// and conservative, defaulting to permanent so unknown failures are never
// retried blindly.
func classifyByText(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	for _, marker := range []string{
		"timeout",
		"timed out",
		"connection refused",
		"connection reset",
		"temporarily",
		"rate limit",
		"too many requests",
		"status 429",
		"status 500",
		"status 502",
		"status 503",
		"status 504",
	} {
		if strings.Contains(lower, marker) {
			return KindTransient
		}
	}
	return KindPermanent
}
