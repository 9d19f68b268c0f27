package alerts

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"lexflow/internal/types"
)

// RunMetrics records alert run observability counters. Implementations must
// never fail the run: a metrics outage is logged and swallowed.
type RunMetrics interface {
	// RecordRun emits the aggregate counters for one completed run.
	RecordRun(ctx context.Context, summary RunSummary, duration time.Duration)

	// RecordDelivery emits one email delivery outcome ("sent" or "failed").
	RecordDelivery(ctx context.Context, result string)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRunMetrics implements RunMetrics against AWS CloudWatch.
//
// Metrics emitted:
//   - AlertRunDeadlinesChecked / AlertRunStatusUpdates / AlertRunInAppCreated
//   - AlertRunEmails: Dims {Result: sent|failed|skipped}
//   - AlertRunDuration (milliseconds)
//   - EmailDeliveryAttempt: Dims {Result}
type CloudWatchRunMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// Compile-time assertion that CloudWatchRunMetrics implements RunMetrics.
var _ RunMetrics = (*CloudWatchRunMetrics)(nil)

// NewCloudWatchRunMetrics creates a CloudWatchRunMetrics publishing to the
// given namespace.
func NewCloudWatchRunMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchRunMetrics {
	return &CloudWatchRunMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordRun emits the aggregate run counters and duration in one call.
func (m *CloudWatchRunMetrics) RecordRun(ctx context.Context, summary RunSummary, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			counterDatum("AlertRunDeadlinesChecked", summary.DeadlinesChecked),
			counterDatum("AlertRunStatusUpdates", summary.StatusUpdates),
			counterDatum("AlertRunInAppCreated", summary.InAppCreated),
			resultDatum("AlertRunEmails", "sent", summary.EmailsSent),
			resultDatum("AlertRunEmails", "failed", summary.EmailsFailed),
			resultDatum("AlertRunEmails", "skipped", summary.EmailsSkipped),
			{
				MetricName: aws.String("AlertRunDuration"),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record run metrics", "error", err.Error())
	}
}

// RecordDelivery emits one EmailDeliveryAttempt metric with a Result dimension.
func (m *CloudWatchRunMetrics) RecordDelivery(ctx context.Context, result string) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{resultDatum("EmailDeliveryAttempt", result, 1)},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record delivery metric",
			"error", err.Error(),
			"result", result,
		)
	}
}

func counterDatum(name string, value int) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(value)),
		Unit:       cwtypes.StandardUnitCount,
	}
}

func resultDatum(name, result string, value int) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(value)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("Result"), Value: aws.String(result)},
		},
	}
}

// NoopRunMetrics discards all metrics. Used when metrics are disabled.
type NoopRunMetrics struct{}

var _ RunMetrics = NoopRunMetrics{}

func (NoopRunMetrics) RecordRun(context.Context, RunSummary, time.Duration) {}
func (NoopRunMetrics) RecordDelivery(context.Context, string)               {}
