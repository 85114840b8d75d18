package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome labels shared by the counters below.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	SignupTotal            metric.Int64Counter
	SigninTotal            metric.Int64Counter
	AuthDurationSeconds    metric.Float64Histogram
	DbQueryDurationSeconds metric.Float64Histogram
	DbQueryErrorsTotal     metric.Int64Counter
	ImagesProcessedTotal   metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	initErr    error
	once       sync.Once
)

// New creates the instruments on the given meter.
func New(meter metric.Meter) (*AppMetrics, error) {
	var err error
	m := &AppMetrics{}

	if m.SignupTotal, err = meter.Int64Counter("auth_signup_total",
		metric.WithDescription("Total number of signup attempts"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("auth_signup_total: %w", err)
	}

	if m.SigninTotal, err = meter.Int64Counter("auth_signin_total",
		metric.WithDescription("Total number of signin attempts"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("auth_signin_total: %w", err)
	}

	if m.AuthDurationSeconds, err = meter.Float64Histogram("auth_duration_seconds",
		metric.WithDescription("Duration of signup and signin in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("auth_duration_seconds: %w", err)
	}

	if m.DbQueryDurationSeconds, err = meter.Float64Histogram("db_query_duration_seconds",
		metric.WithDescription("Duration of database queries in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("db_query_duration_seconds: %w", err)
	}

	if m.DbQueryErrorsTotal, err = meter.Int64Counter("db_query_errors_total",
		metric.WithDescription("Total number of database query errors"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("db_query_errors_total: %w", err)
	}

	if m.ImagesProcessedTotal, err = meter.Int64Counter("images_processed_total",
		metric.WithDescription("Total number of uploaded images processed"),
		metric.WithUnit("{image}"),
	); err != nil {
		return nil, fmt.Errorf("images_processed_total: %w", err)
	}

	return m, nil
}

// InitAppMetrics initializes the global instruments once, from the global MeterProvider.
func InitAppMetrics() (*AppMetrics, error) {
	once.Do(func() {
		appMetrics, initErr = New(otel.GetMeterProvider().Meter("go-posts-api"))
	})
	return appMetrics, initErr
}

// ObserveQuery records one database round-trip under the given query name.
// All Observe methods are no-ops on a nil receiver.
func (m *AppMetrics) ObserveQuery(ctx context.Context, query string, start time.Time, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("query", query))
	m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		m.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}

// ObserveAuth records one signup or signin attempt.
func (m *AppMetrics) ObserveAuth(ctx context.Context, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	counter := m.SigninTotal
	if operation == "signup" {
		counter = m.SignupTotal
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.AuthDurationSeconds.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("operation", operation)))
}

// ObserveImage records one processed upload.
func (m *AppMetrics) ObserveImage(ctx context.Context, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.ImagesProcessedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
