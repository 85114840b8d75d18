package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestAppMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.ObserveAuth(ctx, "signup", time.Now(), nil)
	m.ObserveAuth(ctx, "signin", time.Now(), errors.New("invalid credentials"))
	m.ObserveQuery(ctx, "users.insert", time.Now(), errors.New("boom"))
	m.ObserveImage(ctx, nil)

	data := collect(t, reader)

	signups, ok := data["auth_signup_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, signups.DataPoints, 1)
	assert.Equal(t, int64(1), signups.DataPoints[0].Value)

	signins, ok := data["auth_signin_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, signins.DataPoints, 1)
	outcome, _ := signins.DataPoints[0].Attributes.Value("outcome")
	assert.Equal(t, OutcomeFailure, outcome.AsString())

	dbErrors, ok := data["db_query_errors_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), dbErrors.DataPoints[0].Value)

	assert.Contains(t, data, "auth_duration_seconds")
	assert.Contains(t, data, "db_query_duration_seconds")
	assert.Contains(t, data, "images_processed_total")
}
