package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = NewLogger("loud")
	assert.Error(t, err)
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObservePurchase("committed", 20*time.Millisecond)
	m.ObservePurchase("committed", 30*time.Millisecond)
	m.ObservePurchase("insufficient_stock", time.Millisecond)
	m.CatalogAttempt("transient")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.purchases.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.purchases.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.catalogAttempts.WithLabelValues("transient")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePurchase("committed", time.Second)
		m.CatalogAttempt("success")
		m.EventPublished("success")
	})
}

func TestSetupTracing_WithoutExporter(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{ServiceName: "test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
