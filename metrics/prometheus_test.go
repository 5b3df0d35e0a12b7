package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	r.IncCounter("locked", map[string]string{LabelChain: "counterparty"})
	r.IncCounter("locked", map[string]string{LabelChain: "counterparty"})
	r.IncCounter("initiated", map[string]string{LabelChain: "initiator"})
	r.ObserveLatency("lock_bridge_transfer_assets", 30*time.Millisecond, map[string]string{LabelChain: "counterparty"})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.counters.WithLabelValues("locked", "counterparty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.counters.WithLabelValues("initiated", "initiator")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.histogram))
}

func TestPrometheusRecorderDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	_, err = NewPrometheusRecorder(reg)
	assert.Error(t, err)
}

func TestOrNoop(t *testing.T) {
	assert.IsType(t, NoopRecorder{}, OrNoop(nil))
}
