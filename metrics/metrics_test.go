package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := New()

	m.IncLookup("match")
	m.IncLookup("match")
	m.IncLookup("no_match")
	m.IncError("timeout")
	m.IncSession("cancelled")
	m.IncDiscarded()
	m.ObserveDuration(120 * time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("match")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("no_match")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LookupErrorsTotal.WithLabelValues("timeout")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SessionsTotal.WithLabelValues("cancelled")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.DiscardedSymbols))
	require.Equal(t, 1, testutil.CollectAndCount(m.LookupDuration))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.IncLookup("match")
		m.IncError("other")
		m.IncSession("match")
		m.IncDiscarded()
		m.ObserveDuration(time.Second)
	})
}
