package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveTransition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTransition("RequestBuy", "OK", time.Now())
	m.ObserveTransition("RequestBuy", "OK", time.Now())
	m.ObserveTransition("RequestBuy", "InvalidState", time.Now())
	m.CacheResult("hit")

	require.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("RequestBuy", "OK")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("RequestBuy", "InvalidState")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("hit")))
	require.Equal(t, 1, testutil.CollectAndCount(m.TransitionDuration))
}
