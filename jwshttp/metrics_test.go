package jwshttp

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("nil metrics record nothing", func(t *testing.T) {
		var m *Metrics

		assert.NotPanics(t, func() {
			m.ObserveSpill(10)
			m.observeVerify(OutcomeFailed, KindMalformed)
			m.observeSign(true)
			m.observeBuffered(10)
		})
	})

	t.Run("registers collectors", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := NewMetrics(reg, "app")

		m.ObserveSpill(100)
		m.ObserveSpill(50)
		m.observeVerify(OutcomeFailed, KindOverflow)
		m.observeSign(true)
		m.observeSign(false)
		m.observeBuffered(1024)

		assert.InDelta(t, 2, testutil.ToFloat64(m.spillsTotal), 0)
		assert.InDelta(t, 150, testutil.ToFloat64(m.spilledBytes), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(m.verifyTotal.WithLabelValues("failed", "overflow")), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(m.signTotal.WithLabelValues("ok")), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(m.signTotal.WithLabelValues("error")), 0)

		count, err := testutil.GatherAndCount(reg, "app_jws_buffered_body_bytes")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("nil registerer", func(t *testing.T) {
		assert.NotPanics(t, func() {
			NewMetrics(nil, "a")
			NewMetrics(nil, "a")
		})
	})
}
