package rootfile

import (
	"context"
	"testing"

	"github.com/forestrie/go-rootio/compression"
	"github.com/forestrie/go-rootio/roottesting"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	tc := newTestContext(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	_, src := tc.Source(eventsSpec(tc, roottesting.LargeVersion, compression.TagZlib))
	f := openTestFile(t, tc, src, WithMetrics(m), WithReadStep(64))

	assert.Equal(t, float64(f.Reads()), testutil.ToFloat64(m.Reads))
	assert.Equal(t, float64(f.BytesRead()), testutil.ToFloat64(m.BytesRead))
	assert.Equal(t, float64(f.ReadaheadGrowths()), testutil.ToFloat64(m.ReadaheadGrowths))
	assert.Positive(t, f.ReadaheadGrowths())

	_, err := f.Get(context.Background(), "Events")
	require.NoError(t, err)
	_, err = f.Get(context.Background(), "Events")
	require.NoError(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Decompressions.WithLabelValues("ZL")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ObjectsDecoded.WithLabelValues("TTree")))
	assert.Equal(t, float64(f.Reads()), testutil.ToFloat64(m.Reads))
}

func TestMetricsNil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.read(10)
		m.growth()
		m.decompressed("ZL")
		m.decoded("TTree")
	})
}

func TestMetricsRegisterTwicePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
