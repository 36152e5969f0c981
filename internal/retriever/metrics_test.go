package retriever

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/procsniff/internal/metrics"
)

// gaugeFor returns the value of the series labelled with retriever id.
func gaugeFor(t *testing.T, vec *prometheus.GaugeVec, id string) (float64, bool) {
	t.Helper()
	ch := make(chan prometheus.Metric, 16)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()

	var (
		value float64
		found bool
	)
	for m := range ch {
		var pb dto.Metric
		require.NoError(t, m.Write(&pb))
		for _, lp := range pb.GetLabel() {
			if lp.GetName() == "retriever" && lp.GetValue() == id {
				value, found = pb.GetGauge().GetValue(), true
			}
		}
	}
	return value, found
}

func TestRetrieverMetricsReleasedOnStop(t *testing.T) {
	src := newFakeSource()
	r := New(curlTarget(), src)
	require.NoError(t, r.Run())

	src.push(tcpFrame(t, "10.0.0.1", "10.0.0.2", 51000, 443))
	require.Eventually(t, func() bool {
		size, ok := gaugeFor(t, metrics.PacketLogSize, r.ID())
		return ok && size == 1
	}, 2*time.Second, 5*time.Millisecond)

	state, ok := gaugeFor(t, metrics.RetrieverState, r.ID())
	require.True(t, ok)
	assert.Equal(t, float64(metrics.RetrieverStateRunning), state)

	r.Stop()
	_, ok = gaugeFor(t, metrics.RetrieverState, r.ID())
	assert.False(t, ok)
	_, ok = gaugeFor(t, metrics.PacketLogSize, r.ID())
	assert.False(t, ok)
}

func TestRetrieverFailedStateVisibleUntilStop(t *testing.T) {
	src := newFakeSource()
	r := New(curlTarget(), src)
	require.NoError(t, r.Run())

	src.fail(errors.New("interface went down"))
	<-r.Done()

	state, ok := gaugeFor(t, metrics.RetrieverState, r.ID())
	require.True(t, ok)
	assert.Equal(t, float64(metrics.RetrieverStateFailed), state)

	r.Stop()
	_, ok = gaugeFor(t, metrics.RetrieverState, r.ID())
	assert.False(t, ok)
}

func TestRetrieverSeriesDoNotAccumulate(t *testing.T) {
	for range 3 {
		r := New(curlTarget(), newFakeSource())
		require.NoError(t, r.Run())
		r.Stop()
		_, ok := gaugeFor(t, metrics.RetrieverState, r.ID())
		assert.False(t, ok)
	}

	r := New(curlTarget(), newFakeSource())
	r.Stop()
	_, ok := gaugeFor(t, metrics.RetrieverState, r.ID())
	assert.False(t, ok)
}
