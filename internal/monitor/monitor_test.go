package monitor

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/procsniff/internal/capture"
	"firestige.xyz/procsniff/internal/config"
	"firestige.xyz/procsniff/internal/core"
	"firestige.xyz/procsniff/internal/filter"
	"firestige.xyz/procsniff/internal/retriever"
)

// idleSource never delivers a frame.
type idleSource struct {
	closed atomic.Bool
}

func (s *idleSource) ReadFrame() (core.Frame, error) {
	time.Sleep(2 * time.Millisecond)
	return core.Frame{}, capture.ErrTimeout
}

func (s *idleSource) Close() error {
	s.closed.Store(true)
	return nil
}

type recordingOpener struct {
	sources []*idleSource
	err     error
}

func (o *recordingOpener) open(config.CaptureConfig) (capture.Source, error) {
	if o.err != nil {
		return nil, o.err
	}
	src := &idleSource{}
	o.sources = append(o.sources, src)
	return src, nil
}

func target(port uint16) filter.Target {
	return filter.ForProcess(core.LocalProcess{PID: 42, Name: "curl", Protocol: "tcp", LocalPort: port, RemotePort: 443})
}

func TestSelectReplacesRetriever(t *testing.T) {
	o := &recordingOpener{}
	m := NewManagerWithOpener(config.CaptureConfig{}, o.open)
	defer m.Close()

	first, err := m.Select(target(51000))
	require.NoError(t, err)
	assert.Equal(t, retriever.StateRunning, first.State())
	assert.Same(t, first, m.Current())

	second, err := m.Select(target(52000))
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	// The previous retriever is joined before Select returns.
	assert.Equal(t, retriever.StateStopped, first.State())
	assert.True(t, o.sources[0].closed.Load())
	assert.Equal(t, retriever.StateRunning, second.State())
	assert.Same(t, second, m.Current())
}

func TestDeselect(t *testing.T) {
	o := &recordingOpener{}
	m := NewManagerWithOpener(config.CaptureConfig{}, o.open)

	r, err := m.Select(target(51000))
	require.NoError(t, err)

	m.Deselect()
	assert.Nil(t, m.Current())
	assert.Equal(t, retriever.StateStopped, r.State())

	m.Deselect()
}

func TestSelectOpenError(t *testing.T) {
	o := &recordingOpener{err: errors.New("no such device")}
	m := NewManagerWithOpener(config.CaptureConfig{}, o.open)

	_, err := m.Select(target(51000))
	assert.ErrorContains(t, err, "no such device")
	assert.Nil(t, m.Current())
}

func TestSelectEmptyTarget(t *testing.T) {
	m := NewManagerWithOpener(config.CaptureConfig{}, (&recordingOpener{}).open)
	_, err := m.Select(filter.Target{})
	assert.Error(t, err)
}

func TestCloseRejectsSelect(t *testing.T) {
	o := &recordingOpener{}
	m := NewManagerWithOpener(config.CaptureConfig{}, o.open)

	r, err := m.Select(target(51000))
	require.NoError(t, err)
	require.NoError(t, m.Close())
	assert.Equal(t, retriever.StateStopped, r.State())

	_, err = m.Select(target(51000))
	assert.Error(t, err)
	assert.Len(t, o.sources, 1)
}
