// Package retriever runs one capture session for one correlation target.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"firestige.xyz/procsniff/internal/capture"
	"firestige.xyz/procsniff/internal/core"
	"firestige.xyz/procsniff/internal/core/decoder"
	"firestige.xyz/procsniff/internal/filter"
	"firestige.xyz/procsniff/internal/metrics"
	"firestige.xyz/procsniff/internal/packetlog"
)

// State represents the state of a retriever in its lifecycle.
type State string

const (
	// StateConstructed indicates the log is allocated and no worker exists.
	StateConstructed State = "constructed"
	// StateRunning indicates the worker goroutine is capturing.
	StateRunning State = "running"
	// StateStopped indicates the worker has exited or was never started.
	StateStopped State = "stopped"
)

// Option configures a Retriever.
type Option func(*Retriever)

// WithDecoder replaces the standard decoder.
func WithDecoder(d decoder.Decoder) Option {
	return func(r *Retriever) { r.decoder = d }
}

// WithID sets the retriever id instead of a random UUID.
func WithID(id string) Option {
	return func(r *Retriever) { r.id = id }
}

// Retriever owns a capture source, a target and a packet log. Exactly one
// worker goroutine runs between Run and Stop. The retriever takes ownership
// of the source and closes it.
type Retriever struct {
	id      string
	target  filter.Target
	pairs   []filter.PortPair
	source  capture.Source
	device  string
	decoder decoder.Decoder
	packets *packetlog.Log
	stats   counters
	logger  *logrus.Entry
	m       metricSet

	mu        sync.RWMutex
	state     State
	err       error
	exhausted bool
	createdAt time.Time
	startedAt time.Time
	stoppedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type metricSet struct {
	frames   prometheus.Counter
	misses   prometheus.Counter
	appended prometheus.Counter
	latency  prometheus.Observer
	logSize  prometheus.Gauge
	state    prometheus.Gauge
}

// New creates a retriever in the constructed state with an empty log.
func New(target filter.Target, src capture.Source, opts ...Option) *Retriever {
	ctx, cancel := context.WithCancel(context.Background())

	r := &Retriever{
		id:        uuid.NewString(),
		target:    target,
		pairs:     target.Pairs(),
		source:    src,
		device:    capture.DeviceName(src),
		decoder:   decoder.NewStandard(),
		packets:   packetlog.New(),
		state:     StateConstructed,
		createdAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	label := target.String()
	r.logger = logrus.WithFields(logrus.Fields{
		"retriever": r.id,
		"target":    label,
		"device":    r.device,
	})
	r.m = metricSet{
		frames:   metrics.FramesTotal.WithLabelValues(label, r.device),
		misses:   metrics.FilterMissesTotal.WithLabelValues(label),
		appended: metrics.PacketsAppendedTotal.WithLabelValues(label),
		latency:  metrics.DecodeLatencySeconds.WithLabelValues(label),
		logSize:  metrics.PacketLogSize.WithLabelValues(label, r.id),
		state:    metrics.RetrieverState.WithLabelValues(label, r.id),
	}
	return r
}

// Run starts the worker goroutine. It may be called once.
func (r *Retriever) Run() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateConstructed {
		return fmt.Errorf("%w (state %s)", core.ErrRetrieverStarted, r.state)
	}

	r.setState(StateRunning)
	r.startedAt = time.Now()
	r.m.state.Set(metrics.RetrieverStateRunning)

	go r.loop()
	return nil
}

// Stop requests cancellation and waits for the worker to exit. After Stop
// returns no further packet reaches the log. Safe to call from any state
// and more than once.
func (r *Retriever) Stop() {
	r.cancel()

	r.mu.Lock()
	if r.state == StateConstructed {
		r.setState(StateStopped)
		r.stoppedAt = time.Now()
		r.mu.Unlock()

		r.closeSource()
		close(r.done)
		r.releaseMetrics()
		return
	}
	r.mu.Unlock()

	<-r.done
	r.releaseMetrics()
}

// releaseMetrics drops the per-retriever series so that reselection does not
// accumulate them. A failed state stays visible until Stop.
func (r *Retriever) releaseMetrics() {
	label := r.target.String()
	metrics.RetrieverState.DeleteLabelValues(label, r.id)
	metrics.PacketLogSize.DeleteLabelValues(label, r.id)
}

// Close stops the retriever. It implements io.Closer for use with defer.
func (r *Retriever) Close() error {
	r.Stop()
	return nil
}

// setState updates the state (must hold mu lock).
func (r *Retriever) setState(s State) {
	r.state = s
	r.logger.WithField("state", s).Info("retriever state changed")
}

// loop is the worker: read, decode, filter, append until cancelled, the
// device fails or an offline source is exhausted.
func (r *Retriever) loop() {
	defer close(r.done)
	defer r.closeSource()

	for {
		select {
		case <-r.ctx.Done():
			r.finish(nil, false)
			return
		default:
		}

		frame, err := r.source.ReadFrame()
		if err != nil {
			switch {
			case errors.Is(err, capture.ErrTimeout):
				continue
			case errors.Is(err, io.EOF):
				r.finish(nil, true)
			case r.ctx.Err() != nil:
				// Errors after cancellation are not device failures.
				r.finish(nil, false)
			default:
				r.finish(err, false)
			}
			return
		}

		r.handle(frame)
	}
}

// handle runs one frame through decode and filter. Per-frame failures are
// counted and dropped.
func (r *Retriever) handle(frame core.Frame) {
	start := time.Now()
	r.stats.Received.Add(1)
	r.m.frames.Inc()

	pkt, err := r.decoder.Decode(frame)
	if err != nil {
		r.stats.DecodeErrors.Add(1)
		metrics.DecodeErrorsTotal.WithLabelValues(r.target.String(), decoder.Reason(err)).Inc()
		r.logger.WithError(err).Trace("frame dropped")
		return
	}
	r.stats.Decoded.Add(1)

	if !filter.Matches(pkt, r.pairs) {
		r.stats.FilterMisses.Add(1)
		r.m.misses.Inc()
		return
	}

	seq := r.packets.Append(pkt)
	r.stats.Appended.Add(1)
	r.m.appended.Inc()
	r.m.logSize.Set(float64(seq))
	r.m.latency.Observe(time.Since(start).Seconds())
}

// finish records how the session ended.
func (r *Retriever) finish(err error, exhausted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.err = err
	r.exhausted = exhausted
	r.stoppedAt = time.Now()
	r.setState(StateStopped)

	switch {
	case err != nil:
		r.m.state.Set(metrics.RetrieverStateFailed)
		metrics.DeviceErrorsTotal.WithLabelValues(r.target.String(), r.device).Inc()
		r.logger.WithError(err).Error("capture device failed, session terminated")
	case exhausted:
		r.m.state.Set(metrics.RetrieverStateStopped)
		r.logger.Info("capture source exhausted")
	default:
		r.m.state.Set(metrics.RetrieverStateStopped)
	}
}

func (r *Retriever) closeSource() {
	if err := r.source.Close(); err != nil {
		r.logger.WithError(err).Warn("capture source close error")
	}
}

// ID returns the retriever id.
func (r *Retriever) ID() string { return r.id }

// Target returns the correlation target.
func (r *Retriever) Target() filter.Target { return r.target }

// Device returns the capture device name.
func (r *Retriever) Device() string { return r.device }

// Packets returns the retriever's packet log. Readers take snapshots of it.
func (r *Retriever) Packets() *packetlog.Log { return r.packets }

// Done is closed once the worker has exited, or on Stop if it never ran.
func (r *Retriever) Done() <-chan struct{} { return r.done }

// State returns the current state.
func (r *Retriever) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Err returns the device error that ended the session, if any.
func (r *Retriever) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Exhausted reports whether an offline source ran out of frames.
func (r *Retriever) Exhausted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exhausted
}

// Stats returns a copy of the counters.
func (r *Retriever) Stats() Stats { return r.stats.snapshot() }

// Status is a snapshot of retriever status.
type Status struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Kind      string    `json:"kind"`
	PIDs      []int32   `json:"pids"`
	Device    string    `json:"device"`
	State     State     `json:"state"`
	Failed    bool      `json:"failed"`
	Error     string    `json:"error,omitempty"`
	Exhausted bool      `json:"exhausted,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	StartedAt time.Time `json:"started_at,omitempty"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Packets   int       `json:"packets"`
	Stats     Stats     `json:"stats"`
}

// Status returns current retriever status.
func (r *Retriever) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := Status{
		ID:        r.id,
		Target:    r.target.String(),
		Kind:      string(r.target.Kind()),
		PIDs:      r.target.PIDs(),
		Device:    r.device,
		State:     r.state,
		Failed:    r.err != nil,
		Exhausted: r.exhausted,
		CreatedAt: r.createdAt,
		StartedAt: r.startedAt,
		StoppedAt: r.stoppedAt,
		Packets:   r.packets.Len(),
		Stats:     r.stats.snapshot(),
	}
	if r.err != nil {
		status.Error = r.err.Error()
	}
	if r.state == StateRunning && !r.startedAt.IsZero() {
		status.Uptime = time.Since(r.startedAt).Truncate(time.Second).String()
	}
	return status
}
