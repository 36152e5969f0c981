// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesTotal counts raw frames pulled from the capture device
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procsniff_frames_total",
			Help: "Total number of frames read from the capture device",
		},
		[]string{"target", "device"},
	)

	// DecodeErrorsTotal counts frames dropped by the decoder
	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procsniff_decode_errors_total",
			Help: "Total number of frames that failed to decode",
		},
		[]string{"target", "reason"},
	)

	// FilterMissesTotal counts decoded packets not belonging to the target
	FilterMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procsniff_filter_misses_total",
			Help: "Total number of decoded packets rejected by the correlation filter",
		},
		[]string{"target"},
	)

	// PacketsAppendedTotal counts packets accepted into a packet log
	PacketsAppendedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procsniff_packets_appended_total",
			Help: "Total number of packets appended to a packet log",
		},
		[]string{"target"},
	)

	// DeviceErrorsTotal counts capture sessions terminated by a device error
	DeviceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procsniff_device_errors_total",
			Help: "Total number of capture sessions ended by a device error",
		},
		[]string{"target", "device"},
	)

	// DecodeLatencySeconds measures decode+filter time per frame
	DecodeLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "procsniff_decode_latency_seconds",
			Help:    "Latency of decoding and filtering one frame in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0000001, 2, 16), // 100ns to ~3ms
		},
		[]string{"target"},
	)

	// PacketLogSize tracks the number of packets held by a retriever's log
	// until the retriever is stopped
	PacketLogSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "procsniff_packet_log_size",
			Help: "Current number of packets in the packet log",
		},
		[]string{"target", "retriever"},
	)

	// RetrieverState tracks the state of each retriever. Series are removed
	// when the retriever is stopped.
	RetrieverState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "procsniff_retriever_state",
			Help: "Current state of retrievers (0=stopped, 1=running, 2=failed)",
		},
		[]string{"target", "retriever"},
	)

	// FeedClients tracks connected websocket feed clients
	FeedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "procsniff_feed_clients",
			Help: "Number of connected feed clients",
		},
	)
)

// RetrieverStateValue represents retriever state as a numeric value for Prometheus gauge
const (
	RetrieverStateStopped = 0
	RetrieverStateRunning = 1
	RetrieverStateFailed  = 2
)
