// Package capture defines the capture device boundary and a registry of
// source types.
package capture

import (
	"errors"

	"firestige.xyz/procsniff/internal/core"
)

// ErrTimeout is returned by ReadFrame when no frame arrived within the
// device timeout. It is a cancellation-check opportunity, not a failure.
var ErrTimeout = errors.New("capture: read timeout")

// Source is an open capture session.
//
// ReadFrame blocks for at most the device timeout. It returns a frame,
// ErrTimeout, io.EOF when an offline source is exhausted, or any other error
// when the device failed. The returned frame data is only valid until the
// next call.
type Source interface {
	ReadFrame() (core.Frame, error)
	Close() error
}

// Describer is implemented by sources that can name their device.
type Describer interface {
	Device() string
}

// DeviceName returns the device name of src, or "unknown".
func DeviceName(src Source) string {
	if d, ok := src.(Describer); ok {
		return d.Device()
	}
	return "unknown"
}
