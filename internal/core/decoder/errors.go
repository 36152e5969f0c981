package decoder

import (
	"fmt"

	"firestige.xyz/procsniff/internal/core"
)

// BufferTooShortError is returned when a read needs more bytes than remain.
// Deficit is the exact number of missing bytes.
type BufferTooShortError struct {
	Deficit int
}

func (e *BufferTooShortError) Error() string {
	return fmt.Sprintf("%v: %d more bytes required", core.ErrPacketTooShort, e.Deficit)
}

func (e *BufferTooShortError) Is(target error) bool {
	return target == core.ErrPacketTooShort
}

// UnexpectedIPVersionError is returned when the internet header is neither IPv4 nor IPv6.
type UnexpectedIPVersionError struct {
	Version uint8
}

func (e *UnexpectedIPVersionError) Error() string {
	return fmt.Sprintf("%v (%d)", core.ErrUnexpectedIPVersion, e.Version)
}

func (e *UnexpectedIPVersionError) Is(target error) bool {
	return target == core.ErrUnexpectedIPVersion
}

// Reason returns a short label for a decode error, used as a metric label.
func Reason(err error) string {
	switch err.(type) {
	case *BufferTooShortError:
		return "too_short"
	case *UnexpectedIPVersionError:
		return "ip_version"
	default:
		return "other"
	}
}
