// Package core defines sentinel errors.
package core

import "errors"

var (
	// Packet decoding errors
	ErrPacketTooShort      = errors.New("procsniff: packet too short")
	ErrUnexpectedIPVersion = errors.New("procsniff: unexpected IP version")

	// Retriever errors
	ErrRetrieverStarted = errors.New("procsniff: retriever already started")

	// Capture errors
	ErrUnknownSource = errors.New("procsniff: unknown capture source")

	// Process lookup errors
	ErrProcessNotFound  = errors.New("procsniff: process not found")
	ErrEmptyApplication = errors.New("procsniff: application has no sockets")

	// Configuration errors
	ErrConfigInvalid = errors.New("procsniff: invalid configuration")
)
