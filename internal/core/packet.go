// Package core defines core data structures with zero external dependencies.
package core

import (
	"net/netip"
	"time"
)

// Frame is one raw capture unit starting at the link layer. Data is only
// valid until the next read from the source that produced it.
type Frame struct {
	Data       []byte
	Timestamp  time.Time
	CaptureLen uint32
	OrigLen    uint32
}

// Packet is the result of L2-L4 decoding. It owns all of its byte slices and
// is never modified after the decoder returns it.
type Packet struct {
	Timestamp time.Time
	Ethernet  EthernetHeader
	IP        IPHeader
	Transport TransportHeader
	Payload   []byte // opaque application bytes
}

// Ports returns the transport ports when the packet is TCP or UDP.
func (p *Packet) Ports() (src, dst uint16, ok bool) {
	return Ports(p.Transport)
}

// LocalProcess is one socket owned by a local OS process.
type LocalProcess struct {
	PID        int32
	Name       string
	Protocol   string // "tcp" or "udp"
	LocalAddr  netip.Addr
	LocalPort  uint16
	RemoteAddr netip.Addr
	RemotePort uint16
}
