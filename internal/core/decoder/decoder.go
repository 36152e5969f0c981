// Package decoder implements L2-L4 protocol stack decoding.
package decoder

import "firestige.xyz/procsniff/internal/core"

// Decoder decodes raw frames into packets.
type Decoder interface {
	Decode(frame core.Frame) (*core.Packet, error)
}

// Standard decodes Ethernet II, IPv4/IPv6 and TCP/UDP. It is stateless and
// safe for concurrent use.
type Standard struct{}

// NewStandard creates the default decoder.
func NewStandard() *Standard {
	return &Standard{}
}

// Decode implements Decoder. The returned packet does not alias frame.Data.
func (d *Standard) Decode(frame core.Frame) (*core.Packet, error) {
	pkt, err := decode(frame.Data)
	if err != nil {
		return nil, err
	}
	pkt.Timestamp = frame.Timestamp
	return pkt, nil
}

// Decode decodes a single frame starting at the link layer. Any error aborts
// the decode; no partial packet is returned.
func Decode(data []byte) (*core.Packet, error) {
	return decode(data)
}

func decode(data []byte) (*core.Packet, error) {
	c := NewCursor(data)

	// L2: Ethernet
	eth, err := decodeEthernet(c)
	if err != nil {
		return nil, err
	}

	// L3: IP
	ip, err := decodeIP(c)
	if err != nil {
		return nil, err
	}

	// L4: Transport
	transport, err := decodeTransport(c, ip.Protocol())
	if err != nil {
		return nil, err
	}

	return &core.Packet{
		Ethernet:  eth,
		IP:        ip,
		Transport: transport,
		Payload:   clone(c.Rest()),
	}, nil
}

// clone copies b so the packet never aliases a reusable capture buffer.
func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
