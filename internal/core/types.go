// Package core defines core types with zero external dependencies.
package core

import "net/netip"

// IP protocol numbers dispatched by the decoder.
const (
	ProtocolTCP uint8 = 6
	ProtocolUDP uint8 = 17
)

// EthernetHeader represents an Ethernet II header.
type EthernetHeader struct {
	DstMAC    [6]byte
	SrcMAC    [6]byte
	EtherType uint16 // 0x0800=IPv4, 0x86DD=IPv6
}

// IPHeader is either *IPv4Header or *IPv6Header.
type IPHeader interface {
	Version() uint8
	Protocol() uint8
	Src() netip.Addr
	Dst() netip.Addr
	// Len is the header length in bytes as declared by the header itself.
	Len() int

	ipHeader()
}

// IPv4Flags are the top three bits of the flags/fragment-offset field.
type IPv4Flags struct {
	Reserved      bool
	DontFragment  bool
	MoreFragments bool
}

// IPv4Header represents an RFC791 header.
type IPv4Header struct {
	IHL            uint8 // header length in 32-bit words
	DSCP           uint8
	ECN            uint8
	TotalLength    uint16
	Identification uint16
	Flags          IPv4Flags
	FragmentOffset uint16 // low 13 bits
	TTL            uint8
	Proto          uint8
	Checksum       uint16
	SrcIP          netip.Addr
	DstIP          netip.Addr
	Options        []byte // present iff IHL > 5
}

func (h *IPv4Header) Version() uint8  { return 4 }
func (h *IPv4Header) Protocol() uint8 { return h.Proto }
func (h *IPv4Header) Src() netip.Addr { return h.SrcIP }
func (h *IPv4Header) Dst() netip.Addr { return h.DstIP }
func (h *IPv4Header) Len() int        { return int(h.IHL) * 4 }
func (h *IPv4Header) ipHeader()       {}

// IPv6Header represents the fixed RFC8200 header. Extension headers are not walked.
type IPv6Header struct {
	TrafficClass  uint8
	FlowLabel     uint32 // low 20 bits
	PayloadLength uint16
	NextHeader    uint8
	HopLimit      uint8
	SrcIP         netip.Addr
	DstIP         netip.Addr
}

func (h *IPv6Header) Version() uint8  { return 6 }
func (h *IPv6Header) Protocol() uint8 { return h.NextHeader }
func (h *IPv6Header) Src() netip.Addr { return h.SrcIP }
func (h *IPv6Header) Dst() netip.Addr { return h.DstIP }
func (h *IPv6Header) Len() int        { return 40 }
func (h *IPv6Header) ipHeader()       {}

// TransportHeader is one of *TCPHeader, *UDPHeader or *OtherTransport.
type TransportHeader interface {
	// Len is the number of bytes the header consumed from the frame.
	Len() int

	transportHeader()
}

// TCPFlags holds the nine RFC793/RFC3168 control bits.
type TCPFlags struct {
	NS  bool
	CWR bool
	ECE bool
	URG bool
	ACK bool
	PSH bool
	RST bool
	SYN bool
	FIN bool
}

// TCPHeader represents an RFC793 header.
type TCPHeader struct {
	SrcPort       uint16
	DstPort       uint16
	Seq           uint32
	Ack           uint32
	DataOffset    uint8 // header length in 32-bit words
	Reserved      uint8 // byte 12 masked with 0x0E
	Flags         TCPFlags
	Window        uint16
	Checksum      uint16
	UrgentPointer uint16
	Options       []byte // present iff DataOffset > 5
}

// Len returns the consumed header length, never less than the fixed 20 bytes.
func (h *TCPHeader) Len() int {
	if h.DataOffset < 5 {
		return 20
	}
	return int(h.DataOffset) * 4
}

func (h *TCPHeader) transportHeader() {}

// UDPHeader represents an RFC768 header.
type UDPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16
}

func (h *UDPHeader) Len() int         { return 8 }
func (h *UDPHeader) transportHeader() {}

// OtherTransport carries the bytes following the IP header of any protocol
// other than TCP and UDP, verbatim.
type OtherTransport struct {
	Proto uint8
	Data  []byte
}

func (h *OtherTransport) Len() int         { return len(h.Data) }
func (h *OtherTransport) transportHeader() {}

// Ports returns the transport ports for TCP and UDP headers.
func Ports(th TransportHeader) (src, dst uint16, ok bool) {
	switch h := th.(type) {
	case *TCPHeader:
		return h.SrcPort, h.DstPort, true
	case *UDPHeader:
		return h.SrcPort, h.DstPort, true
	default:
		return 0, 0, false
	}
}
