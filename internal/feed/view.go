package feed

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"firestige.xyz/procsniff/internal/core"
)

// PacketView is the JSON form of one logged packet.
type PacketView struct {
	Seq        uint64    `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	IPVersion  uint8     `json:"ip_version"`
	Protocol   string    `json:"protocol"`
	Src        string    `json:"src"`
	Dst        string    `json:"dst"`
	SrcPort    uint16    `json:"src_port,omitempty"`
	DstPort    uint16    `json:"dst_port,omitempty"`
	Flags      string    `json:"flags,omitempty"`
	PayloadLen int       `json:"payload_len"`
}

// NewView flattens pkt for display.
func NewView(seq uint64, pkt *core.Packet) PacketView {
	v := PacketView{
		Seq:        seq,
		Timestamp:  pkt.Timestamp,
		IPVersion:  pkt.IP.Version(),
		Protocol:   ProtocolName(pkt.IP.Protocol()),
		Src:        pkt.IP.Src().String(),
		Dst:        pkt.IP.Dst().String(),
		PayloadLen: len(pkt.Payload),
	}
	if src, dst, ok := pkt.Ports(); ok {
		v.SrcPort, v.DstPort = src, dst
	}
	if tcp, ok := pkt.Transport.(*core.TCPHeader); ok {
		v.Flags = FlagString(tcp.Flags)
	}
	return v
}

// Endpoint renders addr:port, bracketing IPv6 addresses.
func (v PacketView) Endpoint(src bool) string {
	addr, port := v.Dst, v.DstPort
	if src {
		addr, port = v.Src, v.SrcPort
	}
	if port == 0 {
		return addr
	}
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return fmt.Sprintf("%s:%d", addr, port)
	}
	return netip.AddrPortFrom(a, port).String()
}

// ProtocolName names the IP protocol number.
func ProtocolName(proto uint8) string {
	switch proto {
	case core.ProtocolTCP:
		return "tcp"
	case core.ProtocolUDP:
		return "udp"
	case 1:
		return "icmp"
	case 58:
		return "icmpv6"
	default:
		return fmt.Sprintf("ip-%d", proto)
	}
}

// FlagString lists the set TCP flags, e.g. "SYN,ACK".
func FlagString(f core.TCPFlags) string {
	var set []string
	for _, flag := range []struct {
		on   bool
		name string
	}{
		{f.NS, "NS"},
		{f.CWR, "CWR"},
		{f.ECE, "ECE"},
		{f.URG, "URG"},
		{f.ACK, "ACK"},
		{f.PSH, "PSH"},
		{f.RST, "RST"},
		{f.SYN, "SYN"},
		{f.FIN, "FIN"},
	} {
		if flag.on {
			set = append(set, flag.name)
		}
	}
	return strings.Join(set, ",")
}
