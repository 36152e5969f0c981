package decoder

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/procsniff/internal/core"
)

const (
	ipv4HeaderMinLen = 20
	ipv6HeaderLen    = 40
)

// decodeIP dispatches on the version nibble of the first byte.
func decodeIP(c *Cursor) (core.IPHeader, error) {
	b, err := c.Peek(1)
	if err != nil {
		return nil, err
	}

	switch version := b[0] >> 4; version {
	case 4:
		return decodeIPv4(c)
	case 6:
		return decodeIPv6(c)
	default:
		return nil, &UnexpectedIPVersionError{Version: version}
	}
}

// decodeIPv4 reads the fixed 20 bytes, then (IHL-5)*4 bytes of options when IHL > 5.
// An IHL below 5 is treated as carrying no options.
func decodeIPv4(c *Cursor) (*core.IPv4Header, error) {
	b, err := c.Read(ipv4HeaderMinLen)
	if err != nil {
		return nil, err
	}

	ip := &core.IPv4Header{
		IHL:  b[0] & 0x0F,
		DSCP: b[1] >> 2,
		ECN:  b[1] & 0x03,
	}

	// Total Length (2 bytes at offset 2)
	ip.TotalLength = binary.BigEndian.Uint16(b[2:4])
	// Identification (2 bytes at offset 4)
	ip.Identification = binary.BigEndian.Uint16(b[4:6])

	// Flags (top 3 bits) and Fragment Offset (low 13 bits)
	flagsOffset := binary.BigEndian.Uint16(b[6:8])
	ip.Flags = core.IPv4Flags{
		Reserved:      flagsOffset&0x8000 != 0,
		DontFragment:  flagsOffset&0x4000 != 0,
		MoreFragments: flagsOffset&0x2000 != 0,
	}
	ip.FragmentOffset = flagsOffset & 0x1FFF

	ip.TTL = b[8]
	ip.Proto = b[9]
	ip.Checksum = binary.BigEndian.Uint16(b[10:12])
	ip.SrcIP = netip.AddrFrom4([4]byte(b[12:16]))
	ip.DstIP = netip.AddrFrom4([4]byte(b[16:20]))

	if ip.IHL > 5 {
		opts, err := c.Read(int(ip.IHL-5) * 4)
		if err != nil {
			return nil, err
		}
		ip.Options = clone(opts)
	}
	return ip, nil
}

// decodeIPv6 reads the fixed 40-byte header. Extension headers are left to
// the transport dispatch as an unknown protocol.
func decodeIPv6(c *Cursor) (*core.IPv6Header, error) {
	b, err := c.Read(ipv6HeaderLen)
	if err != nil {
		return nil, err
	}

	return &core.IPv6Header{
		TrafficClass:  (b[0]&0x0F)<<4 | b[1]>>4,
		FlowLabel:     binary.BigEndian.Uint32(b[0:4]) & 0x000FFFFF,
		PayloadLength: binary.BigEndian.Uint16(b[4:6]),
		NextHeader:    b[6],
		HopLimit:      b[7],
		SrcIP:         netip.AddrFrom16([16]byte(b[8:24])),
		DstIP:         netip.AddrFrom16([16]byte(b[24:40])),
	}, nil
}
