package decoder

import (
	"encoding/binary"

	"firestige.xyz/procsniff/internal/core"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20
)

// decodeTransport dispatches on the internet header's protocol number.
// Unknown protocols are not an error: they carry the remaining bytes verbatim.
func decodeTransport(c *Cursor, protocol uint8) (core.TransportHeader, error) {
	switch protocol {
	case core.ProtocolTCP:
		return decodeTCP(c)
	case core.ProtocolUDP:
		return decodeUDP(c)
	default:
		return &core.OtherTransport{Proto: protocol, Data: clone(c.Rest())}, nil
	}
}

// decodeUDP reads the fixed 8-byte header.
func decodeUDP(c *Cursor) (*core.UDPHeader, error) {
	b, err := c.Read(udpHeaderLen)
	if err != nil {
		return nil, err
	}

	return &core.UDPHeader{
		SrcPort:  binary.BigEndian.Uint16(b[0:2]),
		DstPort:  binary.BigEndian.Uint16(b[2:4]),
		Length:   binary.BigEndian.Uint16(b[4:6]),
		Checksum: binary.BigEndian.Uint16(b[6:8]),
	}, nil
}

// decodeTCP peeks the fixed prefix for the data offset, then consumes the
// whole header including options.
func decodeTCP(c *Cursor) (*core.TCPHeader, error) {
	prefix, err := c.Peek(tcpHeaderMinLen)
	if err != nil {
		return nil, err
	}

	dataOffset := prefix[12] >> 4
	headerLen := max(tcpHeaderMinLen, int(dataOffset)*4)

	b, err := c.Read(headerLen)
	if err != nil {
		return nil, err
	}

	tcp := &core.TCPHeader{
		SrcPort:    binary.BigEndian.Uint16(b[0:2]),
		DstPort:    binary.BigEndian.Uint16(b[2:4]),
		Seq:        binary.BigEndian.Uint32(b[4:8]),
		Ack:        binary.BigEndian.Uint32(b[8:12]),
		DataOffset: dataOffset,
		Reserved:   b[12] & 0x0E,
		Flags: core.TCPFlags{
			NS:  b[12]&0x01 != 0,
			CWR: b[13]&0x80 != 0,
			ECE: b[13]&0x40 != 0,
			URG: b[13]&0x20 != 0,
			ACK: b[13]&0x10 != 0,
			PSH: b[13]&0x08 != 0,
			RST: b[13]&0x04 != 0,
			SYN: b[13]&0x02 != 0,
			FIN: b[13]&0x01 != 0,
		},
		Window:        binary.BigEndian.Uint16(b[14:16]),
		Checksum:      binary.BigEndian.Uint16(b[16:18]),
		UrgentPointer: binary.BigEndian.Uint16(b[18:20]),
	}
	if headerLen > tcpHeaderMinLen {
		tcp.Options = clone(b[tcpHeaderMinLen:])
	}
	return tcp, nil
}
