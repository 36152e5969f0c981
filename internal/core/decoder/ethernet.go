package decoder

import (
	"encoding/binary"

	"firestige.xyz/procsniff/internal/core"
)

const ethernetHeaderLen = 14

// decodeEthernet reads an Ethernet II header. There is no length field to
// validate beyond presence.
func decodeEthernet(c *Cursor) (core.EthernetHeader, error) {
	b, err := c.Read(ethernetHeaderLen)
	if err != nil {
		return core.EthernetHeader{}, err
	}

	var eth core.EthernetHeader
	copy(eth.DstMAC[:], b[0:6])
	copy(eth.SrcMAC[:], b[6:12])
	eth.EtherType = binary.BigEndian.Uint16(b[12:14])
	return eth, nil
}
