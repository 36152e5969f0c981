// Package filter correlates decoded packets with local process sockets.
package filter

import "firestige.xyz/procsniff/internal/core"

// PortPair is the (local, remote) port pair of one socket.
type PortPair struct {
	Local  uint16
	Remote uint16
}

// Matches reports whether pkt is TCP or UDP and its source or destination
// port equals the local or remote port of any pair. Addresses are not compared.
func Matches(pkt *core.Packet, pairs []PortPair) bool {
	if pkt == nil {
		return false
	}
	src, dst, ok := core.Ports(pkt.Transport)
	if !ok {
		return false
	}

	for _, p := range pairs {
		if src == p.Local || src == p.Remote || dst == p.Local || dst == p.Remote {
			return true
		}
	}
	return false
}
