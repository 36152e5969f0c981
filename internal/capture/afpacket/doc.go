// Package afpacket provides a Linux TPACKET_V3 capture source. On other
// platforms the package is empty and the afpacket source type is unavailable.
package afpacket
