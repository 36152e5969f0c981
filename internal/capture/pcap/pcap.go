// Package pcap provides a libpcap live capture source and device listing.
package pcap

import (
	"errors"
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"firestige.xyz/procsniff/internal/capture"
	"firestige.xyz/procsniff/internal/config"
	"firestige.xyz/procsniff/internal/core"
)

func init() {
	capture.MustRegister(config.CaptureTypePcap, func(cfg config.CaptureConfig) (capture.Source, error) {
		return Open(cfg)
	})
}

// Source is a live libpcap capture handle.
type Source struct {
	handle *pcap.Handle
	device string
}

// Open opens a live capture on cfg.Device. An empty device selects the first
// interface that is up and carries an address.
func Open(cfg config.CaptureConfig) (*Source, error) {
	device := cfg.Device
	if device == "" {
		d, err := DefaultDevice()
		if err != nil {
			return nil, err
		}
		device = d
	}

	handle, err := pcap.OpenLive(device, int32(cfg.SnapLen), cfg.Promiscuous, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("open live capture on %s: %w", device, err)
	}

	if handle.LinkType() != layers.LinkTypeEthernet {
		handle.Close()
		return nil, fmt.Errorf("device %s: unsupported link type %s", device, handle.LinkType())
	}

	if cfg.BPFFilter != "" {
		if err := handle.SetBPFFilter(cfg.BPFFilter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("set BPF filter %q: %w", cfg.BPFFilter, err)
		}
	}

	return &Source{handle: handle, device: device}, nil
}

func (s *Source) ReadFrame() (core.Frame, error) {
	data, ci, err := s.handle.ReadPacketData()
	if err != nil {
		if errors.Is(err, pcap.NextErrorTimeoutExpired) {
			return core.Frame{}, capture.ErrTimeout
		}
		return core.Frame{}, err
	}

	return core.Frame{
		Data:       data,
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
	}, nil
}

func (s *Source) Device() string { return s.device }

func (s *Source) Close() error {
	s.handle.Close()
	return nil
}
