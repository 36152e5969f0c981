//go:build linux

package afpacket

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/procsniff/internal/capture"
	"firestige.xyz/procsniff/internal/config"
	"firestige.xyz/procsniff/internal/core"
)

func init() {
	capture.MustRegister(config.CaptureTypeAFPacket, func(cfg config.CaptureConfig) (capture.Source, error) {
		return Open(cfg)
	})
}

// Source is an AF_PACKET memory-mapped ring.
type Source struct {
	handle *afpacket.TPacket
	device string
}

// Open creates a TPACKET_V3 ring on cfg.Device sized from cfg.BufferSizeMB.
func Open(cfg config.CaptureConfig) (*Source, error) {
	frameSize, blockSize, numBlocks, err := recomputeSize(cfg.BufferSizeMB, cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, err
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(cfg.Device),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(cfg.Timeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("open afpacket on %s: %w", cfg.Device, err)
	}

	if cfg.BPFFilter != "" {
		insns, err := compileBPF(cfg.BPFFilter, frameSize)
		if err != nil {
			tp.Close()
			return nil, err
		}
		if err := tp.SetBPF(insns); err != nil {
			tp.Close()
			return nil, fmt.Errorf("set BPF filter %q: %w", cfg.BPFFilter, err)
		}
	}

	return &Source{handle: tp, device: cfg.Device}, nil
}

func (s *Source) ReadFrame() (core.Frame, error) {
	data, ci, err := s.handle.ReadPacketData()
	if err != nil {
		return core.Frame{}, s.readError(err)
	}

	return core.Frame{
		Data:       data,
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
	}, nil
}

// readError maps ring errors onto the capture contract. Only a poll timeout
// is idle; POLLERR on the socket is a device failure.
func (s *Source) readError(err error) error {
	switch {
	case errors.Is(err, afpacket.ErrTimeout):
		return capture.ErrTimeout
	case errors.Is(err, afpacket.ErrPoll):
		return fmt.Errorf("afpacket poll on %s: %w", s.device, err)
	default:
		return err
	}
}

func (s *Source) Device() string { return s.device }

func (s *Source) Close() error {
	s.handle.Close()
	return nil
}
