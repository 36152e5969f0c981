package capture

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/procsniff/internal/config"
	"firestige.xyz/procsniff/internal/core"
)

func init() {
	MustRegister(config.CaptureTypeFile, func(cfg config.CaptureConfig) (Source, error) {
		return OpenFile(cfg.File)
	})
}

// pcapng section header block type
var ngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// FileSource replays a pcap or pcapng file. It never returns ErrTimeout and
// reports io.EOF once every frame has been read.
type FileSource struct {
	path   string
	file   *os.File
	reader packetReader
}

// OpenFile opens a pcap or pcapng file with an Ethernet link type.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read pcap header %s: %w", path, err)
	}

	var r packetReader
	if bytes.Equal(magic, ngMagic) {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to parse pcap file %s: %w", path, err)
	}

	if r.LinkType() != layers.LinkTypeEthernet {
		f.Close()
		return nil, fmt.Errorf("pcap file %s: unsupported link type %s", path, r.LinkType())
	}

	return &FileSource{path: path, file: f, reader: r}, nil
}

func (s *FileSource) ReadFrame() (core.Frame, error) {
	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		if err == io.EOF {
			return core.Frame{}, io.EOF
		}
		return core.Frame{}, fmt.Errorf("failed to read packet: %w", err)
	}

	return core.Frame{
		Data:       data,
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
	}, nil
}

func (s *FileSource) Device() string { return s.path }

func (s *FileSource) Close() error {
	return s.file.Close()
}
