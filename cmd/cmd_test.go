package cmd

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/procsniff/internal/capture"
	"firestige.xyz/procsniff/internal/capture/pcap"
	"firestige.xyz/procsniff/internal/config"
	"firestige.xyz/procsniff/internal/core"
	"firestige.xyz/procsniff/internal/proc"
)

// MockLister is a mock implementation of proc.Lister.
type MockLister struct {
	mock.Mock
}

func (m *MockLister) List(ctx context.Context) ([]core.LocalProcess, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]core.LocalProcess)
	return records, args.Error(1)
}

func sockets() []core.LocalProcess {
	return []core.LocalProcess{
		{PID: 4242, Name: "curl", Protocol: "tcp", LocalAddr: netip.MustParseAddr("10.0.0.1"), LocalPort: 51000, RemoteAddr: netip.MustParseAddr("10.0.0.2"), RemotePort: 443},
		{PID: 100, Name: "firefox", Protocol: "tcp", LocalPort: 40000, RemotePort: 443},
		{PID: 101, Name: "firefox", Protocol: "udp", LocalPort: 5353},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.Load("")
	require.NoError(t, err)
	c.Watch.Refresh = time.Hour
	return c
}

func tcpFrame(t *testing.T, src, dst string, srcPort, dstPort uint16) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
	tcp := &layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort), SYN: true, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp))
	return buf.Bytes()
}

func writePcap(t *testing.T, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, data := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     base.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return path
}

func TestRunApps(t *testing.T) {
	lister := new(MockLister)
	lister.On("List", mock.Anything).Return(sockets(), nil)

	var buf bytes.Buffer
	require.NoError(t, runApps(context.Background(), lister, &buf))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "curl")
	assert.Contains(t, out, "100,101")
	assert.Contains(t, out, "5353,40000")
	lister.AssertExpectations(t)
}

func TestRunAppsError(t *testing.T) {
	lister := new(MockLister)
	lister.On("List", mock.Anything).Return(nil, errors.New("permission denied"))

	var buf bytes.Buffer
	err := runApps(context.Background(), lister, &buf)
	assert.ErrorContains(t, err, "permission denied")
}

func TestRunAppsEmpty(t *testing.T) {
	lister := new(MockLister)
	lister.On("List", mock.Anything).Return([]core.LocalProcess{}, nil)

	var buf bytes.Buffer
	require.NoError(t, runApps(context.Background(), lister, &buf))
	assert.Contains(t, buf.String(), "no processes")
}

func TestLocalPortsTruncates(t *testing.T) {
	var records []core.LocalProcess
	for _, p := range []uint16{7, 1, 2, 3, 4, 5, 6, 1} {
		records = append(records, core.LocalProcess{PID: 1, Name: "x", LocalPort: p})
	}
	apps := proc.Applications(records)
	require.Len(t, apps, 1)
	assert.Equal(t, "1,2,3,4,5,+2", localPorts(apps[0]))
}

func TestRunDevices(t *testing.T) {
	list := func() ([]pcap.Device, error) {
		return []pcap.Device{
			{Name: "lo", Addresses: []string{"127.0.0.1"}, Loopback: true},
			{Name: "eth0", Addresses: []string{"10.0.0.1", "fe80::1"}, Description: "Ethernet"},
		}, nil
	}

	var buf bytes.Buffer
	require.NoError(t, runDevices(list, &buf))
	assert.Contains(t, buf.String(), "lo (loopback)")
	assert.Contains(t, buf.String(), "10.0.0.1,fe80::1")
}

func TestRunValidate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runValidate(testConfig(t), &buf))
	assert.Contains(t, buf.String(), "procsniff:")
	assert.Contains(t, buf.String(), "capture:")
}

func TestResolveTarget(t *testing.T) {
	lister := new(MockLister)
	lister.On("List", mock.Anything).Return(sockets(), nil)
	ctx := context.Background()

	target, err := resolveTarget(ctx, lister, watchOptions{PID: 4242})
	require.NoError(t, err)
	assert.Equal(t, "curl[4242]", target.String())

	target, err = resolveTarget(ctx, lister, watchOptions{App: "firefox"})
	require.NoError(t, err)
	assert.Equal(t, []int32{100, 101}, target.PIDs())

	_, err = resolveTarget(ctx, lister, watchOptions{PID: 1})
	assert.ErrorIs(t, err, core.ErrProcessNotFound)

	_, err = resolveTarget(ctx, lister, watchOptions{})
	assert.Error(t, err)
	_, err = resolveTarget(ctx, lister, watchOptions{PID: 1, App: "curl"})
	assert.Error(t, err)
}

func TestRunWatchFromFile(t *testing.T) {
	path := writePcap(t,
		tcpFrame(t, "10.0.0.1", "10.0.0.2", 51000, 443),
		tcpFrame(t, "10.0.0.9", "10.0.0.2", 40000, 8080),
		tcpFrame(t, "10.0.0.2", "10.0.0.1", 443, 51000),
	)

	lister := new(MockLister)
	lister.On("List", mock.Anything).Return(sockets(), nil)

	var buf bytes.Buffer
	err := runWatch(context.Background(), testConfig(t), watchOptions{PID: 4242, File: path}, lister, capture.Open, &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "curl[4242]")
	assert.Contains(t, out, "finished (end of file)")
	assert.Contains(t, out, "packets=2")
	assert.Contains(t, out, "10.0.0.1:51000")
	assert.Contains(t, out, "10.0.0.2:443")
	assert.NotContains(t, out, "10.0.0.9")
}

type brokenSource struct{}

func (brokenSource) ReadFrame() (core.Frame, error) { return core.Frame{}, errors.New("interface went down") }
func (brokenSource) Close() error                   { return nil }

func TestRunWatchDeviceFailure(t *testing.T) {
	lister := new(MockLister)
	lister.On("List", mock.Anything).Return(sockets(), nil)
	open := func(config.CaptureConfig) (capture.Source, error) { return brokenSource{}, nil }

	var buf bytes.Buffer
	err := runWatch(context.Background(), testConfig(t), watchOptions{App: "curl"}, lister, open, &buf)
	assert.ErrorContains(t, err, "interface went down")
	assert.Contains(t, buf.String(), "FAILED")
}

func TestRunWatchInterrupted(t *testing.T) {
	lister := new(MockLister)
	lister.On("List", mock.Anything).Return(sockets(), nil)
	open := func(config.CaptureConfig) (capture.Source, error) { return idleSource{}, nil }

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	var buf bytes.Buffer
	err := runWatch(ctx, testConfig(t), watchOptions{PID: 4242}, lister, open, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "state=stopped")
	assert.Contains(t, buf.String(), "no matching packets yet")
}

type idleSource struct{}

func (idleSource) ReadFrame() (core.Frame, error) {
	time.Sleep(2 * time.Millisecond)
	return core.Frame{}, capture.ErrTimeout
}

func (idleSource) Close() error { return nil }
