package proc

import (
	"context"
	"errors"
	"syscall"
	"testing"

	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/procsniff/internal/core"
	"firestige.xyz/procsniff/internal/filter"
)

func fakeLister(conns []gnet.ConnectionStat, names map[int32]string) *SystemLister {
	return &SystemLister{
		connections: func(context.Context) ([]gnet.ConnectionStat, error) { return conns, nil },
		nameOf: func(_ context.Context, pid int32) (string, error) {
			if name, ok := names[pid]; ok {
				return name, nil
			}
			return "", errors.New("process not found")
		},
	}
}

func TestSystemListerList(t *testing.T) {
	conns := []gnet.ConnectionStat{
		{Pid: 100, Type: syscall.SOCK_STREAM, Laddr: gnet.Addr{IP: "10.0.0.1", Port: 51000}, Raddr: gnet.Addr{IP: "10.0.0.2", Port: 443}},
		{Pid: 100, Type: syscall.SOCK_DGRAM, Laddr: gnet.Addr{IP: "0.0.0.0", Port: 5353}},
		{Pid: 0, Type: syscall.SOCK_STREAM, Laddr: gnet.Addr{IP: "0.0.0.0", Port: 22}},
		{Pid: 200, Type: syscall.SOCK_STREAM, Laddr: gnet.Addr{IP: "::1", Port: 8080}},
		{Pid: 300, Type: syscall.SOCK_RAW, Laddr: gnet.Addr{IP: "0.0.0.0"}},
	}
	l := fakeLister(conns, map[int32]string{100: "curl", 300: "ping"})

	records, err := l.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	tcp := records[0]
	assert.Equal(t, int32(100), tcp.PID)
	assert.Equal(t, "curl", tcp.Name)
	assert.Equal(t, "tcp", tcp.Protocol)
	assert.Equal(t, "10.0.0.1", tcp.LocalAddr.String())
	assert.Equal(t, uint16(51000), tcp.LocalPort)
	assert.Equal(t, "10.0.0.2", tcp.RemoteAddr.String())
	assert.Equal(t, uint16(443), tcp.RemotePort)

	udp := records[1]
	assert.Equal(t, "udp", udp.Protocol)
	assert.False(t, udp.RemoteAddr.IsValid())
	assert.Zero(t, udp.RemotePort)
}

func TestSystemListerError(t *testing.T) {
	l := &SystemLister{
		connections: func(context.Context) ([]gnet.ConnectionStat, error) { return nil, errors.New("permission denied") },
	}
	_, err := l.List(context.Background())
	assert.Error(t, err)
}

func sampleRecords() []core.LocalProcess {
	return []core.LocalProcess{
		{PID: 30, Name: "firefox", LocalPort: 40000, RemotePort: 443},
		{PID: 10, Name: "firefox", LocalPort: 40001, RemotePort: 443},
		{PID: 20, Name: "Code", LocalPort: 45000, RemotePort: 443},
		{PID: 30, Name: "firefox", LocalPort: 40002, RemotePort: 80},
	}
}

func TestApplications(t *testing.T) {
	apps := Applications(sampleRecords())
	require.Len(t, apps, 2)

	assert.Equal(t, "Code", apps[0].Name)
	assert.Equal(t, "firefox", apps[1].Name)
	assert.Equal(t, []int32{10, 30}, apps[1].PIDs)
	assert.Len(t, apps[1].Sockets, 3)

	assert.Empty(t, Applications(nil))
}

func TestFindPID(t *testing.T) {
	target, err := FindPID(sampleRecords(), 30)
	require.NoError(t, err)
	assert.Equal(t, filter.KindProcess, target.Kind())
	assert.Equal(t, []int32{30}, target.PIDs())
	assert.Len(t, target.Pairs(), 2)

	_, err = FindPID(sampleRecords(), 99)
	assert.ErrorIs(t, err, core.ErrProcessNotFound)
}

func TestFindApplication(t *testing.T) {
	target, err := FindApplication(sampleRecords(), "firefox")
	require.NoError(t, err)
	assert.Equal(t, filter.KindApplication, target.Kind())
	assert.Equal(t, []int32{10, 30}, target.PIDs())
	assert.Len(t, target.Pairs(), 3)

	_, err = FindApplication(sampleRecords(), "chrome")
	assert.ErrorIs(t, err, core.ErrProcessNotFound)
}
