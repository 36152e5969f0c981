// Package proc enumerates local sockets and the processes that own them.
package proc

import (
	"context"
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"syscall"

	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"firestige.xyz/procsniff/internal/core"
	"firestige.xyz/procsniff/internal/filter"
)

// Lister enumerates sockets owned by local processes.
type Lister interface {
	List(ctx context.Context) ([]core.LocalProcess, error)
}

// SystemLister reads the operating system's socket tables.
type SystemLister struct {
	connections func(ctx context.Context) ([]gnet.ConnectionStat, error)
	nameOf      func(ctx context.Context, pid int32) (string, error)
}

// NewSystemLister creates a lister backed by gopsutil.
func NewSystemLister() *SystemLister {
	return &SystemLister{
		connections: func(ctx context.Context) ([]gnet.ConnectionStat, error) {
			return gnet.ConnectionsWithContext(ctx, "inet")
		},
		nameOf: func(ctx context.Context, pid int32) (string, error) {
			p, err := process.NewProcessWithContext(ctx, pid)
			if err != nil {
				return "", err
			}
			return p.NameWithContext(ctx)
		},
	}
}

// List returns one record per TCP or UDP socket with a known owner. Sockets
// whose process exits during enumeration are skipped.
func (l *SystemLister) List(ctx context.Context) ([]core.LocalProcess, error) {
	conns, err := l.connections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	names := make(map[int32]string)
	out := make([]core.LocalProcess, 0, len(conns))
	for _, c := range conns {
		rec, ok := toLocalProcess(c)
		if !ok {
			continue
		}

		name, seen := names[rec.PID]
		if !seen {
			name, err = l.nameOf(ctx, rec.PID)
			if err != nil {
				logrus.WithError(err).WithField("pid", rec.PID).Debug("process vanished during enumeration")
			}
			names[rec.PID] = name
		}
		if name == "" {
			continue
		}
		rec.Name = name
		out = append(out, rec)
	}
	return out, nil
}

// toLocalProcess converts a socket table entry, dropping entries without an
// owning pid or of a type other than stream/datagram.
func toLocalProcess(c gnet.ConnectionStat) (core.LocalProcess, bool) {
	if c.Pid <= 0 {
		return core.LocalProcess{}, false
	}

	rec := core.LocalProcess{
		PID:        c.Pid,
		LocalPort:  uint16(c.Laddr.Port),
		RemotePort: uint16(c.Raddr.Port),
	}
	switch c.Type {
	case syscall.SOCK_STREAM:
		rec.Protocol = "tcp"
	case syscall.SOCK_DGRAM:
		rec.Protocol = "udp"
	default:
		return core.LocalProcess{}, false
	}

	// Unparsable or empty addresses (unconnected UDP) stay invalid.
	rec.LocalAddr, _ = netip.ParseAddr(c.Laddr.IP)
	rec.RemoteAddr, _ = netip.ParseAddr(c.Raddr.IP)
	return rec, true
}

// Application is a set of sockets whose processes share a name.
type Application struct {
	Name    string
	PIDs    []int32
	Sockets []core.LocalProcess
}

// Applications groups records by process name, sorted by name.
func Applications(records []core.LocalProcess) []Application {
	byName := make(map[string]*Application)
	for _, rec := range records {
		app, ok := byName[rec.Name]
		if !ok {
			app = &Application{Name: rec.Name}
			byName[rec.Name] = app
		}
		if !slices.Contains(app.PIDs, rec.PID) {
			app.PIDs = append(app.PIDs, rec.PID)
		}
		app.Sockets = append(app.Sockets, rec)
	}

	apps := make([]Application, 0, len(byName))
	for _, app := range byName {
		slices.Sort(app.PIDs)
		apps = append(apps, *app)
	}
	slices.SortFunc(apps, func(a, b Application) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return apps
}

// FindPID builds a process target from every socket owned by pid.
func FindPID(records []core.LocalProcess, pid int32) (filter.Target, error) {
	var sockets []core.LocalProcess
	for _, rec := range records {
		if rec.PID == pid {
			sockets = append(sockets, rec)
		}
	}
	if len(sockets) == 0 {
		return filter.Target{}, fmt.Errorf("%w: pid %d has no open sockets", core.ErrProcessNotFound, pid)
	}
	return filter.ForSockets(sockets)
}

// FindApplication builds an application target from every socket of the
// processes called name.
func FindApplication(records []core.LocalProcess, name string) (filter.Target, error) {
	for _, app := range Applications(records) {
		if app.Name == name {
			return filter.ForApplication(name, app.Sockets)
		}
	}
	return filter.Target{}, fmt.Errorf("%w: no process named %q has open sockets", core.ErrProcessNotFound, name)
}
