package filter

import (
	"fmt"
	"slices"
	"strings"

	"firestige.xyz/procsniff/internal/core"
)

// Kind distinguishes single-process targets from application targets.
type Kind string

const (
	KindProcess     Kind = "process"
	KindApplication Kind = "application"
)

// Target is the correlation target of a retriever: one process or a named
// group of processes. It is immutable after construction and safe to share.
type Target struct {
	kind  Kind
	name  string
	pids  []int32
	pairs []PortPair
}

// ForProcess returns a target for a single socket record.
func ForProcess(p core.LocalProcess) Target {
	return Target{
		kind:  KindProcess,
		name:  p.Name,
		pids:  []int32{p.PID},
		pairs: []PortPair{{Local: p.LocalPort, Remote: p.RemotePort}},
	}
}

// ForSockets returns a process target covering several sockets of the same pid.
func ForSockets(procs []core.LocalProcess) (Target, error) {
	if len(procs) == 0 {
		return Target{}, core.ErrProcessNotFound
	}
	pid := procs[0].PID
	for _, p := range procs {
		if p.PID != pid {
			return Target{}, fmt.Errorf("process target: mixed pids %d and %d", pid, p.PID)
		}
	}
	return build(KindProcess, procs[0].Name, procs), nil
}

// ForApplication returns a target covering every socket of the named
// application. All records must carry name and there must be at least one.
func ForApplication(name string, procs []core.LocalProcess) (Target, error) {
	if len(procs) == 0 {
		return Target{}, fmt.Errorf("%w: %s", core.ErrEmptyApplication, name)
	}
	for _, p := range procs {
		if p.Name != name {
			return Target{}, fmt.Errorf("application %q: record for pid %d has name %q", name, p.PID, p.Name)
		}
	}
	return build(KindApplication, name, procs), nil
}

func build(kind Kind, name string, procs []core.LocalProcess) Target {
	t := Target{kind: kind, name: name}
	for _, p := range procs {
		if !slices.Contains(t.pids, p.PID) {
			t.pids = append(t.pids, p.PID)
		}
		pair := PortPair{Local: p.LocalPort, Remote: p.RemotePort}
		if !slices.Contains(t.pairs, pair) {
			t.pairs = append(t.pairs, pair)
		}
	}
	slices.Sort(t.pids)
	return t
}

// Pairs returns a copy of the target's port pairs.
func (t Target) Pairs() []PortPair { return slices.Clone(t.pairs) }

// Matches reports whether pkt belongs to the target.
func (t Target) Matches(pkt *core.Packet) bool { return Matches(pkt, t.pairs) }

func (t Target) Kind() Kind    { return t.kind }
func (t Target) Name() string  { return t.name }
func (t Target) PIDs() []int32 { return slices.Clone(t.pids) }
func (t Target) IsZero() bool  { return t.kind == "" }

func (t Target) String() string {
	if t.kind == KindProcess && len(t.pids) == 1 {
		return fmt.Sprintf("%s[%d]", t.name, t.pids[0])
	}
	pids := make([]string, len(t.pids))
	for i, pid := range t.pids {
		pids[i] = fmt.Sprint(pid)
	}
	return fmt.Sprintf("%s[%s]", t.name, strings.Join(pids, ","))
}
