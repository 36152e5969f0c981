// Package packetlog implements an append-only packet history with one writer
// and any number of snapshot readers.
package packetlog

import (
	"iter"
	"sync"

	"firestige.xyz/procsniff/internal/core"
)

// node is immutable once linked into the chain.
type node struct {
	seq  uint64
	pkt  *core.Packet
	next *node
}

// Log is a persistent, newest-first chain of packets. Only the head reference
// changes, and only by Append. Nodes are never removed, so memory grows with
// the number of appended packets.
type Log struct {
	mu   sync.RWMutex
	head *node
}

// New creates an empty log.
func New() *Log {
	return &Log{}
}

// Append links pkt in front of the current head. The caller must not modify
// pkt afterwards. It returns the sequence number assigned to pkt, starting at 1.
func (l *Log) Append(pkt *core.Packet) uint64 {
	n := &node{pkt: pkt}

	l.mu.Lock()
	n.next = l.head
	if l.head != nil {
		n.seq = l.head.seq + 1
	} else {
		n.seq = 1
	}
	l.head = n
	l.mu.Unlock()

	return n.seq
}

// Snapshot captures the current head. Packets appended later are invisible
// to the returned snapshot.
func (l *Log) Snapshot() Snapshot {
	l.mu.RLock()
	head := l.head
	l.mu.RUnlock()
	return Snapshot{head: head}
}

// Len returns the number of packets appended so far.
func (l *Log) Len() int {
	return l.Snapshot().Len()
}

// All iterates a fresh snapshot, newest first.
func (l *Log) All() iter.Seq[*core.Packet] {
	return l.Snapshot().All()
}

// Snapshot is a fixed view of a Log. It is a value and may be shared between
// goroutines; iterating it takes no locks.
type Snapshot struct {
	head *node
}

// Len returns the number of packets in the snapshot.
func (s Snapshot) Len() int {
	if s.head == nil {
		return 0
	}
	return int(s.head.seq)
}

// Seq returns the sequence number of the newest packet, or 0 when empty.
func (s Snapshot) Seq() uint64 {
	if s.head == nil {
		return 0
	}
	return s.head.seq
}

// Head returns the newest packet in the snapshot.
func (s Snapshot) Head() (*core.Packet, bool) {
	if s.head == nil {
		return nil, false
	}
	return s.head.pkt, true
}

// All yields packets newest first, back to the oldest.
func (s Snapshot) All() iter.Seq[*core.Packet] {
	return func(yield func(*core.Packet) bool) {
		for n := s.head; n != nil; n = n.next {
			if !yield(n.pkt) {
				return
			}
		}
	}
}

// Since yields packets with a sequence number greater than seq, newest first,
// together with their sequence numbers.
func (s Snapshot) Since(seq uint64) iter.Seq2[uint64, *core.Packet] {
	return func(yield func(uint64, *core.Packet) bool) {
		for n := s.head; n != nil && n.seq > seq; n = n.next {
			if !yield(n.seq, n.pkt) {
				return
			}
		}
	}
}

// Packets returns at most limit packets, newest first. A limit <= 0 returns all.
func (s Snapshot) Packets(limit int) []*core.Packet {
	size := s.Len()
	if limit > 0 && limit < size {
		size = limit
	}

	out := make([]*core.Packet, 0, size)
	for pkt := range s.All() {
		if len(out) == size {
			break
		}
		out = append(out, pkt)
	}
	return out
}
