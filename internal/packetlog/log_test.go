package packetlog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/procsniff/internal/core"
)

// tagged builds a packet whose UDP source port identifies it.
func tagged(i int) *core.Packet {
	return &core.Packet{
		IP:        &core.IPv4Header{IHL: 5, Proto: core.ProtocolUDP},
		Transport: &core.UDPHeader{SrcPort: uint16(i)},
	}
}

func tag(pkt *core.Packet) int {
	return int(pkt.Transport.(*core.UDPHeader).SrcPort)
}

func TestLogEmpty(t *testing.T) {
	l := New()
	assert.Equal(t, 0, l.Len())

	snap := l.Snapshot()
	_, ok := snap.Head()
	assert.False(t, ok)
	assert.Empty(t, snap.Packets(0))
	for range snap.All() {
		t.Fatal("empty log yielded a packet")
	}
}

func TestLogNewestFirst(t *testing.T) {
	l := New()
	for i := 1; i <= 5; i++ {
		assert.Equal(t, uint64(i), l.Append(tagged(i)))
	}

	var got []int
	for pkt := range l.All() {
		got = append(got, tag(pkt))
	}
	assert.Equal(t, []int{5, 4, 3, 2, 1}, got)
	assert.Equal(t, 5, l.Len())

	head, ok := l.Snapshot().Head()
	require.True(t, ok)
	assert.Equal(t, 5, tag(head))
}

func TestSnapshotIsolation(t *testing.T) {
	l := New()
	l.Append(tagged(1))
	l.Append(tagged(2))

	snap := l.Snapshot()
	l.Append(tagged(3))

	assert.Equal(t, 2, snap.Len())
	var got []int
	for pkt := range snap.All() {
		got = append(got, tag(pkt))
	}
	assert.Equal(t, []int{2, 1}, got)
	assert.Equal(t, 3, l.Len())
}

func TestSnapshotPacketsLimit(t *testing.T) {
	l := New()
	for i := 1; i <= 10; i++ {
		l.Append(tagged(i))
	}

	pkts := l.Snapshot().Packets(3)
	require.Len(t, pkts, 3)
	assert.Equal(t, 10, tag(pkts[0]))
	assert.Equal(t, 8, tag(pkts[2]))

	assert.Len(t, l.Snapshot().Packets(0), 10)
	assert.Len(t, l.Snapshot().Packets(50), 10)
}

func TestSnapshotSince(t *testing.T) {
	l := New()
	for i := 1; i <= 6; i++ {
		l.Append(tagged(i))
	}

	var seqs []uint64
	for seq, pkt := range l.Snapshot().Since(4) {
		assert.Equal(t, int(seq), tag(pkt))
		seqs = append(seqs, seq)
	}
	assert.Equal(t, []uint64{6, 5}, seqs)

	for range l.Snapshot().Since(6) {
		t.Fatal("nothing is newer than the head")
	}
	assert.Equal(t, uint64(6), l.Snapshot().Seq())
}

func TestIterationStopsEarly(t *testing.T) {
	l := New()
	for i := 1; i <= 4; i++ {
		l.Append(tagged(i))
	}

	count := 0
	for range l.All() {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

// TestConcurrentReaders checks that every reader sees exactly the packets
// appended before its snapshot, in order, with nothing lost or duplicated.
func TestConcurrentReaders(t *testing.T) {
	const writes = 5000
	const readers = 8

	l := New()
	var wg sync.WaitGroup
	done := make(chan struct{})

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				snap := l.Snapshot()
				want := snap.Len()
				n := 0
				for pkt := range snap.All() {
					if tag(pkt) != want-n {
						t.Errorf("expected packet %d, got %d", want-n, tag(pkt))
						return
					}
					n++
				}
				if n != want {
					t.Errorf("snapshot of %d yielded %d packets", want, n)
					return
				}
			}
		}()
	}

	for i := 1; i <= writes; i++ {
		l.Append(tagged(i))
	}
	close(done)
	wg.Wait()

	assert.Equal(t, writes, l.Len())
}

func BenchmarkAppend(b *testing.B) {
	l := New()
	pkt := tagged(1)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		l.Append(pkt)
	}
}
