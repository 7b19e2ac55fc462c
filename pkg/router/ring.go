package router

import (
	"sync"

	"github.com/arzzra/audiopipe/pkg/packet"
)

// ring is a bounded multi-producer/single-consumer queue for the
// network-thread-to-pipeline-thread handoff (spec.md section 5). Network
// threads call Push concurrently; exactly one pipeline thread calls Pop.
// It is not lock-free (the teacher's own concurrent structures use plain
// mutexes throughout, see pkg/rtp/session_manager.go) but it holds its
// lock only for a slice append/index, never across I/O.
type ring struct {
	mu   sync.Mutex
	buf  []*packet.Packet
	head int
	size int

	received      uint64
	droppedSource uint64
	droppedRepair uint64
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]*packet.Packet, capacity)}
}

// Push enqueues p, evicting the oldest repair packet first and then the
// oldest source packet when the ring is full (spec.md section 5).
func (r *ring) Push(p *packet.Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.received++
	if r.size == len(r.buf) {
		if !r.evictOldestRepair() {
			r.evictOldest()
		}
	}
	tail := (r.head + r.size) % len(r.buf)
	r.buf[tail] = p
	r.size++
}

func (r *ring) evictOldestRepair() bool {
	for i := 0; i < r.size; i++ {
		idx := (r.head + i) % len(r.buf)
		if r.buf[idx].Flags.Has(packet.FlagRepair) {
			r.removeAt(idx)
			r.droppedRepair++
			return true
		}
	}
	return false
}

func (r *ring) evictOldest() {
	r.removeAt(r.head)
	r.droppedSource++
}

// removeAt drops the slot at idx (must be within the occupied window) and
// shifts the window, keeping the ring's ordering intact.
func (r *ring) removeAt(idx int) {
	for i := idx; i != (r.head+r.size-1)%len(r.buf); i = (i + 1) % len(r.buf) {
		next := (i + 1) % len(r.buf)
		r.buf[i] = r.buf[next]
	}
	r.size--
}

// Pop dequeues the oldest packet, or (nil, false) if empty.
func (r *ring) Pop() (*packet.Packet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return nil, false
	}
	p := r.buf[r.head]
	r.buf[r.head] = nil
	r.head = (r.head + 1) % len(r.buf)
	r.size--
	return p, true
}

func (r *ring) Stats() (received, droppedSource, droppedRepair uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received, r.droppedSource, r.droppedRepair
}
