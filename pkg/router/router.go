// Package router demultiplexes incoming packets to per-source_id session
// queues (spec.md section 2's "session router" and section 5's locking
// discipline), grounded on the teacher's RWMutex-guarded session registry
// (pkg/rtp/session_manager.go).
package router

import (
	"sync"

	"github.com/arzzra/audiopipe/pkg/packet"
)

// Router owns the session table: net threads take the read lock to look up
// a destination queue and the write lock to create one for a new
// source_id; the pipeline thread (or session lifecycle control) takes the
// write lock to remove one. No lock is held across I/O.
type Router struct {
	mu     sync.RWMutex
	queues map[uint32]*ring

	ringCapacity int
	onNewSource  func(sourceID uint32) bool // accept/reject a never-seen source_id
}

// New builds a router. onNewSource is consulted the first time a packet
// for an unknown source_id arrives; returning false drops the packet
// without creating a queue (e.g. session-limit enforcement).
func New(ringCapacity int, onNewSource func(sourceID uint32) bool) *Router {
	return &Router{
		queues:       make(map[uint32]*ring),
		ringCapacity: ringCapacity,
		onNewSource:  onNewSource,
	}
}

// Route is called from a network thread for every parsed packet. It never
// blocks on I/O and holds the table lock only long enough to look up or
// create the destination queue.
func (r *Router) Route(p *packet.Packet) {
	r.mu.RLock()
	q, ok := r.queues[p.SourceID]
	r.mu.RUnlock()
	if ok {
		q.Push(p)
		return
	}

	if r.onNewSource != nil && !r.onNewSource(p.SourceID) {
		return
	}

	r.mu.Lock()
	q, ok = r.queues[p.SourceID]
	if !ok {
		q = newRing(r.ringCapacity)
		r.queues[p.SourceID] = q
	}
	r.mu.Unlock()

	q.Push(p)
}

// Reader returns a packet.Reader bound to source_id's queue, for the
// pipeline thread to use as the bottom of that session's chain. The
// returned reader is only valid while the session remains registered.
func (r *Router) Reader(sourceID uint32) packet.Reader {
	return packet.ReaderFunc(func() (*packet.Packet, bool) {
		r.mu.RLock()
		q, ok := r.queues[sourceID]
		r.mu.RUnlock()
		if !ok {
			return nil, false
		}
		return q.Pop()
	})
}

// Remove drops source_id's queue, draining and discarding any in-flight
// packets (spec.md section 5's cancellation rule). Called by the pipeline
// thread on the pass after a session is marked dead.
func (r *Router) Remove(sourceID uint32) {
	r.mu.Lock()
	delete(r.queues, sourceID)
	r.mu.Unlock()
}

// Stats returns the ring's cumulative received/drop counters for
// source_id, for a pkg/metrics poller to diff into its CounterVecs.
func (r *Router) Stats(sourceID uint32) (received, droppedSource, droppedRepair uint64, ok bool) {
	r.mu.RLock()
	q, present := r.queues[sourceID]
	r.mu.RUnlock()
	if !present {
		return 0, 0, 0, false
	}
	rc, ds, dr := q.Stats()
	return rc, ds, dr, true
}

// Sources returns the currently registered source_ids, for session-table
// iteration by the pipeline thread (mixer input set, watchdog sweep).
func (r *Router) Sources() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uint32, 0, len(r.queues))
	for id := range r.queues {
		out = append(out, id)
	}
	return out
}
