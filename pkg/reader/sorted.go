// Package reader implements the packet-reader layers that sit between FEC
// recovery and the depacketizer: the sorted (reorder) reader, the delayed
// (playout-delay) reader, and the watchdog (spec.md sections 4.2, 4.3,
// 4.5). All three are pull-based and never block: Read returns (nil,
// false) when nothing is ready yet, matching spec.md section 5's "no
// component may block the pipeline thread" rule.
//
// Grounded on the min-heap reorder structure in the teacher's
// pkg/media/jitter_buffer.go, adapted from a background-goroutine/channel
// design (which would block the pipeline thread) to a synchronous pull
// the pipeline thread drives on every tick.
package reader

import (
	"container/heap"
	"time"

	"github.com/arzzra/audiopipe/pkg/packet"
)

type pqItem struct {
	pkt     *packet.Packet
	arrival time.Time
	index   int
}

type pq []*pqItem

func (h pq) Len() int { return len(h) }
func (h pq) Less(i, j int) bool {
	return packet.SeqLess(h[i].pkt.Seq, h[j].pkt.Seq)
}
func (h pq) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *pq) Push(x interface{}) {
	it := x.(*pqItem)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *pq) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Sorted reorders packets by sequence number within a reorder window of W
// packets (spec.md section 4.2).
type Sorted struct {
	upstream packet.Reader
	window   int

	heap         pq
	bySeq        map[uint16]*pqItem
	haveExpected bool
	expectedSeq  uint16
	lastEmitted  uint16
	haveEmitted  bool

	dropped  uint64
	duplicate uint64
}

// NewSorted wraps upstream with a reorder window of window packets.
func NewSorted(upstream packet.Reader, window int) *Sorted {
	if window <= 0 {
		window = 1
	}
	return &Sorted{
		upstream: upstream,
		window:   window,
		bySeq:    make(map[uint16]*pqItem),
	}
}

// Read implements packet.Reader.
func (s *Sorted) Read() (*packet.Packet, bool) {
	for {
		p, ok := s.upstream.Read()
		if !ok {
			break
		}
		s.admit(p)
	}

	if s.heap.Len() == 0 {
		return nil, false
	}

	lowest := s.heap[0]
	if !s.haveExpected {
		s.haveExpected = true
		s.expectedSeq = lowest.pkt.Seq
	}

	ready := lowest.pkt.Seq == s.expectedSeq || s.heap.Len() >= s.window
	if !ready {
		return nil, false
	}

	item := heap.Pop(&s.heap).(*pqItem)
	delete(s.bySeq, item.pkt.Seq)
	if packet.SeqLess(s.expectedSeq, item.pkt.Seq) {
		// the gap between expectedSeq and item.pkt.Seq is being skipped
		s.dropped += uint64(int16(item.pkt.Seq - s.expectedSeq))
	}
	s.expectedSeq = item.pkt.Seq + 1
	s.lastEmitted = item.pkt.Seq
	s.haveEmitted = true
	return item.pkt, true
}

func (s *Sorted) admit(p *packet.Packet) {
	if s.haveEmitted && !packet.SeqLess(s.lastEmitted, p.Seq) {
		// at or behind the last packet we already emitted: duplicate or
		// ancient, drop silently (spec.md section 4.2 and 4.5 scenario 5).
		s.duplicate++
		return
	}

	if existing, ok := s.bySeq[p.Seq]; ok {
		// tie-break: earlier arrival wins.
		if p.CaptureTime.Before(existing.arrival) {
			existing.pkt = p
			existing.arrival = p.CaptureTime
		}
		s.duplicate++
		return
	}

	item := &pqItem{pkt: p, arrival: p.CaptureTime}
	s.bySeq[p.Seq] = item
	heap.Push(&s.heap, item)
}

// Stats is the reorder-window drop and duplicate counters. pkg/session
// does not forward them to pkg/metrics.
type Stats struct {
	Dropped   uint64
	Duplicate uint64
}

func (s *Sorted) Stats() Stats { return Stats{Dropped: s.dropped, Duplicate: s.duplicate} }
