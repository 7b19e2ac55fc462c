// Package slab implements the shared packet and byte-buffer factories
// described in spec.md section 5: O(1) allocation from a fixed-size pool,
// falling back to the plain allocator when the pool is empty. Neither
// factory reports allocation failure to the caller; true exhaustion panics
// in Go's allocator (see PacketSlab).
//
// Grounded on the buffer-pool idiom already present in the teacher's
// structured logger (pkg/dialog/logger.go's bufferPool field), generalized
// from a single map-reuse pool into the two factories spec.md names.
package slab

import "sync"

// PacketSlab hands out reusable byte slices sized for one network
// datagram. It never returns an error: sync.Pool already falls back to
// calling New when empty, and Go's allocator panics (not an ordinary
// error) on true exhaustion — which spec.md section 9 says must abort
// loudly, not be papered over.
type PacketSlab struct {
	pool     sync.Pool
	sizeHint int
}

// NewPacketSlab creates a slab whose buffers are sized for datagrams up to
// maxPacketSize bytes (typically the path MTU).
func NewPacketSlab(maxPacketSize int) *PacketSlab {
	s := &PacketSlab{sizeHint: maxPacketSize}
	s.pool.New = func() interface{} {
		buf := make([]byte, maxPacketSize)
		return &buf
	}
	return s
}

// Get returns a buffer of at least the slab's configured size, sliced to
// exactly n bytes.
func (s *PacketSlab) Get(n int) []byte {
	bp := s.pool.Get().(*[]byte)
	buf := *bp
	if cap(buf) < n {
		buf = make([]byte, n)
		return buf
	}
	return buf[:n]
}

// Put returns a buffer to the slab for reuse. Buffers not obtained from
// Get may be donated too, as long as their capacity matches the slab's
// sizing — this mirrors the teacher's pool reset-before-Put discipline.
func (s *PacketSlab) Put(buf []byte) {
	if cap(buf) < s.sizeHint {
		return
	}
	full := buf[:cap(buf)]
	s.pool.Put(&full)
}

// BufferSlab is a set of per-size sync.Pool buckets for PCM sample
// buffers, avoiding repeated allocation of the fixed-size float32 slices
// the depacketizer and mixer pass around every frame tick.
type BufferSlab struct {
	mu      sync.Mutex
	buckets map[int]*sync.Pool
}

func NewBufferSlab() *BufferSlab {
	return &BufferSlab{buckets: make(map[int]*sync.Pool)}
}

func (b *BufferSlab) bucket(n int) *sync.Pool {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.buckets[n]
	if !ok {
		p = &sync.Pool{New: func() interface{} {
			s := make([]float32, n)
			return &s
		}}
		b.buckets[n] = p
	}
	return p
}

// Get returns a float32 slice of exactly n samples, zeroed.
func (b *BufferSlab) Get(n int) []float32 {
	sp := b.bucket(n).Get().(*[]float32)
	s := *sp
	for i := range s {
		s[i] = 0
	}
	return s
}

// Put returns a buffer of length n to its bucket.
func (b *BufferSlab) Put(buf []float32) {
	n := len(buf)
	if n == 0 {
		return
	}
	b.bucket(n).Put(&buf)
}
