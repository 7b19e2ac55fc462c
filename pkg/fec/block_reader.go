package fec

import (
	"time"

	"github.com/arzzra/audiopipe/pkg/packet"
)

type blockState struct {
	shards        [][]byte         // len k+m, indexed by encoding symbol id (source first, then repair)
	sourceHeaders []*packet.Packet // len k, present source packets for header reconstitution
	firstSeen     time.Time
}

// BlockReader accumulates source and repair packets per block_number and
// reconstructs erased source packets (spec.md section 4.4). It reads raw
// FEC-bearing packets from upstream and produces a packet.Reader stream of
// recovered-plus-original source packets in sequence-number order, with
// blocks closing and emitting in block_number order.
type BlockReader struct {
	upstream     packet.Reader
	scheme       Scheme
	decoder      Decoder
	k, m         int
	ageThreshold time.Duration
	samplesPerPacket uint32
	sourceID     uint32

	blocks      map[uint32]*blockState
	haveNext    bool
	nextToEmit  uint32
	waitSince   time.Time // when we started waiting on nextToEmit
	haveHighest bool
	highestSeen uint32 // highest block_number ever admitted, bounds how far we'll skip
	outQueue    []*packet.Packet

	now func() time.Time

	reconstructedTotal uint64
	lostTotal          uint64
}

// NewBlockReader builds a block reader for the given scheme. samplesPerPacket
// is the nominal stream-timestamp stride between consecutive source
// packets, used to re-derive the timestamp of a packet the decoder
// reconstructs (its own RTP header never arrived).
func NewBlockReader(upstream packet.Reader, scheme Scheme, k, m int, ageThreshold time.Duration, samplesPerPacket uint32, sourceID uint32) (*BlockReader, error) {
	decoder, err := NewDecoder(scheme)
	if err != nil {
		return nil, err
	}
	return &BlockReader{
		upstream:         upstream,
		scheme:           scheme,
		decoder:          decoder,
		k:                k,
		m:                m,
		ageThreshold:     ageThreshold,
		samplesPerPacket: samplesPerPacket,
		sourceID:         sourceID,
		blocks:           make(map[uint32]*blockState),
		now:              time.Now,
	}, nil
}

func (r *BlockReader) Read() (*packet.Packet, bool) {
	for {
		p, ok := r.upstream.Read()
		if !ok {
			break
		}
		r.admit(p)
	}

	for len(r.outQueue) == 0 {
		if !r.advance() {
			return nil, false
		}
	}

	p := r.outQueue[0]
	r.outQueue = r.outQueue[1:]
	return p, true
}

func (r *BlockReader) admit(p *packet.Packet) {
	if p.FEC == nil {
		return
	}
	bn := p.FEC.BlockNumber
	if !r.haveHighest || bn > r.highestSeen {
		r.haveHighest = true
		r.highestSeen = bn
	}
	if r.haveNext && bn < r.nextToEmit {
		return // block already closed or skipped past; nothing left to do with it
	}
	bs, ok := r.blocks[bn]
	if !ok {
		bs = &blockState{
			shards:        make([][]byte, r.k+r.m),
			sourceHeaders: make([]*packet.Packet, r.k),
			firstSeen:     r.now(),
		}
		r.blocks[bn] = bs
		if !r.haveNext {
			r.haveNext = true
			r.nextToEmit = bn
			r.waitSince = r.now()
		}
	}

	idx := int(p.FEC.EncodingSymbolID)
	if p.Flags.Has(packet.FlagRepair) {
		if idx >= 0 && idx < r.m {
			bs.shards[r.k+idx] = p.Payload
		}
		return
	}
	if idx >= 0 && idx < r.k {
		bs.shards[idx] = p.Payload
		bs.sourceHeaders[idx] = p
	}
}

// advance tries to close the eldest open block, appending whatever it can
// emit to outQueue. It returns false when there is nothing more it can do
// without new data from upstream.
func (r *BlockReader) advance() bool {
	if !r.haveNext {
		return false
	}
	bs, ok := r.blocks[r.nextToEmit]
	if !ok {
		// Nothing was ever admitted for the block we're waiting on. It can
		// only be timed out once a later block has actually shown up to
		// prove there's something to skip ahead to; otherwise we'd spin
		// forever advancing nextToEmit past blocks nobody has sent yet.
		if r.haveHighest && r.nextToEmit < r.highestSeen && r.now().Sub(r.waitSince) >= r.ageThreshold {
			r.lostTotal += uint64(r.k)
			r.nextToEmit++
			r.waitSince = r.now()
			return true
		}
		return false
	}

	present := 0
	for i := 0; i < r.k; i++ {
		if bs.shards[i] != nil {
			present++
		}
	}

	complete := present == r.k
	aged := r.now().Sub(bs.firstSeen) >= r.ageThreshold

	if !complete && !aged {
		return false
	}

	if !complete && r.decoder != nil {
		recovered, err := r.decoder.Decode(r.k, r.m, bs.shards)
		if err != nil {
			_ = err // transient-block: surviving sources still emitted below
		}
		r.reconstructedTotal += uint64(len(recovered))
	}

	var ref *packet.Packet
	for i := 0; i < r.k; i++ {
		if bs.sourceHeaders[i] != nil {
			ref = bs.sourceHeaders[i]
			break
		}
	}

	for i := 0; i < r.k; i++ {
		if bs.sourceHeaders[i] != nil {
			r.outQueue = append(r.outQueue, bs.sourceHeaders[i])
			continue
		}
		if bs.shards[i] == nil {
			r.lostTotal++
			continue // permanent gap; depacketizer will fill silence
		}
		if ref == nil {
			r.lostTotal++
			continue // no header to reconstitute from, can't place it in the stream
		}
		baseSeq := ref.Seq - uint16(indexOf(bs.sourceHeaders, ref))
		baseTS := ref.Timestamp - uint32(indexOf(bs.sourceHeaders, ref))*r.samplesPerPacket
		r.outQueue = append(r.outQueue, &packet.Packet{
			SourceID:    r.sourceID,
			Seq:         baseSeq + uint16(i),
			Timestamp:   baseTS + uint32(i)*r.samplesPerPacket,
			PayloadType: ref.PayloadType,
			Flags:       packet.FlagAudio | packet.FlagFECSource,
			Payload:     bs.shards[i],
			CaptureTime: ref.CaptureTime,
			FEC:         &packet.FECMeta{BlockNumber: r.nextToEmit, EncodingSymbolID: uint16(i)},
		})
	}

	delete(r.blocks, r.nextToEmit)
	r.nextToEmit++
	r.waitSince = r.now()
	return true
}

func indexOf(headers []*packet.Packet, ref *packet.Packet) int {
	for i, h := range headers {
		if h == ref {
			return i
		}
	}
	return 0
}

// Stats exposes reconstruction counters for pkg/metrics.
type Stats struct {
	Reconstructed uint64
	Lost          uint64
}

func (r *BlockReader) Stats() Stats {
	return Stats{Reconstructed: r.reconstructedTotal, Lost: r.lostTotal}
}
