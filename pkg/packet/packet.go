// Package packet implements the wire packet value type shared by every
// layer of the receiver pipeline (spec.md section 3: DATA MODEL) together
// with its RTP/FEC-Framework codec (spec.md section 4.1 and section 6).
package packet

import "time"

// Flags is a bitmask subset of {Audio, Repair, FECSource, FECRepair}.
type Flags uint8

const (
	FlagAudio     Flags = 1 << iota // carries decodable PCM payload
	FlagRepair                      // FEC repair symbol, not audio itself
	FlagFECSource                   // audio packet that also belongs to an FEC block
	FlagFECRepair                   // separate bit from FlagRepair; Parse never sets it
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// FECMeta is present on packets that belong to an FEC block: every
// FlagFECSource packet and every FlagRepair packet (spec.md section 3).
type FECMeta struct {
	BlockNumber      uint32
	SourceBlockSize  uint16
	RepairBlockSize  uint16
	EncodingSymbolID uint16
}

// Packet is the immutable value every layer passes along. Seq and
// Timestamp use wraparound-safe signed-distance comparisons defined below;
// nothing downstream may compare them with plain <, > on the raw integers.
type Packet struct {
	SourceID    uint32
	Seq         uint16
	Timestamp   uint32
	Marker      bool
	PayloadType uint8
	Flags       Flags
	Payload     []byte
	CaptureTime time.Time

	FEC *FECMeta // nil unless Flags has FECSource or Repair
}

// SeqLess reports whether a precedes b in a cyclic 16-bit sequence space:
// a < b iff the signed 16-bit distance (a-b) is negative.
func SeqLess(a, b uint16) bool {
	return int16(a-b) < 0
}

// SeqDistance returns the signed distance a-b in the cyclic 16-bit space,
// i.e. how many packets ahead of b the packet a is.
func SeqDistance(a, b uint16) int16 {
	return int16(a - b)
}

// TSLess reports whether a precedes b in a cyclic 32-bit timestamp space,
// using the same signed-distance rule as SeqLess.
func TSLess(a, b uint32) bool {
	return int32(a-b) < 0
}

// TSDistance returns the signed distance a-b in the cyclic 32-bit space.
func TSDistance(a, b uint32) int32 {
	return int32(a - b)
}

// Reader pulls the next packet in a stream. Every intermediate layer in
// the receiver chain (spec.md section 2) implements this interface:
// FEC reader, delayed reader, sorted reader, watchdog.
//
// Read returns (nil, false) when no packet is currently available — the
// caller must not block the pipeline thread (spec.md section 5) waiting
// for one.
type Reader interface {
	Read() (*Packet, bool)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func() (*Packet, bool)

func (f ReaderFunc) Read() (*Packet, bool) { return f() }
