// Package frame implements the PCM frame value type and the frame-reader
// abstraction used by every layer from the depacketizer upward (spec.md
// section 2 and section 3).
package frame

import "time"

// ChannelMask identifies which channels a Frame carries, matching the
// small closed set spec.md section 4.8 (channel mapper) operates over.
type ChannelMask uint32

const (
	ChannelMono   ChannelMask = 1 << 0
	ChannelLeft   ChannelMask = 1 << 1
	ChannelRight  ChannelMask = 1 << 2
	ChannelStereo             = ChannelLeft | ChannelRight
)

// NumChannels returns how many channels ChannelMask addresses.
func (m ChannelMask) NumChannels() int {
	n := 0
	for m != 0 {
		n += int(m & 1)
		m >>= 1
	}
	return n
}

// Flags on a Frame, per spec.md section 3.
type Flags uint8

const (
	// FlagEmpty means no source packet contributed any sample in this
	// frame; all samples are silence.
	FlagEmpty Flags = 1 << iota
	// FlagIncomplete means some samples in the frame are interpolated
	// silence (a gap was filled).
	FlagIncomplete
	// FlagDrops means at least one packet was discarded while building
	// this frame (stale packet, duplicate, reorder-window overflow).
	FlagDrops
	// FlagSilent is informational: the frame is entirely silence by
	// construction, not necessarily due to loss (e.g. comfort noise).
	FlagSilent
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Frame is a contiguous PCM sample buffer, created by the caller and
// mutated by exactly one call to Read (spec.md section 3). Samples are
// interleaved float32 in [-1.0, 1.0], one slot per channel per sample,
// matching the mixer's saturating-sum domain (spec.md section 4.9).
type Frame struct {
	Samples           []float32
	SampleRate        uint32
	ChannelMask       ChannelMask
	Flags             Flags
	CaptureTimestamp  time.Time
	HasCaptureTime    bool
}

// NumSamples returns the number of per-channel sample frames this buffer
// holds (len(Samples) / channel count).
func (f *Frame) NumSamples() int {
	ch := f.ChannelMask.NumChannels()
	if ch == 0 {
		return 0
	}
	return len(f.Samples) / ch
}

// Reader fills a Frame with the next N samples of PCM. Implementations
// must never block the pipeline thread (spec.md section 5): if no data is
// available, fill with silence and set FlagEmpty rather than waiting.
type Reader interface {
	Read(f *Frame) error
}

// Sink is the device side of the pipeline (spec.md section 6's
// sink/source contract): write(frame) and latency(). The pipeline thread
// calls Write once per tick with a frame already filled by the mixer.
type Sink interface {
	Write(f *Frame) error
	Latency() time.Duration
}
