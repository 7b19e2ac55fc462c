// Package config holds the validated in-process configuration the
// receiver core is constructed from (spec.md section 6). Parsing config
// *sources* (files, flags, environment) is the out-of-scope CLI/config
// layer from spec.md section 1; this package is the typed object that
// layer hands to pkg/session.
package config

import (
	"time"

	"github.com/arzzra/audiopipe/pkg/errs"
	"github.com/arzzra/audiopipe/pkg/frame"
)

// FECEncoding selects the FEC scheme a session expects, matching the
// `fec_encoding` option in spec.md section 6.
type FECEncoding string

const (
	FECNone FECEncoding = "none"
	FECRS8M FECEncoding = "rs8m"
	FECLDPC FECEncoding = "ldpc"
)

// ResamplerProfile selects window length for the polyphase sinc resampler
// (spec.md section 4.7): low/medium/high trade CPU for passband width.
type ResamplerProfile string

const (
	ProfileLow    ResamplerProfile = "low"
	ProfileMedium ResamplerProfile = "medium"
	ProfileHigh   ResamplerProfile = "high"
)

// ResamplerBackend is an enum of one today, kept as a type to mirror
// spec.md section 6's option table and leave room for a future backend
// without breaking the config shape.
type ResamplerBackend string

const BackendBuiltin ResamplerBackend = "builtin"

// Receiver is every tunable the receiver core recognizes (spec.md section
// 6's option table), with validated defaults applied by Default().
type Receiver struct {
	// Latency control loop (spec.md section 4.7).
	TargetLatency time.Duration
	MinLatency    time.Duration
	MaxLatency    time.Duration
	MaxTolerance  time.Duration

	// Watchdog (spec.md section 4.5).
	NoPlayTimeout        time.Duration
	BrokenPlaybackTimeout time.Duration
	MaxSeqJump           int
	MaxTSJump            int64

	// FEC (spec.md section 4.4).
	FECEncoding FECEncoding
	BlockSourceSymbols int // K
	BlockRepairSymbols int // M

	// Resampler (spec.md section 4.7).
	ResamplerBackend ResamplerBackend
	ResamplerProfile ResamplerProfile

	// Packetization / buffering (spec.md section 6).
	PacketLength       time.Duration
	InternalFrameLength time.Duration
	ReorderWindow      int // W, in packets

	// Output format.
	SampleRate  uint32
	ChannelMask frame.ChannelMask

	BeepOnGap bool // spec.md section 4.6, "beep_mode"
}

// Default returns the receiver config with spec.md's "typically" values
// filled in, matching the defaulting pattern of the teacher's
// DefaultSessionManagerConfig.
func Default() Receiver {
	return Receiver{
		TargetLatency:         200 * time.Millisecond,
		MinLatency:            40 * time.Millisecond,
		MaxLatency:            800 * time.Millisecond,
		MaxTolerance:          400 * time.Millisecond,
		NoPlayTimeout:         2 * time.Second,
		BrokenPlaybackTimeout: 30 * time.Second,
		MaxSeqJump:            1 << 14,
		MaxTSJump:             1 << 28,
		FECEncoding:           FECNone,
		BlockSourceSymbols:    10,
		BlockRepairSymbols:    5,
		ResamplerBackend:      BackendBuiltin,
		ResamplerProfile:      ProfileMedium,
		PacketLength:          20 * time.Millisecond,
		InternalFrameLength:   10 * time.Millisecond,
		ReorderWindow:         100,
		SampleRate:            44100,
		ChannelMask:           frame.ChannelStereo,
	}
}

// Validate checks the invariants the pipeline glue relies on when
// assembling a session's chain (spec.md section 9: "the chain is assembled
// once"); failures here are ProcessFatal per spec.md section 7.
func (r Receiver) Validate() error {
	if r.SampleRate == 0 {
		return errs.InvalidConfig("sample_rate must be non-zero")
	}
	if r.ChannelMask.NumChannels() == 0 {
		return errs.InvalidConfig("channel_mask selects no channels")
	}
	if r.MinLatency > r.TargetLatency || r.TargetLatency > r.MaxLatency {
		return errs.InvalidConfig("latency bounds must satisfy min <= target <= max")
	}
	if r.ReorderWindow <= 0 {
		return errs.InvalidConfig("reorder window must be positive")
	}
	switch r.FECEncoding {
	case FECNone, FECRS8M, FECLDPC:
	default:
		return errs.InvalidConfig("unknown fec_encoding " + string(r.FECEncoding))
	}
	if r.FECEncoding != FECNone {
		if r.BlockSourceSymbols <= 0 || r.BlockRepairSymbols <= 0 {
			return errs.InvalidConfig("FEC block sizes must be positive when FEC is enabled")
		}
	}
	return nil
}
