// Package session assembles the per-source_id receiver chain (spec.md
// section 2) once at construction and drives its lifecycle (spec.md
// section 3 and section 9's "manual placement-new" note — here satisfied
// by heap-allocating each layer once and keeping it for the session's
// lifetime, not by re-assembling per tick).
package session

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/arzzra/audiopipe/pkg/config"
	"github.com/arzzra/audiopipe/pkg/depacketizer"
	"github.com/arzzra/audiopipe/pkg/errs"
	"github.com/arzzra/audiopipe/pkg/fec"
	"github.com/arzzra/audiopipe/pkg/frame"
	"github.com/arzzra/audiopipe/pkg/logging"
	"github.com/arzzra/audiopipe/pkg/metrics"
	"github.com/arzzra/audiopipe/pkg/packet"
	"github.com/arzzra/audiopipe/pkg/reader"
	"github.com/arzzra/audiopipe/pkg/resample"
	"github.com/arzzra/audiopipe/pkg/slab"
)

// Session is per-source state: the assembled chain, the lifecycle FSM,
// and the fields spec.md section 3 names (last-observed timestamp,
// measured latency, liveness).
type Session struct {
	SourceID uint32

	// ID is a process-unique registry key, independent of SourceID: a
	// peer can reuse a 32-bit source_id across reconnects, but log lines
	// and metrics from two such sessions must not be attributed to one
	// another. Generated the way the teacher mints its Call-IDs
	// (pkg/dialog/enhanced_dialog_three_fsm.go's uuid.New().String()).
	ID string

	cfg config.Receiver
	fsm *fsm.FSM

	watchdog    *reader.Watchdog
	output      *pipelineReader
	fecStats    func() fec.Stats // nil when FEC is disabled for this session
	depackDrops func() uint64

	metrics     *metrics.Registry
	sourceLabel string
	schemeLabel string

	prevFEC      fec.Stats
	prevDepacket uint64

	deadErr atomic.Value // error
}

// New assembles the full chain once: [FEC reader] -> [delayed reader] ->
// [sorted reader] -> [watchdog] -> depacketizer -> latency monitor /
// resampler -> channel mapper (spec.md section 2's diagram), reading raw
// packets from input. buffers is the owning peer's shared BufferSlab,
// threaded in rather than held as package state (spec.md section 9). reg
// may be nil to skip metrics entirely.
func New(sourceID uint32, input packet.Reader, cfg config.Receiver, logger logging.Logger, buffers *slab.BufferSlab, reg *metrics.Registry) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chain := input

	s := &Session{
		SourceID:    sourceID,
		ID:          uuid.New().String(),
		cfg:         cfg,
		fsm:         newLifecycle(),
		metrics:     reg,
		sourceLabel: fmt.Sprintf("%d", sourceID),
		schemeLabel: "none",
	}

	if cfg.FECEncoding != config.FECNone {
		scheme := fec.SchemeReedSolomon8M
		s.schemeLabel = "rs8m"
		if cfg.FECEncoding == config.FECLDPC {
			scheme = fec.SchemeLDPCStaircase
			s.schemeLabel = "ldpc"
		}
		samplesPerPacket := uint32(cfg.PacketLength.Seconds() * float64(cfg.SampleRate))
		br, err := fec.NewBlockReader(chain, scheme, cfg.BlockSourceSymbols, cfg.BlockRepairSymbols, 2*cfg.PacketLength, samplesPerPacket, sourceID)
		if err != nil {
			return nil, err
		}
		chain = br
		s.fecStats = br.Stats
	}

	delayed := reader.NewDelayed(chain, cfg.TargetLatency)
	sorted := reader.NewSorted(delayed, cfg.ReorderWindow)

	if logger == nil {
		logger = logging.NoOp{}
	}
	logger = logger.WithFields(logging.String("session_id", s.ID), logging.Uint32("source_id", sourceID))

	watchdogTicks := int(cfg.NoPlayTimeout / cfg.InternalFrameLength)
	if watchdogTicks <= 0 {
		watchdogTicks = 1
	}
	s.watchdog = reader.NewWatchdog(sorted, sourceID, watchdogTicks, cfg.MaxSeqJump, cfg.MaxTSJump, logger, func(err error) {
		s.deadErr.Store(err)
		if s.metrics != nil {
			cause := "unknown"
			if ae, ok := err.(*errs.Error); ok {
				cause = string(ae.Code)
			}
			s.metrics.WatchdogTrips.WithLabelValues(s.sourceLabel, cause).Inc()
		}
		wasActive := s.fsm.Current() == StateActive
		_ = s.fsm.Event(context.Background(), "kill")
		if wasActive && s.metrics != nil {
			s.metrics.SessionsActive.Dec()
		}
	})

	depack := depacketizer.New(s.watchdog, cfg.SampleRate, cfg.ChannelMask, cfg.BeepOnGap)
	s.depackDrops = depack.Drops

	profile := resample.ProfileMedium
	switch cfg.ResamplerProfile {
	case config.ProfileLow:
		profile = resample.ProfileLow
	case config.ProfileHigh:
		profile = resample.ProfileHigh
	}
	thresholds := resample.Thresholds{
		TargetLatency: cfg.TargetLatency,
		MinLatency:    cfg.MinLatency,
		MaxLatency:    cfg.MaxLatency,
		MaxTolerance:  cfg.MaxTolerance,
		HoldInterval:  cfg.BrokenPlaybackTimeout,
		SigmaMax:      0.005,
	}
	internalFrameSamples := int(cfg.InternalFrameLength.Seconds() * float64(cfg.SampleRate))
	s.output = newPipelineReader(depack, s.watchdog, buffers, reg, s.sourceLabel, thresholds, profile, cfg.SampleRate, cfg.SampleRate, cfg.ChannelMask, cfg.ChannelMask, internalFrameSamples)

	return s, nil
}

// Activate transitions idle -> active on the session's first observed
// packet. Safe to call repeatedly; no-ops once active or dead.
func (s *Session) Activate() {
	if s.fsm.Current() == StateIdle {
		_ = s.fsm.Event(context.Background(), "first_packet")
		if s.metrics != nil {
			s.metrics.SessionsActive.Inc()
		}
	}
}

// Read pulls one frame of output PCM through the full chain.
func (s *Session) Read(out *frame.Frame) error {
	return s.output.Read(out)
}

// AsFrameReader adapts the session for the mixer's input set.
func (s *Session) AsFrameReader() frame.Reader { return s.output }

func (s *Session) State() string { return s.fsm.Current() }

func (s *Session) Dead() bool { return s.watchdog.Dead() }

// DeadErr returns why the session died, or nil if still live.
func (s *Session) DeadErr() error {
	if v := s.deadErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Tick drives the watchdog's liveness countdown; call once per pipeline
// tick (spec.md section 4.5). The watchdog's onDead callback (registered
// in New) drives the idle/active -> dead transition and metrics, so this
// only needs to advance the countdown and poll the cumulative counters
// the FEC block reader and depacketizer keep internally.
func (s *Session) Tick() {
	s.watchdog.Update(context.Background())
	s.pollCounters()
}

// pollCounters diffs the FEC and depacketizer's monotonic lifetime
// counters against the last-seen snapshot and adds the delta to the
// shared registry's CounterVecs, which must themselves stay monotonic.
func (s *Session) pollCounters() {
	if s.metrics == nil {
		return
	}
	if s.fecStats != nil {
		cur := s.fecStats()
		if d := cur.Reconstructed - s.prevFEC.Reconstructed; d > 0 {
			s.metrics.FECReconstructed.WithLabelValues(s.sourceLabel, s.schemeLabel).Add(float64(d))
		}
		if d := cur.Lost - s.prevFEC.Lost; d > 0 {
			s.metrics.FECLost.WithLabelValues(s.sourceLabel, s.schemeLabel).Add(float64(d))
		}
		s.prevFEC = cur
	}
	if s.depackDrops != nil {
		cur := s.depackDrops()
		if d := cur - s.prevDepacket; d > 0 {
			s.metrics.DepacketizerDrops.WithLabelValues(s.sourceLabel).Add(float64(d))
		}
		s.prevDepacket = cur
	}
}
