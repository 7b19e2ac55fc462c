package reader

import (
	"context"

	"github.com/arzzra/audiopipe/pkg/errs"
	"github.com/arzzra/audiopipe/pkg/logging"
	"github.com/arzzra/audiopipe/pkg/packet"
)

// Watchdog monitors a packet reader for stream death and pathological
// jumps (spec.md section 4.5). Update must be called once per pipeline
// tick independent of Read; Read observes packets and feeds the jump
// detector, Update drives the liveness countdown.
type Watchdog struct {
	upstream packet.Reader
	sourceID uint32
	logger   logging.Logger

	ticksMax       int
	ticksRemaining int
	observedSince  bool
	dead           bool
	deadErr        error

	maxSeqJump int
	maxTSJump  int64
	last       *packet.Packet

	onDead func(err error)
}

// NewWatchdog creates a watchdog with a T-tick liveness timeout and
// sequence/timestamp jump bounds.
func NewWatchdog(upstream packet.Reader, sourceID uint32, ticks, maxSeqJump int, maxTSJump int64, logger logging.Logger, onDead func(error)) *Watchdog {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &Watchdog{
		upstream:       upstream,
		sourceID:       sourceID,
		logger:         logger,
		ticksMax:       ticks,
		ticksRemaining: ticks,
		maxSeqJump:     maxSeqJump,
		maxTSJump:      maxTSJump,
		onDead:         onDead,
	}
}

// Read implements packet.Reader. Once dead, it sticks at (nil, false).
func (w *Watchdog) Read() (*packet.Packet, bool) {
	if w.dead {
		return nil, false
	}

	p, ok := w.upstream.Read()
	if !ok {
		return nil, false
	}

	if w.last != nil {
		sdist := int64(packet.SeqDistance(p.Seq, w.last.Seq))
		if sdist < 0 {
			sdist = -sdist
		}
		tdist := int64(packet.TSDistance(p.Timestamp, w.last.Timestamp))
		if tdist < 0 {
			tdist = -tdist
		}
		if w.maxSeqJump > 0 && sdist > int64(w.maxSeqJump) {
			w.kill(errs.JumpDetected(w.sourceID, "sequence", sdist))
			return nil, false
		}
		if w.maxTSJump > 0 && tdist > w.maxTSJump {
			w.kill(errs.JumpDetected(w.sourceID, "timestamp", tdist))
			return nil, false
		}
	}

	w.last = p
	w.observedSince = true
	return p, true
}

// Update advances the liveness countdown. Call once per pipeline tick.
func (w *Watchdog) Update(ctx context.Context) {
	if w.dead {
		return
	}
	if w.observedSince {
		w.ticksRemaining = w.ticksMax
		w.observedSince = false
		return
	}
	w.ticksRemaining--
	if w.ticksRemaining <= 0 {
		w.kill(errs.WatchdogExpired(w.sourceID))
	}
}

// Kill marks the session dead from outside the jump/timeout checks, e.g.
// when the latency monitor signals catastrophic drift (spec.md section
// 4.7's "Saturation" clause).
func (w *Watchdog) Kill(err error) { w.kill(err) }

func (w *Watchdog) kill(err error) {
	if w.dead {
		return
	}
	w.dead = true
	w.deadErr = err
	w.logger.LogError(context.Background(), err, "session marked dead")
	if w.onDead != nil {
		w.onDead(err)
	}
}

func (w *Watchdog) Dead() bool      { return w.dead }
func (w *Watchdog) DeadErr() error  { return w.deadErr }
