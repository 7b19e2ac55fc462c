package reader

import (
	"time"

	"github.com/arzzra/audiopipe/pkg/packet"
)

// Delayed holds packets until capture_time + target_delay reaches the
// current wall clock, establishing the baseline playout delay (spec.md
// section 4.3). It only ever buffers the single head packet in arrival
// order; sequence reordering happens downstream in Sorted.
type Delayed struct {
	upstream    packet.Reader
	targetDelay time.Duration

	held    *packet.Packet
	hasHeld bool

	now func() time.Time
}

// NewDelayed wraps upstream, releasing packets once targetDelay has
// elapsed since their capture time.
func NewDelayed(upstream packet.Reader, targetDelay time.Duration) *Delayed {
	return &Delayed{upstream: upstream, targetDelay: targetDelay, now: time.Now}
}

// SetTargetDelay updates the playout delay; the resampler's latency
// monitor (spec.md section 4.7) is the usual caller.
func (d *Delayed) SetTargetDelay(delay time.Duration) { d.targetDelay = delay }

func (d *Delayed) Read() (*packet.Packet, bool) {
	if !d.hasHeld {
		p, ok := d.upstream.Read()
		if !ok {
			return nil, false
		}
		d.held = p
		d.hasHeld = true
	}

	if d.now().Before(d.held.CaptureTime.Add(d.targetDelay)) {
		return nil, false
	}

	p := d.held
	d.hasHeld = false
	d.held = nil
	return p, true
}
