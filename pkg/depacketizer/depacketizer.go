// Package depacketizer turns a packet.Reader into a frame.Reader (spec.md
// section 4.6): it owns the next-timestamp cursor, decodes linear PCM from
// packets whose timestamp matches the cursor, and fills gaps with silence
// or an audible beep.
package depacketizer

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/arzzra/audiopipe/pkg/frame"
	"github.com/arzzra/audiopipe/pkg/packet"
)

// Depacketizer decodes 16-bit linear PCM from packets into a continuous
// float32 frame stream.
type Depacketizer struct {
	upstream packet.Reader

	sampleRate   uint32
	channelMask  frame.ChannelMask
	numChannels  int
	beepMode     bool
	beepPhase    float64

	started     bool
	cursor      uint32
	cursorTime  time.Time
	hasCursorTime bool

	current      *packet.Packet
	offsetWithin int // sample offset within current packet's payload, per channel frame

	drops uint64
}

// New builds a depacketizer for the given output format. beepMode replaces
// gap silence with an audible tone (spec.md section 4.6).
func New(upstream packet.Reader, sampleRate uint32, channelMask frame.ChannelMask, beepMode bool) *Depacketizer {
	return &Depacketizer{
		upstream:    upstream,
		sampleRate:  sampleRate,
		channelMask: channelMask,
		numChannels: channelMask.NumChannels(),
		beepMode:    beepMode,
	}
}

func (d *Depacketizer) Started() bool { return d.started }

// Read implements frame.Reader. f must already carry the desired per-channel
// sample count in f.Samples' length (spec.md section 4.6).
func (d *Depacketizer) Read(f *frame.Frame) error {
	n := 0
	if d.numChannels > 0 {
		n = len(f.Samples) / d.numChannels
	}
	f.SampleRate = d.sampleRate
	f.ChannelMask = d.channelMask
	f.Flags = 0

	if n == 0 {
		return nil
	}
	dropsBefore := d.drops
	if cap(f.Samples) < n*d.numChannels {
		f.Samples = make([]float32, n*d.numChannels)
	} else {
		f.Samples = f.Samples[:n*d.numChannels]
	}

	if !d.started && d.current == nil {
		d.fetch()
		if d.current == nil {
			d.fillSilence(f.Samples, n)
			f.Flags |= frame.FlagEmpty | frame.FlagSilent
			return nil
		}
	}

	gapped := false
	for i := 0; i < n; i++ {
		if !d.ensureCurrentFor(d.cursor) {
			d.fillOneSilence(f.Samples, i)
			d.cursor++
			gapped = true
			continue
		}
		d.decodeOneSample(f.Samples, i)
		d.cursor++
		d.offsetWithin++
		if d.offsetWithin*d.numChannels*2 >= len(d.current.Payload) {
			d.current = nil
		}
	}

	f.HasCaptureTime = d.hasCursorTime
	if d.hasCursorTime {
		f.CaptureTimestamp = d.cursorTime
	}
	if gapped {
		f.Flags |= frame.FlagIncomplete
	}
	if d.drops > dropsBefore {
		f.Flags |= frame.FlagDrops
	}
	return nil
}

// ensureCurrentFor makes sure d.current holds a packet covering stream
// timestamp ts, discarding stale packets and advancing the cursor across
// permanent gaps. It returns false if no packet is available for ts right
// now (gap, fill with silence).
func (d *Depacketizer) ensureCurrentFor(ts uint32) bool {
	for {
		if d.current != nil {
			pos := d.current.Timestamp + uint32(d.offsetWithin)
			if pos == ts {
				return true
			}
			if packet.TSLess(pos, ts) {
				// stale: this packet's start is behind the cursor.
				d.current = nil
				d.drops++
				continue
			}
			// current packet starts after ts: gap, wait for cursor to catch
			// up to it rather than discarding.
			return false
		}
		d.fetch()
		if d.current == nil {
			return false
		}
	}
}

func (d *Depacketizer) fetch() {
	for {
		p, ok := d.upstream.Read()
		if !ok {
			return
		}
		if d.started && packet.TSLess(p.Timestamp, d.cursor) {
			d.drops++
			continue
		}
		d.current = p
		d.offsetWithin = 0
		if !d.started {
			d.started = true
			d.cursor = p.Timestamp
		}
		d.cursorTime = p.CaptureTime
		d.hasCursorTime = true
		return
	}
}

func (d *Depacketizer) decodeOneSample(samples []float32, i int) {
	base := d.offsetWithin * d.numChannels * 2
	for ch := 0; ch < d.numChannels; ch++ {
		off := base + ch*2
		var v int16
		if off+2 <= len(d.current.Payload) {
			v = int16(binary.LittleEndian.Uint16(d.current.Payload[off : off+2]))
		}
		samples[i*d.numChannels+ch] = float32(v) / 32768.0
	}
}

func (d *Depacketizer) fillOneSilence(samples []float32, i int) {
	for ch := 0; ch < d.numChannels; ch++ {
		if d.beepMode {
			samples[i*d.numChannels+ch] = d.nextBeepSample()
		} else {
			samples[i*d.numChannels+ch] = 0
		}
	}
}

func (d *Depacketizer) fillSilence(samples []float32, n int) {
	for i := 0; i < n; i++ {
		d.fillOneSilence(samples, i)
	}
}

const beepFrequencyHz = 440.0

func (d *Depacketizer) nextBeepSample() float32 {
	const twoPi = 6.283185307179586
	v := float32(0.1 * math.Sin(twoPi*beepFrequencyHz*d.beepPhase))
	d.beepPhase += 1.0 / float64(d.sampleRate)
	return v
}

// Drops exposes the stale-packet drop counter for pkg/metrics.
func (d *Depacketizer) Drops() uint64 { return d.drops }
