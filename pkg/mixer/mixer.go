// Package mixer sums the frame outputs of all live sessions onto a single
// playback frame (spec.md section 4.9).
package mixer

import (
	"sort"
	"time"

	"github.com/arzzra/audiopipe/pkg/frame"
)

// Mixer sums sample-wise across a set of frame.Readers, saturating to
// [-1.0, +1.0] on overflow.
type Mixer struct {
	sources     []frame.Reader
	sampleRate  uint32
	channelMask frame.ChannelMask
	scratch     frame.Frame
}

// New builds a mixer over sources, all of which must already produce
// frames at sampleRate/channelMask (the channel mapper upstream of the
// mixer is responsible for that).
func New(sources []frame.Reader, sampleRate uint32, channelMask frame.ChannelMask) *Mixer {
	return &Mixer{sources: sources, sampleRate: sampleRate, channelMask: channelMask}
}

// SetSources replaces the live session set, e.g. after a watchdog-dead
// session is torn down.
func (m *Mixer) SetSources(sources []frame.Reader) { m.sources = sources }

// Read implements frame.Reader: out must already be sized to the desired
// sample-frame count times the channel count.
func (m *Mixer) Read(out *frame.Frame) error {
	n := len(out.Samples)
	out.SampleRate = m.sampleRate
	out.ChannelMask = m.channelMask
	out.Flags = 0

	for i := range out.Samples {
		out.Samples[i] = 0
	}

	if len(m.sources) == 0 {
		out.Flags |= frame.FlagEmpty | frame.FlagSilent
		return nil
	}

	if cap(m.scratch.Samples) < n {
		m.scratch.Samples = make([]float32, n)
	}
	m.scratch.Samples = m.scratch.Samples[:n]

	var captureTimes []time.Time
	allEmpty := true
	anyDrops := false
	anyIncomplete := false

	for _, src := range m.sources {
		m.scratch.ChannelMask = m.channelMask
		m.scratch.SampleRate = m.sampleRate
		if err := src.Read(&m.scratch); err != nil {
			continue
		}
		if m.scratch.Flags.Has(frame.FlagEmpty) {
			continue
		}
		allEmpty = false
		if m.scratch.Flags.Has(frame.FlagDrops) {
			anyDrops = true
		}
		if m.scratch.Flags.Has(frame.FlagIncomplete) {
			anyIncomplete = true
		}
		if m.scratch.HasCaptureTime {
			captureTimes = append(captureTimes, m.scratch.CaptureTimestamp)
		}
		for i := 0; i < n && i < len(m.scratch.Samples); i++ {
			out.Samples[i] = saturate(out.Samples[i] + m.scratch.Samples[i])
		}
	}

	if allEmpty {
		out.Flags |= frame.FlagEmpty | frame.FlagSilent
		return nil
	}
	if anyDrops {
		out.Flags |= frame.FlagDrops
	}
	if anyIncomplete {
		out.Flags |= frame.FlagIncomplete
	}
	if len(captureTimes) > 0 {
		out.HasCaptureTime = true
		out.CaptureTimestamp = median(captureTimes)
	}
	return nil
}

func saturate(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}

func median(times []time.Time) time.Time {
	sorted := append([]time.Time(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return sorted[len(sorted)/2]
}
