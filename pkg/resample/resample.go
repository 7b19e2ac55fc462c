// Package resample implements the latency monitor and polyphase resampler
// (spec.md section 4.7): a closed control loop that nudges the resampling
// ratio to keep measured capture-to-playback latency at a target setpoint,
// and a windowed-sinc resampler that applies that ratio.
package resample

import (
	"math"
	"time"
)

// Profile selects the resampler's window length / quality tradeoff.
type Profile int

const (
	ProfileLow Profile = iota
	ProfileMedium
	ProfileHigh
)

func (p Profile) windowHalfWidth() int {
	switch p {
	case ProfileLow:
		return 8
	case ProfileHigh:
		return 32
	default:
		return 16
	}
}

// Thresholds are the control loop's exposed configuration (spec.md
// section 4.7).
type Thresholds struct {
	TargetLatency time.Duration
	MinLatency    time.Duration
	MaxLatency    time.Duration
	MaxTolerance  time.Duration
	// HoldInterval is how long |e| must exceed MaxTolerance continuously
	// before Monitor reports catastrophic drift.
	HoldInterval time.Duration
	// SigmaMax bounds the controller's scale factor to [1-SigmaMax, 1+SigmaMax].
	SigmaMax float64
}

// DefaultThresholds mirrors spec.md section 4.7's stated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TargetLatency: 100 * time.Millisecond,
		MinLatency:    20 * time.Millisecond,
		MaxLatency:    500 * time.Millisecond,
		MaxTolerance:  200 * time.Millisecond,
		HoldInterval:  2 * time.Second,
		SigmaMax:      0.005,
	}
}

// Monitor is the first-order low-pass latency controller. It is fed one
// latency sample per frame and produces sigma, the bounded scale factor
// applied on top of the nominal rate ratio.
type Monitor struct {
	thresholds Thresholds
	alpha      float64 // low-pass filter coefficient, (0,1]
	filtered   float64 // filtered error, seconds
	primed     bool

	overSince time.Time
	drifting  bool
	now       func() time.Time
}

// NewMonitor builds a latency monitor. alpha is the low-pass filter's
// smoothing coefficient (closer to 0 is smoother, slower to react); 0.1 is
// a reasonable default for frame-rate sampling.
func NewMonitor(thresholds Thresholds, alpha float64) *Monitor {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.1
	}
	return &Monitor{thresholds: thresholds, alpha: alpha, now: time.Now}
}

// Observe takes the latency measured for the frame just produced
// (now_playback_clock - frame.capture_timestamp) and returns the updated
// scale factor sigma along with whether catastrophic drift has now been
// declared (spec.md section 4.7's "Saturation" clause — the caller signals
// the watchdog when this flips true).
func (m *Monitor) Observe(latency time.Duration) (sigma float64, catastrophic bool) {
	e := (latency - m.thresholds.TargetLatency).Seconds()

	if !m.primed {
		m.filtered = e
		m.primed = true
	} else {
		m.filtered += m.alpha * (e - m.filtered)
	}

	sigma = clamp(1.0+m.filtered, 1.0-m.thresholds.SigmaMax, 1.0+m.thresholds.SigmaMax)

	over := math.Abs(m.filtered) > m.thresholds.MaxTolerance.Seconds()
	now := m.now()
	if over {
		if m.overSince.IsZero() {
			m.overSince = now
		}
		if now.Sub(m.overSince) >= m.thresholds.HoldInterval {
			m.drifting = true
		}
	} else {
		m.overSince = time.Time{}
	}

	return sigma, m.drifting
}

// Error returns the current filtered latency error in seconds, for metrics.
func (m *Monitor) Error() float64 { return m.filtered }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Resampler performs arbitrary-ratio polyphase windowed-sinc resampling of
// an interleaved float32 sample stream (spec.md section 4.7). It keeps a
// small history tail across calls so ratio changes and call boundaries
// don't introduce clicks.
type Resampler struct {
	numChannels int
	halfWidth   int
	history     [][]float32 // per channel, most recent samples, oldest first
	phase       float64     // fractional input position within history tail
}

// New builds a resampler for numChannels interleaved channels at the given
// quality profile.
func New(numChannels int, profile Profile) *Resampler {
	hw := profile.windowHalfWidth()
	history := make([][]float32, numChannels)
	for ch := range history {
		history[ch] = make([]float32, 2*hw)
	}
	return &Resampler{numChannels: numChannels, halfWidth: hw, history: history}
}

// Process resamples in (interleaved, numChannels per frame) at ratio,
// writing up to len(out)/numChannels output frames and returning how many
// output frames it actually produced. ratio is r×sigma from spec.md
// section 4.7, with ratio = outputRate/inputRate: each output frame
// advances 1/ratio input frames, so ratio > 1 upsamples and ratio < 1
// downsamples.
func (r *Resampler) Process(in []float32, ratio float64, out []float32) int {
	if ratio <= 0 {
		ratio = 1
	}
	nCh := r.numChannels
	inFrames := len(in) / nCh
	outCap := len(out) / nCh

	extended := make([][]float32, nCh)
	for ch := 0; ch < nCh; ch++ {
		extended[ch] = append(append([]float32{}, r.history[ch]...), deinterleave(in, ch, nCh, inFrames)...)
	}
	histLen := len(r.history[0])
	step := 1.0 / ratio

	produced := 0
	pos := r.phase
	for produced < outCap {
		srcIdx := histLen + int(pos)
		if srcIdx+r.halfWidth >= len(extended[0]) {
			break
		}
		frac := pos - math.Floor(pos)
		for ch := 0; ch < nCh; ch++ {
			out[produced*nCh+ch] = sincInterpolate(extended[ch], srcIdx, frac, r.halfWidth)
		}
		produced++
		pos += step
	}

	consumedInputFrames := int(pos)
	r.phase = pos - float64(consumedInputFrames)

	for ch := 0; ch < nCh; ch++ {
		tailStart := histLen + consumedInputFrames - len(r.history[ch])
		if tailStart < 0 {
			tailStart = 0
		}
		end := histLen + consumedInputFrames
		if end > len(extended[ch]) {
			end = len(extended[ch])
		}
		copy(r.history[ch], extended[ch][tailStart:end])
	}

	return produced
}

func deinterleave(in []float32, ch, numChannels, frames int) []float32 {
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		out[i] = in[i*numChannels+ch]
	}
	return out
}

// sincInterpolate evaluates a windowed-sinc reconstruction of samples at
// fractional position (idx+frac), using a Hann-windowed sinc kernel over
// (idx-halfWidth, idx+halfWidth].
func sincInterpolate(samples []float32, idx int, frac float64, halfWidth int) float32 {
	var sum float64
	for k := -halfWidth + 1; k <= halfWidth; k++ {
		x := float64(k) - frac
		w := sincKernel(x) * hannWindow(x, halfWidth)
		i := idx + k
		if i < 0 || i >= len(samples) {
			continue
		}
		sum += float64(samples[i]) * w
	}
	return float32(sum)
}

func sincKernel(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func hannWindow(x float64, halfWidth int) float64 {
	n := float64(halfWidth)
	if x < -n || x > n {
		return 0
	}
	return 0.5 * (1 + math.Cos(math.Pi*x/n))
}
