package resample

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonitor_SettlesTowardZeroError(t *testing.T) {
	th := DefaultThresholds()
	m := NewMonitor(th, 0.2)

	var sigma float64
	for i := 0; i < 200; i++ {
		sigma, _ = m.Observe(th.TargetLatency)
	}
	assert.InDelta(t, 1.0, sigma, 0.01)
}

func TestMonitor_SigmaStaysBounded(t *testing.T) {
	th := DefaultThresholds()
	th.SigmaMax = 0.005
	m := NewMonitor(th, 0.5)

	sigma, _ := m.Observe(th.TargetLatency + 10*time.Second)
	assert.GreaterOrEqual(t, sigma, 1-th.SigmaMax)
	assert.LessOrEqual(t, sigma, 1+th.SigmaMax)
}

func TestMonitor_CatastrophicDriftAfterHold(t *testing.T) {
	th := DefaultThresholds()
	th.HoldInterval = 0 // trip immediately once over tolerance
	m := NewMonitor(th, 1.0)

	_, catastrophic := m.Observe(th.TargetLatency + th.MaxTolerance + time.Second)
	assert.True(t, catastrophic)
}

func TestResampler_OutputLengthTracksRatio(t *testing.T) {
	const ratio = 44100.0 / 48000.0
	r := New(1, ProfileMedium)

	in := make([]float32, 4800)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 48000))
	}

	out := make([]float32, 4800)
	produced := r.Process(in, ratio, out)

	want := int(float64(len(in)) * ratio)
	assert.InDelta(t, want, produced, 100) // first call pays the window's startup tail
}

func TestResampler_IdentityRatioPreservesLength(t *testing.T) {
	r := New(2, ProfileLow)
	in := make([]float32, 2*256)
	out := make([]float32, 2*256)
	produced := r.Process(in, 1.0, out)
	assert.InDelta(t, 256, produced, 20)
}
