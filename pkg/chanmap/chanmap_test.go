package chanmap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arzzra/audiopipe/pkg/frame"
)

func TestMap_Identity(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3, 0.4}
	out := make([]float32, 4)
	Map(frame.ChannelStereo, frame.ChannelStereo, in, 2, out)
	assert.Equal(t, in, out)
}

func TestMap_MonoToStereoDuplicates(t *testing.T) {
	in := []float32{0.5, -0.25}
	out := make([]float32, 4)
	Map(frame.ChannelMono, frame.ChannelStereo, in, 2, out)
	assert.Equal(t, []float32{0.5, 0.5, -0.25, -0.25}, out)
}

func TestMap_StereoToMonoAverages(t *testing.T) {
	in := []float32{1.0, 0.0, 0.2, 0.8}
	out := make([]float32, 2)
	Map(frame.ChannelStereo, frame.ChannelMono, in, 2, out)
	assert.InDelta(t, 0.5, out[0], 1e-6)
	assert.InDelta(t, 0.5, out[1], 1e-6)
}
