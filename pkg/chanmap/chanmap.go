// Package chanmap implements channel-mask remapping between mono and
// stereo frames (spec.md section 4.8); other mask pairs use the
// identity-with-zero-fill fallback in Map.
package chanmap

import "github.com/arzzra/audiopipe/pkg/frame"

// Matrix is a fixed mixing matrix: Matrix[outCh][inCh] is the weight
// applied to input channel inCh when producing output channel outCh.
type Matrix [][]float32

// key pairs an (input, output) channel mask for the lookup table below.
type key struct {
	in, out frame.ChannelMask
}

var matrices = map[key]Matrix{
	// mono -> stereo: duplicate the single input channel onto both outputs.
	{frame.ChannelMono, frame.ChannelStereo}: {
		{1},
		{1},
	},
	// stereo -> mono: average left and right.
	{frame.ChannelStereo, frame.ChannelMono}: {
		{0.5, 0.5},
	},
}

// Map converts in (laid out per in.ChannelMask) to out (laid out per
// out.ChannelMask). in and out must both already be sized for their
// respective channel counts times the same number of sample frames.
// Unknown (input, output) combinations fall back to identity-with-zero-fill:
// channels present in both are passed through, channels only in the output
// are zeroed, channels only in the input are dropped (spec.md section 4.8).
func Map(inMask, outMask frame.ChannelMask, in []float32, numFrames int, out []float32) {
	inCh := inMask.NumChannels()
	outCh := outMask.NumChannels()

	if inMask == outMask {
		copy(out, in[:numFrames*inCh])
		return
	}

	if m, ok := matrices[key{inMask, outMask}]; ok {
		for f := 0; f < numFrames; f++ {
			for o := 0; o < outCh; o++ {
				var sum float32
				row := m[o]
				for i := 0; i < inCh && i < len(row); i++ {
					sum += row[i] * in[f*inCh+i]
				}
				out[f*outCh+o] = sum
			}
		}
		return
	}

	n := inCh
	if outCh < n {
		n = outCh
	}
	for f := 0; f < numFrames; f++ {
		for o := 0; o < outCh; o++ {
			if o < n {
				out[f*outCh+o] = in[f*inCh+o]
			} else {
				out[f*outCh+o] = 0
			}
		}
	}
}
