package session

import (
	"time"

	"github.com/arzzra/audiopipe/pkg/chanmap"
	"github.com/arzzra/audiopipe/pkg/depacketizer"
	"github.com/arzzra/audiopipe/pkg/errs"
	"github.com/arzzra/audiopipe/pkg/frame"
	"github.com/arzzra/audiopipe/pkg/metrics"
	"github.com/arzzra/audiopipe/pkg/reader"
	"github.com/arzzra/audiopipe/pkg/resample"
	"github.com/arzzra/audiopipe/pkg/slab"
)

// pipelineReader is the session's tail: depacketizer -> latency monitor /
// resampler -> channel mapper, exposed as a single frame.Reader for the
// mixer (spec.md section 2 groups these three as one downward arrow).
type pipelineReader struct {
	depack   *depacketizer.Depacketizer
	monitor  *resample.Monitor
	resamp   *resample.Resampler
	watchdog *reader.Watchdog

	sourceRate, targetRate uint32
	inMask, outMask        frame.ChannelMask

	internal  frame.Frame
	resampled []float32
	buffers   *slab.BufferSlab

	metrics     *metrics.Registry
	sourceLabel string

	now func() time.Time
}

// newPipelineReader wires the depacketizer, latency monitor/resampler and
// channel mapper into one frame.Reader. buffers is the caller's shared
// BufferSlab (spec.md section 5's byte-buffer factory); passed in rather
// than held as package state so lifetime follows the owning peer/listener,
// not the process (spec.md section 9). reg may be nil, in which case
// gauges are simply not updated.
func newPipelineReader(depack *depacketizer.Depacketizer, watchdog *reader.Watchdog, buffers *slab.BufferSlab, reg *metrics.Registry, sourceLabel string, thresholds resample.Thresholds, profile resample.Profile, sourceRate, targetRate uint32, inMask, outMask frame.ChannelMask, internalFrameSamples int) *pipelineReader {
	return &pipelineReader{
		depack:      depack,
		monitor:     resample.NewMonitor(thresholds, 0.1),
		resamp:      resample.New(inMask.NumChannels(), profile),
		watchdog:    watchdog,
		buffers:     buffers,
		metrics:     reg,
		sourceLabel: sourceLabel,
		sourceRate:  sourceRate,
		targetRate:  targetRate,
		inMask:      inMask,
		outMask:     outMask,
		internal:    frame.Frame{Samples: make([]float32, internalFrameSamples*inMask.NumChannels())},
		now:         time.Now,
	}
}

// Read implements frame.Reader. out must already be sized for the desired
// output sample count at outMask's channel count.
func (p *pipelineReader) Read(out *frame.Frame) error {
	if err := p.depack.Read(&p.internal); err != nil {
		return err
	}

	var latency time.Duration
	if p.internal.HasCaptureTime {
		latency = p.now().Sub(p.internal.CaptureTimestamp)
	}
	sigma, catastrophic := p.monitor.Observe(latency)
	if catastrophic && p.watchdog != nil {
		p.watchdog.Kill(errs.CatastrophicDrift(0, p.monitor.Error()))
	}
	if p.metrics != nil {
		p.metrics.Latency.WithLabelValues(p.sourceLabel).Set(p.monitor.Error())
		p.metrics.Sigma.WithLabelValues(p.sourceLabel).Set(sigma)
	}

	ratio := (float64(p.targetRate) / float64(p.sourceRate)) * sigma

	inCh := p.inMask.NumChannels()
	outCh := p.outMask.NumChannels()
	outFrames := 0
	if outCh > 0 {
		outFrames = len(out.Samples) / outCh
	}

	need := outFrames * inCh
	if cap(p.resampled) < need {
		if p.resampled != nil {
			p.buffers.Put(p.resampled)
		}
		p.resampled = p.buffers.Get(need)
	}
	p.resampled = p.resampled[:need]

	produced := p.resamp.Process(p.internal.Samples, ratio, p.resampled)
	chanmap.Map(p.inMask, p.outMask, p.resampled[:produced*inCh], produced, out.Samples)

	out.SampleRate = p.targetRate
	out.ChannelMask = p.outMask
	out.Flags = p.internal.Flags
	out.HasCaptureTime = p.internal.HasCaptureTime
	out.CaptureTimestamp = p.internal.CaptureTimestamp
	return nil
}
