// Command audiopipe-receiver runs the receiver pipeline standalone: it
// listens for RTP/FEC traffic on a UDP socket, assembles one session per
// source_id, mixes every live session's output each tick, and writes the
// result to a WAV file. It exists to exercise pkg/session end to end
// outside of a test; a real deployment would swap pkg/sink's WAVSink for
// a live device sink and plug in a config-file layer ahead of the flags
// below (spec.md section 1 leaves that layer out of scope).
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arzzra/audiopipe/pkg/config"
	"github.com/arzzra/audiopipe/pkg/endpoint"
	"github.com/arzzra/audiopipe/pkg/errs"
	"github.com/arzzra/audiopipe/pkg/frame"
	"github.com/arzzra/audiopipe/pkg/logging"
	"github.com/arzzra/audiopipe/pkg/metrics"
	"github.com/arzzra/audiopipe/pkg/mixer"
	"github.com/arzzra/audiopipe/pkg/netio"
	"github.com/arzzra/audiopipe/pkg/packet"
	"github.com/arzzra/audiopipe/pkg/router"
	"github.com/arzzra/audiopipe/pkg/session"
	"github.com/arzzra/audiopipe/pkg/sink"
	"github.com/arzzra/audiopipe/pkg/slab"
)

func main() {
	listenURI := flag.String("listen", "rtp://0.0.0.0:5004", "audio source endpoint URI to receive on (rtp, rtp+rs8m, rtp+ldpc)")
	repairListenURI := flag.String("repair-listen", "", "repair endpoint URI (rs8m, ldpc); required when -listen carries FEC-tagged source packets, since a socket only ever parses one packet role")
	outPath := flag.String("out", "out.wav", "WAV file to write the mixed output to")
	metricsAddr := flag.String("metrics", ":9090", "address to serve /metrics on, empty to disable")
	sampleRate := flag.Uint("sample-rate", 44100, "output sample rate")
	stereo := flag.Bool("stereo", true, "mix down to stereo instead of mono")
	targetLatency := flag.Duration("target-latency", 200*time.Millisecond, "playout target delay")
	maxSessions := flag.Int("max-sessions", 64, "reject new source_ids past this many concurrent sessions")
	flag.Parse()

	logger := logging.New().WithComponent("receiver")

	ep, err := endpoint.Parse(*listenURI)
	if err != nil {
		logger.LogError(context.Background(), err, "invalid listen endpoint")
		os.Exit(1)
	}
	if ep.IsRepairOnly() {
		logger.LogError(context.Background(), errs.InvalidConfig("-listen must name an audio-bearing endpoint (rtp, rtp+rs8m, rtp+ldpc)"), "invalid listen endpoint")
		os.Exit(1)
	}

	cfg := config.Default()
	cfg.SampleRate = uint32(*sampleRate)
	cfg.TargetLatency = *targetLatency
	if *stereo {
		cfg.ChannelMask = frame.ChannelStereo
	} else {
		cfg.ChannelMask = frame.ChannelMono
	}
	switch ep.Protocol {
	case endpoint.ProtoRTPRS8M:
		cfg.FECEncoding = config.FECRS8M
	case endpoint.ProtoRTPLDPC:
		cfg.FECEncoding = config.FECLDPC
	default:
		cfg.FECEncoding = config.FECNone
	}
	if err := cfg.Validate(); err != nil {
		logger.LogError(context.Background(), err, "invalid configuration")
		os.Exit(1)
	}

	// A netio.Listener parses every datagram on its socket with one fixed
	// packet.Role, so FEC-tagged source packets and repair packets need
	// separate sockets: one role slot per endpoint.
	srcRole := packet.RoleAudio
	if ep.HasFEC() {
		srcRole = packet.RoleAudioFECSource
	}

	var repairEp endpoint.Endpoint
	if cfg.FECEncoding != config.FECNone {
		if *repairListenURI == "" {
			logger.LogError(context.Background(), errs.InvalidConfig("-repair-listen is required when -listen carries an FEC scheme"), "invalid configuration")
			os.Exit(1)
		}
		repairEp, err = endpoint.Parse(*repairListenURI)
		if err != nil {
			logger.LogError(context.Background(), err, "invalid repair-listen endpoint")
			os.Exit(1)
		}
	}

	listenAddr := net.JoinHostPort(ep.Host, strconv.FormatUint(uint64(ep.Port), 10))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	buffers := slab.NewBufferSlab()

	pcmSink, err := sink.Create(*outPath, cfg.ChannelMask.NumChannels(), cfg.SampleRate)
	if err != nil {
		logger.LogError(context.Background(), err, "failed to open output sink")
		os.Exit(1)
	}
	defer pcmSink.Close()

	rs := &registry{sessions: make(map[uint32]*session.Session), cfg: cfg, logger: logger, buffers: buffers, metrics: m, max: *maxSessions}

	var rtr *router.Router
	rtr = router.New(4*cfg.ReorderWindow, rs.accept(func() *router.Router { return rtr }))

	listener, err := netio.Listen(netio.Config{
		ListenAddr:    listenAddr,
		Role:          srcRole,
		MaxPacketSize: 1500,
	}, rtr.Route, logger)
	if err != nil {
		logger.LogError(context.Background(), err, "failed to open listener")
		os.Exit(1)
	}
	defer listener.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go listener.Serve(ctx)

	if cfg.FECEncoding != config.FECNone {
		repairAddr := net.JoinHostPort(repairEp.Host, strconv.FormatUint(uint64(repairEp.Port), 10))
		repairListener, err := netio.Listen(netio.Config{
			ListenAddr:    repairAddr,
			Role:          packet.RoleRepair,
			MaxPacketSize: 1500,
		}, rtr.Route, logger)
		if err != nil {
			logger.LogError(context.Background(), err, "failed to open repair listener")
			os.Exit(1)
		}
		defer repairListener.Close()
		go repairListener.Serve(ctx)
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.LogError(ctx, err, "metrics server stopped")
			}
		}()
	}

	runPipeline(ctx, cfg, rtr, rs, pcmSink, m, logger)
	logger.Info(context.Background(), "shutting down")
}

// registry owns the session table on the pipeline thread's side: router
// calls accept() from a network thread the first time it sees a
// source_id, everything else (Tick, Read, teardown) happens from
// runPipeline on the single pipeline thread (spec.md section 5).
type registry struct {
	mu       sync.Mutex
	sessions map[uint32]*session.Session

	cfg     config.Receiver
	logger  logging.Logger
	buffers *slab.BufferSlab
	metrics *metrics.Registry
	max     int
}

// accept builds the router's onNewSource callback. It takes a router
// accessor rather than the router itself because the router and the
// callback are constructed in a cycle (router.New needs the callback,
// the callback needs a Reader from the router).
func (rs *registry) accept(getRouter func() *router.Router) func(sourceID uint32) bool {
	return func(sourceID uint32) bool {
		rs.mu.Lock()
		defer rs.mu.Unlock()

		if _, ok := rs.sessions[sourceID]; ok {
			return true
		}
		if len(rs.sessions) >= rs.max {
			rs.logger.Warn(context.Background(), "rejecting new source, session limit reached", logging.Uint32("source_id", sourceID))
			return false
		}

		input := getRouter().Reader(sourceID)
		s, err := session.New(sourceID, input, rs.cfg, rs.logger, rs.buffers, rs.metrics)
		if err != nil {
			rs.logger.LogError(context.Background(), err, "failed to assemble session", logging.Uint32("source_id", sourceID))
			return false
		}
		s.Activate()
		rs.sessions[sourceID] = s
		return true
	}
}

// snapshot returns the current live session set, for the mixer and the
// reaping pass. Holding the lock only long enough to copy the map
// mirrors pkg/router.Router's own locking discipline.
func (rs *registry) snapshot() []*session.Session {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]*session.Session, 0, len(rs.sessions))
	for _, s := range rs.sessions {
		out = append(out, s)
	}
	return out
}

func (rs *registry) reap(sourceID uint32) {
	rs.mu.Lock()
	delete(rs.sessions, sourceID)
	rs.mu.Unlock()
}

// runPipeline is the entire body of the single pipeline thread (spec.md
// section 5): once per InternalFrameLength it ticks every session's
// watchdog, tears down dead ones, mixes the live ones, and writes the
// result to the sink.
func runPipeline(ctx context.Context, cfg config.Receiver, rtr *router.Router, rs *registry, out frame.Sink, m *metrics.Registry, logger logging.Logger) {
	frameSamples := int(cfg.InternalFrameLength.Seconds() * float64(cfg.SampleRate))
	outFrame := &frame.Frame{Samples: make([]float32, frameSamples*cfg.ChannelMask.NumChannels())}

	mx := mixer.New(nil, cfg.SampleRate, cfg.ChannelMask)
	prevRing := make(map[uint32]ringSnapshot)

	ticker := time.NewTicker(cfg.InternalFrameLength)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sessions := rs.snapshot()
		readers := make([]frame.Reader, 0, len(sessions))
		for _, s := range sessions {
			s.Tick()
			pollRingStats(rtr, m, s.SourceID, prevRing)
			if s.Dead() {
				logger.LogError(context.Background(), s.DeadErr(), "session died", logging.Uint32("source_id", s.SourceID))
				rtr.Remove(s.SourceID)
				rs.reap(s.SourceID)
				delete(prevRing, s.SourceID)
				continue
			}
			readers = append(readers, s.AsFrameReader())
		}
		mx.SetSources(readers)

		if err := mx.Read(outFrame); err != nil {
			logger.LogError(context.Background(), err, "mixer read failed")
			continue
		}
		if err := out.Write(outFrame); err != nil {
			logger.LogError(context.Background(), err, "sink write failed")
		}
	}
}

type ringSnapshot struct {
	received, droppedSource, droppedRepair uint64
}

// pollRingStats diffs the router's cumulative ring counters for
// sourceID against the last-seen snapshot and adds the delta into m's
// CounterVecs, the same monotonic-diff approach pkg/session uses for
// its own internal counters.
func pollRingStats(rtr *router.Router, m *metrics.Registry, sourceID uint32, prev map[uint32]ringSnapshot) {
	if m == nil {
		return
	}
	received, droppedSource, droppedRepair, ok := rtr.Stats(sourceID)
	if !ok {
		return
	}
	label := sourceLabel(sourceID)
	last := prev[sourceID]
	if d := received - last.received; d > 0 {
		m.PacketsReceived.WithLabelValues(label).Add(float64(d))
	}
	if d := droppedSource - last.droppedSource; d > 0 {
		m.PacketsDropped.WithLabelValues(label).Add(float64(d))
	}
	if d := droppedRepair - last.droppedRepair; d > 0 {
		m.RepairsDropped.WithLabelValues(label).Add(float64(d))
	}
	prev[sourceID] = ringSnapshot{received, droppedSource, droppedRepair}
}

func sourceLabel(sourceID uint32) string {
	return strconv.FormatUint(uint64(sourceID), 10)
}
