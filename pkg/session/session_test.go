package session

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/audiopipe/pkg/config"
	"github.com/arzzra/audiopipe/pkg/frame"
	"github.com/arzzra/audiopipe/pkg/packet"
	"github.com/arzzra/audiopipe/pkg/slab"
)

func pcmPacket(seq uint16, ts uint32, numSamples int) *packet.Packet {
	payload := make([]byte, numSamples*2)
	for i := 0; i < numSamples; i++ {
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(int(ts)+i))
	}
	return &packet.Packet{
		Seq:         seq,
		Timestamp:   ts,
		Flags:       packet.FlagAudio,
		Payload:     payload,
		CaptureTime: time.Now().Add(-time.Second), // already past target latency
	}
}

func queueReader(packets ...*packet.Packet) packet.Reader {
	i := 0
	return packet.ReaderFunc(func() (*packet.Packet, bool) {
		if i >= len(packets) {
			return nil, false
		}
		p := packets[i]
		i++
		return p, true
	})
}

func TestSession_AssemblesAndRejectsBadConfig(t *testing.T) {
	bad := config.Default()
	bad.SampleRate = 0
	_, err := New(1, queueReader(), bad, nil, slab.NewBufferSlab(), nil)
	assert.Error(t, err)
}

func TestSession_WatchdogTripsAfterSilence(t *testing.T) {
	cfg := config.Default()
	cfg.SampleRate = 8000
	cfg.ChannelMask = frame.ChannelMono
	cfg.InternalFrameLength = 10 * time.Millisecond
	cfg.NoPlayTimeout = 30 * time.Millisecond
	cfg.TargetLatency = 0
	cfg.MinLatency = 0

	const frameLen = 80 // 10ms @ 8kHz
	pkts := []*packet.Packet{pcmPacket(0, 0, frameLen), pcmPacket(1, 80, frameLen)}

	s, err := New(42, queueReader(pkts...), cfg, nil, slab.NewBufferSlab(), nil)
	require.NoError(t, err)

	out := &frame.Frame{Samples: make([]float32, frameLen)}
	require.NoError(t, s.Read(out))
	s.Tick()

	for i := 0; i < 10 && !s.Dead(); i++ {
		_ = s.Read(out)
		s.Tick()
	}
	assert.True(t, s.Dead())
}
