package depacketizer

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/audiopipe/pkg/frame"
	"github.com/arzzra/audiopipe/pkg/packet"
)

func pcmPacket(seq uint16, ts uint32, samples ...int16) *packet.Packet {
	payload := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(s))
	}
	return &packet.Packet{
		Seq:         seq,
		Timestamp:   ts,
		Flags:       packet.FlagAudio,
		Payload:     payload,
		CaptureTime: time.Unix(0, int64(ts)),
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

func TestDepacketizer_LosslessRoundTrip(t *testing.T) {
	const frameLen = 4
	pkts := make([]*packet.Packet, 0, 25)
	for i := 0; i < 25; i++ {
		samples := make([]int16, frameLen)
		for j := range samples {
			samples[j] = int16(i*frameLen + j)
		}
		pkts = append(pkts, pcmPacket(uint16(i), uint32(i*frameLen), samples...))
	}

	d := New(queueReader(pkts...), 8000, frame.ChannelMono, false)

	for i := 0; i < 25; i++ {
		f := &frame.Frame{Samples: make([]float32, frameLen)}
		require.NoError(t, d.Read(f))
		assert.Zero(t, f.Flags)
		for j := 0; j < frameLen; j++ {
			want := float32(i*frameLen+j) / 32768.0
			assert.InDelta(t, want, f.Samples[j], 1e-6)
		}
	}
	assert.True(t, d.Started())
}

func TestDepacketizer_GapFillsSilenceAndSetsIncomplete(t *testing.T) {
	const frameLen = 4
	p0 := pcmPacket(0, 0, 1, 2, 3, 4)
	p2 := pcmPacket(2, 8, 9, 10, 11, 12) // seq 1 / ts 4..7 missing

	d := New(queueReader(p0, p2), 8000, frame.ChannelMono, false)

	f1 := &frame.Frame{Samples: make([]float32, frameLen)}
	require.NoError(t, d.Read(f1))
	assert.Zero(t, f1.Flags)

	f2 := &frame.Frame{Samples: make([]float32, frameLen)}
	require.NoError(t, d.Read(f2))
	assert.True(t, f2.Flags.Has(frame.FlagIncomplete))
	for _, s := range f2.Samples {
		assert.Zero(t, s)
	}

	f3 := &frame.Frame{Samples: make([]float32, frameLen)}
	require.NoError(t, d.Read(f3))
	assert.Zero(t, f3.Flags)
	assert.InDelta(t, float32(9)/32768.0, f3.Samples[0], 1e-6)
}

func TestDepacketizer_EmptyWhenNoPacketEver(t *testing.T) {
	d := New(queueReader(), 8000, frame.ChannelMono, false)
	f := &frame.Frame{Samples: make([]float32, 4)}
	require.NoError(t, d.Read(f))
	assert.True(t, f.Flags.Has(frame.FlagEmpty))
	assert.True(t, f.Flags.Has(frame.FlagSilent))
	assert.False(t, d.Started())
}

func TestDepacketizer_StalePacketDropped(t *testing.T) {
	p0 := pcmPacket(0, 0, 1, 2, 3, 4)
	pStale := pcmPacket(1, 0, 99, 99, 99, 99) // duplicate timestamp, arrives after
	p1 := pcmPacket(2, 4, 5, 6, 7, 8)

	d := New(queueReader(p0, pStale, p1), 8000, frame.ChannelMono, false)

	f1 := &frame.Frame{Samples: make([]float32, 4)}
	require.NoError(t, d.Read(f1))
	f2 := &frame.Frame{Samples: make([]float32, 4)}
	require.NoError(t, d.Read(f2))

	assert.InDelta(t, float32(5)/32768.0, f2.Samples[0], 1e-6)
	assert.True(t, d.Drops() >= 1)
}
