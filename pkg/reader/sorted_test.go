package reader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/audiopipe/pkg/packet"
)

func queuePacketReader(pkts ...*packet.Packet) packet.Reader {
	i := 0
	return packet.ReaderFunc(func() (*packet.Packet, bool) {
		if i >= len(pkts) {
			return nil, false
		}
		p := pkts[i]
		i++
		return p, true
	})
}

func seqPacket(seq uint16) *packet.Packet {
	return &packet.Packet{Seq: seq, CaptureTime: time.Unix(0, int64(seq))}
}

func TestSorted_EmitsInOrderWhenAlreadySorted(t *testing.T) {
	s := NewSorted(queuePacketReader(seqPacket(0), seqPacket(1), seqPacket(2)), 4)

	for i := uint16(0); i < 3; i++ {
		p, ok := s.Read()
		require.True(t, ok)
		assert.Equal(t, i, p.Seq)
	}
}

func TestSorted_ReordersWithinWindow(t *testing.T) {
	s := NewSorted(queuePacketReader(seqPacket(1), seqPacket(0), seqPacket(2)), 4)

	p0, ok := s.Read()
	require.True(t, ok)
	assert.Equal(t, uint16(0), p0.Seq)

	p1, ok := s.Read()
	require.True(t, ok)
	assert.Equal(t, uint16(1), p1.Seq)

	p2, ok := s.Read()
	require.True(t, ok)
	assert.Equal(t, uint16(2), p2.Seq)
}

func TestSorted_WithholdsUntilWindowFillsOrExpectedArrives(t *testing.T) {
	s := NewSorted(queuePacketReader(seqPacket(0)), 4)
	p0, ok := s.Read()
	require.True(t, ok)
	assert.Equal(t, uint16(0), p0.Seq)

	// seq 1 is missing; seq 2 arrives but the window (4) isn't full yet, so
	// nothing is ready until either seq 1 shows up or the window fills.
	s.admit(seqPacket(2))
	_, ok = s.Read()
	assert.False(t, ok)
}

func TestSorted_PermanentGapCountedAsDropped(t *testing.T) {
	s := NewSorted(queuePacketReader(seqPacket(0), seqPacket(3), seqPacket(4), seqPacket(5)), 3)

	p, ok := s.Read()
	require.True(t, ok)
	assert.Equal(t, uint16(0), p.Seq)

	// seq 1 and 2 never arrive; once the window fills with {3,4,5} the
	// oldest buffered packet must be released even though it isn't next.
	p, ok = s.Read()
	require.True(t, ok)
	assert.Equal(t, uint16(3), p.Seq)

	stats := s.Stats()
	assert.Equal(t, uint64(2), stats.Dropped)
}

func TestSorted_DuplicateDropped(t *testing.T) {
	s := NewSorted(queuePacketReader(seqPacket(0), seqPacket(0)), 4)

	_, ok := s.Read()
	require.True(t, ok)

	_, ok = s.Read()
	assert.False(t, ok)
	assert.Equal(t, uint64(1), s.Stats().Duplicate)
}
