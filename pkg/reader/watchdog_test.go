package reader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/audiopipe/pkg/packet"
)

func TestWatchdog_PassesThroughPackets(t *testing.T) {
	p0 := seqPacket(0)
	p1 := seqPacket(1)
	w := NewWatchdog(queuePacketReader(p0, p1), 7, 3, 0, 0, nil, nil)

	got, ok := w.Read()
	require.True(t, ok)
	assert.Same(t, p0, got)

	got, ok = w.Read()
	require.True(t, ok)
	assert.Same(t, p1, got)
}

func TestWatchdog_ExpiresAfterTicksWithoutPackets(t *testing.T) {
	var deadErr error
	w := NewWatchdog(queuePacketReader(), 7, 3, 0, 0, nil, func(err error) { deadErr = err })

	w.Update(context.Background())
	assert.False(t, w.Dead())
	w.Update(context.Background())
	assert.False(t, w.Dead())
	w.Update(context.Background())
	assert.True(t, w.Dead())
	require.Error(t, deadErr)
	assert.Equal(t, deadErr, w.DeadErr())
}

func TestWatchdog_ObservedPacketResetsLivenessCountdown(t *testing.T) {
	w := NewWatchdog(queuePacketReader(seqPacket(0)), 7, 3, 0, 0, nil, nil)

	w.Update(context.Background())
	w.Update(context.Background())

	_, ok := w.Read()
	require.True(t, ok)

	w.Update(context.Background()) // observedSince resets the countdown, not just decrements
	assert.False(t, w.Dead())
	w.Update(context.Background())
	w.Update(context.Background())
	assert.False(t, w.Dead())
}

func TestWatchdog_SequenceJumpKillsStream(t *testing.T) {
	var dead bool
	p0 := &packet.Packet{Seq: 0}
	p1 := &packet.Packet{Seq: 500}
	w := NewWatchdog(queuePacketReader(p0, p1), 7, 10, 10, 0, nil, func(error) { dead = true })

	_, ok := w.Read()
	require.True(t, ok)

	_, ok = w.Read()
	assert.False(t, ok)
	assert.True(t, w.Dead())
	assert.True(t, dead)
}

func TestWatchdog_KillIsIdempotent(t *testing.T) {
	calls := 0
	w := NewWatchdog(queuePacketReader(), 7, 3, 0, 0, nil, func(error) { calls++ })

	w.Kill(assert.AnError)
	w.Kill(assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestWatchdog_DeadSticksAtFalse(t *testing.T) {
	w := NewWatchdog(queuePacketReader(seqPacket(0)), 7, 3, 0, 0, nil, nil)
	w.Kill(assert.AnError)

	_, ok := w.Read()
	assert.False(t, ok)
}
