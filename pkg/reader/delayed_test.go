package reader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/audiopipe/pkg/packet"
)

func TestDelayed_WithholdsUntilTargetDelayElapsed(t *testing.T) {
	base := time.Unix(1000, 0)
	p := &packet.Packet{Seq: 0, CaptureTime: base}
	d := NewDelayed(queuePacketReader(p), 200*time.Millisecond)

	clock := base
	d.now = func() time.Time { return clock }

	_, ok := d.Read()
	assert.False(t, ok, "target delay hasn't elapsed yet")

	clock = base.Add(200 * time.Millisecond)
	got, ok := d.Read()
	require.True(t, ok)
	assert.Same(t, p, got)
}

func TestDelayed_HoldsOnlyTheHeadPacket(t *testing.T) {
	base := time.Unix(1000, 0)
	p0 := &packet.Packet{Seq: 0, CaptureTime: base}
	p1 := &packet.Packet{Seq: 1, CaptureTime: base.Add(20 * time.Millisecond)}
	d := NewDelayed(queuePacketReader(p0, p1), 50*time.Millisecond)

	clock := base.Add(100 * time.Millisecond)
	d.now = func() time.Time { return clock }

	got0, ok := d.Read()
	require.True(t, ok)
	assert.Same(t, p0, got0)

	got1, ok := d.Read()
	require.True(t, ok)
	assert.Same(t, p1, got1)
}

func TestDelayed_SetTargetDelayAppliesToHeldPacket(t *testing.T) {
	base := time.Unix(1000, 0)
	p := &packet.Packet{Seq: 0, CaptureTime: base}
	d := NewDelayed(queuePacketReader(p), time.Second)

	clock := base.Add(100 * time.Millisecond)
	d.now = func() time.Time { return clock }

	_, ok := d.Read()
	require.False(t, ok)

	d.SetTargetDelay(50 * time.Millisecond)
	got, ok := d.Read()
	require.True(t, ok)
	assert.Same(t, p, got)
}
