package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arzzra/audiopipe/pkg/packet"
)

func TestRouter_RoutesBySourceID(t *testing.T) {
	r := New(8, nil)

	r.Route(&packet.Packet{SourceID: 1, Seq: 0})
	r.Route(&packet.Packet{SourceID: 2, Seq: 0})
	r.Route(&packet.Packet{SourceID: 1, Seq: 1})

	reader1 := r.Reader(1)
	p, ok := reader1.Read()
	assert.True(t, ok)
	assert.Equal(t, uint16(0), p.Seq)
	p, ok = reader1.Read()
	assert.True(t, ok)
	assert.Equal(t, uint16(1), p.Seq)
	_, ok = reader1.Read()
	assert.False(t, ok)

	reader2 := r.Reader(2)
	_, ok = reader2.Read()
	assert.True(t, ok)
}

func TestRouter_RejectsUnknownSourceWhenCallbackDeclines(t *testing.T) {
	r := New(8, func(sourceID uint32) bool { return false })
	r.Route(&packet.Packet{SourceID: 9, Seq: 0})

	reader := r.Reader(9)
	_, ok := reader.Read()
	assert.False(t, ok)
}

func TestRouter_RemoveDropsQueue(t *testing.T) {
	r := New(8, nil)
	r.Route(&packet.Packet{SourceID: 1, Seq: 0})
	r.Remove(1)

	reader := r.Reader(1)
	_, ok := reader.Read()
	assert.False(t, ok)
}

func TestRing_OverflowDropsRepairBeforeSource(t *testing.T) {
	rg := newRing(2)
	rg.Push(&packet.Packet{Seq: 0, Flags: packet.FlagAudio})
	rg.Push(&packet.Packet{Seq: 1, Flags: packet.FlagRepair})
	rg.Push(&packet.Packet{Seq: 2, Flags: packet.FlagAudio}) // should evict the repair, not the source

	first, ok := rg.Pop()
	assert.True(t, ok)
	assert.Equal(t, uint16(0), first.Seq)

	second, ok := rg.Pop()
	assert.True(t, ok)
	assert.Equal(t, uint16(2), second.Seq)

	received, dsrc, drep := rg.Stats()
	assert.Equal(t, uint64(3), received)
	assert.Equal(t, uint64(0), dsrc)
	assert.Equal(t, uint64(1), drep)
}
