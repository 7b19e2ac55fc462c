package slab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPacketSlab_GetReturnsRequestedLength(t *testing.T) {
	s := NewPacketSlab(1500)
	buf := s.Get(100)
	assert.Len(t, buf, 100)
}

func TestPacketSlab_GetBeyondSizeHintAllocatesFresh(t *testing.T) {
	s := NewPacketSlab(64)
	buf := s.Get(128)
	assert.Len(t, buf, 128)
}

func TestPacketSlab_PutGetReusesBuffer(t *testing.T) {
	s := NewPacketSlab(128)
	buf := s.Get(128)
	buf[0] = 0xFF
	s.Put(buf)

	got := s.Get(128)
	assert.Len(t, got, 128)
}

func TestPacketSlab_PutRejectsUndersizedBuffer(t *testing.T) {
	s := NewPacketSlab(128)
	s.Put(make([]byte, 4)) // must not panic or corrupt the pool
	buf := s.Get(128)
	assert.Len(t, buf, 128)
}

func TestBufferSlab_GetReturnsZeroedSlice(t *testing.T) {
	b := NewBufferSlab()
	buf := b.Get(10)
	require := assert.New(t)
	require.Len(buf, 10)
	for _, v := range buf {
		require.Zero(v)
	}
}

func TestBufferSlab_GetAfterPutIsZeroedEvenIfDirty(t *testing.T) {
	b := NewBufferSlab()
	buf := b.Get(4)
	for i := range buf {
		buf[i] = 1
	}
	b.Put(buf)

	got := b.Get(4)
	for _, v := range got {
		assert.Zero(t, v)
	}
}

func TestBufferSlab_DifferentSizesUseDifferentBuckets(t *testing.T) {
	b := NewBufferSlab()
	small := b.Get(4)
	large := b.Get(8)
	assert.Len(t, small, 4)
	assert.Len(t, large, 8)
}

func TestBufferSlab_PutEmptyIsNoop(t *testing.T) {
	b := NewBufferSlab()
	b.Put(nil) // must not panic
}
