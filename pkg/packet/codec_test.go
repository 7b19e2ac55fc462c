package packet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeParse_RoundTripAudio(t *testing.T) {
	p := &Packet{
		SourceID:    123,
		Seq:         7,
		Timestamp:   9000,
		Marker:      true,
		PayloadType: 96,
		Flags:       FlagAudio,
		Payload:     []byte{1, 2, 3, 4},
	}
	raw, err := Compose(p)
	require.NoError(t, err)

	captureTime := time.Unix(0, 0)
	got, err := Parse(raw, RoleAudio, captureTime)
	require.NoError(t, err)

	assert.Equal(t, p.SourceID, got.SourceID)
	assert.Equal(t, p.Seq, got.Seq)
	assert.Equal(t, p.Timestamp, got.Timestamp)
	assert.Equal(t, p.Marker, got.Marker)
	assert.Equal(t, p.PayloadType, got.PayloadType)
	assert.Equal(t, p.Payload, got.Payload)
	assert.Equal(t, FlagAudio, got.Flags)
	assert.Equal(t, captureTime, got.CaptureTime)
}

func TestComposeParse_RoundTripFECSource(t *testing.T) {
	p := &Packet{
		SourceID:    1,
		Seq:         1,
		Timestamp:   160,
		PayloadType: 96,
		Flags:       FlagAudio | FlagFECSource,
		Payload:     []byte{0xAA, 0xBB, 0xCC},
		FEC:         &FECMeta{BlockNumber: 42, EncodingSymbolID: 3},
	}
	raw, err := Compose(p)
	require.NoError(t, err)

	got, err := Parse(raw, RoleAudioFECSource, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, p.Payload, got.Payload)
	require.NotNil(t, got.FEC)
	assert.Equal(t, p.FEC.BlockNumber, got.FEC.BlockNumber)
	assert.Equal(t, p.FEC.EncodingSymbolID, got.FEC.EncodingSymbolID)
	assert.True(t, got.Flags.Has(FlagFECSource))
}

func TestComposeParse_RoundTripRepair(t *testing.T) {
	p := &Packet{
		SourceID:    1,
		PayloadType: 96,
		Flags:       FlagRepair,
		Payload:     []byte{0x01, 0x02, 0x03, 0x04},
		FEC:         &FECMeta{BlockNumber: 9, EncodingSymbolID: 1},
	}
	raw, err := Compose(p)
	require.NoError(t, err)

	got, err := Parse(raw, RoleRepair, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, p.Payload, got.Payload)
	require.NotNil(t, got.FEC)
	assert.Equal(t, p.FEC.BlockNumber, got.FEC.BlockNumber)
	assert.Equal(t, p.FEC.EncodingSymbolID, got.FEC.EncodingSymbolID)
	assert.True(t, got.Flags.Has(FlagRepair))
}

func TestParse_RejectsTruncatedRepairPayloadID(t *testing.T) {
	// Composed without FEC flags, so no payload ID prefix is written and
	// only 3 payload bytes follow the RTP header.
	p := &Packet{Seq: 1, Payload: []byte{1, 2, 3}}
	raw, err := Compose(p)
	require.NoError(t, err)

	_, err = Parse(raw, RoleRepair, time.Time{})
	assert.Error(t, err)
}

func TestParse_RejectsMalformedHeader(t *testing.T) {
	_, err := Parse([]byte{0x01, 0x02}, RoleAudio, time.Time{})
	assert.Error(t, err)
}

func TestParse_RejectsTruncatedFECPayloadID(t *testing.T) {
	p := &Packet{Seq: 1, Flags: FlagAudio, Payload: []byte{1, 2, 3}}
	raw, err := Compose(p)
	require.NoError(t, err)

	_, err = Parse(raw, RoleAudioFECSource, time.Time{})
	assert.Error(t, err)
}

func TestParse_UnknownRole(t *testing.T) {
	p := &Packet{Seq: 1, Payload: []byte{1}}
	raw, err := Compose(p)
	require.NoError(t, err)

	_, err = Parse(raw, Role(99), time.Time{})
	assert.Error(t, err)
}

func TestCompose_FECSourceWithoutMetaErrors(t *testing.T) {
	p := &Packet{Flags: FlagFECSource, Payload: []byte{1}}
	_, err := Compose(p)
	assert.Error(t, err)
}

func TestSeqLessAndDistance_WraparoundSafe(t *testing.T) {
	assert.True(t, SeqLess(0, 1))
	assert.True(t, SeqLess(65535, 0)) // wraps around
	assert.False(t, SeqLess(1, 0))
	assert.Equal(t, int16(1), SeqDistance(1, 0))
}

func TestTSLessAndDistance_WraparoundSafe(t *testing.T) {
	assert.True(t, TSLess(0, 1))
	assert.True(t, TSLess(4294967295, 0))
	assert.Equal(t, int32(1), TSDistance(1, 0))
}
