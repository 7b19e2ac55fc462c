package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RTPWithDefaultPort(t *testing.T) {
	e, err := Parse("rtp://239.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, ProtoRTP, e.Protocol)
	assert.Equal(t, "239.0.0.1", e.Host)
	assert.Equal(t, uint16(5004), e.Port)
	assert.False(t, e.HasFEC())
}

func TestParse_RS8MRepairOnly(t *testing.T) {
	e, err := Parse("rs8m://host.example:6000/block")
	require.NoError(t, err)
	assert.Equal(t, uint16(6000), e.Port)
	assert.True(t, e.HasFEC())
	assert.True(t, e.IsRepairOnly())
	assert.Equal(t, "/block", e.Path)
}

func TestParse_RTPWithRS8MIsFECSourceNotRepairOnly(t *testing.T) {
	e, err := Parse("rtp+rs8m://host.example")
	require.NoError(t, err)
	assert.True(t, e.HasFEC())
	assert.False(t, e.IsRepairOnly())
}

func TestParse_RejectsUnknownProtocol(t *testing.T) {
	_, err := Parse("ftp://host.example")
	assert.Error(t, err)
}

func TestParse_RejectsMissingProtocol(t *testing.T) {
	_, err := Parse("host.example/foo")
	assert.Error(t, err)
}

func TestParse_RTSPRecognizedButNotImplemented(t *testing.T) {
	e, err := Parse("rtsp://host.example")
	require.NoError(t, err)
	assert.Equal(t, ProtoRTSP, e.Protocol)
}
