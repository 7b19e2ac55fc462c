package packet

import (
	"encoding/binary"
	"time"

	"github.com/arzzra/audiopipe/pkg/errs"
	"github.com/pion/rtp"
)

// Role tells Parse how to interpret the bytes following the 12-byte RTP
// fixed header, per spec.md section 6 (RFC 6363 source-FEC payload ID).
type Role int

const (
	// RoleAudio is a plain RTP audio packet, no FEC membership.
	RoleAudio Role = iota
	// RoleAudioFECSource is an audio packet that also carries the 6-byte
	// source-FEC payload ID (4-byte block number, 2-byte symbol ID)
	// prepended to the PCM payload.
	RoleAudioFECSource
	// RoleRepair is an FEC repair packet. It carries the same 6-byte
	// block-number/symbol-id prefix as RoleAudioFECSource; what remains
	// in Payload after that is the scheme-specific repair symbol (RFC
	// 6865 for rs8m, RFC 5170 for LDPC-Staircase) for pkg/fec to decode.
	RoleRepair
)

const sourceFECPayloadIDLen = 6

// Parse decodes the 12-byte RTP fixed header (via github.com/pion/rtp) and,
// for FEC-bearing roles, the RFC 6363 source-FEC payload ID. It is total on
// well-formed input and returns an *errs.Error with Category
// CategoryTransient (BadFormat) otherwise, per spec.md section 4.1.
func Parse(raw []byte, role Role, captureTime time.Time) (*Packet, error) {
	var rp rtp.Packet
	if err := rp.Unmarshal(raw); err != nil {
		return nil, errs.BadFormat("rtp header: " + err.Error())
	}

	p := &Packet{
		SourceID:    rp.SSRC,
		Seq:         rp.SequenceNumber,
		Timestamp:   rp.Timestamp,
		Marker:      rp.Marker,
		PayloadType: rp.PayloadType,
		CaptureTime: captureTime,
		Payload:     rp.Payload,
	}

	switch role {
	case RoleAudio:
		p.Flags = FlagAudio

	case RoleAudioFECSource:
		if len(rp.Payload) < sourceFECPayloadIDLen {
			return nil, errs.BadFormat("source FEC payload ID truncated")
		}
		p.Flags = FlagAudio | FlagFECSource
		p.FEC = &FECMeta{
			BlockNumber:      binary.BigEndian.Uint32(rp.Payload[0:4]),
			EncodingSymbolID: binary.BigEndian.Uint16(rp.Payload[4:6]),
		}
		p.Payload = rp.Payload[sourceFECPayloadIDLen:]

	case RoleRepair:
		if len(rp.Payload) < sourceFECPayloadIDLen {
			return nil, errs.BadFormat("repair FEC payload ID truncated")
		}
		p.Flags = FlagRepair
		p.FEC = &FECMeta{
			BlockNumber:      binary.BigEndian.Uint32(rp.Payload[0:4]),
			EncodingSymbolID: binary.BigEndian.Uint16(rp.Payload[4:6]),
		}
		p.Payload = rp.Payload[sourceFECPayloadIDLen:]

	default:
		return nil, errs.BadFormat("unknown packet role")
	}

	return p, nil
}

// Compose is the inverse of Parse, used by the sender (specified here only
// because the receiver's FEC decoder re-derives the same header layout when
// it needs to re-frame a reconstructed symbol for downstream consumption).
func Compose(p *Packet) ([]byte, error) {
	payload := p.Payload
	if p.Flags.Has(FlagFECSource) || p.Flags.Has(FlagRepair) {
		if p.FEC == nil {
			return nil, errs.BadFormat("FEC-bearing packet missing FECMeta")
		}
		prefix := make([]byte, sourceFECPayloadIDLen)
		binary.BigEndian.PutUint32(prefix[0:4], p.FEC.BlockNumber)
		binary.BigEndian.PutUint16(prefix[4:6], p.FEC.EncodingSymbolID)
		payload = append(prefix, payload...)
	}

	rp := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         p.Marker,
			PayloadType:    p.PayloadType,
			SequenceNumber: p.Seq,
			Timestamp:      p.Timestamp,
			SSRC:           p.SourceID,
		},
		Payload: payload,
	}
	out, err := rp.Marshal()
	if err != nil {
		return nil, errs.BadFormat("rtp marshal: " + err.Error())
	}
	return out, nil
}
