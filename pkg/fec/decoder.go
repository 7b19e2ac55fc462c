// Package fec implements the FEC block reader and decoder (spec.md
// section 4.4): source and repair packets are buffered per block number,
// reconstructed when enough symbols have arrived, and emitted in sequence
// order with blocks closing in block-number order.
package fec

import "github.com/arzzra/audiopipe/pkg/errs"

// Scheme is the FEC decoder capability variant spec.md section 4.4 names.
type Scheme int

const (
	SchemeNone Scheme = iota
	SchemeReedSolomon8M
	SchemeLDPCStaircase
)

func (s Scheme) String() string {
	switch s {
	case SchemeReedSolomon8M:
		return "rs8m"
	case SchemeLDPCStaircase:
		return "ldpc_staircase"
	default:
		return "none"
	}
}

// Decoder reconstructs missing source symbols within one FEC block. Shards
// are indexed by encoding symbol ID: index [0, k) are source symbols,
// index [k, k+m) are repair symbols. A nil entry means that symbol is
// missing. Decode writes the source shards it could recover into shards
// in place and returns the set of symbol indices it filled.
type Decoder interface {
	Decode(k, m int, shards [][]byte) (recovered []int, err error)
}

// NewDecoder returns the Decoder for scheme, or nil for SchemeNone (the
// block reader then treats every erasure as permanent).
func NewDecoder(scheme Scheme) (Decoder, error) {
	switch scheme {
	case SchemeNone:
		return nil, nil
	case SchemeReedSolomon8M:
		return &rs8mDecoder{}, nil
	case SchemeLDPCStaircase:
		return &ldpcStaircaseDecoder{}, nil
	default:
		return nil, errs.InvalidConfig("unknown FEC scheme")
	}
}
