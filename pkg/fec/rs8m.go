package fec

import (
	"github.com/arzzra/audiopipe/pkg/errs"
	"github.com/klauspost/reedsolomon"
)

// rs8mDecoder wraps github.com/klauspost/reedsolomon for the rs8m scheme
// (RFC 6865 Reed-Solomon FEC), grounded on that module's presence as an
// indirect dependency of opd-ai-toxcore/testnet in the retrieval pack.
type rs8mDecoder struct{}

// Decode pads all present shards to the length of the longest one (RS
// erasure coding requires uniform shard length) and calls ReconstructData,
// which recovers only the k data (source) shards and leaves parity alone.
func (d *rs8mDecoder) Decode(k, m int, shards [][]byte) ([]int, error) {
	if len(shards) != k+m {
		return nil, errs.BadFormat("rs8m: shard count does not match k+m")
	}

	size := 0
	for _, s := range shards {
		if len(s) > size {
			size = len(s)
		}
	}
	if size == 0 {
		return nil, errs.ReconstructionFailed(0, k)
	}

	padded := make([][]byte, len(shards))
	missingBefore := make([]bool, len(shards))
	for i, s := range shards {
		if s == nil {
			missingBefore[i] = true
			continue
		}
		if len(s) == size {
			padded[i] = s
			continue
		}
		p := make([]byte, size)
		copy(p, s)
		padded[i] = p
	}

	enc, err := reedsolomon.New(k, m)
	if err != nil {
		return nil, errs.SchemeMismatch(0, err.Error())
	}

	if err := enc.ReconstructData(padded); err != nil {
		missing := 0
		for i := 0; i < k; i++ {
			if missingBefore[i] {
				missing++
			}
		}
		return nil, errs.ReconstructionFailed(0, missing)
	}

	var recovered []int
	for i := 0; i < k; i++ {
		if missingBefore[i] && padded[i] != nil {
			shards[i] = padded[i]
			recovered = append(recovered, i)
		}
	}
	return recovered, nil
}
