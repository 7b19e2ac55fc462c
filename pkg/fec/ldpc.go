package fec

import "github.com/arzzra/audiopipe/pkg/errs"

// ldpcStaircaseDecoder implements a reduced form of the RFC 5170
// LDPC-Staircase erasure code: each repair symbol is the XOR of a subset
// of source symbols (partitioned by `index mod m`, standing in for the
// pseudo-random bucket selection a real staircase generator matrix would
// use) folded together with the previous repair symbol ("staircase"
// carry). There is no maintained Go LDPC-Staircase package in the
// retrieval pack, so this is hand-rolled on the stdlib — see DESIGN.md.
//
// Recovery walks repair symbols in order, solving each parity equation
// when it has exactly one unknown term (one missing source symbol, or one
// missing carry), which is the single-erasure-per-row case the scheme is
// actually designed for. A row with more than one unknown term halts the
// chain — everything recovered up to that point is still returned.
type ldpcStaircaseDecoder struct{}

func (d *ldpcStaircaseDecoder) Decode(k, m int, shards [][]byte) ([]int, error) {
	if len(shards) != k+m {
		return nil, errNotEnoughSymbols(k)
	}

	size := 0
	for _, s := range shards {
		if len(s) > size {
			size = len(s)
		}
	}
	if size == 0 {
		return nil, errNotEnoughSymbols(k)
	}

	buckets := make([][]int, m)
	for idx := 0; idx < k; idx++ {
		b := idx % m
		buckets[b] = append(buckets[b], idx)
	}

	var recovered []int
	carry := make([]byte, size) // repair[-1] == 0

	for i := 0; i < m; i++ {
		bucket := buckets[i]

		var knownXor []byte
		var unknown []int
		for _, idx := range bucket {
			if shards[idx] == nil {
				unknown = append(unknown, idx)
				continue
			}
			knownXor = xorInto(knownXor, shards[idx], size)
		}
		eqKnownSide := xorBytes(knownXor, carry, size)

		repairIdx := k + i
		if shards[repairIdx] != nil {
			rhs := shards[repairIdx]
			switch len(unknown) {
			case 0:
				carry = rhs
			case 1:
				solved := xorBytes(rhs, eqKnownSide, size)
				shards[unknown[0]] = solved
				recovered = append(recovered, unknown[0])
				carry = rhs
			default:
				return recovered, errTooManyUnknowns(shards, k)
			}
			continue
		}

		// repair symbol itself missing: only useful to propagate the
		// carry forward, which requires every source in the bucket known.
		if len(unknown) == 0 {
			carry = eqKnownSide
			continue
		}
		return recovered, errTooManyUnknowns(shards, k)
	}

	return recovered, nil
}

func xorInto(acc, b []byte, size int) []byte {
	if acc == nil {
		out := make([]byte, size)
		copy(out, b)
		return out
	}
	return xorBytes(acc, b, size)
}

func xorBytes(a, b []byte, size int) []byte {
	out := make([]byte, size)
	for i := 0; i < size; i++ {
		var av, bv byte
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		out[i] = av ^ bv
	}
	return out
}

func errNotEnoughSymbols(k int) error {
	return errs.ReconstructionFailed(0, k)
}

func errTooManyUnknowns(shards [][]byte, k int) error {
	missing := 0
	for _, s := range shards[:k] {
		if s == nil {
			missing++
		}
	}
	return errs.ReconstructionFailed(0, missing)
}
