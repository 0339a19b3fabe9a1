// Package permute decodes the Lehmer-code permutations the TOC (spec §4.6)
// and the coefficient orders (spec §4.8) both use: "read an end count, then
// a sequence of indices each bounded by the remaining size."
package permute

import "github.com/deepteams/jxl/internal/jerr"

// bitSource is the narrow bit-reading surface this package needs.
type bitSource interface {
	U32(o0 uint32, n0 uint, o1 uint32, n1 uint, o2 uint32, n2 uint, o3 uint32, n3 uint) (uint32, error)
	AtMost(max uint32) (uint32, error)
}

// Decode reads a Lehmer-code permutation of [0, n) from r: an "end" count
// (how many entries are explicitly permuted; the rest stay in natural
// relative order), then end indices each bounded by the remaining
// unplaced-entry count, decoded by repeatedly removing the indexed entry
// from a working list of not-yet-placed positions.
func Decode(r bitSource, n int) ([]int, error) {
	if n == 0 {
		return nil, nil
	}
	end, err := r.U32(0, 0, 1, 4, 17, 8, 273, 16)
	if err != nil {
		return nil, err
	}
	if int(end) > n {
		return nil, jerr.New(jerr.Perm, "permutation end count %d exceeds size %d", end, n)
	}

	remaining := make([]int, n)
	for i := range remaining {
		remaining[i] = i
	}

	perm := make([]int, 0, n)
	for i := 0; i < int(end); i++ {
		idx, err := r.AtMost(uint32(len(remaining) - 1))
		if err != nil {
			return nil, err
		}
		perm = append(perm, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	perm = append(perm, remaining...)
	return perm, nil
}

// Apply returns a new slice with values[i] placed at position perm[i] (the
// inverse application the TOC and coefficient-order readers need: entry i
// of the decoded stream belongs at natural-order position perm[i]).
func Apply[T any](values []T, perm []int) ([]T, error) {
	if len(values) != len(perm) {
		return nil, jerr.New(jerr.Perm, "permutation length %d does not match values length %d", len(perm), len(values))
	}
	out := make([]T, len(values))
	for i, p := range perm {
		if p < 0 || p >= len(out) {
			return nil, jerr.New(jerr.Perm, "permutation index %d out of range", p)
		}
		out[p] = values[i]
	}
	return out, nil
}
