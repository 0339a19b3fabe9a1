package lfgroup

import "testing"

// A constant LF plane should be unchanged by adaptive smoothing: every
// neighbor average equals the center, so gap is 0 and the blend factor is
// a no-op (spec §8: "LfGroup smoothing no-op-on-constant-input").
func TestSmoothLFConstantInputIsNoOp(t *testing.T) {
	g := NewLfGroup(5, 5)
	for c := 0; c < 3; c++ {
		for i := range g.LfQuant[c] {
			g.LfQuant[c][i] = 7
		}
	}
	SmoothLF(g, [3]float64{1, 1, 1}, false)
	for c := 0; c < 3; c++ {
		for i, v := range g.LfQuant[c] {
			if v != 7 {
				t.Fatalf("channel %d cell %d = %v, want 7 (unchanged)", c, i, v)
			}
		}
	}
}

func TestQfIndex(t *testing.T) {
	g := NewLfGroup(8, 8)
	g.Varblocks = []VarBlock{{HfMulMinus1: 0}, {HfMulMinus1: 5}, {HfMulMinus1: 10}}
	QfIndex(g, []int{3, 8})
	want := []int{0, 1, 2}
	for i, vb := range g.Varblocks {
		if vb.QfIdx != want[i] {
			t.Fatalf("varblock %d qf_idx = %d, want %d", i, vb.QfIdx, want[i])
		}
	}
}
