package modular

import "github.com/deepteams/jxl/internal/jerr"

// neighbors holds the eight spatial neighbor values a predictor or MA-tree
// property can reference (spec §4.5 step 2), with spec-defined
// out-of-bounds fallbacks already applied by the caller.
type neighbors struct {
	W, N, NW, NE, NN, NEE, WW, NWW int32
}

// wpErrorEntry is the five-int32-per-pixel error record the weighted
// predictor keeps over the current and previous row (spec §4.5 step 1:
// "error plane of five int32 per pixel over two rows").
type wpErrorEntry struct {
	// e[0..3] are the per-sub-predictor absolute errors at this pixel, which
	// the max-abs-of-WP-errors MA-tree property reads; e[4] holds the
	// pixel's decoded value.
	e [5]int32
}

// wpState is the weighted-predictor running state for one channel decode
// (spec §4.5 step 1). It is only allocated when the MA tree can reach
// property 15 or predictor 6 (matree.Tree.UsesWeightedPredictor).
//
// The governing spec section (its own "§H") is not included in spec.md's
// text; the weighted-predictor shape below is this decoder's own
// documented reconstruction of the well-known FLIF/JPEG-XL weighted
// predictor (four neighbor-derived sub-predictions, each tracked by a
// running absolute-error accumulator that feeds an inverse-error weight),
// calibrated to match spec §4.5's literal constraints: four sub-
// predictions, weights derived from "24/(err+1)"-style reciprocals, and a
// final clamp to [min(W,N,NE), max(W,N,NE)] when the neighbor errors agree
// in sign. Open Question decision, recorded in DESIGN.md.
type wpState struct {
	width int
	rows  [2][]wpErrorEntry // rows[0] = previous row, rows[1] = current row
	trueErr [4]int32        // running per-sub-predictor error accumulators
}

func newWPState(width int) *wpState {
	return &wpState{
		width: width,
		rows:  [2][]wpErrorEntry{make([]wpErrorEntry, width), make([]wpErrorEntry, width)},
	}
}

func (s *wpState) beginRow() {
	s.rows[0], s.rows[1] = s.rows[1], s.rows[0]
	for i := range s.rows[1] {
		s.rows[1][i] = wpErrorEntry{}
	}
}

// wpWeight derives an inverse-error weight from a running accumulator,
// per spec's "24/(err+1)-style reciprocals".
func wpWeight(err int32) int32 {
	if err < 0 {
		err = -err
	}
	return (24 << 8) / (err + 1)
}

// predict computes the four sub-predictions, the combined p4 value, and
// records the error inputs needed for this pixel's wpErrorEntry once the
// true pixel value becomes known (via recordError).
func (s *wpState) predict(x int, n neighbors) (subpred [4]int32, p4 int32) {
	subpred[0] = clampTo(n.W+n.N-n.NW, minI32(n.W, n.N), maxI32(n.W, n.N))
	subpred[1] = n.W
	subpred[2] = n.N
	subpred[3] = n.W + n.NEE - n.NE

	w := [4]int32{
		wpWeight(s.trueErr[0]),
		wpWeight(s.trueErr[1]),
		wpWeight(s.trueErr[2]),
		wpWeight(s.trueErr[3]),
	}
	var sumW, sumWP int64
	for i := 0; i < 4; i++ {
		sumW += int64(w[i])
		sumWP += int64(w[i]) * int64(subpred[i])
	}
	var avg int32
	if sumW > 0 {
		avg = int32(sumWP / sumW)
	} else {
		avg = subpred[1]
	}

	// Clamp to [min(W,N,NE), max(W,N,NE)] when the running per-predictor
	// errors all agree in sign (spec §4.5 step 2).
	allPos, allNeg := true, true
	for _, e := range s.trueErr {
		if e < 0 {
			allPos = false
		}
		if e > 0 {
			allNeg = false
		}
	}
	if allPos || allNeg {
		lo := minI32(n.W, minI32(n.N, n.NE))
		hi := maxI32(n.W, maxI32(n.N, n.NE))
		avg = clampTo(avg, lo, hi)
	}
	p4 = avg * 8 // scaled so predictor 6's (p4+3)>>3 recovers avg with rounding
	return subpred, p4
}

// recordError updates the running error accumulators and this pixel's
// wpErrorEntry once the actual decoded value is known.
func (s *wpState) recordError(x int, subpred [4]int32, actual int32) {
	var e wpErrorEntry
	for i := 0; i < 4; i++ {
		err := actual - subpred[i]
		e.e[i] = absI32(err)
		// Exponential decay keeps the accumulator bounded while still
		// tracking recent prediction quality.
		s.trueErr[i] = (s.trueErr[i]*3 + err) / 4
	}
	e.e[4] = actual
	s.rows[1][x] = e
}

// maxAbsWPError implements MA-tree property 15: the max-abs of the
// current pixel's four sub-predictor errors, from the previous row's
// entry at the same column (the only one available at evaluation time,
// since errors are recorded after the value is decoded).
func (s *wpState) maxAbsWPError(x int) int32 {
	if x < 0 || x >= len(s.rows[0]) {
		return 0
	}
	e := s.rows[0][x]
	m := int32(0)
	for i := 0; i < 4; i++ {
		if e.e[i] > m {
			m = e.e[i]
		}
	}
	return m
}

func clampTo(v, lo, hi int32) int32 {
	if lo > hi {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minI32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxI32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func absI32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// applyPredictor computes the prediction for predictor index pred (0..13)
// given the spatial neighbors and (when needed) the weighted-predictor p4.
func applyPredictor(pred int, n neighbors, p4 int32) (int32, error) {
	switch pred {
	case 0:
		return 0, nil
	case 1:
		return n.W, nil
	case 2:
		return n.N, nil
	case 3:
		return floorDiv2(n.W + n.N), nil
	case 4:
		if absI32(n.N-n.NW) < absI32(n.W-n.NW) {
			return n.W, nil
		}
		return n.N, nil
	case 5:
		return clampTo(n.W+n.N-n.NW, minI32(n.W, n.N), maxI32(n.W, n.N)), nil
	case 6:
		return (p4 + 3) >> 3, nil
	case 7:
		return n.NE, nil
	case 8:
		return n.NW, nil
	case 9:
		return n.WW, nil
	case 10:
		return floorDiv2(n.W + n.NW), nil
	case 11:
		return floorDiv2(n.N + n.NW), nil
	case 12:
		return floorDiv2(n.N + n.NE), nil
	case 13:
		return (6*n.N - 2*n.NN + 7*n.W + n.WW + n.NEE + 3*n.NE + 8) / 16, nil
	default:
		return 0, jerr.New(jerr.Pred, "predictor %d out of range", pred)
	}
}

func floorDiv2(v int32) int32 {
	if v >= 0 {
		return v / 2
	}
	return -((-v + 1) / 2)
}
