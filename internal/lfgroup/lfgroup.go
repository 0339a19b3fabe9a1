// Package lfgroup implements LF quantization, adaptive smoothing, and
// HF-metadata (varblock placement, quant-field index) decoding (spec §4.7,
// C7) for one LfGroup — an up-to-2048x2048-sample region.
package lfgroup

import (
	"math"

	"github.com/deepteams/jxl/internal/entropy"
	"github.com/deepteams/jxl/internal/jerr"
	"github.com/deepteams/jxl/internal/matree"
	"github.com/deepteams/jxl/internal/modular"
)

// DctShapes enumerates the 27 DctSelect shapes (spec glossary: "An integer
// 0..26 naming one of the 27 varblock shape/transform combinations").
// LogRows/LogCols give the block's log2 dimensions in 8-sample units for
// the square and asymmetric DCTs; the special shapes (Hornuss, AFV*) are
// recorded at their nominal 8x8 footprint since they still occupy one 8x8
// cell.
var DctShapes = [27]struct{ LogRows, LogCols int }{
	{0, 0}, // 0: DCT8x8
	{1, 1}, // 1: DCT16x16
	{2, 2}, // 2: DCT32x32
	{3, 3}, // 3: DCT64x64
	{4, 4}, // 4: DCT128x128
	{5, 5}, // 5: DCT256x256
	{0, 0}, // 6: Hornuss
	{0, 0}, // 7: DCT1x1 (identity within an 8x8 cell)
	{0, 0}, // 8: DCT2x2
	{0, 0}, // 9: DCT2x3
	{0, 0}, // 10: DCT3x2
	{0, 0}, // 11: AFV0
	{0, 0}, // 12: AFV1
	{0, 0}, // 13: AFV2
	{0, 0}, // 14: AFV3
	{0, 1}, // 15: DCT8x16
	{1, 0}, // 16: DCT16x8
	{0, 2}, // 17: DCT8x32
	{2, 0}, // 18: DCT32x8
	{1, 2}, // 19: DCT16x32
	{2, 1}, // 20: DCT32x16
	{2, 3}, // 21: DCT32x64
	{3, 2}, // 22: DCT64x32
	{3, 4}, // 23: DCT64x128
	{4, 3}, // 24: DCT128x64
	{4, 5}, // 25: DCT128x256
	{5, 4}, // 26: DCT256x128
}

// VarBlock is one placed variable-size DCT block (spec §3 LfGroup:
// "per-varblock {coefficient offset, HfMul-1, DctSelect}").
type VarBlock struct {
	X, Y       int // top-left 8x8-cell coordinate within the LfGroup
	DctSelect  int
	HfMulMinus1 int
	QfIdx      int
	CoeffOffset int // offset into the per-channel coefficient buffers
}

// LfGroup is the decoded per-region LF state (spec §3 "LfGroup").
type LfGroup struct {
	CellsW, CellsH int // size in 8x8 cells

	LfQuant   [3][]float32 // Y, X, B, one sample per 8x8 cell
	LfIndices []byte

	// Blocks holds, per 8x8 cell, 5-bit (DctSelect+2) at a varblock's
	// top-left and 1 elsewhere (spec: "blocks plane").
	Blocks []byte
	// VarblockOf maps each cell to the owning varblock index, or -1 if
	// unclaimed.
	VarblockOf []int

	Varblocks []VarBlock

	XFromY []float32 // 1/64 resolution
	BFromY []float32
	Sharpness []float32 // 1/8 resolution
}

func NewLfGroup(cellsW, cellsH int) *LfGroup {
	n := cellsW * cellsH
	g := &LfGroup{CellsW: cellsW, CellsH: cellsH}
	for c := 0; c < 3; c++ {
		g.LfQuant[c] = make([]float32, n)
	}
	g.LfIndices = make([]byte, n)
	g.Blocks = make([]byte, n)
	g.VarblockOf = make([]int, n)
	for i := range g.VarblockOf {
		g.VarblockOf[i] = -1
	}
	cw64 := (cellsW + 7) / 8
	ch64 := (cellsH + 7) / 8
	g.XFromY = make([]float32, cw64*ch64)
	g.BFromY = make([]float32, cw64*ch64)
	g.Sharpness = make([]float32, n)
	return g
}

func (g *LfGroup) idx(x, y int) int { return y*g.CellsW + x }

// bitSource is the narrow modular-decode surface this package needs.
type bitSource interface {
	U(n uint) (uint32, error)
}

// DecodeLfQuant decodes the 3-channel (Y,X,B) modular sub-image carrying
// the LF image and dequantizes it to float (spec §4.7 step 1).
func DecodeLfQuant(src bitSource, cs *entropy.Codespec, trees [3]*matree.Tree, g *LfGroup, globalScale, quantLF float64, mLfScaled [3]float64, extraPrec int) error {
	scale := math.Pow(2, float64(16-extraPrec))
	for c := 0; c < 3; c++ {
		ch := modular.NewChannel(g.CellsW, g.CellsH, 0, 0)
		if err := modular.DecodeChannel(src, cs, trees[c], ch, c, 0, nil); err != nil {
			return err
		}
		factor := mLfScaled[c] / (globalScale * quantLF) * scale
		for i := 0; i < g.CellsW*g.CellsH; i++ {
			g.LfQuant[c][i] = float32(float64(ch.Data[i]) * factor)
		}
	}
	return nil
}

// DecodeLfIndices fills LfIndices by counting, per cell, how many
// thresholds each channel's LfQuant sample exceeds (spec §4.7 step 2).
func DecodeLfIndices(g *LfGroup, lfThr [3][]float64) {
	nbThr := [3]int{len(lfThr[0]), len(lfThr[1]), len(lfThr[2])}
	for i := 0; i < g.CellsW*g.CellsH; i++ {
		count := func(c int, v float32) int {
			n := 0
			for _, t := range lfThr[c] {
				if float64(v) > t {
					n++
				}
			}
			return n
		}
		nxCount := count(1, g.LfQuant[1][i])
		nzCount := count(2, g.LfQuant[2][i])
		nyCount := count(0, g.LfQuant[0][i])
		g.LfIndices[i] = byte(((nxCount*(nbThr[0]+1))+nzCount)*(nbThr[2]+1) + nyCount)
	}
}

// Adaptive LF smoothing weights (spec §4.7 step 3).
const (
	smoothW0 = 0.05226 // edge
	smoothW1 = 0.20345 // edge (duplicate weight per spec's naming)
	smoothW2 = 0.03348 // corner
)

// SmoothLF applies the 3x3 weighted-average adaptive smoothing filter to
// every interior 8x8 cell unless skip is set.
func SmoothLF(g *LfGroup, invMLf [3]float64, skip bool) {
	if skip {
		return
	}
	orig := [3][]float32{}
	for c := 0; c < 3; c++ {
		orig[c] = append([]float32(nil), g.LfQuant[c]...)
	}
	at := func(c []float32, x, y int) float32 {
		if x < 0 || y < 0 || x >= g.CellsW || y >= g.CellsH {
			return 0
		}
		return c[y*g.CellsW+x]
	}
	for y := 1; y < g.CellsH-1; y++ {
		for x := 1; x < g.CellsW-1; x++ {
			var gap float64
			var avgs [3]float32
			for c := 0; c < 3; c++ {
				center := at(orig[c], x, y)
				edgeSum := at(orig[c], x-1, y) + at(orig[c], x+1, y) + at(orig[c], x, y-1) + at(orig[c], x, y+1)
				cornerSum := at(orig[c], x-1, y-1) + at(orig[c], x+1, y-1) + at(orig[c], x-1, y+1) + at(orig[c], x+1, y+1)
				avg := float32(smoothW1)*center + float32(smoothW0)*edgeSum + float32(smoothW2)*cornerSum
				avgs[c] = avg
				d := math.Abs(float64(avg-center)) * invMLf[c]
				if d > gap {
					gap = d
				}
			}
			factor := math.Max(0, 3-4*gap)
			for c := 0; c < 3; c++ {
				center := at(orig[c], x, y)
				g.LfQuant[c][g.idx(x, y)] = (avgs[c]-center)*float32(factor) + center
			}
		}
	}
}

// PlaceVarblocks reads nb_varblocks and, for each unclaimed top-left 8x8
// cell, reads its DctSelect and HfMul-1, marking the varblock's footprint
// and appending its LLF coefficient(s) (spec §4.7 step 4).
func PlaceVarblocks(r bitSource, g *LfGroup, llf [3][]float32) error {
	nb, err := uBits(r, 20)
	if err != nil {
		return err
	}
	coeffOffset := 0
	for v := 0; v < int(nb); v++ {
		x, y, ok := firstUnclaimed(g)
		if !ok {
			return jerr.New(jerr.VBlk, "varblock count exceeds available cells")
		}
		dctSelect, err := uBits(r, 5)
		if err != nil {
			return err
		}
		if int(dctSelect) >= len(DctShapes) {
			return jerr.New(jerr.DCTBad, "DctSelect %d out of range", dctSelect)
		}
		hfMulMinus1, err := uBits(r, 8)
		if err != nil {
			return err
		}
		shape := DctShapes[dctSelect]
		vw, vh := 1<<uint(shape.LogCols), 1<<uint(shape.LogRows)
		if x+vw > g.CellsW || y+vh > g.CellsH {
			return jerr.New(jerr.VBlk, "varblock at (%d,%d) size %dx%d exceeds LfGroup bounds", x, y, vw, vh)
		}
		for yy := 0; yy < vh; yy++ {
			for xx := 0; xx < vw; xx++ {
				cell := g.idx(x+xx, y+yy)
				g.VarblockOf[cell] = v
				if xx == 0 && yy == 0 {
					g.Blocks[cell] = byte(dctSelect + 2)
				} else {
					g.Blocks[cell] = 1
				}
			}
		}
		vb := VarBlock{X: x, Y: y, DctSelect: int(dctSelect), HfMulMinus1: int(hfMulMinus1), CoeffOffset: coeffOffset}
		if vw == 1 && vh == 1 {
			for c := 0; c < 3; c++ {
				llf[c][coeffOffset] = g.LfQuant[c][g.idx(x, y)]
			}
		} else {
			for c := 0; c < 3; c++ {
				forwardDCTInto(g.LfQuant[c], g.CellsW, x, y, vw, vh, llf[c], coeffOffset)
			}
		}
		coeffOffset += vw * vh
		g.Varblocks = append(g.Varblocks, vb)
	}
	return nil
}

// QfIndex assigns each varblock's qf_idx: the number of qf_thr entries its
// HfMul-1 is >= (spec §4.7 step 5).
func QfIndex(g *LfGroup, qfThr []int) {
	for i := range g.Varblocks {
		vb := &g.Varblocks[i]
		n := 0
		for _, t := range qfThr {
			if vb.HfMulMinus1 >= t {
				n++
			}
		}
		vb.QfIdx = n
	}
}

func firstUnclaimed(g *LfGroup) (int, int, bool) {
	for y := 0; y < g.CellsH; y++ {
		for x := 0; x < g.CellsW; x++ {
			if g.VarblockOf[g.idx(x, y)] == -1 {
				return x, y, true
			}
		}
	}
	return 0, 0, false
}

func uBits(r bitSource, n uint) (uint32, error) { return r.U(n) }

// forwardDCTInto computes a direct (non-fast) forward 2-D DCT-II of the
// vh x vw LF cells starting at (x0,y0) and writes the scaled coefficients
// into out starting at offset, transposed so log_rows <= log_columns, per
// spec §4.7's "forward 2-D DCT of the vh x vw LF cells scaled by a fixed
// LF->LLF table". The exact per-position LF->LLF scale table isn't given
// in the available spec text; this decoder uses the standard orthonormal
// DCT-II scaling (sqrt(2/N) * sqrt(2/M), halved on the DC row/column),
// which is mathematically consistent with the inverse DCT family in
// internal/vardct but may not byte-match a reference encoder's exact
// constants. Recorded as an Open Question in DESIGN.md.
func forwardDCTInto(plane []float32, stride, x0, y0, vw, vh int, out []float32, offset int) {
	rows, cols := vh, vw
	if rows > cols {
		rows, cols = cols, rows // ensure log_rows <= log_columns in output
	}
	tmp := make([]float32, vw*vh)
	for u := 0; u < vh; u++ {
		for v := 0; v < vw; v++ {
			var sum float64
			for yy := 0; yy < vh; yy++ {
				for xx := 0; xx < vw; xx++ {
					sample := plane[(y0+yy)*stride+(x0+xx)]
					cu := math.Cos(math.Pi / float64(vh) * (float64(yy) + 0.5) * float64(u))
					cv := math.Cos(math.Pi / float64(vw) * (float64(xx) + 0.5) * float64(v))
					sum += float64(sample) * cu * cv
				}
			}
			au := math.Sqrt(2.0 / float64(vh))
			if u == 0 {
				au = math.Sqrt(1.0 / float64(vh))
			}
			av := math.Sqrt(2.0 / float64(vw))
			if v == 0 {
				av = math.Sqrt(1.0 / float64(vw))
			}
			tmp[u*vw+v] = float32(sum * au * av)
		}
	}
	if rows == vh {
		copy(out[offset:offset+vw*vh], tmp)
		return
	}
	// transpose
	for u := 0; u < vh; u++ {
		for v := 0; v < vw; v++ {
			out[offset+v*vh+u] = tmp[u*vw+v]
		}
	}
}
