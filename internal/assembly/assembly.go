// Package assembly implements the final VarDCT reconstruction stage (spec
// §4.11, C11): HF dequantization, chroma-from-luma, inverse DCT placement,
// and XYB -> linear-RGB -> sRGB-quantized output.
package assembly

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/deepteams/jxl/internal/imghdr"
	"github.com/deepteams/jxl/internal/lfgroup"
	"github.com/deepteams/jxl/internal/vardct"
)

// qmScale returns 0.8^(i-2) for i in [0,7], the per-position HF
// dequantization falloff spec §4.11 step 1 names.
func qmScale(i int) float64 {
	if i < 0 || i > 7 {
		return 1
	}
	return math.Pow(0.8, float64(i-2))
}

// DequantizeHF scales every non-LLF coefficient of every varblock per
// spec §4.11 step 1.
func DequantizeHF(pg *vardctPassGroup, g *lfgroup.LfGroup, hg *vardct.HfGlobal, quantBias [3]float64, quantBiasNum float64, xQmScaleExp, bQmScaleExp float64) {
	for c := 0; c < 3; c++ {
		// Only the chroma channels (X, B) carry a qm-scale exponent (spec
		// §4.11 step 1: "channel-specific x_qm_scale/b_qm_scale
		// exponents"); luma gets no extra 0.8^exp factor, i.e. exponent 0.
		chanExp := 0.0
		switch c {
		case 1:
			chanExp = xQmScaleExp
		case 2:
			chanExp = bQmScaleExp
		}
		for _, vb := range g.Varblocks {
			shape := lfgroup.DctShapes[vb.DctSelect]
			// size is the full coefficient count per varblock (cells *
			// 64), matching PlaceVarblocks' cells*64 buffer allocation
			// and passgroup's sample-scale natural-order sizing.
			size := (1 << uint(shape.LogRows)) * (1 << uint(shape.LogCols)) * 64
			dm := hg.Matrices[vardct.DctParamIndex[vb.DctSelect]]
			hfMul := float64(vb.HfMulMinus1 + 1)
			globalFactor := math.Pow(2, 16) / (hg.GlobalScale * hfMul)
			base := vb.CoeffOffset * 64
			// The leading cells-many positions hold the LLF values.
			llf := (1 << uint(shape.LogRows)) * (1 << uint(shape.LogCols))
			for i := llf; i < size; i++ {
				idx := base + i
				if idx >= len(pg.Coeffs[c]) {
					continue
				}
				v := float64(pg.Coeffs[c][idx])
				var dq float64
				if dm != nil && i < len(dm.Weights[c]) && dm.Weights[c][i] != 0 {
					dq = dm.Weights[c][i]
				} else {
					dq = 1
				}
				scale := globalFactor * qmScale(i) * math.Pow(0.8, chanExp) / dq
				// spec §4.11 step 1 keys the bias branch on the
				// coefficient's decoded *value* magnitude (|c| <= 1), not
				// its position in the block.
				if math.Abs(v) <= 1 {
					v *= quantBias[c]
				} else {
					v -= quantBiasNum / v
				}
				pg.Coeffs[c][idx] = int32(v * scale)
			}
		}
	}
}

// vardctPassGroup is a local alias for the imported vardct.PassGroup, whose
// coefficient buffers DequantizeHF rewrites in place.
type vardctPassGroup = vardct.PassGroup

// ChromaFromLuma applies spec §4.11 step 2: X += Y*kx, B += Y*kb, using
// kxLf/kbLf for the LLF position and the 1/64-resolution XFromY/BFromY
// planes for every other coefficient.
func ChromaFromLuma(pg *vardct.PassGroup, g *lfgroup.LfGroup, kxLf, kbLf float64) {
	for _, vb := range g.Varblocks {
		shape := lfgroup.DctShapes[vb.DctSelect]
		size := (1 << uint(shape.LogRows)) * (1 << uint(shape.LogCols)) * 64
		base := vb.CoeffOffset * 64
		cellX, cellY := vb.X/8, vb.Y/8
		cw64 := (g.CellsW + 7) / 8
		hfIdx := cellY*cw64 + cellX
		kxHf, kbHf := kxLf, kbLf
		if hfIdx < len(g.XFromY) {
			kxHf = float64(g.XFromY[hfIdx])
		}
		if hfIdx < len(g.BFromY) {
			kbHf = float64(g.BFromY[hfIdx])
		}
		for i := 0; i < size; i++ {
			idx := base + i
			if idx >= len(pg.Coeffs[0]) {
				continue
			}
			y := float64(pg.Coeffs[0][idx])
			k := kxHf
			kb := kbHf
			if i == 0 {
				k, kb = kxLf, kbLf
			}
			pg.Coeffs[1][idx] += int32(y * k)
			pg.Coeffs[2][idx] += int32(y * kb)
		}
	}
}

// ReconstructVarblock inverse-transforms one varblock's three channel
// coefficient sets into spatial samples (spec §4.11 step 3).
func ReconstructVarblock(pg *vardct.PassGroup, vb lfgroup.VarBlock) [3][]float64 {
	shape := lfgroup.DctShapes[vb.DctSelect]
	rows, cols := 1<<uint(shape.LogRows), 1<<uint(shape.LogCols)
	size := rows * cols * 64
	base := vb.CoeffOffset * 64
	var out [3][]float64
	for c := 0; c < 3; c++ {
		block := make([]float64, size)
		for i := 0; i < size && base+i < len(pg.Coeffs[c]); i++ {
			block[i] = float64(pg.Coeffs[c][base+i])
		}
		switch vb.DctSelect {
		case 6: // Hornuss
			out[c] = vardct.InverseHornuss(block)
		case 11, 12, 13, 14: // AFV0..3
			out[c] = vardct.InverseAFV(block, vb.DctSelect-11)
		default:
			out[c] = vardct.InverseDCT(block, rows*8, cols*8)
		}
	}
	return out
}

// XYBToRGB converts one opsin pixel (Y,X,B) to three int32 samples
// quantized per the declared bit depth (spec §4.11 step 4).
func XYBToRGB(y, x, b float64, hdr *imghdr.Header, intensityTarget float32) [3]int32 {
	p := [3]float64{y + x, y - x, b}
	for c := 0; c < 3; c++ {
		bias := float64(hdr.OpsinBias[c])
		cubeRoot := math.Cbrt(bias)
		p[c] = math.Pow(p[c]-cubeRoot, 3) + bias
		p[c] *= 255.0 / float64(intensityTarget)
	}

	opsinInv := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			opsinInv.Set(i, j, float64(hdr.OpsinInvMat[i][j]))
		}
	}
	var linearVec mat.VecDense
	linearVec.MulVec(opsinInv, mat.NewVecDense(3, p[:]))
	linear := [3]float64{linearVec.AtVec(0), linearVec.AtVec(1), linearVec.AtVec(2)}

	limit := hdr.BppOutputLimit()
	var out [3]int32
	for c := 0; c < 3; c++ {
		v := linear[c] / 255.0
		var srgb float64
		if v <= 0.0031308 {
			srgb = 12.92 * v
		} else {
			srgb = 1.055*math.Pow(v, 1/2.4) - 0.055
		}
		q := math.Round(srgb * float64(limit))
		if q < 0 {
			q = 0
		}
		if q > float64(limit) {
			q = float64(limit)
		}
		out[c] = int32(q)
	}
	return out
}
