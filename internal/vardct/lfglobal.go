package vardct

import (
	"github.com/deepteams/jxl/internal/bitio"
	"github.com/deepteams/jxl/internal/entropy"
	"github.com/deepteams/jxl/internal/matree"
)

// LfGlobal bundles the VarDCT frame-wide state that every LfGroup, HfPass,
// and PassGroup in the frame shares (spec §4.7 step 1's m_lf_scaled/
// global_scale/quant_lf, §4.7 step 2's per-channel thresholds, and §4.9's
// nb_block_ctx/num_hf_presets context-budget inputs).
type LfGlobal struct {
	QuantLF     float64
	MLfScaled   [3]float64
	ExtraPrec   int
	InvMLf      [3]float64 // 1/MLfScaled, used by adaptive LF smoothing's gap computation
	SkipAdaptLfSmooth bool

	LfThr [3][]float64 // per-channel LfIndices thresholds
	QfThr []int        // HfMul-1 thresholds for qf_idx

	NbBlockCtx   int
	NumHfPresets int
	PresetsLog   uint // ceil(log2(NumHfPresets)) bits read per group for hf_preset

	XFactorLF, BFactorLF float64
	InvColourFactor      float64

	// Tree/Codespec decode the 3-channel (Y,X,B) LfQuant modular sub-image
	// (spec §4.7 step 1); one tree and codespec cover all three channels.
	Tree     *matree.Tree
	Codespec *entropy.Codespec
}

// KxLf, KbLf are the frame-wide chroma-from-luma LF correlation factors
// (spec §4.11 step 2: "kx_lf, kb_lf ... derived from x_factor_lf,
// b_factor_lf and inv_colour_factor"). The exact derivation formula isn't
// given in the available spec text; this decoder uses the same
// centered-offset-times-scale shape libjxl's HF correlation planes use
// (spec's XFromY/BFromY are parsed the same way), documented as an Open
// Question in DESIGN.md.
func (g *LfGlobal) KxLf() float64 { return (g.XFactorLF - 128) * g.InvColourFactor }
func (g *LfGlobal) KbLf() float64 { return (g.BFactorLF - 128) * g.InvColourFactor }

// DecodeLfGlobal reads the frame-wide VarDCT state that precedes every
// LfGroup section (spec §4.7).
func DecodeLfGlobal(r *bitio.Reader) (*LfGlobal, error) {
	g := &LfGlobal{}

	quantLF, err := r.U32(16, 0, 1, 11, 2049, 11, 4097, 12)
	if err != nil {
		return nil, err
	}
	g.QuantLF = float64(quantLF)

	for c := 0; c < 3; c++ {
		v, err := r.F16()
		if err != nil {
			return nil, err
		}
		g.MLfScaled[c] = float64(v)
		if g.MLfScaled[c] == 0 {
			g.MLfScaled[c] = 1
		}
		g.InvMLf[c] = 1 / g.MLfScaled[c]
	}

	extraPrec, err := r.U(3)
	if err != nil {
		return nil, err
	}
	g.ExtraPrec = int(extraPrec)

	skip, err := r.U(1)
	if err != nil {
		return nil, err
	}
	g.SkipAdaptLfSmooth = skip != 0

	for c := 0; c < 3; c++ {
		n, err := r.U(3)
		if err != nil {
			return nil, err
		}
		thr := make([]float64, n)
		for i := range thr {
			v, err := r.F16()
			if err != nil {
				return nil, err
			}
			thr[i] = float64(v)
		}
		g.LfThr[c] = thr
	}

	nQfThr, err := r.U(3)
	if err != nil {
		return nil, err
	}
	g.QfThr = make([]int, nQfThr)
	for i := range g.QfThr {
		v, err := r.U(8)
		if err != nil {
			return nil, err
		}
		g.QfThr[i] = int(v)
	}

	nbBlockCtx, err := r.U32(1, 0, 1, 6, 1, 10, 1, 14)
	if err != nil {
		return nil, err
	}
	g.NbBlockCtx = int(nbBlockCtx)

	numPresets, err := r.U32(1, 0, 1, 2, 1, 4, 1, 8)
	if err != nil {
		return nil, err
	}
	g.NumHfPresets = int(numPresets)
	g.PresetsLog = bitsForCount(g.NumHfPresets)

	xFactor, err := r.U(8)
	if err != nil {
		return nil, err
	}
	g.XFactorLF = float64(xFactor)
	bFactor, err := r.U(8)
	if err != nil {
		return nil, err
	}
	g.BFactorLF = float64(bFactor)
	invColour, err := r.F16()
	if err != nil {
		return nil, err
	}
	g.InvColourFactor = float64(invColour)

	// The tree's own node stream is entropy-coded over six fixed contexts
	// (spec §4.4: property/value/predictor/offset/shift/multiplier-token),
	// decoded before the tree itself.
	treeCS, err := entropy.DecodeCodespec(r, 6)
	if err != nil {
		return nil, err
	}
	tree, err := matree.DecodeTree(treeCS, r)
	if err != nil {
		return nil, err
	}
	g.Tree = tree

	cs, err := entropy.DecodeCodespec(r, tree.NumLeaves)
	if err != nil {
		return nil, err
	}
	g.Codespec = cs

	return g, nil
}

// bitsForCount returns ceil(log2(n)) for n >= 1.
func bitsForCount(n int) uint {
	if n <= 1 {
		return 0
	}
	b := uint(0)
	for (1 << b) < n {
		b++
	}
	return b
}
