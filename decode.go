package jxl

import (
	"io"

	"github.com/deepteams/jxl/internal/assembly"
	"github.com/deepteams/jxl/internal/bitio"
	"github.com/deepteams/jxl/internal/container"
	"github.com/deepteams/jxl/internal/entropy"
	"github.com/deepteams/jxl/internal/frame"
	"github.com/deepteams/jxl/internal/imghdr"
	"github.com/deepteams/jxl/internal/jerr"
	"github.com/deepteams/jxl/internal/jlog"
	"github.com/deepteams/jxl/internal/lfgroup"
	"github.com/deepteams/jxl/internal/matree"
	"github.com/deepteams/jxl/internal/modular"
	"github.com/deepteams/jxl/internal/vardct"
)

// decodeReader drives the full component chain (spec §2): container demux
// (C2) -> bit reader (C1) -> image header -> frame header & TOC (C6) ->
// Modular (C5) or VarDCT (C7-C11) dispatch -> the caller's Image.
func decodeReader(r io.Reader) (*Image, error) {
	readFn := func(buf []byte) (int, error) {
		n, err := r.Read(buf)
		if err == io.EOF {
			err = nil
		}
		return n, err
	}
	src := container.Open(readFn)
	br := bitio.NewReader(src)

	m0, err := br.U(8)
	if err != nil {
		return nil, err
	}
	m1, err := br.U(8)
	if err != nil {
		return nil, err
	}
	if m0 != 0xFF || m1 != 0x0A {
		return nil, jerr.New(jerr.NotJXL, "missing codestream marker FF 0A")
	}

	hdr, err := imghdr.Decode(br)
	if err != nil {
		return nil, err
	}
	jlog.Debugf("jxl: image header %dx%d colorspace=%d", hdr.Width, hdr.Height, hdr.ColorSpace)

	grayscale := hdr.ColorSpace == imghdr.ColorGrayscale
	fh, err := frame.Decode(br, grayscale)
	if err != nil {
		return nil, err
	}
	if fh.Type == frame.TypeReferenceOnly {
		return nil, jerr.New(jerr.USmp, "reference-only frames are rejected (blending other than REPLACE is out of scope)")
	}

	width, height := hdr.Width, hdr.Height
	if fh.Width > 0 {
		width = fh.Width
	}
	if fh.Height > 0 {
		height = fh.Height
	}
	// DeriveLayout reads h.Width/h.Height directly; fill in the resolved
	// frame dimensions (the image header's, absent an explicit crop) so
	// the uncropped common case gets real group/LfGroup counts instead of
	// DeriveLayout's zero-dimension 1x1 fallback.
	fh.Width, fh.Height = width, height
	layout := frame.DeriveLayout(fh)

	var tocSize int
	if fh.Encoding == frame.EncodingModular {
		tocSize = 1
	} else {
		tocSize = 2 + layout.NumLfGroups*(1+fh.NumPasses)
	}
	if _, err := frame.DecodeTOC(br, tocSize); err != nil {
		return nil, err
	}

	if fh.Encoding == frame.EncodingModular {
		return decodeModularFrame(br, hdr, width, height)
	}
	return decodeVarDCTFrame(br, hdr, fh, layout, width, height)
}

// chShape is the per-channel (width, height) pair a Modular image's
// decode-order channel list uses, derived from its transform records
// (spec §4.5: RCT leaves channel shapes alone; Palette replaces a run of
// NumC channels with a (NumColours x NumC) palette-meta channel and a
// (width x height) index channel).
type chShape struct{ w, h int }

func buildChannelShapes(transforms []modular.Transform, total, width, height int) []chShape {
	shapes := make([]chShape, total)
	for i := range shapes {
		shapes[i] = chShape{width, height}
	}
	for _, t := range transforms {
		p, ok := t.(*modular.Palette)
		if !ok {
			continue
		}
		next := make([]chShape, 0, len(shapes)-p.NumC+2)
		for i, s := range shapes {
			if i == p.BeginC {
				next = append(next, chShape{p.NumColours, p.NumC}, chShape{width, height})
			}
			if i >= p.BeginC && i < p.BeginC+p.NumC {
				continue
			}
			next = append(next, s)
		}
		shapes = next
	}
	return shapes
}

// decodeModularFrame implements the Modular sub-image pipeline (spec
// §4.5, C5) for a whole frame: one global MA tree + codespec, the
// transform list, then every stored channel in bitstream order.
func decodeModularFrame(br *bitio.Reader, hdr *imghdr.Header, width, height int) (*Image, error) {
	numColor := 3
	if hdr.ColorSpace == imghdr.ColorGrayscale {
		numColor = 1
	}
	total := numColor + len(hdr.ExtraChannels)

	treeCS, err := entropy.DecodeCodespec(br, 6)
	if err != nil {
		return nil, err
	}
	tree, err := matree.DecodeTree(treeCS, br)
	if err != nil {
		return nil, err
	}
	cs, err := entropy.DecodeCodespec(br, tree.NumLeaves)
	if err != nil {
		return nil, err
	}

	transforms, numStored, err := modular.DecodeTransforms(br, total)
	if err != nil {
		return nil, err
	}
	shapes := buildChannelShapes(transforms, total, width, height)
	if len(shapes) != numStored {
		return nil, jerr.New(jerr.Xfm, "transform channel-count mismatch: %d shapes, %d stored", len(shapes), numStored)
	}

	channels := make([]*modular.Channel, numStored)
	for i, sh := range shapes {
		ch := modular.NewChannel(sh.w, sh.h, 0, 0)
		var priors []modular.PriorChannel
		for j := 0; j < i; j++ {
			if channels[j].Width == ch.Width && channels[j].Height == ch.Height {
				priors = append(priors, modular.PriorChannel{Ch: channels[j]})
			}
		}
		if err := modular.DecodeChannel(br, cs, tree, ch, i, 0, priors); err != nil {
			return nil, err
		}
		channels[i] = ch
	}

	img := &modular.Image{Channels: channels, Transforms: transforms}
	if err := img.ApplyTransforms(); err != nil {
		return nil, err
	}
	return assembleModularOutput(img, hdr, width, height, numColor)
}

func clampU16(v int32, limit uint16) uint16 {
	if v < 0 {
		return 0
	}
	if v > int32(limit) {
		return limit
	}
	return uint16(v)
}

// assembleModularOutput copies the detransformed Modular planes straight
// to the output (spec §4.11 intro: "Modular frames skip steps 1-4 and
// emit modular channels directly").
func assembleModularOutput(img *modular.Image, hdr *imghdr.Header, width, height, numColor int) (*Image, error) {
	if len(img.Channels) < numColor {
		return nil, jerr.New(jerr.Coef, "modular image has %d channels, need %d color channels", len(img.Channels), numColor)
	}
	limit := uint16(hdr.BppOutputLimit())
	out := &Image{Width: width, Height: height, BitDepth: hdr.BitDepth, Grayscale: numColor == 1}
	out.Planes = make([][]uint16, numColor)
	for c := 0; c < numColor; c++ {
		ch := img.Channels[c]
		plane := make([]uint16, width*height)
		for y := 0; y < height && y < ch.Height; y++ {
			for x := 0; x < width && x < ch.Width; x++ {
				plane[y*width+x] = clampU16(ch.At(x, y), limit)
			}
		}
		out.Planes[c] = plane
	}
	for i, ec := range hdr.ExtraChannels {
		if ec.Type != 0 { // only alpha (type 0) is carried through; §4 supplement
			continue
		}
		idx := numColor + i
		if idx >= len(img.Channels) {
			continue
		}
		ch := img.Channels[idx]
		alimit := uint16((1 << uint(ec.BitDepth)) - 1)
		alpha := make([]uint16, width*height)
		for y := 0; y < height && y < ch.Height; y++ {
			for x := 0; x < width && x < ch.Width; x++ {
				alpha[y*width+x] = clampU16(ch.At(x, y), alimit)
			}
		}
		out.Alpha = alpha
	}
	return out, nil
}

// decodeVarDCTFrame implements the VarDCT pipeline (spec §§4.7-4.11,
// C7-C11): LfGlobal, per-LfGroup LF quantization/smoothing/varblock
// placement, HfGlobal dequantization matrices, per-(pass,LfGroup) HF
// coefficient decode, then dequantize/chroma-from-luma/inverse-DCT/XYB
// assembly into the output RGB planes.
//
// Simplification (documented in DESIGN.md): this core treats each
// LfGroup as exactly one coefficient-decode group rather than subdividing
// it into its up-to-64 constituent groups, and only single-pass frames
// are accepted (progressive multi-pass frames are a spec §1 Non-goal).
func decodeVarDCTFrame(br *bitio.Reader, hdr *imghdr.Header, fh *frame.Header, layout frame.Layout, width, height int) (*Image, error) {
	if fh.NumPasses != 1 {
		return nil, jerr.New(jerr.USmp, "progressive multi-pass frames are rejected")
	}

	lfg, err := vardct.DecodeLfGlobal(br)
	if err != nil {
		return nil, err
	}

	edge := 1 << uint(7+fh.GroupSizeShift) // group edge, samples
	lfEdgeCells := edge                    // LfGroup edge, 8x8 cells (LfGroup edge = 8x group edge samples = edge cells)
	lfEdgeSamples := lfEdgeCells * 8

	totalCellsW := (width + 7) / 8
	totalCellsH := (height + 7) / 8

	groups := make([]*lfgroup.LfGroup, layout.NumLfGroups)
	llf := make([][3][]float32, layout.NumLfGroups)

	for gi := 0; gi < layout.NumLfGroups; gi++ {
		gx := gi % layout.LfGroupsPerRow
		gy := gi / layout.LfGroupsPerRow
		cellsW := min(lfEdgeCells, totalCellsW-gx*lfEdgeCells)
		cellsH := min(lfEdgeCells, totalCellsH-gy*lfEdgeCells)
		if cellsW <= 0 || cellsH <= 0 {
			cellsW, cellsH = 1, 1
		}
		g := lfgroup.NewLfGroup(cellsW, cellsH)

		// global_scale (HfGlobal) isn't known until after every LfGroup is
		// read in bitstream order (spec §4.6 TOC: LfGlobal, per-LfGroup,
		// HfGlobal, ...), so it cannot be divided in here. DecodeLfQuant is
		// called with globalScale=1.0 (i.e. dequantizes by m_lf_scaled/
		// quant_lf only) and the missing 1/global_scale factor is applied
		// as a pure rescale of the LLF seed values once HfGlobal is
		// decoded, below (see the "rescale LLF" loop after DecodeHfGlobal).
		trees := [3]*matree.Tree{lfg.Tree, lfg.Tree, lfg.Tree}
		if err := lfgroup.DecodeLfQuant(br, lfg.Codespec, trees, g, 1.0, lfg.QuantLF, lfg.MLfScaled, lfg.ExtraPrec); err != nil {
			return nil, err
		}
		lfgroup.DecodeLfIndices(g, lfg.LfThr)
		lfgroup.SmoothLF(g, lfg.InvMLf, lfg.SkipAdaptLfSmooth)

		var llfArr [3][]float32
		for c := range llfArr {
			llfArr[c] = make([]float32, cellsW*cellsH)
		}
		if err := lfgroup.PlaceVarblocks(br, g, llfArr); err != nil {
			return nil, err
		}
		lfgroup.QfIndex(g, lfg.QfThr)

		groups[gi] = g
		llf[gi] = llfArr
	}

	var dctSelectUsed uint32
	for _, g := range groups {
		for _, vb := range g.Varblocks {
			dctSelectUsed |= 1 << uint(vardct.DctParamIndex[vb.DctSelect])
		}
	}
	hg, err := vardct.DecodeHfGlobal(br, dctSelectUsed, vardct.DefaultParamShapes)
	if err != nil {
		return nil, err
	}

	// Apply the 1/global_scale factor DecodeLfQuant couldn't: it ran
	// before global_scale (an HfGlobal field) was decoded, using 1.0 in
	// its place (spec §4.7 step 1's formula divides by
	// global_scale*quant_lf). Rescaling the already-forward-DCT'd LLF
	// seed values here is equivalent to having divided by the real
	// global_scale up front, since the forward DCT in
	// lfgroup.PlaceVarblocks is linear.
	if hg.GlobalScale != 0 {
		invGlobalScale := float32(1.0 / hg.GlobalScale)
		for gi := range llf {
			for c := 0; c < 3; c++ {
				for i := range llf[gi][c] {
					llf[gi][c][i] *= invGlobalScale
				}
			}
		}
	}

	hp, err := vardct.DecodeHfPass(br, lfg.NbBlockCtx, lfg.NumHfPresets)
	if err != nil {
		return nil, err
	}

	nbQfThr := len(lfg.QfThr)
	lfIdxSize := (len(lfg.LfThr[0]) + 1) * (len(lfg.LfThr[1]) + 1) * (len(lfg.LfThr[2]) + 1)

	outPlanes := [3][]uint16{make([]uint16, width*height), make([]uint16, width*height), make([]uint16, width*height)}
	quantBias := [3]float64{float64(hdr.QuantBias[0]), float64(hdr.QuantBias[1]), float64(hdr.QuantBias[2])}

	for gi, g := range groups {
		presetOff := 0
		if lfg.NumHfPresets > 1 {
			preset, err := br.U(lfg.PresetsLog)
			if err != nil {
				return nil, err
			}
			presetOff = 495 * lfg.NbBlockCtx * int(preset)
		}
		pg, err := vardct.DecodeHFCoefficients(br, hp, g, presetOff, nbQfThr, lfIdxSize, lfg.NbBlockCtx)
		if err != nil {
			return nil, err
		}

		// Seed each varblock's LLF position(s) from the LF image's
		// forward-transformed samples (spec §4.7 step 4) before
		// dequantization, since DecodeHFCoefficients only decodes the HF
		// residual and leaves position 0.. at zero.
		for c := 0; c < 3; c++ {
			for _, vb := range g.Varblocks {
				shape := lfgroup.DctShapes[vb.DctSelect]
				n := (1 << uint(shape.LogRows)) * (1 << uint(shape.LogCols))
				base := vb.CoeffOffset * 64
				for k := 0; k < n; k++ {
					if vb.CoeffOffset+k < len(llf[gi][c]) && base+k < len(pg.Coeffs[c]) {
						pg.Coeffs[c][base+k] += int32(llf[gi][c][vb.CoeffOffset+k])
					}
				}
			}
		}

		assembly.DequantizeHF(pg, g, hg, quantBias, float64(hdr.QuantBiasNum), 0, 0)
		assembly.ChromaFromLuma(pg, g, lfg.KxLf(), lfg.KbLf())

		gx := gi % layout.LfGroupsPerRow
		gy := gi / layout.LfGroupsPerRow
		originX := gx * lfEdgeSamples
		originY := gy * lfEdgeSamples

		for _, vb := range g.Varblocks {
			blocks := assembly.ReconstructVarblock(pg, vb)
			shape := lfgroup.DctShapes[vb.DctSelect]
			rows, cols := (1<<uint(shape.LogRows))*8, (1<<uint(shape.LogCols))*8
			for py := 0; py < rows; py++ {
				for px := 0; px < cols; px++ {
					ox := originX + vb.X*8 + px
					oy := originY + vb.Y*8 + py
					if ox >= width || oy >= height {
						continue
					}
					i := py*cols + px
					rgb := assembly.XYBToRGB(blocks[0][i], blocks[1][i], blocks[2][i], hdr, hdr.IntensityTarget)
					off := oy*width + ox
					for c := 0; c < 3; c++ {
						outPlanes[c][off] = uint16(rgb[c])
					}
				}
			}
		}
	}

	return &Image{
		Width:     width,
		Height:    height,
		BitDepth:  hdr.BitDepth,
		Grayscale: false,
		Planes:    [][]uint16{outPlanes[0], outPlanes[1], outPlanes[2]},
	}, nil
}
