package jxl_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/deepteams/jxl"
	"github.com/deepteams/jxl/internal/assembly"
	"github.com/deepteams/jxl/internal/imghdr"
	"github.com/deepteams/jxl/internal/lfgroup"
	"github.com/deepteams/jxl/internal/vardct"
)

// bitWriter builds an LSB-first bitstream matching internal/bitio.Reader's
// consumption order: the first bit written is the low bit of the first
// byte, and ZeroPadToByte-equivalent padding is zero bits.
type bitWriter struct {
	bits []byte
}

func (w *bitWriter) u(n uint, v uint32) {
	for i := uint(0); i < n; i++ {
		w.bits = append(w.bits, byte((v>>i)&1))
	}
}

// u32 writes a selector-driven u32(...) field: a 2-bit selector then the
// field's own width bits, matching bitio.Reader.U32's wire format.
func (w *bitWriter) u32(sel uint32, width uint, field uint32) {
	w.u(2, sel)
	w.u(width, field)
}

func (w *bitWriter) bytes() []byte {
	n := (len(w.bits) + 7) / 8
	out := make([]byte, n)
	for i, b := range w.bits {
		if b != 0 {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

func bitsForAlphabet(alphabetSize int) uint {
	max := uint32(alphabetSize - 1)
	n := uint(0)
	for (uint32(1) << n) < max+1 {
		n++
	}
	return n
}

// writeImageHeader emits a minimal codestream-level image header (spec §3):
// explicit (non-"small") dimensions, 8-bit integer samples, the requested
// color space, default rendering/tone-mapping fields, and no extra
// channels.
func writeImageHeader(w *bitWriter, widthField, heightField, colorSpaceSel uint32) {
	w.u(1, 0)                // small
	w.u32(0, 9, widthField)  // width = widthField+1
	w.u32(0, 9, heightField) // height = heightField+1
	w.u(3, 0)                // orientation -> 1 (identity)
	w.u(1, 0)                // has_intrinsic_size
	w.u32(0, 3, 7)           // bits_minus_1=7 -> 8-bit depth
	w.u(1, 0)                // float_sample_flag
	w.u(2, colorSpaceSel)    // color_space enum: sel0->RGB, sel1->Grayscale (0 extra bits either way)
	w.u(1, 0)                // gamma flag (not XYB, so this field is present)
	w.u(2, 0)                // rendering_intent enum, sel0 (0 extra bits)
	w.u(16, 0)                // intensity_target f16 = 0.0
	w.u(16, 0)                // min_nits f16 = 0.0
	w.u(1, 0)                // tone_mapping
	w.u(2, 0)                // num_extra_channels, sel0 -> 0
}

// writeFrameHeader emits a Regular, Modular-encoded, single-pass frame
// header with every optional feature (patches/splines/noise/useLF/
// gaborish/epf/crop) turned off.
func writeFrameHeader(w *bitWriter) {
	w.u(2, 0) // frame type -> Regular
	w.u(1, 1) // encoding -> Modular
	w.u(1, 0) // do_ycbcr
	w.u(3, 0) // num_channels field -> 1 upsampling entry
	w.u(2, 0) // that entry's exponent -> 0
	w.u(2, 0) // group_size_shift
	w.u(1, 0) // has_patches
	w.u(1, 0) // has_splines
	w.u(1, 0) // has_noise
	w.u(1, 0) // use_lf_frame
	w.u(1, 0) // gaborish
	w.u(1, 0) // epf
	w.u(1, 0) // has_crop
	w.u(2, 0) // save_as_reference slot
	w.u(2, 0) // duration u32, sel0 -> 0
	w.u(3, 0) // num_passes field -> 1 pass
}

// writeTOC emits a single-entry, unpermuted TOC (the only shape a Modular
// frame's tocSize=1 ever needs) and pads to the next byte boundary; the
// size value itself is discarded by decodeReader, so it's left at 0.
func writeTOC(w *bitWriter) {
	w.u(1, 0)      // permuted
	w.u32(0, 10, 0) // single size entry
	for len(w.bits)%8 != 0 {
		w.bits = append(w.bits, 0)
	}
}

// writeTrivialCodespec emits a DecodeCodespec-shaped entropy specification
// (spec §4.3) with LZ77 disabled and exactly one cluster, holding a
// 2-symbol {lo, hi} prefix code (the nsym=2 simple-code template, each
// assigned codeword length 1): reading a 0 bit decodes to lo, a 1 bit to
// hi. numDist==1 takes DecodeClusterMap's zero-bit single-distribution
// shortcut; numDist>1 uses the "simple" cluster-map template with an
// all-zero map (every context shares the one cluster).
func writeTrivialCodespec(w *bitWriter, numDist, alphabetSize int, lo, hi uint32) {
	w.u(1, 0) // lz77_enabled
	if numDist > 1 {
		w.u(1, 1) // cluster map: simple=1
		w.u(2, 0) // nbits=0 -> every one of numDist entries reads 0 bits, all zero
	}
	w.u(1, 1) // use_prefix_codes
	w.u(4, 9) // cluster 0 hybrid config: split_exponent=9 (covers lo/hi as literals)
	w.u(2, 0) // msb_in_token
	w.u(2, 0) // lsb_in_token
	w.u32(3, 16, uint32(alphabetSize-1))
	w.u(2, 1) // code-lengths hskip=1 -> simple code
	w.u(2, 1) // nsym_minus_1=1 -> 2 symbols
	symBits := bitsForAlphabet(alphabetSize)
	w.u(symBits, lo)
	w.u(symBits, hi)
}

// writeTrivialTree emits a single-leaf MA tree (spec §4.4): the property
// token decodes to 0 (immediately a leaf), and predictor/offset/shift/
// mult_token all decode to 0 too, giving predictor "Zero" (always predicts
// 0), offset 0, multiplier 1. Every one of the five reads pulls its value
// through treeCS's single {0,1} cluster, so writing a 0 bit each time is
// sufficient (the hybrid/unpack chain maps raw token 0 to signed 0).
func writeTrivialTree(w *bitWriter) {
	for i := 0; i < 5; i++ {
		w.u(1, 0)
	}
}

// TestScenario1BareGrayscale1x1 builds a bare (no container) 1x1 grayscale
// Modular codestream by hand and checks the decoder reconstructs the
// single pixel's value end to end: MA tree evaluation, entropy decode, and
// the zero predictor/multiplier-1/offset-0 leaf arithmetic.
func TestScenario1BareGrayscale1x1(t *testing.T) {
	var w bitWriter
	w.u(8, 0xFF)
	w.u(8, 0x0A) // codestream marker

	writeImageHeader(&w, 0, 0, 1) // 1x1, Grayscale
	writeFrameHeader(&w)
	writeTOC(&w)

	writeTrivialCodespec(&w, 6, 2, 0, 1) // MA tree codespec (6 contexts, all -> cluster 0)
	writeTrivialTree(&w)
	writeTrivialCodespec(&w, 1, 401, 0, 400) // per-pixel codespec: token 400 -> signed 200

	w.u(8, 0) // transform record count = 0

	w.u(1, 1) // the one pixel's token: bit 1 -> symbol 400 -> unpackSigned -> 200

	img, err := jxl.Decode(bytes.NewReader(w.bytes()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Width != 1 || img.Height != 1 {
		t.Fatalf("dims = %dx%d, want 1x1", img.Width, img.Height)
	}
	if !img.Grayscale {
		t.Fatal("expected a grayscale image")
	}
	if len(img.Planes) != 1 || len(img.Planes[0]) != 1 {
		t.Fatalf("unexpected plane shape: %+v", img.Planes)
	}
	if got := img.Planes[0][0]; got != 200 {
		t.Errorf("pixel = %d, want 200", got)
	}
}

// TestScenario5RCTType6YCgCo builds a bare 2x2 Modular RGB codestream whose
// three stored channels decode to the raw samples (128, 0, 0) at every
// pixel, then applies RCT type 6. Spec §8 scenario 5: YCgCo (128, 0, 0)
// must invert to RGB (128, 128, 128) at every pixel.
func TestScenario5RCTType6YCgCo(t *testing.T) {
	var w bitWriter
	w.u(8, 0xFF)
	w.u(8, 0x0A)

	writeImageHeader(&w, 1, 1, 0) // 2x2, RGB
	writeFrameHeader(&w)
	writeTOC(&w)

	writeTrivialCodespec(&w, 6, 2, 0, 1)
	writeTrivialTree(&w)
	// Shared per-pixel codespec: token 0 -> signed 0, token 256 -> signed 128.
	writeTrivialCodespec(&w, 1, 257, 0, 256)

	w.u(8, 1) // one transform record
	w.u(2, 0) // kind = RCT
	w.u(5, 0) // begin_c = 0
	w.u(6, 6) // type = 6

	// Channel 0 (plays RCT role "a"): all four pixels decode to 128.
	for i := 0; i < 4; i++ {
		w.u(1, 1)
	}
	// Channels 1 and 2 (roles "b", "c"): all four pixels decode to 0.
	for c := 0; c < 2; c++ {
		for i := 0; i < 4; i++ {
			w.u(1, 0)
		}
	}

	img, err := jxl.Decode(bytes.NewReader(w.bytes()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Width != 2 || img.Height != 2 {
		t.Fatalf("dims = %dx%d, want 2x2", img.Width, img.Height)
	}
	if img.Grayscale {
		t.Fatal("expected an RGB image")
	}
	if len(img.Planes) != 3 {
		t.Fatalf("got %d planes, want 3", len(img.Planes))
	}
	for c := 0; c < 3; c++ {
		for i, v := range img.Planes[c] {
			if v != 128 {
				t.Errorf("plane %d pixel %d = %d, want 128", c, i, v)
			}
		}
	}
}

// scenario6OpsinInvMat/scenario6OpsinBias mirror the JPEG XL default opsin
// constants internal/imghdr.Decode fills a Header with; duplicated here
// (not imported, since they're unexported) purely to build a Header value
// for the pipeline-level call below.
var scenario6OpsinInvMat = [3][3]float32{
	{11.031566901960783, -9.866943921568629, -0.16462299647058826},
	{-3.254147380392157, 4.418770392156863, -0.16462299647058826},
	{-3.6588512256863973, 2.7129230670423833, 1.9456310873096384},
}

var scenario6OpsinBias = [3]float32{-0.0037930732552754493, -0.0037930732552754493, -0.0037930732552754493}

// TestScenario6VarDCT8x8FlatDC exercises the VarDCT assembly chain (spec
// §4.11, C11) directly: one DCT8x8 varblock whose only nonzero coefficient
// is the luma DC, dequantized, chroma-from-luma'd (a no-op here), inverse-
// DCT'd, and converted through XYB, mirroring decodeVarDCTFrame's own call
// sequence without hand-authoring the LfGlobal/HfPass bitstream chain
// (see DESIGN.md for why that full bit-level path isn't attempted).
//
// DequantizeHF's loop explicitly skips the LLF position (i==0 carries the
// already-globally-rescaled DC seed, not a dq_matrix-multiplied residual),
// so the inverse DCT of an all-zero-except-DC 8x8 block reduces to a flat
// plane of value DC/8 (the orthonormal IDCT-III's DC-only response):
// that's the "flat ... block" spec §8 scenario 6 describes.
func TestScenario6VarDCT8x8FlatDC(t *testing.T) {
	hdr := &imghdr.Header{
		BitDepth:        8,
		OpsinInvMat:     scenario6OpsinInvMat,
		OpsinBias:       scenario6OpsinBias,
		IntensityTarget: 255,
	}

	g := lfgroup.NewLfGroup(1, 1)
	g.Varblocks = append(g.Varblocks, lfgroup.VarBlock{DctSelect: 0})

	pg := &vardct.PassGroup{Coeffs: [3][]int32{make([]int32, 64), make([]int32, 64), make([]int32, 64)}}
	pg.Coeffs[0][0] = 800 // luma DC, already global-scale-rescaled

	hg := &vardct.HfGlobal{GlobalScale: 256}
	quantBias := [3]float64{float64(hdr.QuantBias[0]), float64(hdr.QuantBias[1]), float64(hdr.QuantBias[2])}

	assembly.DequantizeHF(pg, g, hg, quantBias, float64(hdr.QuantBiasNum), 0, 0)
	assembly.ChromaFromLuma(pg, g, 0, 0)

	blocks := assembly.ReconstructVarblock(pg, g.Varblocks[0])
	if len(blocks[0]) != 64 || len(blocks[1]) != 64 || len(blocks[2]) != 64 {
		t.Fatalf("unexpected block sizes: %d %d %d", len(blocks[0]), len(blocks[1]), len(blocks[2]))
	}

	const wantY = 800.0 / 8.0 // DC/8, the 8-point orthonormal IDCT-III's DC-only response
	for i, v := range blocks[0] {
		if math.Abs(v-wantY) > 1e-9 {
			t.Fatalf("Y[%d] = %v, want %v (block not flat)", i, v, wantY)
		}
	}
	for i, v := range blocks[1] {
		if v != 0 {
			t.Fatalf("X[%d] = %v, want 0", i, v)
		}
	}
	for i, v := range blocks[2] {
		if v != 0 {
			t.Fatalf("B[%d] = %v, want 0", i, v)
		}
	}

	want := assembly.XYBToRGB(blocks[0][0], blocks[1][0], blocks[2][0], hdr, hdr.IntensityTarget)
	for i := 1; i < 64; i++ {
		got := assembly.XYBToRGB(blocks[0][i], blocks[1][i], blocks[2][i], hdr, hdr.IntensityTarget)
		if got != want {
			t.Fatalf("sample %d RGB = %v, want %v (block not flat after XYB conversion)", i, got, want)
		}
	}
}
