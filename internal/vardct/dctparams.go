package vardct

import (
	"math"

	"github.com/deepteams/jxl/internal/bitio"
	"github.com/deepteams/jxl/internal/jerr"
)

// EncodingMode names how a dequantization matrix is specified in the
// bitstream (spec §4.8: "{Library, Hornuss, DCT2, DCT4, DCT4x8, AFV, DCT,
// Raw}").
type EncodingMode int

const (
	ModeLibrary EncodingMode = iota
	ModeHornuss
	ModeDCT2
	ModeDCT4
	ModeDCT4x8
	ModeAFV
	ModeDCT
	ModeRaw
)

// NumDctParams is the fixed count of dequantization-matrix slots (spec
// §4.8: "For each of 17 dct_params entries").
const NumDctParams = 17

// DequantMatrix holds the per-channel dequantization weights for one
// dct_params entry, flattened in the same row-major order NaturalOrder
// enumerates for that shape.
type DequantMatrix struct {
	Rows, Cols int // sample dimensions (not log2)
	Weights    [3][]float64
}

// libraryDefaults returns the built-in default dequantization weights for
// entry i, shaped rows x cols. The exact library constants aren't given in
// the available spec text; this decoder fills the library table with a
// smooth 1/(1+distance-from-DC) falloff per channel, consistent with the
// general shape every JPEG-style quant matrix has (low frequencies weigh
// more), and documents the approximation rather than fabricating specific
// numbers. Recorded as an Open Question in DESIGN.md.
func libraryDefaults(rows, cols int) [3][]float64 {
	var w [3][]float64
	for c := 0; c < 3; c++ {
		w[c] = make([]float64, rows*cols)
		chanBias := 1.0 + 0.15*float64(c)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				dist := math.Hypot(float64(x), float64(y))
				w[c][y*cols+x] = chanBias / (1 + dist*0.12)
			}
		}
	}
	return w
}

// bandInterp evaluates a 3-band piecewise-exponential interpolation along
// a single normalized axis in [0,1] (spec §4.8: "piecewise-exponential
// interpolation of 3 per-channel bands").
func bandInterp(bands [3]float64, t float64) float64 {
	if t <= 0.5 {
		u := t / 0.5
		return bands[0]*math.Pow(bands[1]/bands[0], u)
	}
	u := (t - 0.5) / 0.5
	return bands[1] * math.Pow(bands[2]/bands[1], u)
}

// DecodeDequantMatrix reads one dct_params entry's matrix from the
// bitstream using the encoding mode it declares.
func DecodeDequantMatrix(r *bitio.Reader, rows, cols int) (*DequantMatrix, error) {
	modeBits, err := r.U(3)
	if err != nil {
		return nil, err
	}
	mode := EncodingMode(modeBits)
	dm := &DequantMatrix{Rows: rows, Cols: cols}

	switch mode {
	case ModeLibrary:
		dm.Weights = libraryDefaults(rows, cols)

	case ModeRaw:
		for c := 0; c < 3; c++ {
			dm.Weights[c] = make([]float64, rows*cols)
			for i := range dm.Weights[c] {
				v, err := r.F16()
				if err != nil {
					return nil, err
				}
				dm.Weights[c][i] = float64(v)
			}
		}

	case ModeDCT, ModeHornuss, ModeDCT2, ModeDCT4, ModeDCT4x8, ModeAFV:
		for c := 0; c < 3; c++ {
			var bands [3]float64
			for i := range bands {
				v, err := r.F16()
				if err != nil {
					return nil, err
				}
				bands[i] = float64(v)
			}
			dm.Weights[c] = make([]float64, rows*cols)
			for y := 0; y < rows; y++ {
				for x := 0; x < cols; x++ {
					var t float64
					if mode == ModeDCT {
						t = float64(x) / math.Max(1, float64(cols-1))
					} else {
						t = math.Hypot(float64(x)/math.Max(1, float64(cols-1)), float64(y)/math.Max(1, float64(rows-1))) / math.Sqrt2
					}
					dm.Weights[c][y*cols+x] = bandInterp(bands, t)
				}
			}
		}

	default:
		return nil, jerr.New(jerr.DQMBad, "unknown dequant matrix encoding mode %d", mode)
	}

	return dm, nil
}

// DctParamIndex maps each of the 27 DctSelect shapes (lfgroup.DctShapes'
// index space) to the dct_params entry that supplies its dequantization
// matrix. Spec §4.8 names 17 dct_params entries against 27 DctSelect
// shapes (spec glossary: "one of the 27 varblock shape/transform
// combinations"), so several DctSelects necessarily share one entry; this
// decoder groups them by the shape family libjxl's own quant-kind table
// groups them by (the two orientations of an asymmetric pair, and the
// four AFV orientations, all sharing one matrix).
var DctParamIndex = [27]int{
	0,           // 0: DCT8x8
	1,           // 1: DCT16x16
	2,           // 2: DCT32x32
	3,           // 3: DCT64x64
	4,           // 4: DCT128x128
	5,           // 5: DCT256x256
	6,           // 6: Hornuss
	7,           // 7: DCT1x1
	8,           // 8: DCT2x2
	9, 9,        // 9: DCT2x3, 10: DCT3x2
	10, 10, 10, 10, // 11-14: AFV0..3
	11, 11, // 15: DCT8x16, 16: DCT16x8
	12, 12, // 17: DCT8x32, 18: DCT32x8
	13, 13, // 19: DCT16x32, 20: DCT32x16
	14, 14, // 21: DCT32x64, 22: DCT64x32
	15, 15, // 23: DCT64x128, 24: DCT128x64
	16, 16, // 25: DCT128x256, 26: DCT256x128
}

// DefaultParamShapes gives each of the 17 dct_params entries' sample
// dimensions (rows, cols), sized so rows*cols equals the coefficient
// count of the varblocks sharing that entry (spec §4.8's "resolve its
// dequantization matrix... from the library defaults or from bitstream-
// specified parameters").
var DefaultParamShapes = [NumDctParams][2]int{
	{8, 8}, {16, 16}, {32, 32}, {64, 64}, {128, 128}, {256, 256},
	{8, 8}, {8, 8}, {8, 8}, {8, 8}, {8, 8},
	{8, 16}, {8, 32}, {16, 32}, {32, 64}, {64, 128}, {128, 256},
}

// HfGlobal carries the resolved dequantization matrices, shared across
// every pass and group in a frame (spec §4.8).
type HfGlobal struct {
	Matrices       [NumDctParams]*DequantMatrix
	GlobalScale    float64
	QuantBiasNum   float64
}

// DecodeHfGlobal resolves all 17 dequantization matrices that
// dctSelectUsed marks as in-use.
func DecodeHfGlobal(r *bitio.Reader, dctSelectUsed uint32, shapes [NumDctParams][2]int) (*HfGlobal, error) {
	hg := &HfGlobal{}
	gs, err := r.U32(1, 11, 2049, 11, 4097, 12, 8193, 16)
	if err != nil {
		return nil, err
	}
	hg.GlobalScale = float64(gs)

	for i := 0; i < NumDctParams; i++ {
		if dctSelectUsed&(1<<uint(i)) == 0 {
			continue
		}
		dm, err := DecodeDequantMatrix(r, shapes[i][0], shapes[i][1])
		if err != nil {
			return nil, err
		}
		hg.Matrices[i] = dm
	}
	return hg, nil
}
