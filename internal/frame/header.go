// Package frame implements frame header and TOC parsing (spec §4.6, C6):
// "parses frame metadata; computes group layout."
package frame

import (
	"github.com/deepteams/jxl/internal/bitio"
	"github.com/deepteams/jxl/internal/jerr"
)

type Type int

const (
	TypeRegular Type = iota
	TypeLF
	TypeReferenceOnly
	TypeRegularSkipProgressive
)

type Encoding int

const (
	EncodingVarDCT Encoding = iota
	EncodingModular
)

// RestorationFilter carries the Gabor and edge-preserving-filter parameters
// spec §3 lists under "Frame header"; the core parses but (per the
// Non-goals) never disables output on their account, only rejects the
// unsupported feature flags called out separately (patches/splines/noise).
type RestorationFilter struct {
	Gaborish bool
	GaborWeights [2]float32
	EPFEnabled bool
	EPFIterations int
	EPFSharpLUT   [8]float32
}

// Header is a parsed frame header (spec §3 "Frame header" + §4.6's
// rejection list).
type Header struct {
	Type     Type
	Encoding Encoding

	YCbCr bool
	// UpsamplingExp[c] must be 0 for every channel; any nonzero value is
	// rejected (spec §4.6: "reject ... any non-zero upsampling exponent").
	UpsamplingExp []int

	GroupSizeShift int // 0..3, group edge = 2^(7+shift)

	HasPatches bool
	HasSplines bool
	HasNoise   bool
	UseLfFrame bool

	X0, Y0, Width, Height int // cropping rectangle

	SaveAsReference int
	DurationTicks   uint64
	Timecode        uint64

	Restoration RestorationFilter

	NumPasses int
}

// groupEdge returns the group edge length in samples for a given
// group-size shift (spec §4 glossary: "2^(7+group_size_shift)").
func groupEdge(shift int) int { return 1 << uint(7+shift) }

// Decode reads a frame header, rejecting every feature spec §4.6 excludes.
func Decode(r *bitio.Reader, grayscale bool) (*Header, error) {
	h := &Header{}

	typeBits, err := r.U(2)
	if err != nil {
		return nil, err
	}
	h.Type = Type(typeBits)
	if h.Type == TypeLF {
		return nil, jerr.New(jerr.USmp, "frame type LF is rejected")
	}

	encBit, err := r.U(1)
	if err != nil {
		return nil, err
	}
	if encBit == 0 {
		h.Encoding = EncodingVarDCT
	} else {
		h.Encoding = EncodingModular
	}

	ycbcr, err := r.U(1)
	if err != nil {
		return nil, err
	}
	h.YCbCr = ycbcr != 0
	if h.YCbCr && grayscale {
		return nil, jerr.New(jerr.USmp, "do_ycbcr with grayscale output is rejected")
	}

	numChannels, err := r.U(3)
	if err != nil {
		return nil, err
	}
	h.UpsamplingExp = make([]int, numChannels+1)
	for i := range h.UpsamplingExp {
		exp, err := r.U(2)
		if err != nil {
			return nil, err
		}
		h.UpsamplingExp[i] = int(exp)
		if exp != 0 {
			return nil, jerr.New(jerr.USmp, "non-zero upsampling exponent is rejected")
		}
	}

	shift, err := r.U(2)
	if err != nil {
		return nil, err
	}
	h.GroupSizeShift = int(shift)

	patches, err := r.U(1)
	if err != nil {
		return nil, err
	}
	if patches != 0 {
		return nil, jerr.New(jerr.USmp, "has_patches is rejected")
	}
	splines, err := r.U(1)
	if err != nil {
		return nil, err
	}
	if splines != 0 {
		return nil, jerr.New(jerr.USmp, "has_splines is rejected")
	}
	noise, err := r.U(1)
	if err != nil {
		return nil, err
	}
	if noise != 0 {
		return nil, jerr.New(jerr.USmp, "has_noise is rejected")
	}
	useLF, err := r.U(1)
	if err != nil {
		return nil, err
	}
	if useLF != 0 {
		return nil, jerr.New(jerr.USmp, "use_lf_frame is rejected")
	}

	gab, err := r.U(1)
	if err != nil {
		return nil, err
	}
	h.Restoration.Gaborish = gab != 0
	if h.Restoration.Gaborish {
		for i := range h.Restoration.GaborWeights {
			w, err := r.F16()
			if err != nil {
				return nil, err
			}
			h.Restoration.GaborWeights[i] = w
		}
	}
	epf, err := r.U(1)
	if err != nil {
		return nil, err
	}
	h.Restoration.EPFEnabled = epf != 0
	if h.Restoration.EPFEnabled {
		iters, err := r.U(2)
		if err != nil {
			return nil, err
		}
		h.Restoration.EPFIterations = int(iters)
		for i := range h.Restoration.EPFSharpLUT {
			v, err := r.F16()
			if err != nil {
				return nil, err
			}
			h.Restoration.EPFSharpLUT[i] = v
		}
	}

	hasCrop, err := r.U(1)
	if err != nil {
		return nil, err
	}
	if hasCrop != 0 {
		x0, err := r.U32(0, 8, 256, 11, 2304, 14, 18688, 30)
		if err != nil {
			return nil, err
		}
		y0, err := r.U32(0, 8, 256, 11, 2304, 14, 18688, 30)
		if err != nil {
			return nil, err
		}
		w, err := r.U32(0, 8, 256, 11, 2304, 14, 18688, 30)
		if err != nil {
			return nil, err
		}
		ht, err := r.U32(0, 8, 256, 11, 2304, 14, 18688, 30)
		if err != nil {
			return nil, err
		}
		h.X0, h.Y0, h.Width, h.Height = int(x0), int(y0), int(w), int(ht)
	}

	if h.Type == TypeRegular || h.Type == TypeRegularSkipProgressive {
		slot, err := r.U(2)
		if err != nil {
			return nil, err
		}
		h.SaveAsReference = int(slot)
		dur, err := r.U32(0, 0, 1, 8, 1, 16, 1, 32)
		if err != nil {
			return nil, err
		}
		h.DurationTicks = uint64(dur)
	}

	passes, err := r.U(3)
	if err != nil {
		return nil, err
	}
	h.NumPasses = int(passes) + 1

	return h, nil
}
