// Package modular implements the Modular sub-image decoder (spec §4.5,
// component C5): channel-list management, the RCT/Palette/Squeeze inverse
// transforms, and per-pixel prediction over the 14 predictors (including
// the weighted predictor).
//
// Grounded on deepteams-webp's VP8L lossless path (internal/lossless):
// decode_transform.go's readTransform/applyInverseTransforms shape (read
// transform records, then unwind them in reverse over the decoded plane)
// is the structural twin of this package's Transform/Apply flow, and
// colorcache.go's index-table lookup is the conceptual twin of the
// Palette transform's index channel. VP8L's own per-transform semantics
// (predictor transform, cross-color transform, color-indexing transform)
// don't map 1:1 onto JPEG XL's RCT/Palette/Squeeze, so the per-transform
// math is written fresh from spec §4.5.
package modular

import "github.com/deepteams/jxl/internal/jerr"

// Channel is one Modular decoder plane, stored as int32 samples
// regardless of the image's declared bit depth (spec §4.5: "int32 buffers
// optional per-image" — this decoder always uses the wider buffer and
// range-checks decoded samples against the int16 range (checkRange) instead
// of duplicating code per width, per DESIGN NOTES §9's instruction to use
// one generic path).
type Channel struct {
	Width, Height int
	HShift, VShift int // subsampling shift; -1 marks a non-spatial meta channel
	Data          []int32
}

func NewChannel(width, height, hshift, vshift int) *Channel {
	return &Channel{Width: width, Height: height, HShift: hshift, VShift: vshift, Data: make([]int32, width*height)}
}

func (c *Channel) At(x, y int) int32    { return c.Data[y*c.Width+x] }
func (c *Channel) Set(x, y int, v int32) { c.Data[y*c.Width+x] = v }

// Image is the ordered channel list plus pending inverse transforms spec
// §4.5 describes ("An ordered list of planes plus a list of pending
// inverse transforms").
type Image struct {
	Channels        []*Channel
	NumMetaChannels int // first NumMetaChannels channels are meta, excluded from max_width
	Transforms      []Transform
}

// ApplyTransforms unwinds all pending transforms in reverse registration
// order (spec §4.5: RCT/Palette/Squeeze), mutating img.Channels in place.
func (img *Image) ApplyTransforms() error {
	for i := len(img.Transforms) - 1; i >= 0; i-- {
		if err := img.Transforms[i].Apply(img); err != nil {
			return err
		}
	}
	return nil
}

// neighborsAt returns the neighbors of (x, y) in c, with the boundary
// fallbacks applied.
func neighborsAt(c *Channel, x, y int) neighbors {
	w := c.Width
	at := func(xx, yy int) int32 {
		if xx < 0 || yy < 0 || xx >= w || yy >= c.Height {
			return 0
		}
		return c.At(xx, yy)
	}

	var n neighbors
	if y == 0 {
		// Top row: every vertical neighbor falls back to the horizontal
		// one at this pixel (spec: "spec-defined fallbacks when out of
		// bounds").
		if x == 0 {
			n.W, n.N, n.NW, n.NE, n.NN, n.NEE, n.WW, n.NWW = 0, 0, 0, 0, 0, 0, 0, 0
			return n
		}
		n.W = at(x-1, y)
		n.N, n.NW, n.NE, n.NN, n.NEE = n.W, n.W, n.W, n.W, n.W
		if x >= 2 {
			n.WW = at(x-2, y)
		} else {
			n.WW = n.W
		}
		n.NWW = n.WW
		return n
	}

	n.N = at(x, y-1)
	if x == 0 {
		n.W = n.N
		n.NW = n.N
		n.WW = n.N
		n.NWW = n.N
	} else {
		n.W = at(x-1, y)
		n.NW = at(x-1, y-1)
		if x >= 2 {
			n.WW = at(x-2, y)
			n.NWW = at(x-2, y-1)
		} else {
			n.WW = n.W
			n.NWW = n.NW
		}
	}
	if x == w-1 {
		n.NE = n.N
		n.NEE = n.N
	} else {
		n.NE = at(x+1, y-1)
		if x == w-2 {
			n.NEE = n.NE
		} else {
			n.NEE = at(x+2, y-1)
		}
	}
	if y >= 2 {
		n.NN = at(x, y-2)
	} else {
		n.NN = n.N
	}
	return n
}

// int16Min and int16Max are the overflow bounds checkRange enforces
// (spec §4.5: "pixel values must fit in int16 ... on overflow fail povf").
const (
	int16Min = -(1 << 15)
	int16Max = (1 << 15) - 1
)

func checkRange(v int32) error {
	if v < int16Min || v > int16Max {
		return jerr.New(jerr.POverf, "pixel value %d overflows int16", v)
	}
	return nil
}
