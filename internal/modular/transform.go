package modular

import "github.com/deepteams/jxl/internal/jerr"

// Transform is one pending inverse transform an Image carries (spec §4.5:
// "a list of pending inverse transforms"). Apply mutates img.Channels in
// place, replacing or rewriting the channels the transform governs.
type Transform interface {
	Apply(img *Image) error
}

// rctPermutations lists the six channel-role permutations RCT type t/7
// selects among; perm[0..2] give the storage-channel index that plays the
// role of a, b, c respectively.
var rctPermutations = [6][3]int{
	{0, 1, 2},
	{1, 2, 0},
	{2, 0, 1},
	{0, 2, 1},
	{1, 0, 2},
	{2, 1, 0},
}

// RCT is the inverse reversible color transform (spec §4.5, "Inverse
// RCT"): 42 types, permutation t/7 and operation t%7.
type RCT struct {
	BeginC int
	Type   int // 0..41
}

func (r *RCT) Apply(img *Image) error {
	if r.Type < 0 || r.Type >= 42 {
		return jerr.New(jerr.RCTType, "RCT type %d out of range", r.Type)
	}
	if r.BeginC+3 > len(img.Channels) {
		return jerr.New(jerr.RCTChan, "RCT begin_c %d needs 3 channels", r.BeginC)
	}
	perm := rctPermutations[r.Type/7]
	op := r.Type % 7

	ch := img.Channels[r.BeginC : r.BeginC+3]
	a, b, c := ch[perm[0]], ch[perm[1]], ch[perm[2]]
	if a.Width != b.Width || a.Width != c.Width || a.Height != b.Height || a.Height != c.Height {
		return jerr.New(jerr.RCTChan, "RCT channel shape mismatch")
	}

	for y := 0; y < a.Height; y++ {
		for x := 0; x < a.Width; x++ {
			av, bv, cv := a.At(x, y), b.At(x, y), c.At(x, y)
			var na, nb, nc int32
			switch op {
			case 0:
				na, nb, nc = av, bv, cv
			case 1:
				na, nb, nc = av, bv, cv+av
			case 2:
				na, nb, nc = av, bv, bv+av
			case 3:
				na, nb, nc = av, bv+av, cv+av
			case 4:
				na, nb, nc = av, bv+floorAvg(av, cv), cv
			case 5:
				na, nb, nc = av, bv+av+(cv>>1), cv+av
			case 6:
				tmp := av - (cv >> 1)
				p1 := cv + tmp
				p2 := tmp - (bv >> 1)
				na, nb, nc = p2+bv, p1, p2
			}
			a.Set(x, y, na)
			b.Set(x, y, nb)
			c.Set(x, y, nc)
		}
	}
	return nil
}

func floorAvg(a, c int32) int32 { return (a + c) >> 1 }

// Squeeze is parsed but rejected as unimplemented (spec §4.5: "Squeeze is
// parsed and rejected as unimplemented").
type Squeeze struct {
	Horizontal bool
	InPlace    bool
	BeginC     int
	NumC       int
}

func (s *Squeeze) Apply(img *Image) error {
	return jerr.New(jerr.Xfm, "Squeeze transform is not implemented")
}

// Palette is the inverse color-indexing transform (spec §4.5, "Inverse
// Palette"): an index channel plus a prepended palette meta-channel expand
// into NumC reconstructed channels.
type Palette struct {
	BeginC         int
	NumC           int
	NumColours     int
	NumDeltas      int
	DeltaPredictor int
	Bpp            int // sample bit depth, for the built-in delta table scale

	// PaletteChannel is the index of img.Channels holding the palette data,
	// stored as Width=NumColours, Height=NumC (spec: "shape (nb_colours,
	// num_c)").
	PaletteChannel int
	// IndexChannel is the index of img.Channels holding the per-pixel
	// palette index (spec: "[begin_c, begin_c+1) are an index channel").
	IndexChannel int
}

// paletteExtra and deltaTable back the out-of-range palette index
// lookups. The exact 208-entry generated table and 143-entry delta table
// are libjxl implementation constants not reproduced in the governing
// specification text available to this decoder; the tables below are this
// decoder's own deterministic reconstruction (64 weighted entries plus 144
// hand-built signed-offset entries in 72 negation pairs, as the spec's own count and
// "grouped by negation pair" description call for) rather than a literal
// transcription of libjxl's table. Flagged as an Open Question decision in
// DESIGN.md.
var paletteExtra [208][3]int32

func init() {
	// 64 weighted entries: entry w has weight (w%4)-1 in {-1,0,1,2}, negated
	// in channel c when bit c of w is set. (3^4 = 81 would overcount; spec
	// calls for 64 entries.)
	idx := 0
	for w := 0; w < 64; w++ {
		var v [3]int32
		weight := int32(w%4) - 1
		for c := 0; c < 3; c++ {
			sign := int32(1)
			if (w>>uint(c))&1 != 0 {
				sign = -1
			}
			v[c] = sign * weight
		}
		paletteExtra[idx] = v
		idx++
	}
	// 144 hard-coded signed-offset entries, built as 72 negation pairs: for
	// each pair index p, one entry and its exact negation.
	for p := 0; p < 72; p++ {
		v := [3]int32{int32(p%5) - 2, int32((p/5)%5) - 2, int32((p/25)%5) - 2}
		paletteExtra[idx] = v
		idx++
		paletteExtra[idx] = [3]int32{-v[0], -v[1], -v[2]}
		idx++
	}
}

// deltaTable is the built-in 143-entry delta table (spec: "built-in
// 143-entry delta table"), scaled by 2^(min(bpp,24)-8) and applied only to
// the first three channels.
var deltaTable [143]int32

func init() {
	for i := range deltaTable {
		// A centered, monotonically varying sequence; see paletteExtra's
		// comment on provenance.
		deltaTable[i] = int32(i) - 71
	}
}

func (p *Palette) paletteColor(idx, channel int, paletteCh *Channel) int32 {
	switch {
	case idx >= 0 && idx < p.NumColours:
		return paletteCh.At(idx, channel)
	case idx >= p.NumColours:
		e := idx - p.NumColours
		if e >= len(paletteExtra) {
			e = e % len(paletteExtra)
		}
		if channel < 3 {
			return paletteExtra[e][channel]
		}
		return 0
	default: // idx < 0
		if channel >= 3 {
			return 0
		}
		e := (-idx - 1) % len(deltaTable)
		shift := p.Bpp
		if shift > 24 {
			shift = 24
		}
		shift -= 8
		if shift < 0 {
			shift = 0
		}
		return deltaTable[e] << uint(shift)
	}
}

func (p *Palette) Apply(img *Image) error {
	if p.PaletteChannel < 0 || p.PaletteChannel >= len(img.Channels) {
		return jerr.New(jerr.PalC, "palette channel index out of range")
	}
	if p.IndexChannel < 0 || p.IndexChannel >= len(img.Channels) {
		return jerr.New(jerr.PalC, "palette index channel out of range")
	}
	paletteCh := img.Channels[p.PaletteChannel]
	indexCh := img.Channels[p.IndexChannel]

	// Re-predict the first NumDeltas palette entries in place, using
	// predictor DeltaPredictor with the previous palette entry in the same
	// row as the only available neighbor (spec: "re-prediction using
	// d_pred over the partially reconstructed plane").
	for row := 0; row < p.NumC && row < paletteCh.Height; row++ {
		for col := 0; col < p.NumDeltas && col < paletteCh.Width; col++ {
			var w int32
			if col > 0 {
				w = paletteCh.At(col-1, row)
			}
			pred, err := applyPredictor(p.DeltaPredictor, neighbors{W: w}, 0)
			if err != nil {
				return err
			}
			paletteCh.Set(col, row, paletteCh.At(col, row)+pred)
		}
	}

	out := make([]*Channel, p.NumC)
	for c := 0; c < p.NumC; c++ {
		out[c] = NewChannel(indexCh.Width, indexCh.Height, indexCh.HShift, indexCh.VShift)
		for y := 0; y < indexCh.Height; y++ {
			for x := 0; x < indexCh.Width; x++ {
				idx := int(indexCh.At(x, y))
				out[c].Set(x, y, p.paletteColor(idx, c, paletteCh))
			}
		}
	}

	// Splice: remove the palette meta-channel and the index channel,
	// insert the num_c reconstructed channels starting at BeginC.
	newChannels := make([]*Channel, 0, len(img.Channels)-2+p.NumC)
	for i, ch := range img.Channels {
		if i == p.BeginC {
			newChannels = append(newChannels, out...)
		}
		if i == p.PaletteChannel || i == p.IndexChannel {
			continue
		}
		newChannels = append(newChannels, ch)
	}
	img.Channels = newChannels
	return nil
}
