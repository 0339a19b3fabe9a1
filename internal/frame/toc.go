package frame

import (
	"github.com/deepteams/jxl/internal/bitio"
	"github.com/deepteams/jxl/internal/permute"
)

// TOC is the decoded table of contents: one byte-size entry per section
// (LfGlobal, one per LfGroup, HfGlobal, one per pass per group), in
// natural reading order after any permutation is undone.
type TOC struct {
	Sizes []uint32
}

// DecodeTOC reads size u32(0,10; 1024,14; 17408,22; 4211712,30) offsets,
// optionally permuted (spec §4.6), then re-byte-aligns the reader.
func DecodeTOC(r *bitio.Reader, size int) (*TOC, error) {
	permuted, err := r.U(1)
	if err != nil {
		return nil, err
	}

	var perm []int
	if permuted != 0 {
		perm, err = permute.Decode(r, size)
		if err != nil {
			return nil, err
		}
	}

	raw := make([]uint32, size)
	for i := range raw {
		v, err := r.U32(0, 10, 1024, 14, 17408, 22, 4211712, 30)
		if err != nil {
			return nil, err
		}
		raw[i] = v
	}

	sizes := raw
	if perm != nil {
		sizes, err = permute.Apply(raw, perm)
		if err != nil {
			return nil, err
		}
	}

	if err := r.ZeroPadToByte(); err != nil {
		return nil, err
	}
	return &TOC{Sizes: sizes}, nil
}

// Layout is the derived group geometry (spec §3: "Derived: num_groups,
// num_lf_groups, groups-per-row").
type Layout struct {
	GroupsPerRow   int
	NumGroups      int
	LfGroupsPerRow int
	NumLfGroups    int
}

// DeriveLayout computes group/LfGroup counts from the frame dimensions and
// group-size shift.
func DeriveLayout(h *Header) Layout {
	edge := groupEdge(h.GroupSizeShift)
	w, ht := h.Width, h.Height
	if w == 0 {
		w = 1
	}
	if ht == 0 {
		ht = 1
	}
	gpr := (w + edge - 1) / edge
	gpc := (ht + edge - 1) / edge
	lfEdge := edge * 8
	lgpr := (w + lfEdge - 1) / lfEdge
	lgpc := (ht + lfEdge - 1) / lfEdge
	return Layout{
		GroupsPerRow:   gpr,
		NumGroups:      gpr * gpc,
		LfGroupsPerRow: lgpr,
		NumLfGroups:    lgpr * lgpc,
	}
}
