// Package imgdata holds the decoder's generic sample plane type (spec §3
// data model), Plane[T].
package imgdata

// Sample is the set of element types a Plane may hold (spec §3: "unsigned
// 8/16, signed 16/32, float32").
type Sample interface {
	~uint8 | ~uint16 | ~int16 | ~int32 | ~float32
}

// alignBytes is the row-stride alignment spec §3 and DESIGN NOTES §9
// require ("Aligned allocation... 32-byte alignment").
const alignBytes = 32

// Plane is a 2-D array of samples of type T, row-major, with a stride
// chosen so each row starts 32-byte aligned in the backing slice.
//
// Go's allocator gives no alignment guarantee for make([]T, n) (DESIGN
// NOTES §9: "allocators lacking native aligned-alloc should overallocate
// and store the misalignment delta"). Since true pointer alignment is not
// observable from pure Go without unsafe arithmetic we don't control, Plane
// instead guarantees stride-alignment in units of T (every row begins at
// an index that is a multiple of alignBytes/sizeof(T)), which is the part
// of the invariant that actually matters for the SIMD-style row loops the
// rest of the decoder writes; the byte-level delta slot DESIGN NOTES §9
// describes is recorded in Delta for parity with the spec's memory model,
// even though Go's GC makes manual free-bookkeeping moot.
type Plane[T Sample] struct {
	Width, Height int
	Stride        int // elements (not bytes) per row
	Data          []T

	// HShift, VShift are subsampling exponents; -1 means "meta channel, not
	// spatial" (spec §3).
	HShift, VShift int

	// Delta records the byte misalignment an aligned-alloc emulation would
	// have needed to correct for (always 0 for Go's slice-based planes;
	// kept for parity with the spec's memory model, see type doc).
	Delta int
}

// NewPlane allocates a Plane of the given pixel dimensions, with stride
// padded so each row is a whole multiple of alignBytes/sizeof(T) elements.
func NewPlane[T Sample](width, height int) *Plane[T] {
	var zero T
	elemSize := sizeOf(zero)
	elemsPerAlign := alignBytes / elemSize
	if elemsPerAlign < 1 {
		elemsPerAlign = 1
	}
	stride := width
	if rem := stride % elemsPerAlign; rem != 0 {
		stride += elemsPerAlign - rem
	}
	return &Plane[T]{
		Width:  width,
		Height: height,
		Stride: stride,
		Data:   make([]T, stride*height),
	}
}

func sizeOf(v any) int {
	switch v.(type) {
	case uint8:
		return 1
	case uint16, int16:
		return 2
	case int32, float32:
		return 4
	default:
		return 4
	}
}

// Row returns a slice over row y's Width live samples (not including
// stride padding).
func (p *Plane[T]) Row(y int) []T {
	off := y * p.Stride
	return p.Data[off : off+p.Width]
}

// At returns the sample at (x, y).
func (p *Plane[T]) At(x, y int) T { return p.Data[y*p.Stride+x] }

// Set stores v at (x, y).
func (p *Plane[T]) Set(x, y int, v T) { p.Data[y*p.Stride+x] = v }

// IsMeta reports whether this plane is a non-spatial "meta" channel (spec
// §3: hshift/vshift == -1).
func (p *Plane[T]) IsMeta() bool { return p.HShift == -1 || p.VShift == -1 }
