package bitio

import (
	"math"

	"github.com/deepteams/jxl/internal/jerr"
)

// Reader is the JPEG XL bitstream reader (spec §4.1, C1). Bits are
// consumed LSB-first from a 32-bit shifter, refilled a byte at a time
// from a Source. The (bits, nbits) pair is the spec's own state: "a 32-bit
// shifter `bits`, a count `nbits`, and the current byte cursor" — kept
// here as a 64-bit register purely so refills can load a whole byte
// without ever needing to special-case a near-full shifter, the same
// headroom trick deepteams-webp's LosslessReader uses with its 64-bit
// val register over a 32-bit window.
type Reader struct {
	s      *Source
	bits   uint64
	nbits  uint // number of valid low bits in `bits`; invariant: nbits in [0,63]
	bytePos int // next unread byte offset within s.buf (relative to s.checkpoint)
}

// NewReader creates a Reader over s, starting at the current checkpoint.
func NewReader(s *Source) *Reader {
	return &Reader{s: s}
}

// checkpointState snapshots enough of the reader to resume an aborted,
// retriable read from exactly the same bit position (spec §5/§7).
type checkpointState struct {
	bits    uint64
	nbits   uint
	bytePos int
}

// Checkpoint returns an opaque snapshot of the reader's position.
func (r *Reader) Checkpoint() any {
	return checkpointState{bits: r.bits, nbits: r.nbits, bytePos: r.bytePos}
}

// Restore rewinds the reader to a snapshot returned by Checkpoint. Used
// when a decode attempt fails with a retriable Short error: the caller
// restores to the pre-attempt snapshot so the next call re-reads the
// identical bits once more input has arrived.
func (r *Reader) Restore(cp any) {
	cs := cp.(checkpointState)
	r.bits, r.nbits, r.bytePos = cs.bits, cs.nbits, cs.bytePos
}

// fill ensures at least need bits (need <= 57) are available in the
// shifter, pulling bytes from the underlying Source.
func (r *Reader) fill(need uint) error {
	for r.nbits < need {
		if r.bytePos >= r.s.Len() {
			if err := r.s.ensure(r.bytePos + 1); err != nil {
				return err
			}
		}
		b := r.s.buf[r.s.checkpoint+r.bytePos]
		r.bits |= uint64(b) << r.nbits
		r.nbits += 8
		r.bytePos++
	}
	return nil
}

// U reads n bits (0 <= n <= 31) LSB-first and returns them as uint32.
func (r *Reader) U(n uint) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	if n > 31 {
		return 0, jerr.New(jerr.Range, "U(%d) out of range", n)
	}
	if err := r.fill(n); err != nil {
		return 0, err
	}
	v := uint32(r.bits & ((uint64(1) << n) - 1))
	r.bits >>= n
	r.nbits -= n
	return v, nil
}

// U32 implements the selector-driven u32(o0,n0; o1,n1; o2,n2; o3,n3) form
// (spec §4.1): a 2-bit selector picks one of four (offset, width) pairs.
func (r *Reader) U32(o0 uint32, n0 uint, o1 uint32, n1 uint, o2 uint32, n2 uint, o3 uint32, n3 uint) (uint32, error) {
	sel, err := r.U(2)
	if err != nil {
		return 0, err
	}
	var o uint32
	var n uint
	switch sel {
	case 0:
		o, n = o0, n0
	case 1:
		o, n = o1, n1
	case 2:
		o, n = o2, n2
	default:
		o, n = o3, n3
	}
	v, err := r.U(n)
	if err != nil {
		return 0, err
	}
	return o + v, nil
}

// U64 implements the selector-driven variable-length u64 form: a 2-bit
// selector chooses a small literal, a small range, or extends in 8-bit
// chunks (each chunk has a continuation bit) up to 64 bits total.
func (r *Reader) U64() (uint64, error) {
	sel, err := r.U(2)
	if err != nil {
		return 0, err
	}
	switch sel {
	case 0:
		return 0, nil
	case 1:
		v, err := r.U(4)
		return uint64(v) + 1, err
	case 2:
		v, err := r.U(8)
		return uint64(v) + 17, err
	default:
		// Extend in 8-bit chunks with a continuation bit, up to 64 bits.
		v, err := r.U(12)
		if err != nil {
			return 0, err
		}
		result := uint64(v) + 273
		shift := uint(12)
		for {
			cont, err := r.U(1)
			if err != nil {
				return 0, err
			}
			if cont == 0 {
				break
			}
			if shift == 60 {
				// Only 4 bits remain below bit 64.
				last, err := r.U(4)
				if err != nil {
					return 0, err
				}
				result += uint64(last) << shift
				break
			}
			chunk, err := r.U(8)
			if err != nil {
				return 0, err
			}
			result += uint64(chunk) << shift
			shift += 8
		}
		return result, nil
	}
}

// Enum implements spec's enum form: u32(0,0; 1,0; 2,4; 18,6), rejecting
// values >= 31.
func (r *Reader) Enum() (uint32, error) {
	v, err := r.U32(0, 0, 1, 0, 2, 4, 18, 6)
	if err != nil {
		return 0, err
	}
	if v >= 31 {
		return 0, jerr.New(jerr.Enum, "enum value %d out of range", v)
	}
	return v, nil
}

// F16 reads 16 raw bits as an IEEE-754 half-precision float, rejecting
// NaN and +/-Inf.
func (r *Reader) F16() (float32, error) {
	bits, err := r.U(16)
	if err != nil {
		return 0, err
	}
	f := halfToFloat32(uint16(bits))
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return 0, jerr.New(jerr.Range, "f16 NaN/Inf rejected")
	}
	return f, nil
}

func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 1
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff
	var bits uint32
	switch exp {
	case 0:
		if frac == 0 {
			bits = sign << 31
		} else {
			// subnormal half -> normalize
			e := 0
			for frac&0x400 == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x3ff
			exp32 := uint32(int32(127-15+e) + 1)
			bits = sign<<31 | exp32<<23 | frac<<13
		}
	case 0x1f:
		bits = sign<<31 | 0xff<<23 | frac<<13
	default:
		exp32 := exp - 15 + 127
		bits = sign<<31 | exp32<<23 | frac<<13
	}
	return math.Float32frombits(bits)
}

// Varint reads a 7-bit little-endian continuation-coded value, capped at
// 63 bits total.
func (r *Reader) Varint() (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.U(8)
		if err != nil {
			return 0, err
		}
		if shift >= 63 {
			return 0, jerr.New(jerr.Vint, "varint exceeds 63 bits")
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// U8 reads the flag-bit-then-n-bit form used only for ANS distribution
// decoding: if the flag bit is 1, read a 3-bit n then u(n) + (1<<n);
// otherwise return 0.
func (r *Reader) U8() (uint32, error) {
	flag, err := r.U(1)
	if err != nil {
		return 0, err
	}
	if flag == 0 {
		return 0, nil
	}
	n, err := r.U(3)
	if err != nil {
		return 0, err
	}
	v, err := r.U(uint(n))
	if err != nil {
		return 0, err
	}
	return v + (1 << n), nil
}

// AtMost reads ceil(log2(max+1)) bits and rejects a value > max.
func (r *Reader) AtMost(max uint32) (uint32, error) {
	n := bitsFor(max)
	v, err := r.U(n)
	if err != nil {
		return 0, err
	}
	if v > max {
		return 0, jerr.New(jerr.Range, "at_most(%d) got %d", max, v)
	}
	return v, nil
}

func bitsFor(max uint32) uint {
	n := uint(0)
	for (uint32(1) << n) < max+1 {
		n++
	}
	return n
}

// ZeroPadToByte drops bits up to the next byte boundary, requiring that
// the dropped bits are all zero.
func (r *Reader) ZeroPadToByte() error {
	// nbits counts valid bits currently buffered in the shifter; the
	// *consumed* bit position modulo 8 is what determines alignment, which
	// for this reader is tracked via bytePos*8 - nbits.
	consumedBits := uint(r.bytePos)*8 - r.nbits
	pad := (8 - consumedBits%8) % 8
	if pad == 0 {
		return nil
	}
	v, err := r.U(pad)
	if err != nil {
		return err
	}
	if v != 0 {
		return jerr.New(jerr.Pad0, "non-zero pad bits")
	}
	return nil
}

// Skip discards exactly n bits.
func (r *Reader) Skip(n uint) error {
	for n > 31 {
		if _, err := r.U(31); err != nil {
			return err
		}
		n -= 31
	}
	_, err := r.U(n)
	return err
}

// ByteAligned reports whether the reader is currently positioned on a byte
// boundary.
func (r *Reader) ByteAligned() bool {
	consumedBits := uint(r.bytePos)*8 - r.nbits
	return consumedBits%8 == 0
}
