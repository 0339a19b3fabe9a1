package bitio

import (
	"testing"

	"github.com/deepteams/jxl/internal/jerr"
)

func newTestReader(data []byte) *Reader {
	return NewReader(NewSourceBytes(data))
}

func TestUBasic(t *testing.T) {
	// 0b10110 packed LSB-first into a single byte: read 3 then 2 bits.
	r := newTestReader([]byte{0b00010110})
	v, err := r.U(3)
	if err != nil || v != 0b110 {
		t.Fatalf("U(3) = %d, %v, want 6", v, err)
	}
	v, err = r.U(2)
	if err != nil || v != 0b10 {
		t.Fatalf("U(2) = %d, %v, want 2", v, err)
	}
}

func TestUInvariant(t *testing.T) {
	r := newTestReader([]byte{0xff, 0xff, 0xff, 0xff})
	if _, err := r.U(5); err != nil {
		t.Fatal(err)
	}
	if r.nbits > 63 {
		t.Fatalf("nbits invariant violated: %d", r.nbits)
	}
}

func TestU32Selector(t *testing.T) {
	// selector bits are the low 2 bits of the first byte, LSB-first.
	// sel=1 -> offset 5, width 0 -> value 5.
	r := newTestReader([]byte{0b00000001})
	v, err := r.U32(0, 0, 5, 0, 9, 4, 41, 6)
	if err != nil || v != 5 {
		t.Fatalf("U32 = %d, %v, want 5", v, err)
	}
}

func TestVarint(t *testing.T) {
	// 300 = 0b100101100 -> low 7 bits 0101100 (0x2c) with continuation,
	// then remaining bits 10 (0x02), no continuation.
	r := newTestReader([]byte{0x2c | 0x80, 0x02})
	v, err := r.Varint()
	if err != nil || v != 300 {
		t.Fatalf("Varint() = %d, %v, want 300", v, err)
	}
}

func TestAtMost(t *testing.T) {
	r := newTestReader([]byte{0b00000101}) // 3 bits needed for max=5 (0..5 -> ceil(log2(6))=3)
	v, err := r.AtMost(5)
	if err != nil {
		t.Fatal(err)
	}
	if v > 5 {
		t.Fatalf("AtMost returned out-of-range %d", v)
	}

	r2 := newTestReader([]byte{0b00000111})
	if _, err := r2.AtMost(5); err == nil {
		t.Fatal("expected range error for value exceeding max")
	} else if c, _ := jerr.CodeOf(err); c != jerr.Range {
		t.Fatalf("wrong code: %v", c)
	}
}

func TestZeroPadToByte(t *testing.T) {
	r := newTestReader([]byte{0b00000101, 0x00})
	if _, err := r.U(3); err != nil {
		t.Fatal(err)
	}
	if err := r.ZeroPadToByte(); err != nil {
		t.Fatalf("ZeroPadToByte: %v", err)
	}
	if !r.ByteAligned() {
		t.Fatal("expected byte alignment after pad")
	}
}

func TestZeroPadToByteRejectsNonZero(t *testing.T) {
	r := newTestReader([]byte{0b00001101})
	if _, err := r.U(1); err != nil {
		t.Fatal(err)
	}
	if err := r.ZeroPadToByte(); err == nil {
		t.Fatal("expected pad0 error")
	} else if c, _ := jerr.CodeOf(err); c != jerr.Pad0 {
		t.Fatalf("wrong code: %v", c)
	}
}

func TestShortRetryRoundtrip(t *testing.T) {
	// Simulate a streamed source: feed 1 byte, fail with Short, feed rest,
	// retry from checkpoint, expect the identical value.
	var delivered []byte
	full := []byte{0xAB, 0xCD}
	pos := 0
	read := func(buf []byte) (int, error) {
		n := copy(buf, delivered[pos:])
		pos += n
		return n, nil
	}
	src := NewSource(read)
	r := NewReader(src)

	delivered = full[:1]
	cp := r.Checkpoint()
	_, err := r.U(16)
	if err == nil || !jerr.IsRetriable(err) {
		t.Fatalf("expected retriable short error, got %v", err)
	}
	r.Restore(cp)

	delivered = full
	v, err := r.U(16)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	want := uint32(0xAB) | uint32(0xCD)<<8
	if v != want {
		t.Fatalf("U(16) = %#x, want %#x", v, want)
	}
}
