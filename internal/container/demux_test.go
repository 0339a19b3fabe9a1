package container

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/deepteams/jxl/internal/bitio"
	"github.com/deepteams/jxl/internal/jerr"
)

func box(typ string, payload []byte) []byte {
	var b bytes.Buffer
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(8+len(payload)))
	b.Write(size[:])
	b.WriteString(typ)
	b.Write(payload)
	return b.Bytes()
}

func buildContainer(codestream []byte) []byte {
	var out []byte
	out = append(out, jxlSignature[:]...)
	out = append(out, box(fourCCFtyp, []byte("jxl \x00\x00\x00\x00jxl "))...)
	out = append(out, box("abcd", make([]byte, 16))...)
	out = append(out, box(fourCCJxlc, codestream)...)
	return out
}

func fixedReadFunc(data []byte) bitio.ReadFunc {
	pos := 0
	return func(buf []byte) (int, error) {
		n := copy(buf, data[pos:])
		pos += n
		return n, nil
	}
}

func drainCodestream(t *testing.T, src *bitio.Source, want []byte) {
	t.Helper()
	r := bitio.NewReader(src)
	got := make([]byte, len(want))
	for i := range want {
		v, err := r.U(8)
		if err != nil {
			t.Fatalf("byte %d: %v", i, err)
		}
		got[i] = byte(v)
	}
	if !cmp.Equal(got, want) {
		t.Fatalf("codestream mismatch (-want +got):\n%s", cmp.Diff(want, got))
	}
}

func TestContainerSkip(t *testing.T) {
	codestream := []byte{0xFF, 0x0A, 0x11, 0x22, 0x33}
	data := buildContainer(codestream)
	src := Open(fixedReadFunc(data))
	drainCodestream(t, src, codestream)
}

func TestBareCodestream(t *testing.T) {
	codestream := []byte{0xFF, 0x0A, 0xAB, 0xCD}
	src := Open(fixedReadFunc(codestream))
	drainCodestream(t, src, codestream)
}

func TestPartialInputRetry(t *testing.T) {
	codestream := []byte{0xFF, 0x0A, 0x11, 0x22, 0x33}
	full := buildContainer(codestream)

	var available, pos int
	read := func(buf []byte) (int, error) {
		n := copy(buf, full[pos:available])
		pos += n
		return n, nil
	}
	d := NewDemux(read)
	src := bitio.NewSource(d.ReadFunc())
	r := bitio.NewReader(src)

	available = 5
	cp := r.Checkpoint()
	_, err := r.U(8)
	if err == nil || !jerr.IsRetriable(err) {
		t.Fatalf("expected retriable short, got %v", err)
	}
	r.Restore(cp)

	available = 15
	cp = r.Checkpoint()
	_, err = r.U(8)
	if err == nil || !jerr.IsRetriable(err) {
		t.Fatalf("expected retriable short on second attempt, got %v", err)
	}
	r.Restore(cp)

	available = len(full)
	drainCodestream(t, src, codestream)
}

func TestRejectsBadSignature(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x0C, 'X', 'X', 'X', 'X', 0x0D, 0x0A, 0x87, 0x0A, 0xFF, 0x0A}
	src := Open(fixedReadFunc(data))
	r := bitio.NewReader(src)
	_, err := r.U(8)
	if err == nil {
		t.Fatal("expected error for bad signature")
	}
	if c, ok := jerr.CodeOf(err); !ok || c != jerr.NotJXL {
		t.Fatalf("wrong code: %v", c)
	}
}
