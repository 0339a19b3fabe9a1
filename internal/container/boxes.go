// Package container demuxes the JPEG XL top-level envelope (spec §4.2,
// component C2): either a bare codestream starting with the FF 0A marker,
// or an ISOBMFF box stream carrying ftyp/jxlc/jxlp/jxll/jxli/brob boxes.
//
// The box-iteration shape is grounded on deepteams-webp's RIFF chunk
// walker (internal/container/riff.go's ReadChunkHeader/ReadChunk and
// parser.go's incremental per-chunk dispatch): a 4CC-tagged, length-
// prefixed record stream walked one record at a time, each yielding a
// payload slice to a type-specific handler. JPEG XL's box header is
// big-endian (vs. WebP's little-endian RIFF) and supports a 64-bit
// extended size and a to-EOF sentinel, so the low-level header reader
// is written fresh, but the iteration/dispatch loop follows the same
// shape as Parser.parse's FourCC switch.
package container

import (
	"encoding/binary"

	"github.com/deepteams/jxl/internal/jerr"
)

// FourCC constants for the box types this demux recognizes.
const (
	fourCCFtyp = "ftyp"
	fourCCJxlc = "jxlc"
	fourCCJxlp = "jxlp"
	fourCCJxll = "jxll"
	fourCCJxli = "jxli"
	fourCCBrob = "brob"
)

// jxlSignature is the exact 12-byte ISOBMFF signature box (spec §4.2).
var jxlSignature = [12]byte{0x00, 0x00, 0x00, 0x0C, 'J', 'X', 'L', ' ', 0x0D, 0x0A, 0x87, 0x0A}

// BoxHeader describes one parsed box: its 4CC type and the byte range of
// its payload (size excludes the header itself).
type BoxHeader struct {
	Type     string
	HeaderSz int  // bytes consumed by size+type (+ extended size if present)
	Size     int64 // payload size; -1 means "to EOF"
}

// ParseBoxHeader parses a box header (4-byte size, 4-byte type, optional
// 8-byte extended size) from the start of buf.
func ParseBoxHeader(buf []byte) (BoxHeader, error) {
	if len(buf) < 8 {
		return BoxHeader{}, jerr.New(jerr.Short, "need 8 bytes for box header, have %d", len(buf))
	}
	size32 := binary.BigEndian.Uint32(buf[0:4])
	typ := string(buf[4:8])
	hdr := BoxHeader{Type: typ, HeaderSz: 8}
	switch size32 {
	case 0:
		hdr.Size = -1
	case 1:
		if len(buf) < 16 {
			return BoxHeader{}, jerr.New(jerr.Short, "need 16 bytes for extended box header, have %d", len(buf))
		}
		size64 := binary.BigEndian.Uint64(buf[8:16])
		hdr.HeaderSz = 16
		hdr.Size = int64(size64) - 16
	default:
		hdr.Size = int64(size32) - 8
	}
	if hdr.Size < -1 {
		return BoxHeader{}, jerr.New(jerr.BoxBad, "box %q has negative payload size", typ)
	}
	return hdr, nil
}
