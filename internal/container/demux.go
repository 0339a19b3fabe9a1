package container

import (
	"github.com/deepteams/jxl/internal/bitio"
	"github.com/deepteams/jxl/internal/jerr"
	"github.com/deepteams/jxl/internal/jlog"
)

// Demux recognizes bare-vs-ISOBMFF input (spec §4.2) and exposes the
// logical codestream — the concatenation of jxlc/jxlp box payloads, with
// the jxlp 4-byte partial-index prefix stripped — as a bitio.ReadFunc the
// bit reader's own Source can pull from.
//
// Mirrors deepteams-webp's Parser: a single incremental walk over a
// length-prefixed record stream that classifies the first record and then
// dispatches per-type, accumulating into Features-like summary state
// (here, just the box-ordering bookkeeping spec §4.2 requires) while
// handing bitstream payload bytes onward to the pixel decoder.
type Demux struct {
	buf     []byte
	pos     int
	read    bitio.ReadFunc
	readErr error

	bare bool

	initialized  bool
	sigDone      bool       // container signature already consumed
	ftypHdr      *BoxHeader // ftyp header already consumed, payload pending
	seenJxll     bool
	seenJxli     bool
	seenJxlc     bool
	jxlpCount    int
	codestreamDone bool // jxlc seen, or a jxlp with the "no more parts" bit set

	// current-box iteration state, valid once initialized
	haveBox         bool
	curType         string
	curRemaining    int64 // payload bytes left to deliver/skip; -1 = to EOF
	curIsCodestream bool
	curNeedsJxlpHdr bool // next bytes are the 4-byte jxlp partial-index prefix
}

// NewDemux creates a Demux pulling raw container bytes from read.
func NewDemux(read bitio.ReadFunc) *Demux {
	return &Demux{read: read}
}

const growChunk = 4096

// ensure grows buf (relative to pos) until n bytes are available past pos,
// or returns a retriable Short / sticky Read error, matching bitio.Source's
// contract since Demux sits below it in the same pull chain.
func (d *Demux) ensure(n int) error {
	if d.readErr != nil {
		return jerr.New(jerr.Read, "container reader failed: %v", d.readErr)
	}
	for len(d.buf)-d.pos < n {
		old := len(d.buf)
		want := growChunk
		if need := n - (len(d.buf) - d.pos); need > want {
			want = need
		}
		d.buf = append(d.buf, make([]byte, want)...)
		written, err := d.read(d.buf[old:])
		d.buf = d.buf[:old+written]
		if err != nil {
			d.readErr = err
			return jerr.New(jerr.Read, "container reader failed: %v", err)
		}
		if written == 0 {
			return jerr.New(jerr.Short, "need %d bytes, have %d", n, len(d.buf)-d.pos)
		}
	}
	return nil
}

// compact drops bytes before pos to bound memory growth (spec §4.1: "the
// decoder MUST trim committed bytes at every checkpoint").
func (d *Demux) compact() {
	if d.pos == 0 {
		return
	}
	d.buf = append(d.buf[:0], d.buf[d.pos:]...)
	d.pos = 0
}

// init performs bare-vs-container detection and, for container input,
// validates the signature and ftyp box (spec §4.2).
func (d *Demux) init() error {
	if err := d.ensure(1); err != nil {
		return err
	}
	if d.buf[d.pos] == 0xFF {
		d.bare = true
		d.initialized = true
		return nil
	}
	if !d.sigDone {
		if err := d.ensure(12); err != nil {
			return err
		}
		var sig [12]byte
		copy(sig[:], d.buf[d.pos:d.pos+12])
		if sig != jxlSignature {
			return jerr.New(jerr.NotJXL, "missing JXL container signature")
		}
		d.pos += 12
		d.compact()
		d.sigDone = true
	}

	if d.ftypHdr == nil {
		h, err := d.readBoxHeader()
		if err != nil {
			return err
		}
		d.ftypHdr = &h
	}
	hdr := *d.ftypHdr
	if hdr.Type != fourCCFtyp {
		return jerr.New(jerr.FType, "expected ftyp box, got %q", hdr.Type)
	}
	if hdr.Size < 8 {
		return jerr.New(jerr.FType, "ftyp box too small")
	}
	if err := d.ensure(int(hdr.Size)); err != nil {
		return err
	}
	brand := string(d.buf[d.pos : d.pos+4])
	if brand != "jxl " {
		return jerr.New(jerr.FType, "unexpected ftyp brand %q", brand)
	}
	d.pos += int(hdr.Size)
	d.compact()
	d.initialized = true
	jlog.Debugf("container: detected ISOBMFF input, brand=%q", brand)
	return nil
}

// readBoxHeader reads one box header at pos, advancing pos past it.
func (d *Demux) readBoxHeader() (BoxHeader, error) {
	if err := d.ensure(8); err != nil {
		return BoxHeader{}, err
	}
	// May need up to 16 bytes if this is an extended-size box; ParseBoxHeader
	// tells us only after seeing the first 8, so retry with a larger ensure
	// if it reports short on the 16-byte path.
	hdr, err := ParseBoxHeader(d.buf[d.pos:])
	if err != nil {
		if c, ok := jerr.CodeOf(err); ok && c == jerr.Short {
			if err := d.ensure(16); err != nil {
				return BoxHeader{}, err
			}
			hdr, err = ParseBoxHeader(d.buf[d.pos:])
			if err != nil {
				return BoxHeader{}, err
			}
		} else {
			return BoxHeader{}, err
		}
	}
	d.pos += hdr.HeaderSz
	d.compact()
	return hdr, nil
}

// advanceBox selects and validates the next box, enforcing spec §4.2's
// ordering rules, and arms curType/curRemaining/curIsCodestream for it.
func (d *Demux) advanceBox() error {
	hdr, err := d.readBoxHeader()
	if err != nil {
		return err
	}
	switch hdr.Type {
	case fourCCJxll:
		if d.seenJxll || d.seenJxlc || d.jxlpCount > 0 {
			return jerr.New(jerr.BoxBad, "jxll box out of order")
		}
		d.seenJxll = true
	case fourCCJxli:
		// "at most once"; order otherwise unconstrained relative to jxll.
		if d.seenJxli {
			return jerr.New(jerr.BoxBad, "jxli box appears more than once")
		}
		d.seenJxli = true
	case fourCCJxlc:
		if d.codestreamDone || d.seenJxlc || d.jxlpCount > 0 {
			return jerr.New(jerr.BoxBad, "jxlc box out of order")
		}
		d.seenJxlc = true
		d.codestreamDone = true
		d.curIsCodestream = true
		d.curType = hdr.Type
		d.curRemaining = hdr.Size
		d.haveBox = true
		return nil
	case fourCCJxlp:
		if d.codestreamDone || d.seenJxlc {
			return jerr.New(jerr.JXLP, "jxlp box out of order")
		}
		d.jxlpCount++
		d.curIsCodestream = true
		d.curType = hdr.Type
		d.curRemaining = hdr.Size
		d.curNeedsJxlpHdr = true
		d.haveBox = true
		return nil
	case fourCCBrob:
		// A Brotli-compressed box; the core never needs its payload, only
		// skips it (spec §4.2: "the core rejects any Brotli box except to
		// skip if harmless").
	}
	d.curIsCodestream = false
	d.curType = hdr.Type
	d.curRemaining = hdr.Size
	d.haveBox = true
	return nil
}

// Read implements bitio.ReadFunc: it fills buf with logical codestream
// bytes (jxlc/jxlp payloads concatenated, jxlp index prefixes stripped),
// skipping over any other box transparently. Returns (0, nil) on a
// retriable short-input condition, per spec §7.
func (d *Demux) Read(buf []byte) (int, error) {
	if !d.initialized {
		if err := d.init(); err != nil {
			return translateShort(err)
		}
	}
	if d.bare {
		return d.readBareOrRaw(buf)
	}
	for {
		if !d.haveBox {
			if err := d.advanceBox(); err != nil {
				if c, ok := jerr.CodeOf(err); ok && c == jerr.Short {
					return 0, nil
				}
				return 0, err
			}
		}
		if d.curNeedsJxlpHdr {
			if err := d.ensure(4); err != nil {
				return translateShort(err)
			}
			idx := uint32(d.buf[d.pos])<<24 | uint32(d.buf[d.pos+1])<<16 | uint32(d.buf[d.pos+2])<<8 | uint32(d.buf[d.pos+3])
			d.pos += 4
			d.compact()
			if d.curRemaining >= 0 {
				d.curRemaining -= 4
			}
			d.curNeedsJxlpHdr = false
			if idx&0x80000000 != 0 {
				d.codestreamDone = true
			}
		}
		if d.curRemaining == 0 {
			d.haveBox = false
			continue
		}
		if !d.curIsCodestream {
			// Skip this box's payload entirely.
			if err := d.skipCurrent(); err != nil {
				if c, ok := jerr.CodeOf(err); ok && c == jerr.Short {
					return 0, nil
				}
				return 0, err
			}
			d.haveBox = false
			continue
		}
		// Deliver codestream bytes from the current box.
		want := len(buf)
		if d.curRemaining >= 0 && int64(want) > d.curRemaining {
			want = int(d.curRemaining)
		}
		if want == 0 {
			d.haveBox = false
			continue
		}
		if err := d.ensure(1); err != nil {
			// Even one byte isn't available yet; a Short here is retriable
			// regardless of whether the box is to-EOF or bounded (spec §7).
			return translateShort(err)
		}
		avail := len(d.buf) - d.pos
		if avail < want {
			want = avail
		}
		n := copy(buf, d.buf[d.pos:d.pos+want])
		d.pos += n
		if d.curRemaining >= 0 {
			d.curRemaining -= int64(n)
		}
		d.compact()
		return n, nil
	}
}

// skipCurrent discards the remainder of a non-codestream box's payload.
func (d *Demux) skipCurrent() error {
	for d.curRemaining != 0 {
		chunk := growChunk
		if d.curRemaining >= 0 && int64(chunk) > d.curRemaining {
			chunk = int(d.curRemaining)
		}
		if err := d.ensure(1); err != nil {
			if d.curRemaining < 0 {
				return nil // to-EOF box, and the stream has ended: done skipping
			}
			return err
		}
		avail := len(d.buf) - d.pos
		if avail > chunk {
			avail = chunk
		}
		d.pos += avail
		if d.curRemaining >= 0 {
			d.curRemaining -= int64(avail)
		}
		d.compact()
	}
	return nil
}

// readBareOrRaw passes raw bytes straight through for a bare codestream
// (no box structure at all).
func (d *Demux) readBareOrRaw(buf []byte) (int, error) {
	if err := d.ensure(1); err != nil {
		return translateShort(err)
	}
	avail := len(d.buf) - d.pos
	n := copy(buf, d.buf[d.pos:d.pos+min(avail, len(buf))])
	d.pos += n
	d.compact()
	return n, nil
}

func translateShort(err error) (int, error) {
	if c, ok := jerr.CodeOf(err); ok && c == jerr.Short {
		return 0, nil
	}
	return 0, err
}

// ReadFunc returns d.Read bound as a bitio.ReadFunc, suitable for
// bitio.NewSource.
func (d *Demux) ReadFunc() bitio.ReadFunc { return d.Read }

// Open wraps an external reader callback with a Demux and returns the
// logical-codestream bitio.Source the rest of the decoder reads bit
// primitives from.
func Open(read bitio.ReadFunc) *bitio.Source {
	d := NewDemux(read)
	return bitio.NewSource(d.ReadFunc())
}
