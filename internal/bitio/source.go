// Package bitio implements the JPEG XL bit-level source and reader (spec
// §4.1, component C1).
//
// The design mirrors deepteams-webp's internal/bitio.LosslessReader: a
// sliding window backed by a growable owned buffer, with bits consumed
// LSB-first out of a prefetch register that is refilled lazily. JPEG XL
// additionally needs partial-input resumption (spec §5/§7), so the owned
// buffer here is never simply "the whole file" — it grows via a caller
// supplied ReadFunc and is trimmed at checkpoints the container layer
// advances after each committed box boundary.
package bitio

import "github.com/deepteams/jxl/internal/jerr"

// ReadFunc mirrors the decoder's external reader callback (spec §6):
// written == 0 with a nil error means EOF; any non-nil error is fatal.
type ReadFunc func(buf []byte) (written int, err error)

// growChunk is the minimum number of bytes requested from ReadFunc per
// refill, amortizing many small bitstream reads into few callback calls.
const growChunk = 4096

// Source owns the backing buffer for one decode session. It grows on
// demand and is trimmed at checkpoints so memory does not grow unbounded
// across a long streamed decode (spec §5: "the decoder MUST trim committed
// bytes at every checkpoint").
type Source struct {
	buf        []byte
	checkpoint int // byte offset in buf that has been committed; bytes before this may be trimmed
	read       ReadFunc
	eof        bool // the read callback has reported EOF
	readErr    error
}

// NewSource creates a Source that pulls bytes from read on demand.
func NewSource(read ReadFunc) *Source {
	return &Source{read: read}
}

// NewSourceBytes creates a Source over a fixed, already-fully-available
// byte slice (no further refills are possible; used for sub-streams like
// a single resolved codestream buffer).
func NewSourceBytes(data []byte) *Source {
	return &Source{buf: data, eof: true}
}

// Len returns the number of buffered, as-yet-unconsumed-and-uncommitted
// bytes starting at the checkpoint.
func (s *Source) Len() int { return len(s.buf) - s.checkpoint }

// ensure grows buf until it holds at least n bytes past the checkpoint.
// Returns jerr.Short (retriable) the moment the read callback reports no
// bytes available — spec §6 defines written==0 as EOF, but per §5/§7 the
// decoder must treat that as a retriable condition, not a permanent one:
// the same callback may have more to give on a later call once the caller
// has arranged for it (e.g. more of a streamed file has arrived). A prior
// hard I/O error, by contrast, is sticky for the lifetime of the Source
// (spec §7: "any other error is fatal and sticky").
func (s *Source) ensure(n int) error {
	if s.readErr != nil {
		if _, ok := jerr.CodeOf(s.readErr); ok {
			return jerr.Wrap(s.readErr, "reader callback failed")
		}
		return jerr.New(jerr.Read, "reader callback failed: %v", s.readErr)
	}
	if s.read == nil {
		// Fixed byte-slice source (NewSourceBytes): no more data will ever
		// arrive, so a shortfall here is unconditionally short input.
		if s.Len() < n {
			return jerr.New(jerr.Short, "need %d bytes, have %d", n, s.Len())
		}
		return nil
	}
	for s.Len() < n {
		want := growChunk
		if need := n - s.Len(); need > want {
			want = need
		}
		old := len(s.buf)
		s.buf = append(s.buf, make([]byte, want)...)
		written, err := s.read(s.buf[old:])
		s.buf = s.buf[:old+written]
		if err != nil {
			s.readErr = err
			if _, ok := jerr.CodeOf(err); ok {
				// The callback already carries a sticky decoder code (e.g. a
				// container-layer ReadFunc reporting a box-ordering
				// violation); preserve it instead of flattening to Read.
				return jerr.Wrap(err, "reader callback failed")
			}
			return jerr.New(jerr.Read, "reader callback failed: %v", err)
		}
		if written == 0 {
			return jerr.New(jerr.Short, "need %d bytes, have %d", n, s.Len())
		}
	}
	return nil
}

// Checkpoint advances the commit point to byte offset off (relative to the
// checkpoint, i.e. the number of bytes consumed since the last checkpoint)
// and compacts buf so previously committed bytes are released. The
// container layer calls this after each fully-parsed box header or
// section, per spec §4.1/§5.
func (s *Source) Checkpoint(off int) {
	newCheckpoint := s.checkpoint + off
	if newCheckpoint > len(s.buf) {
		newCheckpoint = len(s.buf)
	}
	if newCheckpoint == 0 {
		return
	}
	s.buf = append(s.buf[:0], s.buf[newCheckpoint:]...)
	s.checkpoint = 0
}
