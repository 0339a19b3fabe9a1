// Package jerr implements the decoder's sticky 32-bit error-code model
// (spec §7): every fatal or retriable condition carries one of the
// four-character codes documented in spec.md §6, so a caller can both
// log a human string and switch on a stable code.
package jerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code is a 32-bit value packed from 4 ASCII characters, LSB-first, the way
// spec.md §6 documents its example codes ("shrt", "!jxl", "ftyp", ...).
type Code uint32

// MakeCode packs a 4-character ASCII string into a Code.
func MakeCode(s string) Code {
	var b [4]byte
	copy(b[:], s)
	return Code(b[0]) | Code(b[1])<<8 | Code(b[2])<<16 | Code(b[3])<<24
}

// String renders the code back to its 4-character form.
func (c Code) String() string {
	b := [4]byte{byte(c), byte(c >> 8), byte(c >> 16), byte(c >> 24)}
	return string(b[:])
}

// Named codes from spec.md §6.
var (
	Short   = MakeCode("shrt") // retriable: input exhausted, more bytes may arrive
	NotJXL  = MakeCode("!jxl")
	FType   = MakeCode("ftyp")
	Box     = MakeCode("boxx")
	BoxBad  = MakeCode("box?")
	JXLP    = MakeCode("jxlp")
	Brotli  = MakeCode("brot")
	NoMem   = MakeCode("!mem")
	Pad0    = MakeCode("pad0")
	Enum    = MakeCode("enum")
	Fin     = MakeCode("!fin")
	Vint    = MakeCode("vint")
	Range   = MakeCode("rnge")
	Over    = MakeCode("over")
	HufD    = MakeCode("hufd")
	AnsD    = MakeCode("ansd")
	Clst    = MakeCode("clst")
	AnsBad  = MakeCode("ans?")
	Tree    = MakeCode("tree")
	TreeRec = MakeCode("trec")
	Xfm     = MakeCode("xfm?")
	RCTType = MakeCode("rctt")
	RCTChan = MakeCode("rctc")
	RCTDec  = MakeCode("rtcd")
	PalP    = MakeCode("palp")
	PalC    = MakeCode("palc")
	PalD    = MakeCode("pald")
	MTree   = MakeCode("mtre")
	Perm    = MakeCode("perm")
	BppBad  = MakeCode("bpp?")
	ExpBad  = MakeCode("exp?")
	Name    = MakeCode("name")
	CSPBad  = MakeCode("csp?")
	WPtBad  = MakeCode("wpt?")
	PrmBad  = MakeCode("prm?")
	Gamma   = MakeCode("gama")
	TFnBad  = MakeCode("tfn?")
	ITTBad  = MakeCode("itt?")
	Tone    = MakeCode("tone")
	ECTBad  = MakeCode("ect?")
	TooBig  = MakeCode("bigg")
	USmp    = MakeCode("usmp")
	Pred    = MakeCode("pred")
	POverf  = MakeCode("povf")
	DCTBad  = MakeCode("dct?")
	VBlk    = MakeCode("vblk")
	DQMBad  = MakeCode("dqm?")
	Band    = MakeCode("band")
	Coef    = MakeCode("coef")
	Read    = MakeCode("read")
)

// codeErr is the concrete error type carrying a sticky Code.
type codeErr struct {
	code Code
	msg  string
}

func (e *codeErr) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

// New builds an error carrying the given code, formatted like fmt.Errorf.
func New(code Code, format string, args ...any) error {
	return &codeErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches call-site context to err via pkg/errors while preserving the
// sticky code for CodeOf. Used at internal call sites purely for operator-
// facing log context; it never changes which Code a caller observes.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return errors.WithMessage(err, context)
}

// CodeOf extracts the sticky Code from err, walking wrapped errors. Returns
// (0, false) if err does not carry a Code (a non-decoder error, e.g. from
// the user's read callback, which is reported as Read regardless).
func CodeOf(err error) (Code, bool) {
	for err != nil {
		if ce, ok := err.(*codeErr); ok {
			return ce.code, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0, false
		}
		err = u.Unwrap()
	}
	return 0, false
}

// IsRetriable reports whether err represents a retriable short-input
// condition (spec §5/§7): the decoder state remains valid and the same
// call may be retried once more bytes are available.
func IsRetriable(err error) bool {
	c, ok := CodeOf(err)
	return ok && c == Short
}
