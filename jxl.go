package jxl

import (
	"io"

	"go.uber.org/zap"

	"github.com/deepteams/jxl/internal/jerr"
	"github.com/deepteams/jxl/internal/jlog"
)

// Code is the decoder's sticky 32-bit error code (spec §6/§7), exposed so
// callers can switch on a stable four-character mnemonic without reaching
// into internal packages.
type Code = jerr.Code

// IsRetriable reports whether err represents spec §7's "shrt" condition:
// the decoder state remains valid and the same call may be retried once
// more input bytes are available from the caller's reader.
func IsRetriable(err error) bool { return jerr.IsRetriable(err) }

// CodeOf extracts the sticky Code from a decode error, if any.
func CodeOf(err error) (Code, bool) { return jerr.CodeOf(err) }

// Image is the core's decode output (spec §6 "Output planes"): the
// frame's cropping-rectangle raster as 8-bit-or-higher integer samples in
// linear RGB or grayscale, plus optional alpha.
type Image struct {
	Width, Height int
	BitDepth      int
	Grayscale     bool

	// Planes holds one plane (grayscale) or three (RGB), row-major,
	// len(Planes[i]) == Width*Height.
	Planes [][]uint16

	// Alpha is nil when the image header declares no alpha extra channel.
	Alpha []uint16
}

// Option configures a Decoder (spec SPEC_FULL AMBIENT STACK: "a plain
// functional-options struct", the idiom deepteams-webp's EncoderOptions
// uses).
type Option func(*Decoder)

// WithLogger installs l as the decoder's trace logger (spec SPEC_FULL
// AMBIENT STACK: "library callers may inject their own via jxl.SetLogger").
func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Decoder) { d.logger = l }
}

// SetLogger installs a process-wide trace logger for every Decoder,
// mirroring ausocean-av's package-level logger-field pattern.
func SetLogger(l *zap.SugaredLogger) { jlog.Set(l) }

// Decoder is a single-threaded JPEG XL decoder instance (spec §5: "Single-
// threaded cooperative within one decoder instance").
type Decoder struct {
	logger *zap.SugaredLogger
}

// NewDecoder builds a Decoder with the given options applied.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{}
	for _, o := range opts {
		o(d)
	}
	if d.logger != nil {
		jlog.Set(d.logger)
	}
	return d
}

// Decode reads one still image from r: container demux, image header, and
// the first regular frame's full pixel pipeline (spec §2's component
// chain C1..C11).
func (d *Decoder) Decode(r io.Reader) (*Image, error) {
	return decodeReader(r)
}

// Decode is shorthand for NewDecoder().Decode(r).
func Decode(r io.Reader) (*Image, error) { return NewDecoder().Decode(r) }
