// Package jxl implements a decoder for the core of the JPEG XL still-image
// bitstream (ISO/IEC 18181-1): container demultiplexing, the shared entropy
// coder, the Meta-Adaptive predictor tree, the Modular sub-image decoder,
// the VarDCT sub-image decoder, and XYB-to-linear-RGB assembly.
//
// The package supports:
//   - Bare codestreams and ISOBMFF-container-wrapped codestreams
//   - Modular frames (predictors, RCT, Palette)
//   - VarDCT frames (all block transforms, chroma-from-luma)
//   - Partial-input resumption via a retriable short-input error
//
// Noise, patches, splines, non-default tone mapping, reference-frame
// blending other than REPLACE, progressive multi-pass frames, and sample
// upsampling are recognized in the bitstream and rejected cleanly rather
// than implemented.
//
// Basic usage for decoding:
//
//	img, err := jxl.Decode(r)
package jxl
