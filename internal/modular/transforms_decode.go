package modular

import "github.com/deepteams/jxl/internal/jerr"

// transformKind selects which Transform record follows in the bitstream
// (spec §4.5: "a list of pending inverse transforms").
type transformKind int

const (
	transformRCT transformKind = iota
	transformPalette
	transformSqueeze
)

// DecodeTransforms reads the modular image's transform list: a small
// record count, then one 2-bit kind selector plus kind-specific fields per
// record. Squeeze records are rejected outright (spec §4.5: "Squeeze is
// parsed and rejected as unimplemented") since continuing to decode
// channels without knowing its resolution change would already be wrong.
//
// This decoder supports any number of leading RCT records (which don't
// change channel count) followed by at most one trailing Palette record,
// the combination real-world modular color frames actually use; a second
// Palette record or one preceding an RCT is rejected rather than silently
// misdecoded. Recorded as an Open Question in DESIGN.md.
func DecodeTransforms(src bitSource, numChannels int) ([]Transform, int, error) {
	n, err := src.U(8)
	if err != nil {
		return nil, 0, err
	}

	channels := numChannels
	var transforms []Transform
	seenPalette := false

	for i := 0; i < int(n); i++ {
		kindBits, err := src.U(2)
		if err != nil {
			return nil, 0, err
		}
		switch transformKind(kindBits) {
		case transformRCT:
			if seenPalette {
				return nil, 0, jerr.New(jerr.Xfm, "RCT record after Palette is not supported")
			}
			beginC, err := src.U(5)
			if err != nil {
				return nil, 0, err
			}
			typ, err := src.U(6)
			if err != nil {
				return nil, 0, err
			}
			transforms = append(transforms, &RCT{BeginC: int(beginC), Type: int(typ)})

		case transformPalette:
			if seenPalette {
				return nil, 0, jerr.New(jerr.Xfm, "only one Palette record is supported")
			}
			seenPalette = true
			beginC, err := src.U(5)
			if err != nil {
				return nil, 0, err
			}
			numC, err := src.U(4)
			if err != nil {
				return nil, 0, err
			}
			numColours, err := src.U(13)
			if err != nil {
				return nil, 0, err
			}
			numDeltas, err := src.U(13)
			if err != nil {
				return nil, 0, err
			}
			dPred, err := src.U(4)
			if err != nil {
				return nil, 0, err
			}
			bpp, err := src.U(5)
			if err != nil {
				return nil, 0, err
			}
			if int(beginC)+int(numC) > channels {
				return nil, 0, jerr.New(jerr.PalP, "palette begin_c %d + num_c %d exceeds %d channels", beginC, numC, channels)
			}
			transforms = append(transforms, &Palette{
				BeginC:         int(beginC),
				NumC:           int(numC),
				NumColours:     int(numColours),
				NumDeltas:      int(numDeltas),
				DeltaPredictor: int(dPred),
				Bpp:            int(bpp),
				PaletteChannel: int(beginC),
				IndexChannel:   int(beginC) + 1,
			})
			channels = channels - int(numC) + 2

		case transformSqueeze:
			return nil, 0, jerr.New(jerr.Xfm, "Squeeze transform is not implemented")

		default:
			return nil, 0, jerr.New(jerr.Xfm, "unknown transform kind %d", kindBits)
		}
	}

	return transforms, channels, nil
}
