package entropy

import "github.com/deepteams/jxl/internal/jerr"

// reader is the superset of bit primitives codespec parsing needs beyond
// plain U(n); satisfied by *bitio.Reader.
type reader interface {
	bitSource
	U8() (uint32, error)
	U32(o0 uint32, n0 uint, o1 uint32, n1 uint, o2 uint32, n2 uint, o3 uint32, n3 uint) (uint32, error)
}

// zigzagLayer1 is the fixed symbol-to-codeword-length permutation RFC 7932
// §3.5 (and JPEG XL's adoption of it) uses for the 18-symbol layer-1 code
// that itself encodes the per-symbol code lengths of the real alphabet.
var zigzagLayer1 = [18]int{1, 2, 3, 4, 0, 5, 17, 6, 16, 7, 8, 9, 10, 11, 12, 13, 14, 15}

// layer0Lengths is the fixed 4-bit layer-0 code length table assigning
// codeword lengths to the 18 layer-1 symbols (spec §4.3: "zig-zagged
// codelengths read via a fixed 4-bit layer-0 code").
var layer0Lengths = [18]int{2, 4, 3, 2, 2, 4, 3, 2, 2, 2, 2, 2, 2, 3, 4, 2, 2, 2}

// bitsFor returns ceil(log2(max+1)), the width of an at_most(max) field.
func bitsFor(max uint32) uint {
	n := uint(0)
	for (uint32(1) << n) < max+1 {
		n++
	}
	return n
}

// DecodeCodeLengths reads one Brotli-style complex/simple prefix-code
// specification (spec §4.3) for an alphabet of size alphabetSize and
// returns the per-symbol code length array ready for BuildPrefixTable.
func DecodeCodeLengths(r reader, alphabetSize int) ([]int, error) {
	hskip, err := r.U(2)
	if err != nil {
		return nil, err
	}
	if hskip == 1 {
		return decodeSimpleCode(r, alphabetSize)
	}
	return decodeComplexCode(r, alphabetSize)
}

// decodeSimpleCode reads the simple-code template: NSYM in {1..4} literal
// symbols, assigned code lengths directly from a fixed table keyed by
// NSYM and (for NSYM==4) a tree-selection bit.
func decodeSimpleCode(r reader, alphabetSize int) ([]int, error) {
	nsymMinus1, err := r.U(2)
	if err != nil {
		return nil, err
	}
	nsym := int(nsymMinus1) + 1
	symBits := bitsFor(uint32(alphabetSize - 1))
	syms := make([]int, nsym)
	for i := range syms {
		v, err := r.U(symBits)
		if err != nil {
			return nil, err
		}
		if int(v) >= alphabetSize {
			return nil, jerr.New(jerr.HufD, "simple-code symbol %d out of range", v)
		}
		syms[i] = int(v)
	}
	lengths := make([]int, alphabetSize)
	switch nsym {
	case 1:
		lengths[syms[0]] = 1
	case 2:
		lengths[syms[0]] = 1
		lengths[syms[1]] = 1
	case 3:
		lengths[syms[0]] = 1
		lengths[syms[1]] = 2
		lengths[syms[2]] = 2
	case 4:
		tree, err := r.U(1)
		if err != nil {
			return nil, err
		}
		if tree == 0 {
			for _, s := range syms {
				lengths[s] = 2
			}
		} else {
			lengths[syms[0]] = 1
			lengths[syms[1]] = 2
			lengths[syms[2]] = 3
			lengths[syms[3]] = 3
		}
	}
	return lengths, nil
}

// decodeComplexCode reads the complex-code path: an 18-symbol layer-1
// code length table itself compiled into a small prefix table, then used
// to decode alphabetSize codeword lengths with run-length symbols 16
// (repeat last nonzero) and 17 (repeat zero).
func decodeComplexCode(r reader, alphabetSize int) ([]int, error) {
	var layer1Lengths [18]int
	numCodes := 0
	for i, sym := range zigzagLayer1 {
		present, err := r.U(1)
		if err != nil {
			return nil, err
		}
		if present == 0 {
			continue
		}
		layer1Lengths[sym] = layer0Lengths[i]
		numCodes++
	}
	_ = numCodes
	table, err := BuildPrefixTable(layer1Lengths[:])
	if err != nil {
		return nil, jerr.New(jerr.HufD, "layer-1 code invalid: %v", err)
	}

	lengths := make([]int, alphabetSize)
	symbol := 0
	prevNonzero := 8
	prevRepeat := 0
	repeatKind := 0 // 0 = none, 16 = nonzero-repeat, 17 = zero-repeat
	for symbol < alphabetSize {
		v, err := ReadSymbol(table, r)
		if err != nil {
			return nil, err
		}
		switch {
		case v < 16:
			lengths[symbol] = int(v)
			symbol++
			if v != 0 {
				prevNonzero = int(v)
			}
			repeatKind = 0
		case v == 16:
			var extra uint32
			if repeatKind == 16 {
				prevRepeat = 4*prevRepeat - 5
			} else {
				base, err := r.U(2)
				if err != nil {
					return nil, err
				}
				extra = base
				prevRepeat = int(extra) + 3
			}
			repeatKind = 16
			for i := 0; i < prevRepeat && symbol < alphabetSize; i++ {
				lengths[symbol] = prevNonzero
				symbol++
			}
		case v == 17:
			var extra uint32
			if repeatKind == 17 {
				prevRepeat = 8*prevRepeat - 13
			} else {
				base, err := r.U(3)
				if err != nil {
					return nil, err
				}
				extra = base
				prevRepeat = int(extra) + 3
			}
			repeatKind = 17
			for i := 0; i < prevRepeat && symbol < alphabetSize; i++ {
				lengths[symbol] = 0
				symbol++
			}
		default:
			return nil, jerr.New(jerr.HufD, "invalid layer-2 symbol %d", v)
		}
	}
	return lengths, nil
}
