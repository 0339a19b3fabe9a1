// Package entropy implements the JPEG XL entropy-coding layer (spec §4.3,
// component C3): Brotli-style prefix codes, the rANS alternative with
// alias-table sampling, the LZ77 backward-copy overlay, hybrid-integer
// token expansion, and context clustering.
//
// The two-level prefix-code table (root table + overflow sub-tables) is a
// direct adaptation of deepteams-webp's BuildHuffmanTable
// (internal/lossless/huffman.go), which is itself a port of libwebp's
// huffman_utils.c — the same canonical algorithm JPEG XL's own prefix-code
// reader is built on (RFC 7932 §3's codeword assignment is the textbook
// canonical-Huffman scheme common to both formats). Field names and the
// trivial/packed-table fast paths specific to WebP's fixed 5-tree-per-
// metacode shape are dropped; the core replicateValue/getNextKey/
// nextTableBitSize machinery is preserved verbatim since it is format
// agnostic canonical-Huffman bookkeeping.
package entropy

import (
	"github.com/deepteams/jxl/internal/jerr"
)

// MaxCodeLength is the maximum codeword length a JPEG XL prefix code may
// use (spec §4.3's Brotli-derived complex code, 15 bits as in RFC 7932).
const MaxCodeLength = 15

// RootBits is the width of the prefix table's first-level lookup.
const RootBits = 8

// Symbol is one entry of a built prefix table: Bits is the codeword length
// (or, for a root-table redirect entry, rootBits+subtableBits); Value is
// the decoded alphabet symbol (or, for a redirect entry, the sub-table
// offset).
type Symbol struct {
	Bits  uint8
	Value uint16
}

// PrefixTable is a built two-level canonical-Huffman lookup table: index
// [0] through [1<<RootBits) is the root table; anything beyond is a
// concatenation of overflow sub-tables the root table's redirect entries
// point into.
type PrefixTable []Symbol

// BuildPrefixTable constructs a two-level lookup table from per-symbol
// code lengths (0 meaning "unused symbol"), following the canonical
// Huffman assignment RFC 7932 §3.2 describes (shortest codes to smallest
// symbol indices, breadth-first).
func BuildPrefixTable(codeLengths []int) (PrefixTable, error) {
	n := len(codeLengths)
	if n == 0 {
		return nil, jerr.New(jerr.HufD, "empty alphabet")
	}

	totalSize, err := prefixTableSize(codeLengths)
	if err != nil {
		return nil, err
	}
	table := make(PrefixTable, totalSize)

	var count [MaxCodeLength + 1]int
	for _, cl := range codeLengths {
		if cl > MaxCodeLength {
			return nil, jerr.New(jerr.HufD, "code length %d exceeds max", cl)
		}
		count[cl]++
	}
	if count[0] == n {
		return nil, jerr.New(jerr.HufD, "all code lengths zero")
	}

	var offset [MaxCodeLength + 2]int
	for l := 1; l <= MaxCodeLength; l++ {
		if count[l] > (1 << l) {
			return nil, jerr.New(jerr.HufD, "too many codes of length %d", l)
		}
		offset[l+1] = offset[l] + count[l]
	}
	sorted := make([]uint16, n)
	cursor := offset
	for symbol, cl := range codeLengths {
		if cl > 0 {
			sorted[cursor[cl]] = uint16(symbol)
			cursor[cl]++
		}
	}

	// Single non-zero-length symbol: every codeword (of length 0) decodes
	// to it directly (spec's "one non-zero length" edge case, which a
	// one-symbol simple code produces).
	if offset[MaxCodeLength+1] == 1 {
		replicateValue(table, 1, totalSize, Symbol{Bits: 0, Value: sorted[0]})
		return table, nil
	}

	for i := range count {
		count[i] = 0
	}
	for _, cl := range codeLengths {
		count[cl]++
	}

	rootBits := RootBits
	if rootBits > MaxCodeLength {
		rootBits = MaxCodeLength
	}
	tableSize := 1 << rootBits
	tableOff := 0
	tableBits := rootBits

	var low uint32 = 0xffffffff
	mask := uint32(tableSize - 1)
	var key uint32
	numNodes := 1
	numOpen := 1
	symbol := 0

	for l, step := 1, 2; l <= rootBits; l, step = l+1, step<<1 {
		numOpen <<= 1
		numNodes += numOpen
		numOpen -= count[l]
		if numOpen < 0 {
			return nil, jerr.New(jerr.HufD, "over-subscribed tree at length %d", l)
		}
		for ; count[l] > 0; count[l]-- {
			code := Symbol{Bits: uint8(l), Value: sorted[symbol]}
			symbol++
			replicateValue(table[key:], step, tableSize, code)
			key = getNextKey(key, l)
		}
	}

	for l, step := rootBits+1, 2; l <= MaxCodeLength; l, step = l+1, step<<1 {
		numOpen <<= 1
		numNodes += numOpen
		numOpen -= count[l]
		if numOpen < 0 {
			return nil, jerr.New(jerr.HufD, "over-subscribed tree at length %d", l)
		}
		for ; count[l] > 0; count[l]-- {
			if (key & mask) != low {
				tableOff += tableSize
				tableBits = nextTableBitSize(count[:], l, rootBits)
				tableSize = 1 << tableBits
				if tableOff+tableSize > totalSize {
					return nil, jerr.New(jerr.HufD, "sub-table overflow")
				}
				low = key & mask
				table[low] = Symbol{Bits: uint8(tableBits + rootBits), Value: uint16(tableOff)}
			}
			code := Symbol{Bits: uint8(l - rootBits), Value: sorted[symbol]}
			symbol++
			off := tableOff + int(key>>uint(rootBits))
			if off >= totalSize {
				return nil, jerr.New(jerr.HufD, "entry offset overflow")
			}
			replicateValue(table[off:], step, tableSize, code)
			key = getNextKey(key, l)
		}
	}

	if numNodes != 2*offset[MaxCodeLength+1]-1 {
		return nil, jerr.New(jerr.HufD, "incomplete tree")
	}
	return table, nil
}

func prefixTableSize(codeLengths []int) (int, error) {
	n := len(codeLengths)
	total := 1 << RootBits

	var count [MaxCodeLength + 1]int
	for _, cl := range codeLengths {
		if cl > MaxCodeLength {
			return 0, jerr.New(jerr.HufD, "code length %d exceeds max", cl)
		}
		count[cl]++
	}
	if count[0] == n {
		return 0, jerr.New(jerr.HufD, "all code lengths zero")
	}

	var offset [MaxCodeLength + 2]int
	for l := 1; l <= MaxCodeLength; l++ {
		if count[l] > (1 << l) {
			return 0, jerr.New(jerr.HufD, "too many codes of length %d", l)
		}
		offset[l+1] = offset[l] + count[l]
	}
	if offset[MaxCodeLength+1] == 1 {
		return total, nil
	}

	mask := uint32(total - 1)
	var key uint32
	numNodes := 1
	numOpen := 1
	for l := 1; l <= RootBits; l++ {
		numOpen <<= 1
		numNodes += numOpen
		numOpen -= count[l]
		if numOpen < 0 {
			return 0, jerr.New(jerr.HufD, "over-subscribed tree")
		}
		for ; count[l] > 0; count[l]-- {
			key = getNextKey(key, l)
		}
	}

	var low uint32 = 0xffffffff
	for l := RootBits + 1; l <= MaxCodeLength; l++ {
		numOpen <<= 1
		numNodes += numOpen
		numOpen -= count[l]
		if numOpen < 0 {
			return 0, jerr.New(jerr.HufD, "over-subscribed tree")
		}
		for ; count[l] > 0; count[l]-- {
			if (key & mask) != low {
				total += 1 << nextTableBitSize(count[:], l, RootBits)
				low = key & mask
			}
			key = getNextKey(key, l)
		}
	}
	if numNodes != 2*offset[MaxCodeLength+1]-1 {
		return 0, jerr.New(jerr.HufD, "incomplete tree")
	}
	return total, nil
}

// getNextKey returns reverse(reverse(key, length)+1, length): the next
// canonical-Huffman codeword key in bit-reversed (LSB-first) order.
func getNextKey(key uint32, length int) uint32 {
	step := uint32(1) << (length - 1)
	for key&step != 0 {
		step >>= 1
	}
	if step != 0 {
		return (key & (step - 1)) + step
	}
	return key
}

// replicateValue fills table[0], table[step], ... up to end with code.
func replicateValue(table []Symbol, step, end int, code Symbol) {
	for i := end - step; i >= 0; i -= step {
		table[i] = code
	}
}

// nextTableBitSize returns the width of the next overflow sub-table,
// sized to exactly cover the remaining codes at or above length.
func nextTableBitSize(count []int, length, rootBits int) int {
	left := 1 << (length - rootBits)
	for length < MaxCodeLength {
		left -= count[length]
		if left <= 0 {
			break
		}
		length++
		left <<= 1
	}
	return length - rootBits
}

// bitSource is the minimal interface the prefix-code and rANS readers need
// from the bit reader (spec §4.1 C1); satisfied by *bitio.Reader.
type bitSource interface {
	U(n uint) (uint32, error)
}

// ReadSymbol decodes one symbol from table using bits pulled from src.
func ReadSymbol(table PrefixTable, src bitSource) (uint16, error) {
	peek, err := peekBits(src, RootBits)
	if err != nil {
		return 0, err
	}
	entry := table[peek]
	if int(entry.Bits) <= RootBits {
		if _, err := src.U(uint(entry.Bits)); err != nil {
			return 0, err
		}
		return entry.Value, nil
	}
	// Root entry is a sub-table redirect: consume the root-table's worth
	// of bits, then resolve inside the sub-table using further lookahead.
	if _, err := src.U(RootBits); err != nil {
		return 0, err
	}
	subBits := int(entry.Bits) - RootBits
	sub, err := peekBits(src, uint(subBits))
	if err != nil {
		return 0, err
	}
	idx := int(entry.Value) + int(sub)
	if idx >= len(table) {
		return 0, jerr.New(jerr.HufD, "sub-table index out of range")
	}
	leaf := table[idx]
	if _, err := src.U(uint(leaf.Bits)); err != nil {
		return 0, err
	}
	return leaf.Value, nil
}

// peekReader is implemented by readers that can look ahead without
// consuming bits; *bitio.Reader satisfies it via a cheap checkpoint/restore
// pair when Peek itself isn't exposed.
type peekReader interface {
	bitSource
	Checkpoint() any
	Restore(cp any)
}

// peekBits reads n bits for lookahead purposes, restoring position
// afterward if src supports checkpointing; otherwise the caller is assumed
// to re-derive position itself (used only internally, where src is always
// a *bitio.Reader and thus a peekReader). When fewer than n bits of input
// remain, it peeks as many as there are and reads the missing high bits as
// zero; a codeword longer than what remains then fails when it is consumed.
func peekBits(src bitSource, n uint) (uint32, error) {
	if pr, ok := src.(peekReader); ok {
		for ; n > 0; n-- {
			cp := pr.Checkpoint()
			v, err := pr.U(n)
			pr.Restore(cp)
			if err == nil || !jerr.IsRetriable(err) {
				return v, err
			}
		}
		return 0, nil
	}
	return src.U(n)
}
