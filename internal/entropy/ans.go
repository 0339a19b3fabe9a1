package entropy

import "github.com/deepteams/jxl/internal/jerr"

// ansStateBits is the rANS state window width (spec §4.3: "a 12-bit state
// window").
const ansStateBits = 12
const ansTotal = 1 << ansStateBits // probabilities sum to 4096
const ansInitState = 0x130000

// AliasEntry is one bucket of an alias table: a bucket of width
// 1<<(ansStateBits-logAlphaSize) holds at most two symbols, Primary below
// Cutoff and Secondary at or above it (spec §4.3: "each bucket holds at
// most two symbols separated by a cutoff").
type AliasEntry struct {
	Cutoff    uint32
	Primary   uint16
	Secondary uint16
	// Offset is added to (x - cutoff) when routing into Secondary's
	// frequency-relative sub-range, so repeated symbols keep a contiguous
	// virtual frequency range across buckets.
	Offset uint32
}

// Distribution is a compiled rANS symbol distribution: one alias table
// plus the raw per-symbol frequencies it was built from (needed to
// recover each symbol's cumulative start/frequency during decode).
type Distribution struct {
	LogAlphaSize int
	Freq         []uint32 // per-symbol frequency, sums to ansTotal
	Start        []uint32 // per-symbol cumulative start offset
	Alias        []AliasEntry
}

// BuildDistribution compiles freq (summing to ansTotal, length a power of
// two >= 2^5 and <= 2^8 per spec §4.3) into an alias table via the
// stack-of-underfull/overfull rearrangement spec §4.3 specifies.
func BuildDistribution(freq []uint32) (*Distribution, error) {
	n := len(freq)
	logAlpha := 0
	for (1 << logAlpha) < n {
		logAlpha++
	}
	bucketSize := uint32(1) << uint(ansStateBits-logAlpha)

	var sum uint32
	start := make([]uint32, n)
	for i, f := range freq {
		start[i] = sum
		sum += f
	}
	if sum != ansTotal {
		return nil, jerr.New(jerr.AnsD, "distribution frequencies sum to %d, want %d", sum, ansTotal)
	}

	alias := make([]AliasEntry, n)
	// Scale each symbol's frequency into bucket counts, then rearrange
	// using the classic Vose alias-method stacks (spec's "stack-of-
	// underfull/overfull rearrangement").
	scaled := make([]uint32, n)
	copy(scaled, freq)

	type entry struct {
		sym uint16
		cnt uint32
	}
	var under, over []entry
	for i, f := range scaled {
		cutoff := f // will be overwritten below once buckets are assigned
		_ = cutoff
		if f < bucketSize {
			under = append(under, entry{uint16(i), f})
		} else if f > bucketSize {
			over = append(over, entry{uint16(i), f})
		} else {
			alias[i] = AliasEntry{Cutoff: bucketSize, Primary: uint16(i), Secondary: uint16(i)}
		}
	}
	for len(under) > 0 && len(over) > 0 {
		u := under[len(under)-1]
		under = under[:len(under)-1]
		o := over[len(over)-1]
		over = over[:len(over)-1]

		alias[u.sym] = AliasEntry{Cutoff: u.cnt, Primary: u.sym, Secondary: o.sym}
		o.cnt -= bucketSize - u.cnt
		switch {
		case o.cnt < bucketSize:
			under = append(under, o)
		case o.cnt > bucketSize:
			over = append(over, o)
		default:
			alias[o.sym] = AliasEntry{Cutoff: bucketSize, Primary: o.sym, Secondary: o.sym}
		}
	}
	for _, u := range under {
		alias[u.sym] = AliasEntry{Cutoff: bucketSize, Primary: u.sym, Secondary: u.sym}
	}
	for _, o := range over {
		alias[o.sym] = AliasEntry{Cutoff: bucketSize, Primary: o.sym, Secondary: o.sym}
	}

	return &Distribution{LogAlphaSize: logAlpha, Freq: freq, Start: start, Alias: alias}, nil
}

// Reader decodes a sequence of rANS-coded symbols against Distributions,
// maintaining the running 32-bit state spec §4.3 describes (initialized
// to 0x130000, renormalized by pulling 16 bits whenever state < 2^16).
type Reader struct {
	state uint32
	src   bitSource
	begun bool
}

// NewReader creates an rANS Reader over src. The initial state is primed
// on the first Decode call, which reads two 16-bit halves per spec §4.3.
func NewReader(src bitSource) *Reader {
	return &Reader{state: ansInitState, src: src}
}

// Decode reads one symbol from dist, advancing the rANS state.
func (r *Reader) Decode(dist *Distribution) (uint16, error) {
	if !r.begun {
		lo, err := r.src.U(16)
		if err != nil {
			return 0, err
		}
		hi, err := r.src.U(16)
		if err != nil {
			return 0, err
		}
		r.state = (hi << 16) | lo
		r.begun = true
	}

	bucketSize := uint32(1) << uint(ansStateBits-dist.LogAlphaSize)
	x := r.state & (ansTotal - 1)
	bucket := x >> uint(ansStateBits-dist.LogAlphaSize)
	within := x & (bucketSize - 1)

	e := dist.Alias[bucket]
	var symbol uint16
	var start, freq uint32
	if within < e.Cutoff {
		symbol = e.Primary
	} else {
		symbol = e.Secondary
	}
	start = dist.Start[symbol]
	freq = dist.Freq[symbol]

	r.state = freq*(r.state>>uint(ansStateBits)) + x - start
	if r.state < (1 << 16) {
		bits, err := r.src.U(16)
		if err != nil {
			return 0, err
		}
		r.state = (r.state << 16) | bits
	}
	return symbol, nil
}

// Close verifies the end-of-stream invariant: the final state must equal
// the init constant (spec §4.3/§8 testable property).
func (r *Reader) Close() error {
	if r.state != ansInitState {
		return jerr.New(jerr.AnsBad, "final ANS state %#x != %#x", r.state, ansInitState)
	}
	return nil
}
