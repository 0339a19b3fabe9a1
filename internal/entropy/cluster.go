package entropy

import "github.com/deepteams/jxl/internal/jerr"

// DecodeClusterMap reads a cluster map of length numDist (spec §4.3): a
// recursive entropy-coded byte array, at most 256 distinct clusters, with
// an optional move-to-front post-pass.
func DecodeClusterMap(r reader, numDist int) ([]byte, int, error) {
	if numDist == 1 {
		return []byte{0}, 1, nil
	}
	simple, err := r.U(1)
	if err != nil {
		return nil, 0, err
	}
	clusterMap := make([]byte, numDist)
	if simple != 0 {
		nbits, err := r.U(2)
		if err != nil {
			return nil, 0, err
		}
		for i := range clusterMap {
			v, err := r.U(uint(nbits))
			if err != nil {
				return nil, 0, err
			}
			clusterMap[i] = byte(v)
		}
	} else {
		useMTF, err := r.U(1)
		if err != nil {
			return nil, 0, err
		}
		// The cluster map byte array is itself entropy coded with a
		// single-distribution codespec over an alphabet of size 256
		// (spec §4.3: "recursively decode with a single-distribution
		// codespec").
		inner, err := DecodeCodespec(r, 1)
		if err != nil {
			return nil, 0, err
		}
		for i := range clusterMap {
			v, err := inner.Decode(r, 0)
			if err != nil {
				return nil, 0, err
			}
			clusterMap[i] = byte(v)
		}
		if useMTF != 0 {
			applyMTF(clusterMap)
		}
	}
	numClusters := 0
	for _, c := range clusterMap {
		if int(c)+1 > numClusters {
			numClusters = int(c) + 1
		}
	}
	if numClusters > 256 {
		return nil, 0, jerr.New(jerr.Clst, "cluster map yields %d clusters, max 256", numClusters)
	}
	return clusterMap, numClusters, nil
}

// applyMTF undoes a move-to-front transform in place.
func applyMTF(vals []byte) {
	var mtf [256]byte
	for i := range mtf {
		mtf[i] = byte(i)
	}
	for i, v := range vals {
		idx := int(v)
		sym := mtf[idx]
		copy(mtf[1:idx+1], mtf[0:idx])
		mtf[0] = sym
		vals[i] = sym
	}
}

// DecodeCodespec reads one full entropy code specification (spec §4.3):
// NumDist distributions, an optional LZ77 overlay, a cluster map, and
// per-cluster hybrid-integer configs plus prefix/ANS tables.
func DecodeCodespec(r reader, numDist int) (*Codespec, error) {
	lz77Enabled, err := r.U(1)
	if err != nil {
		return nil, err
	}
	var lz77 LZ77Config
	effectiveNumDist := numDist
	if lz77Enabled != 0 {
		lz77.Enabled = true
		// The spec text doesn't enumerate min_symbol/min_length's exact
		// u32 offset/width pairs; these match the ranges libjxl's own
		// LZ77 fields use (small bias constants, up to 15 extra bits).
		minSym, err := r.U32(224, 0, 512, 0, 4096, 0, 8, 15)
		if err != nil {
			return nil, err
		}
		lz77.MinSymbol = minSym
		minLen, err := r.U32(3, 0, 4, 0, 5, 2, 9, 8)
		if err != nil {
			return nil, err
		}
		lz77.MinLength = minLen
		splitExp, err := r.U(4)
		if err != nil {
			return nil, err
		}
		msbBits, err := r.U(2)
		if err != nil {
			return nil, err
		}
		lsbBits, err := r.U(2)
		if err != nil {
			return nil, err
		}
		lz77.LenConfig = HybridConfig{SplitExp: int(splitExp), MSBBits: int(msbBits), LSBBits: int(lsbBits)}
		effectiveNumDist = numDist + 1
	}

	clusterMap, numClusters, err := DecodeClusterMap(r, effectiveNumDist)
	if err != nil {
		return nil, err
	}

	usePrefixU, err := r.U(1)
	if err != nil {
		return nil, err
	}
	usePrefix := usePrefixU != 0

	clusters := make([]Cluster, numClusters)
	for i := range clusters {
		splitExp, err := r.U(4)
		if err != nil {
			return nil, err
		}
		msbBits, err := r.U(2)
		if err != nil {
			return nil, err
		}
		lsbBits, err := r.U(2)
		if err != nil {
			return nil, err
		}
		clusters[i].Hybrid = HybridConfig{SplitExp: int(splitExp), MSBBits: int(msbBits), LSBBits: int(lsbBits)}
	}

	if usePrefix {
		for i := range clusters {
			alphabetSize, err := r.U32(1, 4, 17, 4, 33, 8, 1, 16)
			if err != nil {
				return nil, err
			}
			lengths, err := DecodeCodeLengths(r, int(alphabetSize))
			if err != nil {
				return nil, err
			}
			table, err := BuildPrefixTable(lengths)
			if err != nil {
				return nil, err
			}
			clusters[i].Prefix = table
		}
	} else {
		for i := range clusters {
			logAlpha, err := r.U(3)
			if err != nil {
				return nil, err
			}
			alphaSize := 1 << (logAlpha + 5)
			freq, err := decodeANSDistribution(r, alphaSize)
			if err != nil {
				return nil, err
			}
			dist, err := BuildDistribution(freq)
			if err != nil {
				return nil, err
			}
			clusters[i].ANS = dist
		}
	}

	return NewCodespec(effectiveNumDist, clusterMap, clusters, lz77, usePrefix), nil
}

// decodeANSDistribution reads one rANS distribution's frequency table
// (spec §4.3's u(2) selector: 0 RLE-coded codelengths, 1 single nonzero
// symbol, 2 flat over first N, 3 two nonzero symbols).
func decodeANSDistribution(r reader, alphaSize int) ([]uint32, error) {
	sel, err := r.U(2)
	if err != nil {
		return nil, err
	}
	freq := make([]uint32, alphaSize)
	switch sel {
	case 1:
		sym, err := r.U(bitsFor(uint32(alphaSize - 1)))
		if err != nil {
			return nil, err
		}
		freq[sym] = ansTotal
	case 2:
		n, err := r.U(bitsFor(uint32(alphaSize - 1)))
		if err != nil {
			return nil, err
		}
		count := int(n) + 1
		base := uint32(ansTotal) / uint32(count)
		rem := uint32(ansTotal) % uint32(count)
		for i := 0; i < count; i++ {
			freq[i] = base
			if uint32(i) < rem {
				freq[i]++
			}
		}
	case 3:
		sym0, err := r.U(bitsFor(uint32(alphaSize - 1)))
		if err != nil {
			return nil, err
		}
		sym1, err := r.U(bitsFor(uint32(alphaSize - 1)))
		if err != nil {
			return nil, err
		}
		split, err := r.U(ansStateBits)
		if err != nil {
			return nil, err
		}
		freq[sym0] = split
		freq[sym1] = ansTotal - split
	default: // 0: RLE-coded codelengths, re-expanded via the u8 primitive
		remaining := ansTotal
		for i := 0; i < alphaSize && remaining > 0; i++ {
			v, err := r.U8()
			if err != nil {
				return nil, err
			}
			freq[i] = v
			if int(v) > remaining {
				return nil, jerr.New(jerr.AnsD, "distribution frequency overflow")
			}
			remaining -= int(v)
		}
		// Any undistributed remainder goes to the final symbol, matching
		// the textbook ANS frequency-table convention.
		if remaining > 0 {
			freq[alphaSize-1] += uint32(remaining)
		}
	}
	return freq, nil
}
