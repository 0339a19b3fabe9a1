package entropy

import "github.com/deepteams/jxl/internal/jerr"

// HybridConfig parameterizes hybrid-integer token expansion (spec §4.3):
// tokens below 2^SplitExp are literal; above that, the token's bit pattern
// beyond the split point is decomposed into msb/lsb/extra pieces.
type HybridConfig struct {
	SplitExp int
	MSBBits  int
	LSBBits  int
}

// ExpandHybrid reassembles the final integer value for token t under cfg,
// reading any extra bits (midbits) from src.
func ExpandHybrid(t uint32, cfg HybridConfig, src bitSource) (uint32, error) {
	split := uint32(1) << uint(cfg.SplitExp)
	if t < split {
		return t, nil
	}
	n := t - split
	// n packs (extraBitsInToken, msb, lsb) the way spec §4.3 describes: the
	// token's own value above the split point directly encodes the extra
	// bit count alongside the msb/lsb fields before any bits are read from
	// the stream.
	totalBits := cfg.MSBBits + cfg.LSBBits
	extraBitsInToken := int(n >> uint(totalBits))
	msb := (n >> uint(cfg.LSBBits)) & ((1 << uint(cfg.MSBBits)) - 1)
	lsb := n & ((1 << uint(cfg.LSBBits)) - 1)

	midbits := cfg.SplitExp - (cfg.MSBBits + cfg.LSBBits) + extraBitsInToken
	if midbits < 0 || midbits > 32 {
		return 0, jerr.New(jerr.TooBig, "hybrid-integer midbits %d out of range", midbits)
	}
	mid, err := readBits(src, uint(midbits))
	if err != nil {
		return 0, err
	}

	value := (uint32(1) << uint(cfg.MSBBits+midbits+cfg.LSBBits))
	value |= msb << uint(midbits+cfg.LSBBits)
	value |= mid << uint(cfg.LSBBits)
	value |= lsb
	// The leading "1" bit is part of the value (1·msb·mid·lsb): it keeps
	// tokens with different extra-bit counts from overlapping.
	return value, nil
}

func readBits(src bitSource, n uint) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	return src.U(n)
}
