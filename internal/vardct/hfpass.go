package vardct

import (
	"github.com/deepteams/jxl/internal/bitio"
	"github.com/deepteams/jxl/internal/entropy"
	"github.com/deepteams/jxl/internal/permute"
)

// NumOrders is the 13-bit used_orders bitmap width (spec §4.8: "read
// used_orders bitmap (13 bits)").
const NumOrders = 13

// coefficientContextBase is the fixed per-context-set size spec §4.8 gives
// for a pass's entropy codespec ("495 * nb_block_ctx * num_hf_presets").
const coefficientContextBase = 495

// HfPass is one decoded pass's coefficient orders and entropy codespec
// (spec §4.8).
type HfPass struct {
	UsedOrders uint32 // 13-bit bitmap
	// Orders[orderIdx][channel] is the coefficient permutation for that
	// natural-order bit, channel in Y,X,B order.
	Orders   map[int][3][]int
	Codespec *entropy.Codespec
}

// orderShapeLog maps each of the 13 used_orders bits to a (logRows,
// logCols) block shape; spec §4.8 doesn't enumerate the bit-to-shape
// assignment in the available text, so this decoder uses the nine
// (logRows, logCols) pairs with both logs in [3, 5] listed below, and
// repeats {3, 3} for the remaining four bits; recorded as an Open Question
// in DESIGN.md. A pair with logRows > logCols is decoded with the two logs
// swapped, as passgroup.go also does.
var orderShapeLog = [NumOrders][2]int{
	{3, 3}, {3, 4}, {4, 3}, {4, 4}, {3, 5}, {5, 3}, {4, 5}, {5, 4},
	{5, 5}, {3, 3}, {3, 3}, {3, 3}, {3, 3}, // padding repeats for bits
	// beyond the 9 distinct shapes this decoder models explicitly.
}

// DecodeHfPass reads a pass's used_orders bitmap, one coefficient-order
// permutation per set bit per channel, and the pass's entropy codespec
// (spec §4.8).
func DecodeHfPass(r *bitio.Reader, nbBlockCtx, numHfPresets int) (*HfPass, error) {
	used, err := r.U(NumOrders)
	if err != nil {
		return nil, err
	}
	hp := &HfPass{UsedOrders: used, Orders: make(map[int][3][]int)}

	for bit := 0; bit < NumOrders; bit++ {
		if used&(1<<uint(bit)) == 0 {
			continue
		}
		logRows, logCols := orderShapeLog[bit][0], orderShapeLog[bit][1]
		if logRows > logCols {
			logRows, logCols = logCols, logRows
		}
		natural := NaturalOrder(logRows, logCols)
		size := len(natural)
		llfSize := size / 64
		tailSize := size - llfSize

		var perChannel [3][]int
		for c := 0; c < 3; c++ {
			tailPerm, err := permute.Decode(r, tailSize)
			if err != nil {
				return nil, err
			}
			tail, err := permute.Apply(natural[llfSize:], tailPerm)
			if err != nil {
				return nil, err
			}
			full := make([]int, 0, size)
			full = append(full, natural[:llfSize]...)
			full = append(full, tail...)
			perChannel[c] = full
		}
		hp.Orders[bit] = perChannel
	}

	numContexts := coefficientContextBase * nbBlockCtx * numHfPresets
	cs, err := entropy.DecodeCodespec(r, numContexts)
	if err != nil {
		return nil, err
	}
	hp.Codespec = cs
	return hp, nil
}
