package modular

import (
	"github.com/deepteams/jxl/internal/entropy"
	"github.com/deepteams/jxl/internal/matree"
)

// bitSource is the bit-level primitive entropy.Codespec.Decode needs.
type bitSource interface {
	U(n uint) (uint32, error)
}

// PriorChannel describes a previously-decoded channel of the same shape
// and shift as the one currently being decoded, exposed for the four
// derived per-channel MA-tree properties (spec §4.4: "for each previously
// decoded same-shape same-shift channel c, four derived properties").
type PriorChannel struct {
	Ch *Channel
}

// DecodeChannel decodes one channel plane in raster order (spec §4.5
// steps 1-2): MA tree evaluation per pixel, predictor application,
// optional weighted-predictor bookkeeping, and int16 overflow checking.
func DecodeChannel(src bitSource, cs *entropy.Codespec, t *matree.Tree, ch *Channel, channelIndex, streamIndex int, priors []PriorChannel) error {
	var wp *wpState
	useWP := t.UsesWeightedPredictor()
	if useWP {
		wp = newWPState(ch.Width)
	}

	numProps := matree.NumStaticProps + 4*len(priors)
	props := make([]int32, numProps)

	for y := 0; y < ch.Height; y++ {
		if wp != nil {
			wp.beginRow()
		}
		for x := 0; x < ch.Width; x++ {
			n := neighborsAt(ch, x, y)

			var subpred [4]int32
			var p4 int32
			if wp != nil {
				subpred, p4 = wp.predict(x, n)
			}

			props[matree.PropChannel] = int32(channelIndex)
			props[matree.PropStream] = int32(streamIndex)
			props[matree.PropY] = int32(y)
			props[matree.PropX] = int32(x)
			props[matree.PropAbsN] = absI32(n.N)
			props[matree.PropAbsW] = absI32(n.W)
			props[matree.PropN] = n.N
			props[matree.PropW] = n.W
			props[matree.PropGradWNEMinusN] = n.W + n.NE - n.N
			props[matree.PropWPlusNMinusNW] = n.W + n.N - n.NW
			props[matree.PropWMinusNW] = n.W - n.NW
			props[matree.PropNWMinusN] = n.NW - n.N
			props[matree.PropNMinusNE] = n.N - n.NE
			props[matree.PropNMinusNN] = n.N - n.NN
			props[matree.PropWMinusWW] = n.W - n.WW
			if wp != nil {
				props[matree.PropWPMaxErr] = wp.maxAbsWPError(x)
			}
			for i, pc := range priors {
				rC := pc.Ch.At(x, y)
				gn := neighborsAt(pc.Ch, x, y)
				grad := clampTo(gn.W+gn.N-gn.NW, minI32(gn.W, gn.N), maxI32(gn.W, gn.N))
				base := matree.NumStaticProps + 4*i
				props[base+0] = rC
				props[base+1] = rC - grad
				props[base+2] = absI32(rC)
				props[base+3] = absI32(rC - grad)
			}

			leaf, err := t.Eval(props)
			if err != nil {
				return err
			}
			predVal, err := applyPredictor(leaf.Predictor, n, p4)
			if err != nil {
				return err
			}

			tok, err := cs.Decode(src, leaf.Context)
			if err != nil {
				return err
			}
			value := tok*leaf.Multiplier + leaf.Offset + predVal
			if err := checkRange(value); err != nil {
				return err
			}
			ch.Set(x, y, value)

			if wp != nil {
				wp.recordError(x, subpred, value)
			}
		}
	}
	return nil
}

