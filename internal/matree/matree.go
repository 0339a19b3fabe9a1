// Package matree implements the Meta-Adaptive (MA) tree (spec §4.4,
// component C4): the per-pixel decision tree the Modular decoder walks to
// pick a predictor, context, and multiplier for the next entropy-coded
// residual.
//
// There is no direct analog for a decision tree serialized as six
// parallel entropy-coded distributions anywhere in the example pack; this
// package is grounded in spec §4.4's own prose description, using the
// entropy codespec machinery (internal/entropy) the same way every other
// component built on top of C3 does.
package matree

import (
	"github.com/deepteams/jxl/internal/entropy"
	"github.com/deepteams/jxl/internal/jerr"
)

// Number of distinct "static" properties (spec §4.4's list up through
// "W-WW" and the WP error property); modular.DecodeChannel adds four more
// per previously-decoded same-shape same-shift channel.
const (
	PropChannel = iota
	PropStream
	PropY
	PropX
	PropAbsN
	PropAbsW
	PropN
	PropW
	PropGradWNEMinusN // W + NE - N
	PropWPlusNMinusNW // W + N - NW
	PropWMinusNW
	PropNWMinusN
	PropNMinusNE
	PropNMinusNN
	PropWMinusWW
	PropWPMaxErr // property 15: max-abs of weighted-predictor errors
	NumStaticProps
)

// Node is one MA tree node: a branch (Property > 0 conceptually, modeled
// here via IsLeaf) or a leaf carrying the predictor/offset/multiplier
// triple the modular decoder applies at this pixel.
type Node struct {
	IsLeaf bool

	// Branch fields.
	Property  int // 0-based property index (spec: prop-1)
	Threshold int32
	Left      int // child node index (property <= threshold)
	Right     int // child node index (property > threshold)

	// Leaf fields.
	Predictor  int
	Offset     int32
	Multiplier int32
	// Context is this leaf's entropy-coding context id: the number of
	// leaves decoded before it in depth-first left-first order. The
	// per-pixel residual for a leaf is always read under its own context,
	// so a codespec for a channel needs exactly this many contexts.
	Context int
}

// Tree is a flattened, depth-first-serialized MA tree; Nodes[0] is the
// root.
type Tree struct {
	Nodes     []Node
	NumLeaves int
}

// maxNodes bounds total node count per spec §4.4 ("Total nodes <= 2^26").
const maxNodes = 1 << 26

// DecodeTree reads a full MA tree from the bitstream using codespec cs,
// which must carry (at least) six contexts in the fixed order spec §4.4
// assigns: property(ctx1), value(ctx0), predictor(ctx2), offset(ctx3),
// shift(ctx4), multiplier-token(ctx5).
func DecodeTree(cs *entropy.Codespec, src codespecSource) (*Tree, error) {
	t := &Tree{}
	if _, err := t.decodeNode(cs, src); err != nil {
		return nil, err
	}
	return t, nil
}

// codespecSource is the bit source entropy.Codespec.Decode needs; kept as
// a narrow local alias so this package doesn't import bitio directly.
type codespecSource interface {
	U(n uint) (uint32, error)
}

const (
	ctxValue     = 0
	ctxProperty  = 1
	ctxPredictor = 2
	ctxOffset    = 3
	ctxShift     = 4
	ctxMultTok   = 5
)

// decodeNode recursively decodes one subtree, appending nodes to t.Nodes
// in depth-first left-first order, and returns the index of the node it
// just appended.
func (t *Tree) decodeNode(cs *entropy.Codespec, src codespecSource) (int, error) {
	if len(t.Nodes) >= maxNodes {
		return 0, jerr.New(jerr.MTree, "MA tree exceeds %d nodes", maxNodes)
	}
	propRaw, err := cs.Decode(src, ctxProperty)
	if err != nil {
		return 0, err
	}
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{}) // reserve slot
	if propRaw > 0 {
		threshold, err := cs.Decode(src, ctxValue)
		if err != nil {
			return 0, err
		}
		left, err := t.decodeNode(cs, src)
		if err != nil {
			return 0, err
		}
		right, err := t.decodeNode(cs, src)
		if err != nil {
			return 0, err
		}
		t.Nodes[idx] = Node{
			IsLeaf:    false,
			Property:  int(propRaw) - 1,
			Threshold: threshold,
			Left:      left,
			Right:     right,
		}
		return idx, nil
	}

	predictor, err := cs.Decode(src, ctxPredictor)
	if err != nil {
		return 0, err
	}
	if predictor < 0 || predictor > 13 {
		return 0, jerr.New(jerr.Pred, "predictor %d out of range", predictor)
	}
	offset, err := cs.Decode(src, ctxOffset)
	if err != nil {
		return 0, err
	}
	shiftRaw, err := cs.Decode(src, ctxShift)
	if err != nil {
		return 0, err
	}
	if shiftRaw < 0 || shiftRaw >= 31 {
		return 0, jerr.New(jerr.MTree, "multiplier shift %d out of range", shiftRaw)
	}
	multTok, err := cs.Decode(src, ctxMultTok)
	if err != nil {
		return 0, err
	}
	multiplier := (multTok + 1) << uint(shiftRaw)

	t.Nodes[idx] = Node{
		IsLeaf:     true,
		Predictor:  int(predictor),
		Offset:     offset,
		Multiplier: multiplier,
		Context:    t.NumLeaves,
	}
	t.NumLeaves++
	return idx, nil
}

// UsesWeightedPredictor reports whether walking this tree can ever reach
// property 15 (WP error) or predictor 6 (WP value) — the modular decoder
// uses this to decide whether to pay for weighted-predictor state at all
// (spec §4.5 step 1).
func (t *Tree) UsesWeightedPredictor() bool {
	for _, n := range t.Nodes {
		if !n.IsLeaf && n.Property == PropWPMaxErr {
			return true
		}
		if n.IsLeaf && n.Predictor == 6 {
			return true
		}
	}
	return false
}

// Eval walks the tree for a given property vector (indexed the same way
// Node.Property is) and returns the leaf reached.
func (t *Tree) Eval(props []int32) (Node, error) {
	idx := 0
	steps := 0
	for {
		steps++
		if steps > maxNodes {
			return Node{}, jerr.New(jerr.MTree, "tree walk exceeded node budget")
		}
		n := t.Nodes[idx]
		if n.IsLeaf {
			return n, nil
		}
		var v int32
		if n.Property >= 0 && n.Property < len(props) {
			v = props[n.Property]
		}
		if v <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}
