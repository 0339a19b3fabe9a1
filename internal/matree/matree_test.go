package matree

import "testing"

// A hand-built single-leaf tree should terminate Eval in one step
// regardless of the property vector (spec §8: tree walk terminates at a
// leaf in <= 2^26 steps).
func TestEvalSingleLeafTerminates(t *testing.T) {
	tree := &Tree{Nodes: []Node{{IsLeaf: true, Predictor: 2, Offset: 0, Multiplier: 1}}}
	leaf, err := tree.Eval([]int32{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if leaf.Predictor != 2 {
		t.Fatalf("predictor = %d, want 2", leaf.Predictor)
	}
}

func TestEvalBranchRouting(t *testing.T) {
	tree := &Tree{Nodes: []Node{
		{IsLeaf: false, Property: PropX, Threshold: 5, Left: 1, Right: 2},
		{IsLeaf: true, Predictor: 1},
		{IsLeaf: true, Predictor: 7},
	}}
	leaf, err := tree.Eval([]int32{0, 0, 0, 3})
	if err != nil {
		t.Fatal(err)
	}
	if leaf.Predictor != 1 {
		t.Fatalf("expected left branch (predictor 1), got %d", leaf.Predictor)
	}
	leaf, err = tree.Eval([]int32{0, 0, 0, 9})
	if err != nil {
		t.Fatal(err)
	}
	if leaf.Predictor != 7 {
		t.Fatalf("expected right branch (predictor 7), got %d", leaf.Predictor)
	}
}

func TestUsesWeightedPredictor(t *testing.T) {
	tree := &Tree{Nodes: []Node{{IsLeaf: true, Predictor: 6}}}
	if !tree.UsesWeightedPredictor() {
		t.Fatal("expected WP detection via predictor 6")
	}
	tree2 := &Tree{Nodes: []Node{{IsLeaf: true, Predictor: 1}}}
	if tree2.UsesWeightedPredictor() {
		t.Fatal("expected no WP usage")
	}
}
