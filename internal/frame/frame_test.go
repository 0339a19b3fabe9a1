package frame

import "testing"

func TestDeriveLayoutSingleGroup(t *testing.T) {
	h := &Header{GroupSizeShift: 0, Width: 100, Height: 100}
	l := DeriveLayout(h)
	if l.NumGroups != 1 || l.NumLfGroups != 1 {
		t.Fatalf("got %+v, want single group/lfgroup for a 100x100 frame", l)
	}
}

func TestDeriveLayoutMultiGroup(t *testing.T) {
	h := &Header{GroupSizeShift: 0, Width: 300, Height: 130}
	l := DeriveLayout(h)
	// group edge = 128: ceil(300/128)=3, ceil(130/128)=2 -> 6 groups.
	if l.GroupsPerRow != 3 || l.NumGroups != 6 {
		t.Fatalf("got %+v, want 3 groups/row, 6 total", l)
	}
}
