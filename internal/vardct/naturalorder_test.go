package vardct

import "testing"

// For each tested (logRows, logCols) the produced order must be a
// permutation of [0, 1<<(logRows+logCols)), visiting every position exactly
// once (spec §8: "Natural order" testable property). The row-major LLF
// prefix is checked by TestNaturalOrderLLFPrefix.
func TestNaturalOrderIsPermutation(t *testing.T) {
	shapes := [][2]int{{0, 0}, {1, 1}, {2, 2}, {0, 1}, {1, 2}, {2, 3}, {0, 2}, {2, 5}, {3, 3}}
	for _, s := range shapes {
		logRows, logCols := s[0], s[1]
		order := NaturalOrder(logRows, logCols)
		total := 1 << uint(logRows+logCols)
		if len(order) != total {
			t.Fatalf("shape (%d,%d): len=%d, want %d", logRows, logCols, len(order), total)
		}
		seen := make([]bool, total)
		for _, p := range order {
			if p < 0 || p >= total {
				t.Fatalf("shape (%d,%d): position %d out of range", logRows, logCols, p)
			}
			if seen[p] {
				t.Fatalf("shape (%d,%d): position %d visited twice", logRows, logCols, p)
			}
			seen[p] = true
		}
	}
}

func TestNaturalOrderLLFPrefix(t *testing.T) {
	order := NaturalOrder(4, 5) // 16 rows x 32 cols; LLF region is 2x4 row-major
	llfLen := 1 << uint(4+5-6)
	for i := 0; i < llfLen; i++ {
		wantX, wantY := i%4, i/4
		gotX, gotY := order[i]%32, order[i]/32
		if gotX != wantX || gotY != wantY {
			t.Fatalf("prefix[%d] = (%d,%d), want (%d,%d)", i, gotX, gotY, wantX, wantY)
		}
	}
}
