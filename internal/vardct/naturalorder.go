// Package vardct implements the VarDCT sub-image decoder's HF machinery
// (spec §§4.8-4.10, C8-C10): dequantization matrices, coefficient order
// permutations, per-pass entropy contexts, HF coefficient decoding, and the
// inverse DCT family.
package vardct

// NaturalOrder enumerates positions [0, 1<<(logRows+logCols)) for a block
// of log-size (logRows, logCols) with logRows <= logCols (spec §4.8): the
// LLF region (the top-left (rows/8) x (cols/8) area) row-major first, then
// diagonals of constant x + y*2^(logCols-logRows) with alternating
// direction.
func NaturalOrder(logRows, logCols int) []int {
	if logRows > logCols {
		panic("NaturalOrder requires logRows <= logCols")
	}
	rows, cols := 1<<uint(logRows), 1<<uint(logCols)
	total := rows * cols
	order := make([]int, 0, total)

	llfRows, llfCols := rows/8, cols/8 // empty when rows < 8
	visited := make([]bool, total)
	pos := func(x, y int) int { return y*cols + x }

	for y := 0; y < llfRows; y++ {
		for x := 0; x < llfCols; x++ {
			p := pos(x, y)
			order = append(order, p)
			visited[p] = true
		}
	}

	scale := 1 << uint(logCols-logRows)
	maxDiag := (cols - 1) + (rows-1)*scale
	dir := 1
	for d := 0; d <= maxDiag; d++ {
		var diag []int
		for y := 0; y < rows; y++ {
			x := d - y*scale
			if x < 0 || x >= cols {
				continue
			}
			p := pos(x, y)
			if visited[p] {
				continue
			}
			diag = append(diag, p)
		}
		if dir < 0 {
			for i, j := 0, len(diag)-1; i < j; i, j = i+1, j-1 {
				diag[i], diag[j] = diag[j], diag[i]
			}
		}
		for _, p := range diag {
			order = append(order, p)
			visited[p] = true
		}
		dir = -dir
	}
	return order
}
