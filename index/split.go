package index

/* split.go partitions a box across ranks with balanced orthogonal splitting:
the axes marked splittable are divided, longest first, until the requested
piece count is reached, and no two pieces differ by more than one cell along
any axis. */

import (
	"sort"

	"github.com/phil-mansfield/picell/errs"
)

// SplitBalanced partitions b into n pieces by splitting along the axes where
// splittable is true. It returns the pieces in lexicographic order over the
// axis-major piece grid (first axis slowest) along with the per-axis piece
// counts. Axes marked unsplittable are never divided.
func SplitBalanced(b Box, splittable []bool, n int) ([]Box, []int, error) {
	dim := b.Dim()
	if len(splittable) != dim {
		return nil, nil, errs.New("index", "SplitBalanced", errs.Configuration,
			"%d decomposition tags for a %d-dimensional box",
			len(splittable), dim)
	}
	if n < 1 {
		return nil, nil, errs.New("index", "SplitBalanced", errs.Configuration,
			"cannot split into %d pieces", n)
	}

	counts := make([]int, dim)
	for d := range counts {
		counts[d] = 1
	}

	// Assign the prime factors of n, largest first, each to the axis that
	// currently has the longest per-piece extent. Larger factors go first so
	// they land on the axes with the most room.
	factors := primeFactors(n)
	sort.Sort(sort.Reverse(sort.IntSlice(factors)))
	for _, f := range factors {
		best, bestLen := -1, 0
		for d := 0; d < dim; d++ {
			if !splittable[d] {
				continue
			}
			pieceLen := b[d].Len() / counts[d]
			if pieceLen/f < 1 {
				continue
			}
			if pieceLen > bestLen {
				best, bestLen = d, pieceLen
			}
		}
		if best == -1 {
			return nil, nil, errs.New(
				"index", "SplitBalanced", errs.Configuration,
				"cannot split %s into %d pieces along the splittable axes",
				b, n,
			)
		}
		counts[best] *= f
	}

	pieces := make([]Box, n)
	idx := make([]int, dim)
	for k := 0; k < n; k++ {
		piece := make(Box, dim)
		for d := 0; d < dim; d++ {
			piece[d] = axisPiece(b[d], counts[d], idx[d])
		}
		pieces[k] = piece

		// Lexicographic advance, last axis fastest.
		for d := dim - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < counts[d] {
				break
			}
			idx[d] = 0
		}
	}
	return pieces, counts, nil
}

// Chunk returns the i-th of parts nearly equal chunks of [0, n-1]. It is
// the 1D work-division rule used for line ownership during FFT reshapes.
func Chunk(n, parts, i int) Range {
	return axisPiece(Range{0, n - 1}, parts, i)
}

// axisPiece returns the i-th of c nearly equal chunks of r. The first
// r.Len()%c chunks are one index longer than the rest.
func axisPiece(r Range, c, i int) Range {
	n, rem := r.Len()/c, r.Len()%c
	first := r.First + i*n
	if i < rem {
		first += i
	} else {
		first += rem
	}
	length := n
	if i < rem {
		length++
	}
	return Range{first, first + length - 1}
}

func primeFactors(n int) []int {
	var fs []int
	for p := 2; p*p <= n; p++ {
		for n%p == 0 {
			fs = append(fs, p)
			n /= p
		}
	}
	if n > 1 {
		fs = append(fs, n)
	}
	return fs
}
