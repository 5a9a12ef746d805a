package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange(t *testing.T) {
	table := []struct {
		r     Range
		len   int
		empty bool
	}{
		{Range{0, 9}, 10, false},
		{Range{3, 3}, 1, false},
		{Range{5, 4}, 0, true},
		{Range{-2, 2}, 5, false},
	}

	for i, test := range table {
		assert.Equal(t, test.len, test.r.Len(), "case %d", i)
		assert.Equal(t, test.empty, test.r.Empty(), "case %d", i)
	}
}

func TestRangeIntersect(t *testing.T) {
	table := []struct {
		a, b, out Range
	}{
		{Range{0, 9}, Range{5, 14}, Range{5, 9}},
		{Range{0, 9}, Range{10, 14}, Range{10, 9}},
		{Range{0, 9}, Range{2, 3}, Range{2, 3}},
		{Range{0, 9}, Range{-4, -1}, Range{0, -1}},
	}

	for i, test := range table {
		out := test.a.Intersect(test.b)
		assert.Equal(t, test.out.Empty(), out.Empty(), "case %d", i)
		if !out.Empty() {
			assert.Equal(t, test.out, out, "case %d", i)
		}
	}
}

func TestBoxAlgebra(t *testing.T) {
	b := NewBox(8, 4, 2)
	assert.Equal(t, 3, b.Dim())
	assert.Equal(t, 64, b.Size())
	assert.Equal(t, []int{8, 4, 2}, b.Lengths())
	assert.True(t, b.Contains([]int{7, 3, 1}))
	assert.False(t, b.Contains([]int{8, 0, 0}))

	moved := b.Translate([]int{2, 0, -1})
	assert.Equal(t, Box{{2, 9}, {0, 3}, {-1, 0}}, moved)
	assert.True(t, b.Intersect(moved).Equal(Box{{2, 7}, {0, 3}, {0, 0}}))

	grown := b.Grow(1)
	assert.Equal(t, Box{{-1, 8}, {-1, 4}, {-1, 2}}, grown)
}

func TestSplitBalancedCoverage(t *testing.T) {
	table := []struct {
		lengths    []int
		splittable []bool
		n          int
	}{
		{[]int{32, 32, 32}, []bool{true, true, true}, 4},
		{[]int{32, 32, 32}, []bool{true, false, false}, 3},
		{[]int{16, 32, 8}, []bool{true, true, true}, 6},
		{[]int{5, 5, 5}, []bool{true, true, true}, 2},
		{[]int{10, 10}, []bool{true, true}, 4},
		{[]int{7}, []bool{true}, 7},
	}

	for i, test := range table {
		b := NewBox(test.lengths...)
		pieces, counts, err := SplitBalanced(b, test.splittable, test.n)
		require.NoError(t, err, "case %d", i)
		require.Len(t, pieces, test.n, "case %d", i)

		gridSize := 1
		for _, c := range counts {
			gridSize *= c
		}
		assert.Equal(t, test.n, gridSize, "case %d", i)

		// The pieces cover the box exactly once.
		total := 0
		for _, p := range pieces {
			total += p.Size()
		}
		assert.Equal(t, b.Size(), total, "case %d", i)

		for j := range pieces {
			for k := j + 1; k < len(pieces); k++ {
				assert.True(t, pieces[j].Intersect(pieces[k]).Empty(),
					"case %d: pieces %d and %d overlap", i, j, k)
			}
		}

		// Balance: no two pieces differ by more than one cell per axis.
		for d := 0; d < b.Dim(); d++ {
			min, max := b[d].Len(), 0
			for _, p := range pieces {
				if p[d].Len() < min {
					min = p[d].Len()
				}
				if p[d].Len() > max {
					max = p[d].Len()
				}
			}
			assert.LessOrEqual(t, max-min, 1, "case %d axis %d", i, d)
		}
	}
}

func TestSplitBalancedSerialOnly(t *testing.T) {
	b := NewBox(16, 16)
	_, _, err := SplitBalanced(b, []bool{false, false}, 2)
	assert.Error(t, err)

	pieces, _, err := SplitBalanced(b, []bool{false, false}, 1)
	require.NoError(t, err)
	assert.True(t, pieces[0].Equal(b))
}
