package field

/* reduce.go holds the collective reductions. Local partials are accumulated
serially in row-major order and combined across ranks with the communicator's
fixed pairwise tree, so every rank sees the same bits regardless of the
decomposition. */

import (
	"math"
	"math/cmplx"

	"github.com/phil-mansfield/picell/comm"
	"github.com/phil-mansfield/picell/errs"
)

// Sum reduces the interior cells of f across all ranks.
func Sum[T Scalar](f *Field[T]) T {
	var local T
	f.ForEach(func(idx []int, off int) {
		local += f.data[off]
	})
	return comm.AllReduce(f.l.Comm(), comm.OpSum, []T{local})[0]
}

// Min reduces the minimum interior value of f across all ranks.
func Min(f *Field[float64]) float64 {
	local := math.Inf(1)
	f.ForEach(func(idx []int, off int) {
		if f.data[off] < local {
			local = f.data[off]
		}
	})
	return comm.AllReduce(f.l.Comm(), comm.OpMin, []float64{local})[0]
}

// Max reduces the maximum interior value of f across all ranks.
func Max(f *Field[float64]) float64 {
	local := math.Inf(-1)
	f.ForEach(func(idx []int, off int) {
		if f.data[off] > local {
			local = f.data[off]
		}
	})
	return comm.AllReduce(f.l.Comm(), comm.OpMax, []float64{local})[0]
}

// InnerProduct computes the global inner product of two fields on the same
// layout.
func InnerProduct(f, g *Field[float64]) (float64, error) {
	if !f.sameShape(g) {
		return 0, errs.New("field", "InnerProduct", errs.LayoutMismatch,
			"operands are on different layouts")
	}
	local := 0.0
	f.ForEach(func(idx []int, off int) {
		local += f.data[off] * g.data[off]
	})
	return comm.AllReduce(f.l.Comm(), comm.OpSum, []float64{local})[0], nil
}

// Norm2 returns the global l2 norm of f's interior.
func Norm2(f *Field[float64]) float64 {
	ip, _ := InnerProduct(f, f)
	return math.Sqrt(ip)
}

// Norm returns the global Lp norm of f's interior. p = 0 gives the max
// norm, p = 2 the l2 norm.
func Norm(f *Field[float64], p int) float64 {
	switch p {
	case 0:
		local := 0.0
		f.ForEach(func(idx []int, off int) {
			v := math.Abs(f.data[off])
			if v > local {
				local = v
			}
		})
		return comm.AllReduce(f.l.Comm(), comm.OpMax, []float64{local})[0]
	case 2:
		return Norm2(f)
	default:
		local := 0.0
		f.ForEach(func(idx []int, off int) {
			local += math.Pow(math.Abs(f.data[off]), float64(p))
		})
		global := comm.AllReduce(f.l.Comm(), comm.OpSum, []float64{local})[0]
		return math.Pow(global, 1/float64(p))
	}
}

// MaxAbsComplex returns the global max modulus of a complex field's
// interior.
func MaxAbsComplex(f *Field[complex128]) float64 {
	local := 0.0
	f.ForEach(func(idx []int, off int) {
		v := cmplx.Abs(f.data[off])
		if v > local {
			local = v
		}
	})
	return comm.AllReduce(f.l.Comm(), comm.OpMax, []float64{local})[0]
}
