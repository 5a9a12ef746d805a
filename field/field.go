/*package field provides distributed arrays over a layout: interior plus
ghost storage, lazily composed elementwise algebra, derivative stencils,
halo exchange, and collective reductions.*/
package field

import (
	"github.com/phil-mansfield/picell/errs"
	"github.com/phil-mansfield/picell/exec"
	"github.com/phil-mansfield/picell/index"
	"github.com/phil-mansfield/picell/layout"
)

// Scalar is the set of cell value types.
type Scalar interface {
	~float64 | ~complex128
}

// Field is an array over the local subdomain of a layout, expanded by the
// layout's ghost width on every face. Interior cells are addressed with
// global multi-indices.
type Field[T Scalar] struct {
	l       *layout.Layout
	ext     index.Box // local domain grown by the ghost width
	strides []int     // row-major, last axis fastest
	data    []T
	ex      exec.Executor
}

// New allocates a zeroed field over l's local subdomain.
func New[T Scalar](l *layout.Layout) *Field[T] {
	f := &Field[T]{
		l:   l,
		ext: l.Local().Grow(l.GhostWidth()),
		ex:  exec.Default,
	}
	dim := f.ext.Dim()
	f.strides = make([]int, dim)
	f.strides[dim-1] = 1
	for d := dim - 2; d >= 0; d-- {
		f.strides[d] = f.strides[d+1] * f.ext[d+1].Len()
	}
	f.data = make([]T, f.ext.Size())
	return f
}

// NewVec allocates n zeroed fields sharing a layout, one per vector
// component.
func NewVec[T Scalar](l *layout.Layout, n int) []*Field[T] {
	out := make([]*Field[T], n)
	for i := range out {
		out[i] = New[T](l)
	}
	return out
}

// SetExecutor replaces the executor used for elementwise kernels.
func (f *Field[T]) SetExecutor(ex exec.Executor) { f.ex = ex }

// Layout returns the layout the field is attached to.
func (f *Field[T]) Layout() *layout.Layout { return f.l }

// Local returns the interior (owned) box in global coordinates.
func (f *Field[T]) Local() index.Box { return f.l.Local() }

// Ext returns the storage box, interior plus ghost frame.
func (f *Field[T]) Ext() index.Box { return f.ext }

// Data exposes the backing storage. The dumper interface hands this out
// read-only together with Ext.
func (f *Field[T]) Data() []T { return f.data }

// Offset converts a global multi-index inside Ext to a storage offset.
func (f *Field[T]) Offset(idx []int) int {
	off := 0
	for d := range f.strides {
		off += (idx[d] - f.ext[d].First) * f.strides[d]
	}
	return off
}

// At returns the value at a global multi-index, which may be a ghost cell.
func (f *Field[T]) At(idx ...int) T { return f.data[f.Offset(idx)] }

// Set stores a value at a global multi-index.
func (f *Field[T]) Set(v T, idx ...int) { f.data[f.Offset(idx)] = v }

// Stride returns the storage stride of one axis.
func (f *Field[T]) Stride(axis int) int { return f.strides[axis] }

// sameShape reports whether g can appear in an expression assigned to f.
func (f *Field[T]) sameShape(g *Field[T]) bool {
	return f.l == g.l && f.ext.Equal(g.ext)
}

// interiorOffset returns the storage offset of the i-th interior cell in
// row-major order.
func (f *Field[T]) interiorOffset(i int) int {
	local := f.l.Local()
	off := 0
	for d := f.ext.Dim() - 1; d >= 0; d-- {
		n := local[d].Len()
		coord := local[d].First + i%n
		i /= n
		off += (coord - f.ext[d].First) * f.strides[d]
	}
	return off
}

// ForEach visits every interior cell in deterministic row-major order,
// passing the global multi-index and storage offset. The index slice is
// reused between calls.
func (f *Field[T]) ForEach(body func(idx []int, off int)) {
	local := f.l.Local()
	dim := f.ext.Dim()
	idx := make([]int, dim)
	for d := range idx {
		idx[d] = local[d].First
	}

	n := local.Size()
	for i := 0; i < n; i++ {
		body(idx, f.Offset(idx))
		for d := dim - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] <= local[d].Last {
				break
			}
			idx[d] = local[d].First
		}
	}
}

// AssignConst sets every interior cell to v.
func (f *Field[T]) AssignConst(v T) {
	n := f.l.Local().Size()
	f.ex.For(n, func(i int) {
		f.data[f.interiorOffset(i)] = v
	})
	f.ex.Fence()
}

// Fill sets every cell, ghosts included, to v.
func (f *Field[T]) Fill(v T) {
	for i := range f.data {
		f.data[i] = v
	}
}

// Assign evaluates an expression into every interior cell. Evaluation is
// deferred until this call; the expression describes a per-cell formula over
// fields that share f's layout.
func (f *Field[T]) Assign(e Expr[T]) error {
	if err := e.check(f); err != nil {
		return err
	}
	n := f.l.Local().Size()
	f.ex.For(n, func(i int) {
		off := f.interiorOffset(i)
		f.data[off] = e.eval(off)
	})
	f.ex.Fence()
	return nil
}

// CopyFrom copies src's full storage into f. The fields must share a
// layout.
func (f *Field[T]) CopyFrom(src *Field[T]) error {
	if !f.sameShape(src) {
		return errs.New("field", "CopyFrom", errs.LayoutMismatch,
			"source and destination are on different layouts")
	}
	copy(f.data, src.data)
	return nil
}
