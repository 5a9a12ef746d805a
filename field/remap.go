package field

/* remap.go moves owned cells between layouts: re-binding a field after a
load-balancer rebuild, and copying between the regular and doubled domains
used by the open-boundary solver. */

import (
	"github.com/phil-mansfield/picell/comm"
	"github.com/phil-mansfield/picell/errs"
	"github.com/phil-mansfield/picell/layout"
)

// Transfer copies every cell of src's global domain that also lies in dst's
// global domain into dst, routing between ranks as needed. Cells of dst
// outside the overlap are left untouched. Collective over the shared world.
func Transfer[T Scalar](dst, src *Field[T]) error {
	sl, dl := src.l, dst.l
	if sl.Dim() != dl.Dim() {
		return errs.New("field", "Transfer", errs.LayoutMismatch,
			"source is %d-dimensional but destination is %d-dimensional",
			sl.Dim(), dl.Dim())
	}
	c := sl.Comm()
	if c.World() != dl.Comm().World() {
		return errs.New("field", "Transfer", errs.LayoutMismatch,
			"source and destination layouts live in different worlds")
	}
	me := c.Rank()
	size := c.Size()

	send := make([][]T, size)
	for d := 0; d < size; d++ {
		box := sl.Domain(me).Intersect(dl.Domain(d))
		if box.Empty() {
			continue
		}
		buf := send[d]
		forEachInBox(src, box, func(off int) {
			buf = append(buf, src.data[off])
		})
		send[d] = buf
	}

	recv, err := comm.AllToAllv(c, send)
	if err != nil {
		return err
	}

	for s := 0; s < size; s++ {
		box := sl.Domain(s).Intersect(dl.Domain(me))
		if box.Empty() {
			continue
		}
		buf := recv[s]
		p := 0
		forEachInBox(dst, box, func(off int) {
			dst.data[off] = buf[p]
			p++
		})
	}
	return nil
}

// Remap re-binds f to a new layout of the same global domain, performing an
// all-to-all of owned cells. Ghost cells of the rebound field are stale
// until the next FillHalo.
func (f *Field[T]) Remap(newLayout *layout.Layout) error {
	if !f.l.Global().Equal(newLayout.Global()) {
		return errs.New("field", "Remap", errs.LayoutMismatch,
			"new layout has global domain %s, old has %s",
			newLayout.Global(), f.l.Global())
	}
	tmp := New[T](newLayout)
	tmp.ex = f.ex
	if err := Transfer(tmp, f); err != nil {
		return err
	}
	*f = *tmp
	return nil
}
