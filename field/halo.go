package field

/* halo.go fills ghost cells from their owning ranks and flushes ghost
accumulations back. Transfers are planned identically on every rank from the
layout alone, so packing and unpacking agree without extra metadata. */

import (
	"github.com/phil-mansfield/picell/comm"
	"github.com/phil-mansfield/picell/index"
	"github.com/phil-mansfield/picell/layout"
)

// transfer moves the cells of srcBox on rank src into dstBox on rank dst.
// The boxes have equal shape and differ only by a periodic image shift.
type transfer struct {
	src, dst       int
	srcBox, dstBox index.Box
}

// ghostSlabs decomposes rank r's ghost frame into disjoint boxes. The slab
// for axis a spans the extended box on earlier axes and the local box on
// later axes, which covers edges and corners exactly once.
func ghostSlabs(l *layout.Layout, r int) []index.Box {
	g := l.GhostWidth()
	local := l.Domain(r)
	ext := local.Grow(g)
	dim := local.Dim()

	var slabs []index.Box
	for a := 0; a < dim; a++ {
		for side := 0; side < 2; side++ {
			slab := make(index.Box, dim)
			for d := 0; d < a; d++ {
				slab[d] = ext[d]
			}
			if side == 0 {
				slab[a] = index.Range{First: ext[a].First, Last: local[a].First - 1}
			} else {
				slab[a] = index.Range{First: local[a].Last + 1, Last: ext[a].Last}
			}
			for d := a + 1; d < dim; d++ {
				slab[d] = local[d]
			}
			if !slab.Empty() {
				slabs = append(slabs, slab)
			}
		}
	}
	return slabs
}

// wrapShifts returns the periodic image shifts to consider when matching
// ghost cells to owners: the zero shift plus +-L along every periodic axis,
// in a fixed order.
func wrapShifts(l *layout.Layout) [][]int {
	dim := l.Dim()
	shifts := [][]int{make([]int, dim)}
	for a := 0; a < dim; a++ {
		if !l.PeriodicAxis(a) {
			continue
		}
		n := l.Global()[a].Len()
		grown := shifts
		for _, s := range shifts {
			for _, delta := range []int{-n, n} {
				img := append([]int{}, s...)
				img[a] = delta
				grown = append(grown, img)
			}
		}
		shifts = grown
	}
	return shifts
}

// fillTransfers plans every remote ghost fill in the world, in an order all
// ranks agree on.
func fillTransfers(l *layout.Layout) []transfer {
	shifts := wrapShifts(l)
	size := l.Comm().Size()

	var out []transfer
	for dst := 0; dst < size; dst++ {
		for _, slab := range ghostSlabs(l, dst) {
			for _, shift := range shifts {
				for src := 0; src < size; src++ {
					img := slab.Intersect(l.Domain(src).Translate(shift))
					if img.Empty() {
						continue
					}
					neg := make([]int, len(shift))
					for d := range shift {
						neg[d] = -shift[d]
					}
					out = append(out, transfer{
						src: src, dst: dst,
						srcBox: img.Translate(neg), dstBox: img,
					})
				}
			}
		}
	}
	return out
}

// forEachInBox visits the storage offsets of box in row-major order. box
// must lie inside f.Ext().
func forEachInBox[T Scalar](f *Field[T], box index.Box, body func(off int)) {
	if box.Empty() {
		return
	}
	dim := box.Dim()
	idx := make([]int, dim)
	for d := range idx {
		idx[d] = box[d].First
	}
	n := box.Size()
	for i := 0; i < n; i++ {
		body(f.Offset(idx))
		for d := dim - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] <= box[d].Last {
				break
			}
			idx[d] = box[d].First
		}
	}
}

// FillHalo makes every ghost cell equal to the value its owner holds, or to
// the boundary-operator image at non-periodic global faces. Collective:
// every rank of the layout's world must call it.
func (f *Field[T]) FillHalo() error {
	l := f.l
	c := l.Comm()
	me := c.Rank()

	if l.GhostWidth() > 0 {
		trans := fillTransfers(l)

		send := make([][]T, c.Size())
		for _, t := range trans {
			if t.src != me {
				continue
			}
			buf := send[t.dst]
			forEachInBox(f, t.srcBox, func(off int) {
				buf = append(buf, f.data[off])
			})
			send[t.dst] = buf
		}

		recv, err := comm.AllToAllv(c, send)
		if err != nil {
			return err
		}

		pos := make([]int, c.Size())
		for _, t := range trans {
			if t.dst != me {
				continue
			}
			buf := recv[t.src]
			p := pos[t.src]
			forEachInBox(f, t.dstBox, func(off int) {
				f.data[off] = buf[p]
				p++
			})
			pos[t.src] = p
		}
	}

	f.applyBoundary()
	return nil
}

// FlushHalo sends ghost accumulations back to their owning ranks and sums
// them into the owners' interiors. This is the reverse of FillHalo and is
// what makes scatter deposits near subdomain faces land on the right rank.
// Accumulations beyond non-periodic global faces are dropped.
func (f *Field[T]) FlushHalo() error {
	l := f.l
	c := l.Comm()
	me := c.Rank()
	if l.GhostWidth() == 0 {
		return nil
	}

	trans := fillTransfers(l)

	send := make([][]T, c.Size())
	for _, t := range trans {
		if t.dst != me {
			continue
		}
		buf := send[t.src]
		forEachInBox(f, t.dstBox, func(off int) {
			buf = append(buf, f.data[off])
		})
		send[t.src] = buf
	}

	recv, err := comm.AllToAllv(c, send)
	if err != nil {
		return err
	}

	pos := make([]int, c.Size())
	for _, t := range trans {
		if t.src != me {
			continue
		}
		buf := recv[t.dst]
		p := pos[t.dst]
		forEachInBox(f, t.srcBox, func(off int) {
			f.data[off] += buf[p]
			p++
		})
		pos[t.dst] = p
	}
	return nil
}

// applyBoundary writes the boundary-operator images into ghost cells at
// non-periodic global faces.
func (f *Field[T]) applyBoundary() {
	l := f.l
	g := l.GhostWidth()
	if g == 0 {
		return
	}
	local := l.Local()
	global := l.Global()
	dim := l.Dim()

	for a := 0; a < dim; a++ {
		for side := 0; side < 2; side++ {
			bc := l.Boundary(2*a + side)
			if bc == layout.None || bc == layout.Periodic {
				continue
			}
			var wall int
			if side == 0 {
				if local[a].First != global[a].First {
					continue
				}
				wall = global[a].First
			} else {
				if local[a].Last != global[a].Last {
					continue
				}
				wall = global[a].Last
			}

			region := f.ext.Clone()
			if side == 0 {
				region[a] = index.Range{First: f.ext[a].First, Last: wall - 1}
			} else {
				region[a] = index.Range{First: wall + 1, Last: f.ext[a].Last}
			}

			idx := make([]int, dim)
			forEachBoxIndex(region, idx, func() {
				off := f.Offset(idx)
				switch bc {
				case layout.DirichletZero:
					f.data[off] = 0
				case layout.NeumannZero:
					mirror := idx[a]
					if side == 0 {
						mirror = 2*wall - 1 - idx[a]
					} else {
						mirror = 2*wall + 1 - idx[a]
					}
					save := idx[a]
					idx[a] = mirror
					f.data[off] = f.data[f.Offset(idx)]
					idx[a] = save
				}
			})
		}
	}
}

// forEachBoxIndex visits the multi-indices of box in row-major order using
// the caller's index buffer.
func forEachBoxIndex(box index.Box, idx []int, body func()) {
	if box.Empty() {
		return
	}
	dim := box.Dim()
	for d := range idx {
		idx[d] = box[d].First
	}
	n := box.Size()
	for i := 0; i < n; i++ {
		body()
		for d := dim - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] <= box[d].Last {
				break
			}
			idx[d] = box[d].First
		}
	}
}
