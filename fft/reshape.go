package fft

/* reshape.go redistributes grid data so that every 1D line along the
transform axis is complete on exactly one rank. Line ownership is a balanced
chunking of the global transverse index space across all ranks, which works
for any partition, regular or rebuilt. Both endpoints of every exchange plan
the same segment lists from the layout alone, so no metadata crosses the
wire.

The real-to-complex transform gathers lines under the input layout and
scatters them under the output layout, so the two halves are separate
functions. */

import (
	"github.com/phil-mansfield/picell/comm"
	"github.com/phil-mansfield/picell/errs"
	"github.com/phil-mansfield/picell/field"
	"github.com/phil-mansfield/picell/index"
)

// tagStride separates the tag ranges of successive exchanges so pipelined
// rounds never collide.
const tagStride = 1 << 16

// axisPlan is the geometry of one reshape: which axis is being transformed
// over which decomposition.
type axisPlan struct {
	c       *comm.Comm
	global  index.Box
	domains []index.Box
	local   index.Box
	a       int
	commTag CommTag
	tagBase int
}

// strides returns the row-major strides of a dense array over box.
func strides(box index.Box) []int {
	dim := box.Dim()
	s := make([]int, dim)
	s[dim-1] = 1
	for d := dim - 2; d >= 0; d-- {
		s[d] = s[d+1] * box[d+1].Len()
	}
	return s
}

// forEachTransverse visits the multi-indices of box with axis a held at its
// First, in row-major order over the remaining axes. The index buffer is
// the caller's.
func forEachTransverse(box index.Box, a int, idx []int, body func()) {
	dim := box.Dim()
	for d := 0; d < dim; d++ {
		idx[d] = box[d].First
	}
	total := 1
	for d := 0; d < dim; d++ {
		if d != a {
			total *= box[d].Len()
		}
	}
	for i := 0; i < total; i++ {
		body()
		for d := dim - 1; d >= 0; d-- {
			if d == a {
				continue
			}
			idx[d]++
			if idx[d] <= box[d].Last {
				break
			}
			idx[d] = box[d].First
		}
	}
}

// flattenT returns the flat id of a line from its transverse coordinates.
func flattenT(global index.Box, a int, idx []int) int {
	f := 0
	for d := 0; d < global.Dim(); d++ {
		if d == a {
			continue
		}
		f = f*global[d].Len() + (idx[d] - global[d].First)
	}
	return f
}

// linesOf returns the number of transverse lines in the global box.
func linesOf(global index.Box, a int) int {
	n := 1
	for d := 0; d < global.Dim(); d++ {
		if d != a {
			n *= global[d].Len()
		}
	}
	return n
}

// localBase returns the offset of idx's line start in a dense array over
// local.
func localBase(local index.Box, st []int, idx []int) int {
	base := 0
	for d := range idx {
		base += (idx[d] - local[d].First) * st[d]
	}
	return base
}

// gatherLines sends every locally held segment to its line's owner and
// returns the complete assembled lines this rank owns, along with the owned
// chunk of line ids.
func gatherLines[T field.Scalar](
	p axisPlan, data []T,
) ([]T, index.Range, error) {
	n := p.global[p.a].Len()
	st := strides(p.local)
	size := p.c.Size()
	nt := linesOf(p.global, p.a)
	myChunk := index.Chunk(nt, size, p.c.Rank())
	segLen := p.local[p.a].Len()

	send := make([][]T, size)
	idx := make([]int, p.local.Dim())
	forEachTransverse(p.local, p.a, idx, func() {
		owner := ownerOfLine(nt, size, flattenT(p.global, p.a, idx))
		base := localBase(p.local, st, idx)
		buf := send[owner]
		for i := 0; i < segLen; i++ {
			buf = append(buf, data[base+i*st[p.a]])
		}
		send[owner] = buf
	})

	recv, err := exchange(p.c, send, p.commTag, p.tagBase)
	if err != nil {
		return nil, myChunk, err
	}

	lines := make([]T, myChunk.Len()*n)
	for r := 0; r < size; r++ {
		buf := recv[r]
		pos := 0
		rLo := p.domains[r][p.a].First - p.global[p.a].First
		rLen := p.domains[r][p.a].Len()
		rIdx := make([]int, p.local.Dim())
		forEachTransverse(p.domains[r], p.a, rIdx, func() {
			id := flattenT(p.global, p.a, rIdx)
			if !myChunk.Contains(id) {
				return
			}
			line := lines[(id-myChunk.First)*n:]
			copy(line[rLo:rLo+rLen], buf[pos:pos+rLen])
			pos += rLen
		})
	}
	return lines, myChunk, nil
}

// scatterLines routes owned lines back to the ranks holding their segments
// under p's decomposition, writing into data.
func scatterLines[T field.Scalar](
	p axisPlan, data []T, lines []T, myChunk index.Range,
) error {
	n := p.global[p.a].Len()
	st := strides(p.local)
	size := p.c.Size()
	nt := linesOf(p.global, p.a)
	segLen := p.local[p.a].Len()

	send := make([][]T, size)
	for r := 0; r < size; r++ {
		rLo := p.domains[r][p.a].First - p.global[p.a].First
		rLen := p.domains[r][p.a].Len()
		rIdx := make([]int, p.local.Dim())
		buf := send[r]
		forEachTransverse(p.domains[r], p.a, rIdx, func() {
			id := flattenT(p.global, p.a, rIdx)
			if !myChunk.Contains(id) {
				return
			}
			line := lines[(id-myChunk.First)*n:]
			buf = append(buf, line[rLo:rLo+rLen]...)
		})
		send[r] = buf
	}

	recv, err := exchange(p.c, send, p.commTag, p.tagBase+tagStride)
	if err != nil {
		return err
	}

	pos := make([]int, size)
	idx := make([]int, p.local.Dim())
	forEachTransverse(p.local, p.a, idx, func() {
		owner := ownerOfLine(nt, size, flattenT(p.global, p.a, idx))
		base := localBase(p.local, st, idx)
		buf := recv[owner]
		pp := pos[owner]
		for i := 0; i < segLen; i++ {
			data[base+i*st[p.a]] = buf[pp]
			pp++
		}
		pos[owner] = pp
	})
	return nil
}

// transformAxis runs lineFn over every global line along plan.a, exchanging
// segments between ranks when the axis is decomposed. data is the dense
// row-major array over plan.local; lineFn receives complete lines of the
// global axis length.
func transformAxis[T field.Scalar](
	p axisPlan, data []T, lineFn func(line []T),
) error {
	n := p.global[p.a].Len()

	if axisUndivided(p.domains, p.a, n) {
		// Every line is already complete on this rank.
		st := strides(p.local)
		scratch := make([]T, n)
		idx := make([]int, p.local.Dim())
		forEachTransverse(p.local, p.a, idx, func() {
			base := localBase(p.local, st, idx)
			for i := 0; i < n; i++ {
				scratch[i] = data[base+i*st[p.a]]
			}
			lineFn(scratch)
			for i := 0; i < n; i++ {
				data[base+i*st[p.a]] = scratch[i]
			}
		})
		return nil
	}

	lines, chunk, err := gatherLines(p, data)
	if err != nil {
		return err
	}
	for l := 0; l < chunk.Len(); l++ {
		lineFn(lines[l*n : (l+1)*n])
	}
	return scatterLines(p, data, lines, chunk)
}

// transformAxisRC runs the real-to-complex (or complex-to-real) axis: lines
// are gathered under one layout, transformed with a length change, and
// scattered under the other.
func transformAxisRC(
	pReal, pCplx axisPlan, realData []float64, cplxData []complex128,
	dir Direction, backend Backend, scale float64,
) error {
	n := pReal.global[pReal.a].Len()
	nc := pCplx.global[pCplx.a].Len()

	// This must hold on every rank at once or none, so every clause is
	// evaluated over the full domain lists rather than the local boxes.
	localOK := axisUndivided(pReal.domains, pReal.a, n) &&
		axisUndivided(pCplx.domains, pCplx.a, nc)
	for r := 0; localOK && r < len(pReal.domains); r++ {
		localOK = sameTransverse(pReal.domains[r], pCplx.domains[r], pReal.a)
	}

	if localOK {
		stR := strides(pReal.local)
		stC := strides(pCplx.local)
		re := make([]float64, n)
		co := make([]complex128, nc)
		idx := make([]int, pReal.local.Dim())
		cIdx := make([]int, pCplx.local.Dim())
		forEachTransverse(pReal.local, pReal.a, idx, func() {
			copy(cIdx, idx)
			cIdx[pCplx.a] = pCplx.local[pCplx.a].First
			baseR := localBase(pReal.local, stR, idx)
			baseC := localBase(pCplx.local, stC, cIdx)
			if dir == Forward {
				for i := 0; i < n; i++ {
					re[i] = realData[baseR+i*stR[pReal.a]]
				}
				backend.RC(re, co)
				for i := 0; i < nc; i++ {
					cplxData[baseC+i*stC[pCplx.a]] =
						co[i] * complex(scale, 0)
				}
			} else {
				for i := 0; i < nc; i++ {
					co[i] = cplxData[baseC+i*stC[pCplx.a]]
				}
				backend.CR(co, re)
				for i := 0; i < n; i++ {
					realData[baseR+i*stR[pReal.a]] = re[i] * scale
				}
			}
		})
		return nil
	}

	if dir == Forward {
		reLines, chunk, err := gatherLines(pReal, realData)
		if err != nil {
			return err
		}
		coLines := make([]complex128, chunk.Len()*nc)
		for l := 0; l < chunk.Len(); l++ {
			co := coLines[l*nc : (l+1)*nc]
			backend.RC(reLines[l*n:(l+1)*n], co)
			for i := range co {
				co[i] *= complex(scale, 0)
			}
		}
		return scatterLines(pCplx, cplxData, coLines, chunk)
	}

	coLines, chunk, err := gatherLines(pCplx, cplxData)
	if err != nil {
		return err
	}
	reLines := make([]float64, chunk.Len()*n)
	for l := 0; l < chunk.Len(); l++ {
		re := reLines[l*n : (l+1)*n]
		backend.CR(coLines[l*nc:(l+1)*nc], re)
		for i := range re {
			re[i] *= scale
		}
	}
	return scatterLines(pReal, realData, reLines, chunk)
}

// axisUndivided reports whether every rank holds the full axis, so the
// local path is safe on all ranks at once. The decision must be global:
// mixing local and exchanging ranks would deadlock.
func axisUndivided(domains []index.Box, a, n int) bool {
	for _, dom := range domains {
		if dom[a].Len() != n {
			return false
		}
	}
	return true
}

// sameTransverse reports whether two boxes agree on every axis except a.
func sameTransverse(x, y index.Box, a int) bool {
	for d := range x {
		if d != a && x[d] != y[d] {
			return false
		}
	}
	return true
}

// ownerOfLine inverts index.Chunk: the rank whose chunk contains line id.
func ownerOfLine(n, parts, id int) int {
	per, rem := n/parts, n%parts
	cut := rem * (per + 1)
	if id < cut {
		return id / (per + 1)
	}
	if per == 0 {
		return parts - 1
	}
	return rem + (id-cut)/per
}

// exchange routes send[dst] to every rank under the configured reshape
// pattern and returns the received buffers indexed by source.
func exchange[T field.Scalar](
	c *comm.Comm, send [][]T, tag CommTag, base int,
) ([][]T, error) {
	switch tag {
	case CommAllToAllV:
		return comm.AllToAllv(c, send)

	case CommAllToAll:
		// Pad every pairing to the global maximum count, then trim with the
		// gathered true counts.
		size := c.Size()
		counts := make([]int, size)
		for dst := range send {
			counts[dst] = len(send[dst])
		}
		all := comm.AllGather(c, counts)
		max := 0
		for r := range all {
			for _, n := range all[r] {
				if n > max {
					max = n
				}
			}
		}
		padded := make([][]T, size)
		for dst := range send {
			buf := make([]T, max)
			copy(buf, send[dst])
			padded[dst] = buf
		}
		recv, err := comm.AllToAll(c, padded)
		if err != nil {
			return nil, err
		}
		for src := range recv {
			recv[src] = recv[src][:all[src][c.Rank()]]
		}
		return recv, nil

	case CommP2P:
		size := c.Size()
		for dst := 0; dst < size; dst++ {
			comm.Send(c, dst, base, send[dst])
		}
		recv := make([][]T, size)
		for src := 0; src < size; src++ {
			recv[src] = comm.Recv[T](c, src, base)
		}
		return recv, nil

	case CommP2PPipelined:
		// Stream fixed-size chunks so segments interleave across peers.
		const chunk = 1 << 12
		size := c.Size()
		counts := make([]int, size)
		for dst := range send {
			counts[dst] = len(send[dst])
		}
		all := comm.AllGather(c, counts)
		rounds := 1
		for r := range all {
			for _, n := range all[r] {
				if need := (n + chunk - 1) / chunk; need > rounds {
					rounds = need
				}
			}
		}
		recv := make([][]T, size)
		for j := 0; j < rounds; j++ {
			for dst := 0; dst < size; dst++ {
				lo, hi := j*chunk, (j+1)*chunk
				if lo > len(send[dst]) {
					lo = len(send[dst])
				}
				if hi > len(send[dst]) {
					hi = len(send[dst])
				}
				comm.Send(c, dst, base+j, send[dst][lo:hi])
			}
			for src := 0; src < size; src++ {
				recv[src] = append(recv[src], comm.Recv[T](c, src, base+j)...)
			}
		}
		return recv, nil
	}

	return nil, errs.New("fft", "exchange", errs.Configuration,
		"unknown reshape communication tag %d", int(tag))
}
