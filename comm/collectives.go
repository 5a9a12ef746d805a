package comm

/* collectives.go holds the generic collective and point-to-point operations.
They are package functions rather than methods because Go methods cannot take
type parameters. */

import (
	"github.com/phil-mansfield/picell/errs"
)

// Op is a reduction operation.
type Op int

const (
	OpSum Op = iota
	OpMin
	OpMax
)

// Elem is the set of element types that cross the communicator.
type Elem interface {
	~int | ~int64 | ~uint64 | ~float64 | ~complex128
}

// Send delivers data to rank dst under the given tag. It never blocks. The
// slice is copied, so the caller may reuse it immediately.
func Send[T Elem](c *Comm, dst, tag int, data []T) {
	buf := make([]T, len(data))
	copy(buf, data)
	c.w.boxes[dst].put(c.rank, tag, buf)
}

// Recv blocks until a message from rank src with the given tag arrives and
// returns its payload.
func Recv[T Elem](c *Comm, src, tag int) []T {
	return c.w.boxes[c.rank].take(src, tag).([]T)
}

// SendRecv exchanges slices pairwise with peer. Both sides must call it with
// the same tag.
func SendRecv[T Elem](c *Comm, peer, tag int, data []T) []T {
	Send(c, peer, tag, data)
	return Recv[T](c, peer, tag)
}

// AllReduce combines each element of x across all ranks and returns the
// combined vector, identical on every rank. The combine is a fixed pairwise
// tree over rank order, so the result is bitwise deterministic.
func AllReduce[T Elem](c *Comm, op Op, x []T) []T {
	res := c.w.coll.exchange(c.rank, x, func(slots []interface{}) interface{} {
		n := len(slots)
		acc := make([][]T, n)
		for r := 0; r < n; r++ {
			s := slots[r].([]T)
			acc[r] = make([]T, len(s))
			copy(acc[r], s)
		}
		for step := 1; step < n; step *= 2 {
			for i := 0; i+step < n; i += 2 * step {
				for j := range acc[i] {
					acc[i][j] = apply(op, acc[i][j], acc[i+step][j])
				}
			}
		}
		return acc[0]
	})
	out := res.([]T)
	cp := make([]T, len(out))
	copy(cp, out)
	return cp
}

// AllGather collects every rank's slice; the result is indexed by rank and
// identical everywhere.
func AllGather[T Elem](c *Comm, x []T) [][]T {
	res := c.w.coll.exchange(c.rank, x, func(slots []interface{}) interface{} {
		out := make([][]T, len(slots))
		for r := range slots {
			s := slots[r].([]T)
			out[r] = make([]T, len(s))
			copy(out[r], s)
		}
		return out
	})
	return res.([][]T)
}

// Bcast distributes root's slice to every rank.
func Bcast[T Elem](c *Comm, root int, x []T) []T {
	res := c.w.coll.exchange(c.rank, x, func(slots []interface{}) interface{} {
		s := slots[root].([]T)
		out := make([]T, len(s))
		copy(out, s)
		return out
	})
	return res.([]T)
}

// AllToAllv routes send[dst] from each rank to rank dst. The returned slice
// is indexed by source rank. Counts may be ragged; an empty slice is a valid
// send.
func AllToAllv[T Elem](c *Comm, send [][]T) ([][]T, error) {
	if len(send) != c.Size() {
		return nil, errs.New("comm", "AllToAllv", errs.Communicator,
			"%d send buffers for %d ranks", len(send), c.Size())
	}
	res := c.w.coll.exchange(c.rank, send, func(slots []interface{}) interface{} {
		n := len(slots)
		out := make([][][]T, n)
		for dst := 0; dst < n; dst++ {
			out[dst] = make([][]T, n)
			for src := 0; src < n; src++ {
				s := slots[src].([][]T)[dst]
				out[dst][src] = make([]T, len(s))
				copy(out[dst][src], s)
			}
		}
		return out
	})
	return res.([][][]T)[c.rank], nil
}

// AllToAll is AllToAllv restricted to equal counts on every pairing.
func AllToAll[T Elem](c *Comm, send [][]T) ([][]T, error) {
	for i := 1; i < len(send); i++ {
		if len(send[i]) != len(send[0]) {
			return nil, errs.New("comm", "AllToAll", errs.Communicator,
				"ragged send counts (%d vs %d); use AllToAllv",
				len(send[i]), len(send[0]))
		}
	}
	return AllToAllv(c, send)
}

func apply[T Elem](op Op, a, b T) T {
	switch op {
	case OpSum:
		return a + b
	case OpMin, OpMax:
		return compare(op, a, b)
	}
	panic(errs.New("comm", "AllReduce", errs.Configuration,
		"unknown reduction op %d", int(op)))
}

// compare handles min/max. Ordering is undefined for complex elements.
func compare[T Elem](op Op, a, b T) T {
	switch x := any(a).(type) {
	case float64:
		y := any(b).(float64)
		return any(pick(op, x < y, a, b)).(T)
	case int:
		y := any(b).(int)
		return any(pick(op, x < y, a, b)).(T)
	case int64:
		y := any(b).(int64)
		return any(pick(op, x < y, a, b)).(T)
	case uint64:
		y := any(b).(uint64)
		return any(pick(op, x < y, a, b)).(T)
	}
	panic(errs.New("comm", "AllReduce", errs.Configuration,
		"min/max reduction on an unordered element type"))
}

func pick[T Elem](op Op, aLess bool, a, b T) T {
	if (op == OpMin) == aLess {
		return a
	}
	return b
}
