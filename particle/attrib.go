/*package particle manages ensembles of particles as structure-of-arrays
attribute bags. Attributes are registered once, in a fixed order, and that
order defines the wire layout during redistribution, so endpoints agree
without extra metadata.*/
package particle

import (
	"math"

	"github.com/phil-mansfield/picell/errs"
)

// Attrib is one per-particle array. Every attribute of a container has the
// same length, maintained by the container.
type Attrib interface {
	// Name returns the attribute's registration name.
	Name() string
	// Len returns the number of particle slots.
	Len() int
	// wireWidth returns the number of float64 words one particle occupies
	// on the wire.
	wireWidth() int

	resize(n int)
	compact(keep []int)
	packTo(sel []int, buf *[]float64)
	unpackAppend(buf []float64)
}

// Type assertions
var (
	_ Attrib = &Float64{}
	_ Attrib = &Uint64{}
	_ Attrib = &Vec{}
)

// Float64 is a scalar float64 attribute (charge, mass, and the like).
type Float64 struct {
	name string
	Data []float64
}

// NewFloat64 creates an empty scalar attribute with the given name.
func NewFloat64(name string) *Float64 { return &Float64{name: name} }

func (x *Float64) Name() string   { return x.name }
func (x *Float64) Len() int       { return len(x.Data) }
func (x *Float64) wireWidth() int { return 1 }

func (x *Float64) resize(n int) {
	for len(x.Data) < n {
		x.Data = append(x.Data, 0)
	}
	x.Data = x.Data[:n]
}

func (x *Float64) compact(keep []int) {
	for i, j := range keep {
		x.Data[i] = x.Data[j]
	}
	x.Data = x.Data[:len(keep)]
}

func (x *Float64) packTo(sel []int, buf *[]float64) {
	for _, i := range sel {
		*buf = append(*buf, x.Data[i])
	}
}

func (x *Float64) unpackAppend(buf []float64) {
	x.Data = append(x.Data, buf...)
}

// Uint64 is an integer attribute, used for the invariant particle IDs.
type Uint64 struct {
	name string
	Data []uint64
}

// NewUint64 creates an empty integer attribute with the given name.
func NewUint64(name string) *Uint64 { return &Uint64{name: name} }

func (x *Uint64) Name() string   { return x.name }
func (x *Uint64) Len() int       { return len(x.Data) }
func (x *Uint64) wireWidth() int { return 1 }

func (x *Uint64) resize(n int) {
	for len(x.Data) < n {
		x.Data = append(x.Data, 0)
	}
	x.Data = x.Data[:n]
}

func (x *Uint64) compact(keep []int) {
	for i, j := range keep {
		x.Data[i] = x.Data[j]
	}
	x.Data = x.Data[:len(keep)]
}

// Integer attributes cross the wire as raw bit patterns inside float64
// words.
func (x *Uint64) packTo(sel []int, buf *[]float64) {
	for _, i := range sel {
		*buf = append(*buf, math.Float64frombits(x.Data[i]))
	}
}

func (x *Uint64) unpackAppend(buf []float64) {
	for _, v := range buf {
		x.Data = append(x.Data, math.Float64bits(v))
	}
}

// Vec is a fixed-dimension vector attribute (position, momentum, field at
// the particle) stored flat with stride Dim.
type Vec struct {
	name string
	dim  int
	Data []float64
}

// NewVec creates an empty vector attribute with the given name and
// dimension.
func NewVec(name string, dim int) *Vec { return &Vec{name: name, dim: dim} }

func (x *Vec) Name() string   { return x.name }
func (x *Vec) Dim() int       { return x.dim }
func (x *Vec) Len() int       { return len(x.Data) / x.dim }
func (x *Vec) wireWidth() int { return x.dim }

// At returns the d-th component of particle i.
func (x *Vec) At(i, d int) float64 { return x.Data[i*x.dim+d] }

// Set stores the d-th component of particle i.
func (x *Vec) Set(i, d int, v float64) { x.Data[i*x.dim+d] = v }

func (x *Vec) resize(n int) {
	for len(x.Data) < n*x.dim {
		x.Data = append(x.Data, 0)
	}
	x.Data = x.Data[:n*x.dim]
}

func (x *Vec) compact(keep []int) {
	for i, j := range keep {
		copy(x.Data[i*x.dim:(i+1)*x.dim], x.Data[j*x.dim:(j+1)*x.dim])
	}
	x.Data = x.Data[:len(keep)*x.dim]
}

func (x *Vec) packTo(sel []int, buf *[]float64) {
	for _, i := range sel {
		*buf = append(*buf, x.Data[i*x.dim:(i+1)*x.dim]...)
	}
}

func (x *Vec) unpackAppend(buf []float64) {
	if len(buf)%x.dim != 0 {
		panic(errs.New("particle", "unpack", errs.Communicator,
			"wire data for '%s' is not a multiple of %d words",
			x.name, x.dim))
	}
	x.Data = append(x.Data, buf...)
}
