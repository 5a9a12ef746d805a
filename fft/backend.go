package fft

/* backend.go defines the 1D transform backend interface and the default
implementation over gonum's dsp/fourier planners. The distributed machinery
treats backends as opaque line transformers.

Backend contract: CC computes the unnormalized DFT in the given direction,
RC/CR the unnormalized real transform pair with the half-spectrum
convention (len n -> n/2+1), and Sin/Cos the unnormalized DST-I/DCT-I,
which are self-inverse up to 2(n+1) and 2(n-1). All normalization happens
in the plan. */

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// Backend runs unnormalized 1D transforms. Planner state is cached per line
// length and is not reentrant: one transform at a time per backend.
type Backend interface {
	Name() string
	// CC transforms a complex line in place.
	CC(line []complex128, dir Direction)
	// RC computes the half spectrum of a real line. len(out) = len(in)/2+1.
	RC(in []float64, out []complex128)
	// CR inverts a half spectrum into a real line. len(out) = the original
	// line length.
	CR(in []complex128, out []float64)
	// Sin transforms a real line in place with the DST-I.
	Sin(line []float64)
	// Cos transforms a real line in place with the DCT-I.
	Cos(line []float64)
}

type gonumBackend struct {
	cc   map[int]*fourier.CmplxFFT
	rc   map[int]*fourier.FFT
	sin   map[int]*fourier.DST
	cos   map[int]*fourier.DCT
	work  []complex128
	workF []float64
}

// NewGonumBackend returns the default backend, built on gonum's dsp/fourier
// planners.
func NewGonumBackend() Backend {
	return &gonumBackend{
		cc:  map[int]*fourier.CmplxFFT{},
		rc:  map[int]*fourier.FFT{},
		sin: map[int]*fourier.DST{},
		cos: map[int]*fourier.DCT{},
	}
}

func (b *gonumBackend) Name() string { return "gonum" }

func (b *gonumBackend) plan(n int) *fourier.CmplxFFT {
	p, ok := b.cc[n]
	if !ok {
		p = fourier.NewCmplxFFT(n)
		b.cc[n] = p
	}
	return p
}

func (b *gonumBackend) CC(line []complex128, dir Direction) {
	n := len(line)
	p := b.plan(n)
	if cap(b.work) < n {
		b.work = make([]complex128, n)
	}
	work := b.work[:n]
	if dir == Forward {
		p.Coefficients(work, line)
	} else {
		p.Sequence(work, line)
	}
	copy(line, work)
}

func (b *gonumBackend) RC(in []float64, out []complex128) {
	n := len(in)
	p, ok := b.rc[n]
	if !ok {
		p = fourier.NewFFT(n)
		b.rc[n] = p
	}
	p.Coefficients(out, in)
}

func (b *gonumBackend) CR(in []complex128, out []float64) {
	n := len(out)
	p, ok := b.rc[n]
	if !ok {
		p = fourier.NewFFT(n)
		b.rc[n] = p
	}
	p.Sequence(out, in)
}

func (b *gonumBackend) scratch(n int) []float64 {
	if cap(b.workF) < n {
		b.workF = make([]float64, n)
	}
	return b.workF[:n]
}

func (b *gonumBackend) Sin(line []float64) {
	n := len(line)
	p, ok := b.sin[n]
	if !ok {
		p = fourier.NewDST(n)
		b.sin[n] = p
	}
	work := b.scratch(n)
	p.Transform(work, line)
	copy(line, work)
}

func (b *gonumBackend) Cos(line []float64) {
	n := len(line)
	p, ok := b.cos[n]
	if !ok {
		p = fourier.NewDCT(n)
		b.cos[n] = p
	}
	work := b.scratch(n)
	p.Transform(work, line)
	copy(line, work)
}
