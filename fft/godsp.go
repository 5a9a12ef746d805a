package fft

/* godsp.go is the alternate backend over github.com/mjibson/go-dsp. Its
complex transforms are used directly; the real, sine, and cosine transforms
are composed from them with the usual half-spectrum and odd/even extension
identities. go-dsp's IFFT divides by N, so the inverse paths multiply it
back out to satisfy the unnormalized backend contract. */

import (
	"github.com/mjibson/go-dsp/fft"
)

type godspBackend struct {
	work []complex128
}

// NewGoDSPBackend returns a backend built on go-dsp's pure-Go FFT.
func NewGoDSPBackend() Backend {
	return &godspBackend{}
}

func (b *godspBackend) Name() string { return "godsp" }

func (b *godspBackend) CC(line []complex128, dir Direction) {
	var out []complex128
	if dir == Forward {
		out = fft.FFT(line)
	} else {
		n := complex(float64(len(line)), 0)
		out = fft.IFFT(line)
		for i := range out {
			out[i] *= n
		}
	}
	copy(line, out)
}

func (b *godspBackend) RC(in []float64, out []complex128) {
	full := fft.FFTReal(in)
	copy(out, full[:len(in)/2+1])
}

func (b *godspBackend) CR(in []complex128, out []float64) {
	n := len(out)
	if cap(b.work) < n {
		b.work = make([]complex128, n)
	}
	full := b.work[:n]
	copy(full, in)
	// Rebuild the redundant half of the spectrum by conjugate symmetry.
	for k := len(in); k < n; k++ {
		c := full[n-k]
		full[k] = complex(real(c), -imag(c))
	}
	inv := fft.IFFT(full)
	for i := range out {
		out[i] = real(inv[i]) * float64(n)
	}
}

// Sin computes the DST-I through the odd extension of length 2(n+1).
func (b *godspBackend) Sin(line []float64) {
	n := len(line)
	m := 2 * (n + 1)
	ext := make([]complex128, m)
	for j := 0; j < n; j++ {
		ext[j+1] = complex(line[j], 0)
		ext[m-j-1] = complex(-line[j], 0)
	}
	out := fft.FFT(ext)
	for k := 0; k < n; k++ {
		line[k] = -0.5 * imag(out[k+1])
	}
}

// Cos computes the DCT-I through the even extension of length 2(n-1).
func (b *godspBackend) Cos(line []float64) {
	n := len(line)
	m := 2 * (n - 1)
	ext := make([]complex128, m)
	for j := 0; j < n; j++ {
		ext[j] = complex(line[j], 0)
	}
	for j := 1; j < n-1; j++ {
		ext[m-j] = complex(line[j], 0)
	}
	out := fft.FFT(ext)
	for k := 0; k < n; k++ {
		line[k] = real(out[k])
	}
}
