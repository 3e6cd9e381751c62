package alignment

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// fft3 computes the forward 3D transform of an n^3 real volume laid out as
// x + n*(y + n*z), one axis at a time.
func fft3(vals []float64, n int, ft *fourier.CmplxFFT) []complex128 {
	data := make([]complex128, len(vals))
	for i, v := range vals {
		data[i] = complex(v, 0)
	}
	transformAxes(data, n, ft, false)
	return data
}

// ifft3 computes the inverse 3D transform in place and returns the real
// part, scaled so a forward/inverse round trip is the identity.
func ifft3(data []complex128, n int, ft *fourier.CmplxFFT) []float64 {
	transformAxes(data, n, ft, true)
	out := make([]float64, len(data))
	scale := 1 / float64(n*n*n)
	for i, v := range data {
		out[i] = real(v) * scale
	}
	return out
}

func transformAxes(data []complex128, n int, ft *fourier.CmplxFFT, inverse bool) {
	src := make([]complex128, n)
	dst := make([]complex128, n)
	line := func(base, stride int) {
		for i := 0; i < n; i++ {
			src[i] = data[base+i*stride]
		}
		if inverse {
			ft.Sequence(dst, src)
		} else {
			ft.Coefficients(dst, src)
		}
		for i := 0; i < n; i++ {
			data[base+i*stride] = dst[i]
		}
	}

	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			line(n*(y+n*z), 1)
		}
	}
	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			line(x+n*n*z, n)
		}
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			line(x+n*y, n*n)
		}
	}
}
