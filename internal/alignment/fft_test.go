package alignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/dsp/fourier"
)

func TestFFT3RoundTrip(t *testing.T) {
	const n = 8
	ft := fourier.NewCmplxFFT(n)

	vals := make([]float64, n*n*n)
	for i := range vals {
		vals[i] = float64((i*37)%11) / 10
	}

	got := ifft3(fft3(vals, n, ft), n, ft)
	require.Len(t, got, len(vals))
	for i := range vals {
		assert.InDelta(t, vals[i], got[i], 1e-9)
	}
}

func TestFFT3CorrelationFindsShift(t *testing.T) {
	// A single occupied voxel in each volume: the cross correlation
	// conj(FFT(A))*FFT(B) peaks at exactly their circular offset.
	const n = 8
	ft := fourier.NewCmplxFFT(n)

	idx := func(x, y, z int) int { return x + n*(y+n*z) }
	a := make([]float64, n*n*n)
	b := make([]float64, n*n*n)
	a[idx(1, 2, 3)] = 1
	b[idx(4, 2, 7)] = 1 // shift (3, 0, 4)

	fa := fft3(a, n, ft)
	fb := fft3(b, n, ft)
	for i := range fa {
		re, im := real(fa[i]), imag(fa[i])
		rb, ib := real(fb[i]), imag(fb[i])
		fa[i] = complex(re*rb+im*ib, re*ib-im*rb)
	}
	corr := ifft3(fa, n, ft)

	peak := 0
	for i, v := range corr {
		if v > corr[peak] {
			peak = i
		}
	}
	assert.Equal(t, idx(3, 0, 4), peak)
	assert.InDelta(t, 1, corr[peak], 1e-9)
}

func TestWrapSigned(t *testing.T) {
	assert.Equal(t, 0, wrapSigned(0, 8))
	assert.Equal(t, 3, wrapSigned(3, 8))
	assert.Equal(t, 4, wrapSigned(4, 8))
	assert.Equal(t, -3, wrapSigned(5, 8))
	assert.Equal(t, -1, wrapSigned(7, 8))
}
