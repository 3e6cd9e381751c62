package alignment

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/golang/glog"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/terralidar/rayalign/internal/aligner"
	"github.com/terralidar/rayalign/internal/geometry"
	"github.com/terralidar/rayalign/internal/grid"
	"github.com/terralidar/rayalign/internal/par"
	"github.com/terralidar/rayalign/internal/raycloud"
	"github.com/terralidar/rayalign/tools"
)

var zAxis = r3.Vector{Z: 1}

// CoarseAlign estimates the rigid transform taking cloud a approximately
// onto cloud b without assuming any correspondence between samples, so it
// works under a large unknown initial offset. Both clouds are rasterised
// into occupancy grids; the translation peak is found by frequency domain
// cross correlation, repeated over a discretised yaw sweep of a about its
// centroid. The caller applies the returned pose; a is not mutated here.
//
// The second return value is the confidence of the estimate: the
// correlation peak as a fraction of the smaller cloud's occupied voxels,
// roughly the overlap fraction. Values below MinPeakFraction mean the
// clouds may overlap too little for the estimate to be trusted.
//
// The result is intentionally approximate and is always refined by the
// fine aligner afterwards. When verboseDir is non empty, a heatmap of the
// winning correlation layer is written there.
func CoarseAlign(a, b *raycloud.Cloud, tune aligner.CoarseTuning, verboseDir string) (geometry.Pose, float64, error) {
	if a.Len() == 0 || b.Len() == 0 {
		return geometry.Identity(), 0, errors.New("coarse alignment needs two non-empty clouds")
	}

	n := tune.GridSize
	if n < 8 {
		n = 8
	}
	if n%2 == 1 {
		n++
	}
	boundsA := a.Bounds()
	boundsB := b.Bounds()
	extent := math.Max(boundsA.MaxDim(), boundsB.MaxDim())
	if extent <= 0 {
		return geometry.Identity(), 0, errors.New("cloud has no spatial extent")
	}
	// Half the grid stays empty so the circular correlation cannot wrap
	// one cloud's structure onto the other's.
	cell := extent / float64(n/2)

	ft := fourier.NewCmplxFFT(n)

	gridB := grid.NewDensity(boundsB.Min, cell, n)
	gridB.Fill(b.Ends)
	freqB := fft3(gridB.Vals, n, ft)
	occupiedB := gridB.Occupied()

	steps := int(math.Round(360 / tune.YawStepDegrees))
	if steps < 1 {
		steps = 1
	}
	centroid := centroidOf(a.Ends)
	rotated := make([]r3.Vector, a.Len())

	type candidate struct {
		score    float64
		yaw      float64
		trans    r3.Vector
		layer    []float64
		layerZ   int
		occupied int
	}
	var best candidate
	found := false

	for k := 0; k < steps; k++ {
		yaw := -math.Pi + 2*math.Pi*float64(k)/float64(steps)
		rot := geometry.RotationAbout(zAxis, yaw, centroid)
		par.For(a.Len(), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				rotated[i] = rot.Apply(a.Ends[i])
			}
		})

		gridA := grid.NewDensity(geometry.BoundsOf(rotated).Min, cell, n)
		gridA.Fill(rotated)
		freqA := fft3(gridA.Vals, n, ft)
		for i := range freqA {
			re, im := real(freqA[i]), imag(freqA[i])
			rb, ib := real(freqB[i]), imag(freqB[i])
			// conj(A)*B term by term
			freqA[i] = complex(re*rb+im*ib, re*ib-im*rb)
		}
		corr := ifft3(freqA, n, ft)

		peak := 0
		for i, v := range corr {
			if v > corr[peak] {
				peak = i
			}
		}
		if !found || corr[peak] > best.score {
			x, y, z := peak%n, (peak/n)%n, peak/(n*n)
			shift := r3.Vector{
				X: float64(wrapSigned(x, n)),
				Y: float64(wrapSigned(y, n)),
				Z: float64(wrapSigned(z, n)),
			}.Mul(cell)
			best = candidate{
				score:    corr[peak],
				yaw:      yaw,
				trans:    gridB.Origin.Sub(gridA.Origin).Add(shift),
				layerZ:   z,
				occupied: gridA.Occupied(),
			}
			if verboseDir != "" {
				best.layer = corr[z*n*n : (z+1)*n*n : (z+1)*n*n]
			}
			found = true
		}
	}

	if !found || best.score <= 0 {
		return geometry.Identity(), 0, errors.New("coarse alignment found no correlation peak")
	}

	smaller := occupiedB
	if best.occupied < smaller {
		smaller = best.occupied
	}
	confidence := best.score / math.Max(float64(smaller), 1)
	if confidence < tune.MinPeakFraction {
		glog.Warningf("coarse alignment peak is weak (confidence %.3f); clouds may overlap too little", confidence)
	}
	tools.LogOutput(fmt.Sprintf("> coarse alignment: yaw %.1f deg, shift (%.2f %.2f %.2f), confidence %.3f",
		best.yaw*180/math.Pi, best.trans.X, best.trans.Y, best.trans.Z, confidence))

	if verboseDir != "" {
		name := filepath.Join(verboseDir, "coarse_correlation.png")
		if err := saveHeatmap(name, best.layer, n, cell); err != nil {
			glog.Warningf("could not save correlation image: %v", err)
		}
		name = filepath.Join(verboseDir, "coarse_density.png")
		if err := saveHeatmap(name, gridB.Slice(best.layerZ), n, cell); err != nil {
			glog.Warningf("could not save density image: %v", err)
		}
	}

	return geometry.Translation(best.trans).Compose(geometry.RotationAbout(zAxis, best.yaw, centroid)), confidence, nil
}

func centroidOf(points []r3.Vector) r3.Vector {
	var c r3.Vector
	for _, p := range points {
		c = c.Add(p)
	}
	if len(points) > 0 {
		c = c.Mul(1 / float64(len(points)))
	}
	return c
}

// wrapSigned maps a circular correlation index to a signed shift.
func wrapSigned(i, n int) int {
	if i > n/2 {
		return i - n
	}
	return i
}
