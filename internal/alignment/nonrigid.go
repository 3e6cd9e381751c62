package alignment

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// quadraticTerms is the number of monomials in the per-axis basis:
// 1, x, y, z, x2, y2, z2, xy, yz, zx.
const quadraticTerms = 10

// QuadraticField is a smooth low-parameter displacement correction fitted
// to the residual left after the rigid update. Coordinates are centred and
// scaled before evaluating the basis so the fit is well conditioned.
type QuadraticField struct {
	coeffs [3][quadraticTerms]float64
	center r3.Vector
	scale  float64
}

func quadraticBasis(u r3.Vector, row []float64) {
	row[0] = 1
	row[1] = u.X
	row[2] = u.Y
	row[3] = u.Z
	row[4] = u.X * u.X
	row[5] = u.Y * u.Y
	row[6] = u.Z * u.Z
	row[7] = u.X * u.Y
	row[8] = u.Y * u.Z
	row[9] = u.Z * u.X
}

// FitQuadratic fits the field to the given residuals at the given points.
// It returns nil when there are too few points to constrain the basis.
func FitQuadratic(points, residuals []r3.Vector, center r3.Vector, scale float64) *QuadraticField {
	n := len(points)
	if n < 2*quadraticTerms || scale <= 0 {
		return nil
	}

	a := mat.NewDense(n, quadraticTerms, nil)
	b := mat.NewDense(n, 3, nil)
	row := make([]float64, quadraticTerms)
	for i := 0; i < n; i++ {
		u := points[i].Sub(center).Mul(1 / scale)
		quadraticBasis(u, row)
		a.SetRow(i, row)
		b.Set(i, 0, residuals[i].X)
		b.Set(i, 1, residuals[i].Y)
		b.Set(i, 2, residuals[i].Z)
	}

	var w mat.Dense
	if err := w.Solve(a, b); err != nil {
		return nil
	}

	f := &QuadraticField{center: center, scale: scale}
	for t := 0; t < quadraticTerms; t++ {
		f.coeffs[0][t] = w.At(t, 0)
		f.coeffs[1][t] = w.At(t, 1)
		f.coeffs[2][t] = w.At(t, 2)
	}
	return f
}

// Displacement evaluates the field at p.
func (f *QuadraticField) Displacement(p r3.Vector) r3.Vector {
	var row [quadraticTerms]float64
	quadraticBasis(p.Sub(f.center).Mul(1/f.scale), row[:])
	var d r3.Vector
	for t := 0; t < quadraticTerms; t++ {
		d.X += f.coeffs[0][t] * row[t]
		d.Y += f.coeffs[1][t] * row[t]
		d.Z += f.coeffs[2][t] * row[t]
	}
	return d
}

// RMS reports the root mean square displacement of the field over the
// given sample points.
func (f *QuadraticField) RMS(points []r3.Vector) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		d := f.Displacement(p)
		sum += d.Dot(d)
	}
	return math.Sqrt(sum / float64(len(points)))
}
