package alignment

import (
	"errors"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/terralidar/rayalign/internal/geometry"
)

// ErrDegenerateLandmarks is returned when the input points of a rigid
// transform recovery are collinear or nearly so. The landmark selection
// policy spreads points across two axes, so seeing this on landmark input
// means an invariant was broken upstream.
var ErrDegenerateLandmarks = errors.New("points are collinear, rigid transform is underdetermined")

// RigidBetween recovers the rigid transform that best maps src onto dst in
// the least squares sense, by absolute orientation (SVD of the cross
// covariance, with the usual determinant correction). Scale is fixed at
// one: alignment never rescales a cloud.
func RigidBetween(src, dst []r3.Vector) (geometry.Pose, error) {
	if len(src) != len(dst) || len(src) < 3 {
		return geometry.Identity(), errors.New("rigid recovery needs at least 3 point pairs")
	}

	var cs, cd r3.Vector
	for i := range src {
		cs = cs.Add(src[i])
		cd = cd.Add(dst[i])
	}
	inv := 1 / float64(len(src))
	cs = cs.Mul(inv)
	cd = cd.Mul(inv)

	h := mat.NewDense(3, 3, nil)
	for i := range src {
		s := src[i].Sub(cs)
		d := dst[i].Sub(cd)
		sv := [3]float64{s.X, s.Y, s.Z}
		dv := [3]float64{d.X, d.Y, d.Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+sv[r]*dv[c])
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return geometry.Identity(), ErrDegenerateLandmarks
	}
	vals := svd.Values(nil)
	if vals[0] == 0 || vals[1] < 1e-9*vals[0] {
		return geometry.Identity(), ErrDegenerateLandmarks
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(&v, u.T())
	if mat.Det(&r) < 0 {
		// Flip the axis of least support to keep a proper rotation.
		d := mat.NewDiagDense(3, []float64{1, 1, -1})
		var vd mat.Dense
		vd.Mul(&v, d)
		r.Mul(&vd, u.T())
	}

	var m [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = r.At(i, j)
		}
	}
	pose := geometry.FromMatrix(m)
	pose.Trans = cd.Sub(pose.Rotate(cs))
	return pose, nil
}
