package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform: a rotation followed by a translation.
// Applying a pose to a point computes R*p + t.
type Pose struct {
	Rot   quat.Number
	Trans r3.Vector
}

// Identity returns the pose that maps every point onto itself.
func Identity() Pose {
	return Pose{Rot: quat.Number{Real: 1}}
}

// Translation returns a pure translation pose.
func Translation(t r3.Vector) Pose {
	return Pose{Rot: quat.Number{Real: 1}, Trans: t}
}

// FromAxisAngle returns a pure rotation of angle radians about axis.
func FromAxisAngle(axis r3.Vector, angle float64) Pose {
	u := axis.Normalize()
	s, c := math.Sincos(angle / 2)
	return Pose{Rot: quat.Number{Real: c, Imag: u.X * s, Jmag: u.Y * s, Kmag: u.Z * s}}
}

// FromEuler returns the rotation Rx(roll)*Ry(pitch)*Rz(yaw).
func FromEuler(roll, pitch, yaw float64) Pose {
	rx := FromAxisAngle(r3.Vector{X: 1}, roll)
	ry := FromAxisAngle(r3.Vector{Y: 1}, pitch)
	rz := FromAxisAngle(r3.Vector{Z: 1}, yaw)
	return rx.Compose(ry).Compose(rz)
}

// RotationAbout returns the rotation of angle radians about axis passing
// through center, so that center itself is left unmoved.
func RotationAbout(axis r3.Vector, angle float64, center r3.Vector) Pose {
	p := FromAxisAngle(axis, angle)
	p.Trans = center.Sub(p.Rotate(center))
	return p
}

// Rotate applies only the rotation part of the pose to v.
func (p Pose) Rotate(v r3.Vector) r3.Vector {
	q := quat.Mul(quat.Mul(p.Rot, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(p.Rot))
	return r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
}

// Apply transforms the point v by the pose.
func (p Pose) Apply(v r3.Vector) r3.Vector {
	return p.Rotate(v).Add(p.Trans)
}

// Compose returns the pose equivalent to applying q first, then p.
// The rotation is renormalized to keep it orthonormal under repeated
// composition.
func (p Pose) Compose(q Pose) Pose {
	return Pose{Rot: normalize(quat.Mul(p.Rot, q.Rot)), Trans: p.Apply(q.Trans)}
}

// Inverse returns the pose undoing p.
func (p Pose) Inverse() Pose {
	inv := Pose{Rot: quat.Conj(normalize(p.Rot))}
	inv.Trans = inv.Rotate(p.Trans).Mul(-1)
	return inv
}

// Angle returns the magnitude of the pose's rotation in radians.
func (p Pose) Angle() float64 {
	w := math.Abs(normalize(p.Rot).Real)
	if w > 1 {
		w = 1
	}
	return 2 * math.Acos(w)
}

// Matrix returns the rotation part as a row-major 3x3 matrix.
func (p Pose) Matrix() [3][3]float64 {
	q := normalize(p.Rot)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// FromMatrix builds a pure rotation pose from a row-major orthonormal matrix.
func FromMatrix(m [3][3]float64) Pose {
	var q quat.Number
	tr := m[0][0] + m[1][1] + m[2][2]
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		q = quat.Number{
			Real: s / 4,
			Imag: (m[2][1] - m[1][2]) / s,
			Jmag: (m[0][2] - m[2][0]) / s,
			Kmag: (m[1][0] - m[0][1]) / s,
		}
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := math.Sqrt(1+m[0][0]-m[1][1]-m[2][2]) * 2
		q = quat.Number{
			Real: (m[2][1] - m[1][2]) / s,
			Imag: s / 4,
			Jmag: (m[0][1] + m[1][0]) / s,
			Kmag: (m[0][2] + m[2][0]) / s,
		}
	case m[1][1] > m[2][2]:
		s := math.Sqrt(1+m[1][1]-m[0][0]-m[2][2]) * 2
		q = quat.Number{
			Real: (m[0][2] - m[2][0]) / s,
			Imag: (m[0][1] + m[1][0]) / s,
			Jmag: s / 4,
			Kmag: (m[1][2] + m[2][1]) / s,
		}
	default:
		s := math.Sqrt(1+m[2][2]-m[0][0]-m[1][1]) * 2
		q = quat.Number{
			Real: (m[1][0] - m[0][1]) / s,
			Imag: (m[0][2] + m[2][0]) / s,
			Jmag: (m[1][2] + m[2][1]) / s,
			Kmag: s / 4,
		}
	}
	return Pose{Rot: normalize(q)}
}

// Euler returns the rotation decomposed as roll, pitch, yaw in radians,
// with the rotation understood as Rx(roll)*Ry(pitch)*Rz(yaw), the x-y-z
// intrinsic convention the reported transforms use.
func (p Pose) Euler() (roll, pitch, yaw float64) {
	m := p.Matrix()
	sp := m[0][2]
	if sp > 1 {
		sp = 1
	} else if sp < -1 {
		sp = -1
	}
	pitch = math.Asin(sp)
	roll = math.Atan2(-m[1][2], m[2][2])
	yaw = math.Atan2(-m[0][1], m[0][0])
	return roll, pitch, yaw
}

func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}
