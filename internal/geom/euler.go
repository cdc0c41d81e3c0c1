package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Euler holds rotation angles in radians, applied in YXZ order
// (yaw, then pitch, then roll), the order a first-person camera uses.
type Euler struct {
	X float64
	Y float64
	Z float64
}

func QuatFromEuler(e Euler) Quat {
	return quatFromMgl(mgl64.AnglesToQuat(e.Y, e.X, e.Z, mgl64.YXZ))
}

// EulerFromQuat decomposes the rotation matrix of q in YXZ order. Near
// gimbal lock roll is folded into yaw.
func EulerFromQuat(q Quat) Euler {
	m := q.Normalize().mgl().Mat4()
	m13, m23, m33 := m.At(0, 2), m.At(1, 2), m.At(2, 2)
	m11, m21, m22, m31 := m.At(0, 0), m.At(1, 0), m.At(1, 1), m.At(2, 0)

	var e Euler
	e.X = math.Asin(-mgl64.Clamp(m23, -1, 1))
	if math.Abs(m23) < 0.9999999 {
		e.Y = math.Atan2(m13, m33)
		e.Z = math.Atan2(m21, m22)
	} else {
		e.Y = math.Atan2(-m31, m11)
		e.Z = 0
	}
	return e
}
