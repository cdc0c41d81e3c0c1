package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Forward is the direction an unrotated body faces.
var Forward = Vec3{X: 0, Y: 0, Z: -1}

// Up is the axis yaw turns about.
var Up = Vec3{X: 0, Y: 1, Z: 0}

// Quat is the wire and world form of an orientation. The algebra runs on
// mgl64.Quat.
type Quat struct {
	X float64
	Y float64
	Z float64
	W float64
}

func Identity() Quat { return quatFromMgl(mgl64.QuatIdent()) }

func (q Quat) mgl() mgl64.Quat {
	return mgl64.Quat{W: q.W, V: mgl64.Vec3{q.X, q.Y, q.Z}}
}

func quatFromMgl(m mgl64.Quat) Quat {
	return Quat{X: m.V[0], Y: m.V[1], Z: m.V[2], W: m.W}
}

func (q Quat) Length() float64 { return q.mgl().Len() }

// Normalize returns the identity when q has no length.
func (q Quat) Normalize() Quat {
	if q.Length() < 1e-12 {
		return Identity()
	}
	return quatFromMgl(q.mgl().Normalize())
}

func (q Quat) IsFinite() bool {
	return isFinite(q.X) && isFinite(q.Y) && isFinite(q.Z) && isFinite(q.W)
}

// Rotate applies q to v. q must be unit length.
func (q Quat) Rotate(v Vec3) Vec3 {
	return vecFromMgl(q.mgl().Rotate(v.mgl()))
}

// QuatFromUnitVectors returns the shortest rotation taking from onto to.
func QuatFromUnitVectors(from, to Vec3) Quat {
	return quatFromMgl(mgl64.QuatBetweenVectors(from.mgl(), to.mgl()).Normalize())
}

// QuatFromYaw turns by yaw radians about Up.
func QuatFromYaw(yaw float64) Quat {
	return quatFromMgl(mgl64.QuatRotate(yaw, Up.mgl()))
}

// FaceDirection returns the orientation that turns Forward toward dir.
// Only the planar part of dir is used.
func FaceDirection(dir Vec3) Quat {
	flat := Vec3{X: dir.X, Z: dir.Z}.Normalize()
	if flat == (Vec3{}) {
		return Identity()
	}
	return QuatFromYaw(YawOf(flat))
}

// YawOf returns the heading angle (radians) of direction dir relative to Forward.
func YawOf(dir Vec3) float64 {
	return math.Atan2(-dir.X, -dir.Z)
}
