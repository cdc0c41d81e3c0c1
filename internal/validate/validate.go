// Package validate checks player transforms coming from the host engine
// before the motor layer steers with them.
package validate

import (
	"errors"
	"math"

	"github.com/Versifine/motor/internal/geom"
)

// UnitTolerance is how far a quaternion's length may drift from 1 before it
// is renormalized.
const UnitTolerance = 1e-3

var (
	ErrNonFinitePosition    = errors.New("player position is not finite")
	ErrNonFiniteQuaternion  = errors.New("player quaternion is not finite")
	ErrDegenerateQuaternion = errors.New("player quaternion has zero length")
)

type Result struct {
	// Quaternion is the orientation to steer with: the input when it was
	// already unit length, the normalized input otherwise.
	Quaternion geom.Quat
	Normalized bool
	// Length is the input quaternion's length before normalization.
	Length float64
}

// Check rejects non-finite positions and orientations. A finite quaternion
// whose length is off by more than UnitTolerance is not an error; the
// normalized value is returned with Normalized set.
func Check(pos geom.Vec3, q geom.Quat) (Result, error) {
	if !pos.IsFinite() {
		return Result{}, ErrNonFinitePosition
	}
	if !q.IsFinite() {
		return Result{}, ErrNonFiniteQuaternion
	}
	l := q.Length()
	if l < 1e-9 {
		return Result{Length: l}, ErrDegenerateQuaternion
	}
	if math.Abs(l-1) > UnitTolerance {
		return Result{Quaternion: q.Normalize(), Normalized: true, Length: l}, nil
	}
	return Result{Quaternion: q, Length: l}, nil
}
