package physics

import (
	"math"
	"time"

	"github.com/Versifine/motor/internal/geom"
	"github.com/Versifine/motor/internal/input"
)

type BodyState struct {
	Position   geom.Vec3
	Velocity   geom.Vec3
	Quaternion geom.Quat
}

// Buttons is the read side of the input device.
type Buttons interface {
	IsDown(name string) bool
}

// Tuning scales the walk model. Zero fields take the package constants.
type Tuning struct {
	WalkSpeed    float64
	Acceleration float64
}

func (t Tuning) withDefaults() Tuning {
	if t.WalkSpeed <= 0 {
		t.WalkSpeed = WalkSpeed
	}
	if t.Acceleration <= 0 {
		t.Acceleration = GroundAcceleration
	}
	return t
}

// Tick advances state by dt on the ground plane, walking in the facing
// direction of state.Quaternion according to the held movement keys.
func Tick(state *BodyState, buttons Buttons, dt time.Duration, tuning Tuning) {
	if state == nil || buttons == nil || dt <= 0 {
		return
	}
	tuning = tuning.withDefaults()
	seconds := dt.Seconds()

	desired := desiredMoveVector(state.Quaternion, buttons).Scale(moveSpeed(buttons, tuning))

	blend := math.Min(1, tuning.Acceleration*seconds)
	state.Velocity = state.Velocity.Add(desired.Sub(state.Velocity).Scale(blend))
	state.Velocity.Y = 0
	zeroResidualVelocity(&state.Velocity)

	state.Position = state.Position.Add(state.Velocity.Scale(seconds))
}

func desiredMoveVector(q geom.Quat, buttons Buttons) geom.Vec3 {
	var forward float64
	if buttons.IsDown(input.KeyForward) {
		forward += 1
	}
	if buttons.IsDown(input.KeyBackward) {
		forward -= 1
	}

	var strafe float64
	if buttons.IsDown(input.KeyRight) {
		strafe += 1
	}
	if buttons.IsDown(input.KeyLeft) {
		strafe -= 1
	}
	if forward == 0 && strafe == 0 {
		return geom.Vec3{}
	}

	if !q.IsFinite() || q.Length() < 1e-9 {
		q = geom.Identity()
	}
	q = q.Normalize()
	ahead := q.Rotate(geom.Forward)
	ahead.Y = 0
	ahead = ahead.Normalize()
	right := ahead.Cross(geom.V3(0, 1, 0))

	move := ahead.Scale(forward).Add(right.Scale(strafe))
	if move.Length() > 1 {
		move = move.Normalize()
	}
	return move
}

func moveSpeed(buttons Buttons, tuning Tuning) float64 {
	speed := tuning.WalkSpeed
	if buttons.IsDown(input.KeySprint) {
		speed *= SprintSpeedMultiplier
	}
	return speed
}

func zeroResidualVelocity(v *geom.Vec3) {
	if v == nil {
		return
	}
	if math.Abs(v.X) < MinimumResidualHorizontalSpeed {
		v.X = 0
	}
	if math.Abs(v.Z) < MinimumResidualHorizontalSpeed {
		v.Z = 0
	}
}
