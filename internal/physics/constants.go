package physics

const (
	// Ground-plane walking, in world units per second.
	WalkSpeed             = 4.0
	SprintSpeedMultiplier = 1.0 + 0.3
	// Fraction of the gap to the desired velocity closed per second.
	GroundAcceleration             = 12.0
	MinimumResidualHorizontalSpeed = 1e-4
)
