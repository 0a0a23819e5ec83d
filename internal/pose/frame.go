package pose

// Classification defaults
const (
	// DefaultTargetLegAngleDegrees is the leg-lift target used when the
	// trainer config does not set one.
	DefaultTargetLegAngleDegrees = 10.0
	// DefaultToleranceFactor is the arms-cross band half-width used when
	// the trainer config does not set one.
	DefaultToleranceFactor = 0.05
)

// Config carries the tunable inputs of the two posture checks. The zero
// value is usable but grades everything against a zero-degree target with
// a zero-width band; call DefaultConfig for the trainer defaults.
type Config struct {
	// TargetLegAngleDegrees is the leg-lift target, legal range 0-90.
	TargetLegAngleDegrees float64 `json:"target_leg_angle_degrees"`
	// ToleranceFactor is the arms-cross band half-width as a fraction of
	// the shoulder height.
	ToleranceFactor float64 `json:"tolerance_factor"`
}

// DefaultConfig returns the trainer defaults.
func DefaultConfig() Config {
	return Config{
		TargetLegAngleDegrees: DefaultTargetLegAngleDegrees,
		ToleranceFactor:       DefaultToleranceFactor,
	}
}

// FrameClassification is the joint outcome of both posture checks for one
// skeleton snapshot.
type FrameClassification struct {
	Arms RegionCode `json:"arms"`
	Leg  RegionCode `json:"leg"`
}

// ClassifyFrame runs both posture checks against the same snapshot. The
// checks do not feed each other, the snapshot is never mutated, and the
// call is deterministic and safe for concurrent use.
func ClassifyFrame(s Snapshot, cfg Config) FrameClassification {
	return FrameClassification{
		Arms: ClassifyArmsCross(s, cfg),
		Leg:  ClassifyLegLift(s, cfg),
	}
}
