package pose

import "math"

// Leg-lift thresholds
const (
	// TargetAngleMinDegrees / TargetAngleMaxDegrees bound the legal
	// target for the leg-lift check; targets outside yield CodeInvalid.
	TargetAngleMinDegrees = 0.0
	TargetAngleMaxDegrees = 90.0

	// LegBandLow / LegBandHigh scale the target angle to the edges of the
	// accepted window. Both directional checks run before the window
	// check, so an angle between the edges grades Incorrect, including an
	// angle exactly on target.
	LegBandLow  = 0.95
	LegBandHigh = 1.05
)

// legInputs carries the joint positions the leg-lift rule consumes. Both
// legs are captured from the snapshot; the angle formula currently
// measures the left leg only.
type legInputs struct {
	KneeLeft   Position
	AnkleLeft  Position
	KneeRight  Position
	AnkleRight Position
}

func legInputsFrom(s Snapshot) legInputs {
	return legInputs{
		KneeLeft:   s.JointAt(JointKneeLeft).Position,
		AnkleLeft:  s.JointAt(JointAnkleLeft).Position,
		KneeRight:  s.JointAt(JointKneeRight).Position,
		AnkleRight: s.JointAt(JointAnkleRight).Position,
	}
}

// LegLiftAngleDegrees returns the measured shin lift angle in degrees.
// The angle is recovered from a right triangle in the sagittal plane: the
// adjacent cathetus pairs the ankle depth with the knee-to-ankle height
// drop, the opposite cathetus is the knee-to-ankle depth offset measured
// at knee height, and the angle is atan(adjacent/opposite). The axis
// pairing is part of the deployed behaviour and tests pin it. The second
// return is false when the opposite cathetus is zero and the ratio is
// undefined.
func LegLiftAngleDegrees(s Snapshot) (float64, bool) {
	in := legInputsFrom(s)

	adjacent := Distance(in.AnkleLeft.Z, in.AnkleLeft.Z, in.KneeLeft.Y, in.AnkleLeft.Y)
	opposite := Distance(in.AnkleLeft.Z, in.KneeLeft.Z, in.KneeLeft.Y, in.KneeLeft.Y)
	if opposite == 0 {
		return 0, false
	}
	return RadiansToDegrees(math.Atan(adjacent / opposite)), true
}

// ClassifyLegLift grades the leg-raise part of the drill against a ±5%
// window around the target angle: at or under the low edge (and non-zero)
// grades Above, at or over the high edge grades Below, anything between
// the edges grades Incorrect. An undefined angle grades Incorrect rather
// than dividing by zero. The Correct arm of the rule requires an angle
// beyond both edges at once, which no angle satisfies once the edges
// diverge; it is retained so the rule order stays explicit.
func ClassifyLegLift(s Snapshot, cfg Config) RegionCode {
	target := cfg.TargetLegAngleDegrees
	if target < TargetAngleMinDegrees || target > TargetAngleMaxDegrees {
		return CodeInvalid
	}

	angle, ok := LegLiftAngleDegrees(s)
	if !ok {
		return CodeIncorrect
	}

	switch {
	case angle <= target*LegBandLow && angle != 0:
		return CodeAbove
	case angle >= target*LegBandHigh:
		return CodeBelow
	case angle >= target*LegBandHigh && angle <= target*LegBandLow:
		return CodeCorrect
	default:
		return CodeIncorrect
	}
}
