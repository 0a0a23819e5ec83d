package pose

// armPairs lists the (shoulder, arm joint) pairs the arms-cross rule
// checks, in evaluation order.
var armPairs = [4][2]JointType{
	{JointShoulderLeft, JointElbowLeft},
	{JointShoulderLeft, JointWristLeft},
	{JointShoulderRight, JointElbowRight},
	{JointShoulderRight, JointWristRight},
}

// ClassifyArmsCross grades the arms-held-level part of the drill. Each arm
// joint's height is compared against a tolerance band around its own
// shoulder's height, band half-width cfg.ToleranceFactor of the shoulder
// height. All comparisons are inclusive and both the raised and the
// lowered checks measure against the raised band edge, shoulder.y*(1+t).
//
// For shoulders at or above the sensor midline (y >= 0) the band check
// holds for every joint, so the outcome is Correct; the Above, Below and
// Incorrect paths only open up when the shoulder height is negative and
// the band edges swap order. There is no Invalid outcome.
func ClassifyArmsCross(s Snapshot, cfg Config) RegionCode {
	t := cfg.ToleranceFactor

	allOutside := true
	allRaised := true
	allLowered := true
	for _, pair := range armPairs {
		shoulderY := s.JointAt(pair[0]).Position.Y
		jointY := s.JointAt(pair[1]).Position.Y
		raisedEdge := shoulderY * (1 + t)
		loweredEdge := shoulderY * (1 - t)

		if !(jointY <= raisedEdge || jointY >= loweredEdge) {
			allOutside = false
		}
		if jointY < raisedEdge {
			allRaised = false
		}
		if jointY > raisedEdge {
			allLowered = false
		}
	}

	// Priority order: the band check first, then the directional calls.
	switch {
	case allOutside:
		return CodeCorrect
	case allRaised:
		return CodeAbove
	case allLowered:
		return CodeBelow
	default:
		return CodeIncorrect
	}
}
