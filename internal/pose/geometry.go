package pose

import "math"

// Distance returns the Euclidean distance between two points in a plane.
// Callers choose the plane by picking which axes to feed: the two first
// arguments are the points' values on one axis, the two last on the other,
// giving sqrt((bx-ax)² + (by-ay)²).
func Distance(ax, bx, ay, by float64) float64 {
	dx := bx - ax
	dy := by - ay
	return math.Sqrt(dx*dx + dy*dy)
}

// RadiansToDegrees converts an angle in radians to degrees.
func RadiansToDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
