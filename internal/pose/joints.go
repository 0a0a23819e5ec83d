// Package pose classifies exercise posture from single skeleton snapshots.
// It implements the two checks of the trainer drill (arms held level out
// to the sides, one leg raised toward a target angle) and reduces each to
// a per-region correctness code that downstream surfaces (overlay,
// session store, live feeds) consume.
package pose

// JointType identifies one of the twenty joints the sensor reports per
// skeleton. Values match the sensor wire ordinals, so a JointType doubles
// as the joint's index within a Snapshot.
type JointType uint8

const (
	JointHipCenter JointType = iota
	JointSpine
	JointShoulderCenter
	JointHead
	JointShoulderLeft
	JointElbowLeft
	JointWristLeft
	JointHandLeft
	JointShoulderRight
	JointElbowRight
	JointWristRight
	JointHandRight
	JointHipLeft
	JointKneeLeft
	JointAnkleLeft
	JointFootLeft
	JointHipRight
	JointKneeRight
	JointAnkleRight
	JointFootRight

	// JointCount is the fixed number of joints per skeleton.
	JointCount = 20
)

var jointNames = [JointCount]string{
	"hip_center", "spine", "shoulder_center", "head",
	"shoulder_left", "elbow_left", "wrist_left", "hand_left",
	"shoulder_right", "elbow_right", "wrist_right", "hand_right",
	"hip_left", "knee_left", "ankle_left", "foot_left",
	"hip_right", "knee_right", "ankle_right", "foot_right",
}

// String returns the snake_case joint name used in logs and the API.
func (t JointType) String() string {
	if !t.IsValid() {
		return "unknown"
	}
	return jointNames[t]
}

// IsValid reports whether t is one of the twenty sensor joints.
func (t JointType) IsValid() bool {
	return t < JointCount
}

// TrackingState reports how the sensor derived a joint position.
type TrackingState uint8

const (
	// TrackingNotTracked indicates the sensor has no estimate for the joint.
	TrackingNotTracked TrackingState = 0
	// TrackingInferred indicates the position was interpolated from
	// neighbouring joints rather than observed directly.
	TrackingInferred TrackingState = 1
	// TrackingTracked indicates a directly observed joint.
	TrackingTracked TrackingState = 2
)

// String returns the lowercase state name used in logs and the API.
func (s TrackingState) String() string {
	switch s {
	case TrackingNotTracked:
		return "not_tracked"
	case TrackingInferred:
		return "inferred"
	case TrackingTracked:
		return "tracked"
	default:
		return "unknown"
	}
}

// Position is a camera-space joint location in meters. The origin sits at
// the sensor center with +Y up and +Z toward the subject, so joints below
// the sensor midline carry negative Y values.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Joint is a single skeleton joint observation.
type Joint struct {
	Type     JointType     `json:"type"`
	Position Position      `json:"position"`
	Tracking TrackingState `json:"tracking"`
}

// Snapshot holds the twenty joints of one skeleton at one instant. It is a
// fixed-size value type: copies are cheap and callers always pass it by
// value, so classifiers can never mutate an upstream frame. Joints the
// sensor never filled in stay zero-valued (NotTracked at the origin) and
// classify like any other coordinates; the classifiers do not gate on
// tracking state.
type Snapshot struct {
	Joints [JointCount]Joint
}

// NewSnapshot assembles a snapshot from a joint list. Joints with an
// invalid type are dropped; when a type repeats, the last entry wins.
func NewSnapshot(joints ...Joint) Snapshot {
	var s Snapshot
	for _, j := range joints {
		if !j.Type.IsValid() {
			continue
		}
		s.Joints[j.Type] = j
	}
	return s
}

// JointAt returns the joint of the given type, or a zero Joint when t is
// out of range.
func (s Snapshot) JointAt(t JointType) Joint {
	if !t.IsValid() {
		return Joint{}
	}
	return s.Joints[t]
}
