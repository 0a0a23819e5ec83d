package pose

import "testing"

func TestJointType_String(t *testing.T) {
	tests := []struct {
		joint JointType
		want  string
	}{
		{JointHipCenter, "hip_center"},
		{JointShoulderLeft, "shoulder_left"},
		{JointWristRight, "wrist_right"},
		{JointFootRight, "foot_right"},
		{JointType(20), "unknown"},
		{JointType(255), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.joint.String(); got != tt.want {
			t.Errorf("JointType(%d).String() = %q, want %q", tt.joint, got, tt.want)
		}
	}
}

func TestTrackingState_String(t *testing.T) {
	tests := []struct {
		state TrackingState
		want  string
	}{
		{TrackingNotTracked, "not_tracked"},
		{TrackingInferred, "inferred"},
		{TrackingTracked, "tracked"},
		{TrackingState(7), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("TrackingState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestNewSnapshot(t *testing.T) {
	snap := NewSnapshot(
		Joint{Type: JointHead, Position: Position{Y: 1.7}},
		Joint{Type: JointType(200), Position: Position{Y: 9}}, // dropped
		Joint{Type: JointHead, Position: Position{Y: 1.8}},    // last entry wins
	)

	if got := snap.JointAt(JointHead).Position.Y; got != 1.8 {
		t.Errorf("head y = %v, want 1.8", got)
	}
	if got := snap.JointAt(JointSpine); got != (Joint{}) {
		t.Errorf("unset joint = %+v, want zero", got)
	}
}

func TestSnapshot_JointAtOutOfRange(t *testing.T) {
	var snap Snapshot
	if got := snap.JointAt(JointType(42)); got != (Joint{}) {
		t.Errorf("out-of-range lookup = %+v, want zero joint", got)
	}
}
