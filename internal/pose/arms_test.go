package pose

import "testing"

// armsSnap builds a snapshot with only the six arm joints the arms-cross
// rule reads; every other joint stays zero.
func armsSnap(shoulderL, elbowL, wristL, shoulderR, elbowR, wristR float64) Snapshot {
	return NewSnapshot(
		Joint{Type: JointShoulderLeft, Position: Position{Y: shoulderL}},
		Joint{Type: JointElbowLeft, Position: Position{Y: elbowL}},
		Joint{Type: JointWristLeft, Position: Position{Y: wristL}},
		Joint{Type: JointShoulderRight, Position: Position{Y: shoulderR}},
		Joint{Type: JointElbowRight, Position: Position{Y: elbowR}},
		Joint{Type: JointWristRight, Position: Position{Y: wristR}},
	)
}

func TestClassifyArmsCross(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		snap Snapshot
		want RegionCode
	}{
		{
			// Shoulders on the sensor midline: every joint clears the band check.
			name: "arms above zero-height shoulders",
			snap: armsSnap(0, 1, 1, 0, 1, 1),
			want: CodeCorrect,
		},
		{
			name: "arms level with positive shoulders",
			snap: armsSnap(1, 1, 1, 1, 1, 1),
			want: CodeCorrect,
		},
		{
			name: "arms far below positive shoulders",
			snap: armsSnap(1, 0.2, 0.1, 1, 0.2, 0.1),
			want: CodeCorrect,
		},
		{
			// Negative shoulder heights swap the band edges; joints inside the
			// swapped band fail the band check and all sit at or over the
			// raised edge.
			name: "arms level with negative shoulders",
			snap: armsSnap(-1, -1, -1, -1, -1, -1),
			want: CodeAbove,
		},
		{
			name: "mixed in-band and lowered joints",
			snap: armsSnap(-1, -1, -1.2, -1, -1, -1.2),
			want: CodeIncorrect,
		},
		{
			// A joint exactly on the raised edge still counts as raised.
			name: "joint exactly on raised edge",
			snap: armsSnap(-1, -1.05, -1, -1, -1, -1),
			want: CodeAbove,
		},
		{
			// All joints at or past the raised edge pass the band check
			// first, so the lowered outcome never fires.
			name: "all joints past raised edge",
			snap: armsSnap(-1, -1.2, -1.2, -1, -1.2, -1.2),
			want: CodeCorrect,
		},
		{
			name: "one arm in band one arm out",
			snap: armsSnap(-1, -0.98, -0.99, -1, -2, -2),
			want: CodeIncorrect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyArmsCross(tt.snap, cfg)
			if got != tt.want {
				t.Errorf("ClassifyArmsCross() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyArmsCross_BoundaryInclusive(t *testing.T) {
	// Joints exactly on shoulder.y*(1+t) satisfy the inclusive band check.
	snap := armsSnap(-1, -1.05, -1.05, -1, -1.05, -1.05)
	if got := ClassifyArmsCross(snap, DefaultConfig()); got != CodeCorrect {
		t.Errorf("exact band edge: got %s, want %s", got, CodeCorrect)
	}
}

func TestClassifyArmsCross_NeverInvalid(t *testing.T) {
	// The arms check has no invalid outcome, even on a zero snapshot.
	if got := ClassifyArmsCross(Snapshot{}, DefaultConfig()); got == CodeInvalid {
		t.Error("arms check must not return the invalid code")
	}
}
