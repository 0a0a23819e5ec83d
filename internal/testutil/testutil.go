// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kinetic-data/posture.report/internal/pose"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertFloatNear fails the test if got differs from want by more than eps.
func AssertFloatNear(t *testing.T, got, want, eps float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > eps {
		t.Errorf("value = %g, want %g (±%g)", got, want, eps)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// DrillSnapshot returns the reference drill stance used across package
// tests: level arms at shoulder height and the left shin lifted ~9.46°
// off vertical. Under the default config it classifies as
// {Arms: correct, Leg: above}, matching the serial bridge mock frames.
func DrillSnapshot() pose.Snapshot {
	return pose.NewSnapshot(
		pose.Joint{Type: pose.JointShoulderLeft, Position: pose.Position{X: -0.2, Y: 1.4, Z: 2.2}},
		pose.Joint{Type: pose.JointElbowLeft, Position: pose.Position{X: -0.25, Y: 1.4, Z: 2.0}},
		pose.Joint{Type: pose.JointWristLeft, Position: pose.Position{X: 0.1, Y: 1.4, Z: 1.9}},
		pose.Joint{Type: pose.JointShoulderRight, Position: pose.Position{X: 0.2, Y: 1.4, Z: 2.2}},
		pose.Joint{Type: pose.JointElbowRight, Position: pose.Position{X: 0.25, Y: 1.4, Z: 2.0}},
		pose.Joint{Type: pose.JointWristRight, Position: pose.Position{X: -0.1, Y: 1.4, Z: 1.9}},
		pose.Joint{Type: pose.JointKneeLeft, Position: pose.Position{X: -0.15, Y: 0.5, Z: 2.2}},
		pose.Joint{Type: pose.JointAnkleLeft, Position: pose.Position{X: -0.15, Y: 0.45, Z: 2.5}},
		pose.Joint{Type: pose.JointKneeRight, Position: pose.Position{X: 0.15, Y: 0.5, Z: 2.2}},
		pose.Joint{Type: pose.JointAnkleRight, Position: pose.Position{X: 0.15, Y: 0.1, Z: 2.2}},
	)
}

// DrillClassification returns DrillSnapshot classified under the default
// config, for tests that just need a plausible FrameClassification.
func DrillClassification() pose.FrameClassification {
	return pose.ClassifyFrame(DrillSnapshot(), pose.DefaultConfig())
}
