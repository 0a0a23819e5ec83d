package testutil

import (
	"errors"
	"net/http"
	"testing"

	"github.com/kinetic-data/posture.report/internal/pose"
)

func TestAssertStatusCode(t *testing.T) {
	t.Run("matching codes pass", func(t *testing.T) {
		mockT := &testing.T{}
		AssertStatusCode(mockT, http.StatusOK, http.StatusOK)
		if mockT.Failed() {
			t.Error("AssertStatusCode failed for matching codes")
		}
	})

	t.Run("mismatched codes fail", func(t *testing.T) {
		mockT := &testing.T{}
		AssertStatusCode(mockT, http.StatusNotFound, http.StatusOK)
		if !mockT.Failed() {
			t.Error("AssertStatusCode passed for mismatched codes")
		}
	})
}

func TestAssertNoError(t *testing.T) {
	mockT := &testing.T{}
	AssertNoError(mockT, nil)
	if mockT.Failed() {
		t.Error("AssertNoError failed for nil error")
	}
}

func TestAssertError(t *testing.T) {
	mockT := &testing.T{}
	AssertError(mockT, errors.New("boom"))
	if mockT.Failed() {
		t.Error("AssertError failed for non-nil error")
	}
}

func TestAssertFloatNear(t *testing.T) {
	tests := []struct {
		name     string
		got      float64
		want     float64
		eps      float64
		wantFail bool
	}{
		{"exact match", 1.5, 1.5, 0, false},
		{"within epsilon", 9.462, 9.46, 0.01, false},
		{"outside epsilon", 9.5, 9.46, 0.01, true},
		{"negative difference within", -0.05, -0.051, 0.01, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &testing.T{}
			AssertFloatNear(mockT, tt.got, tt.want, tt.eps)
			if mockT.Failed() != tt.wantFail {
				t.Errorf("AssertFloatNear(%g, %g, %g) failed = %v, want %v",
					tt.got, tt.want, tt.eps, mockT.Failed(), tt.wantFail)
			}
		})
	}
}

func TestNewTestRequest(t *testing.T) {
	req := NewTestRequest(http.MethodGet, "/api/health")
	if req.Method != http.MethodGet {
		t.Errorf("method = %q, want %q", req.Method, http.MethodGet)
	}
	if req.URL.Path != "/api/health" {
		t.Errorf("path = %q, want %q", req.URL.Path, "/api/health")
	}
}

func TestNewTestRecorder(t *testing.T) {
	rec := NewTestRecorder()
	if rec == nil {
		t.Fatal("NewTestRecorder returned nil")
	}
	rec.WriteHeader(http.StatusTeapot)
	if rec.Code != http.StatusTeapot {
		t.Errorf("recorded code = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestDrillSnapshot(t *testing.T) {
	s := DrillSnapshot()

	if got := s.JointAt(pose.JointShoulderLeft).Position.Y; got != 1.4 {
		t.Errorf("left shoulder Y = %g, want 1.4", got)
	}
	if got := s.JointAt(pose.JointAnkleLeft).Position.Z; got != 2.5 {
		t.Errorf("left ankle Z = %g, want 2.5", got)
	}

	angle, ok := pose.LegLiftAngleDegrees(s)
	if !ok {
		t.Fatal("LegLiftAngleDegrees not defined for drill snapshot")
	}
	AssertFloatNear(t, angle, 9.4623, 0.001)
}

func TestDrillClassification(t *testing.T) {
	c := DrillClassification()
	if c.Arms != pose.CodeCorrect {
		t.Errorf("arms = %v, want %v", c.Arms, pose.CodeCorrect)
	}
	if c.Leg != pose.CodeAbove {
		t.Errorf("leg = %v, want %v", c.Leg, pose.CodeAbove)
	}
}
