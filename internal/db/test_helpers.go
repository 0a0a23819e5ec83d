package db

import (
	"testing"
	"time"
)

// Helper functions for creating pointer values
func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}

// createTestSession creates an active session started a minute ago with
// the default classifier settings. Tests that need specific settings
// mutate the returned session and call UpdateSessionNotes/EndSession.
func createTestSession(t *testing.T, db *DB, name string) *Session {
	t.Helper()

	session := &Session{
		Name:          name,
		StartedAtUnix: float64(time.Now().Unix()) - 60,
		TargetAngle:   10.0,
		Tolerance:     0.05,
	}

	if err := db.CreateSession(session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	return session
}

// recordTestFrames stores n frames for the session, alternating the leg
// code so count-by-code queries have something to group.
func recordTestFrames(t *testing.T, db *DB, sessionID int, n int) {
	t.Helper()

	codes := make([]FrameCode, 0, n)
	base := float64(time.Now().Unix()) - 30
	for i := 0; i < n; i++ {
		legCode := "above"
		if i%2 == 1 {
			legCode = "below"
		}
		codes = append(codes, FrameCode{
			SessionID:      sessionID,
			Seq:            int64(i),
			CapturedAtUnix: base + float64(i)/30.0,
			ArmsCode:       "correct",
			LegCode:        legCode,
			LegAngle:       8.0 + float64(i%5),
		})
	}

	if err := db.RecordFrameCodes(codes); err != nil {
		t.Fatalf("RecordFrameCodes failed: %v", err)
	}
}
