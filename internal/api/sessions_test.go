package api

import (
	"fmt"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/kinetic-data/posture.report/internal/db"
	"github.com/kinetic-data/posture.report/internal/pose"
	"github.com/kinetic-data/posture.report/internal/session"
	"github.com/kinetic-data/posture.report/internal/stats"
	"github.com/kinetic-data/posture.report/internal/testutil"
	"github.com/kinetic-data/posture.report/internal/units"
)

// observeFrames feeds n classified frames into the active recording:
// arms always correct, the leg code alternating above/below with angles
// 9 and 11 so the series means out at 10.
func observeFrames(t *testing.T, env *testEnv, n int) {
	t.Helper()

	base := float64(env.clock.Now().Unix())
	for i := 0; i < n; i++ {
		ev := session.Event{
			Seq:             uint32(i + 1),
			CapturedAtUnix:  base + float64(i)/30.0,
			Arms:            pose.CodeCorrect,
			Leg:             pose.CodeAbove,
			LegAngleDegrees: 9,
		}
		if i%2 == 1 {
			ev.Leg = pose.CodeBelow
			ev.LegAngleDegrees = 11
		}
		if !env.rec.Observe(ev) {
			t.Fatalf("Observe dropped frame %d: no active session", i)
		}
	}
}

func startTestSession(t *testing.T, env *testEnv, name string) db.Session {
	t.Helper()

	rr := env.do(t, http.MethodPost, "/api/sessions", fmt.Sprintf(`{"name": %q}`, name))
	testutil.AssertStatusCode(t, rr.Code, http.StatusCreated)

	var created db.Session
	decodeJSON(t, rr, &created)
	return created
}

func TestStartSession(t *testing.T) {
	env := newTestEnv(t)

	created := startTestSession(t, env, "morning drill")

	if created.ID <= 0 {
		t.Errorf("id = %d, want > 0", created.ID)
	}
	if created.UUID == "" {
		t.Error("uuid is empty")
	}
	if created.Name != "morning drill" {
		t.Errorf("name = %q, want morning drill", created.Name)
	}
	if created.TargetAngle != 10 || created.Tolerance != 0.05 {
		t.Errorf("classifier settings = %g/%g, want 10/0.05", created.TargetAngle, created.Tolerance)
	}
	if created.StartedAtUnix != 1700000000 {
		t.Errorf("started at = %f, want 1700000000", created.StartedAtUnix)
	}
	if created.EndedAtUnix != nil {
		t.Errorf("ended at = %v, want nil", created.EndedAtUnix)
	}
}

func TestStartSession_SecondConflicts(t *testing.T) {
	env := newTestEnv(t)
	startTestSession(t, env, "first")

	rr := env.do(t, http.MethodPost, "/api/sessions", `{"name": "second"}`)
	testutil.AssertStatusCode(t, rr.Code, http.StatusConflict)
}

func TestStartSession_Validation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{}`},
		{"blank name", `{"name": "   "}`},
		{"bad target", `{"name": "x", "target_leg_angle_degrees": 200}`},
		{"negative target", `{"name": "x", "target_leg_angle_degrees": -5}`},
		{"bad tolerance", `{"name": "x", "tolerance_factor": 2}`},
		{"invalid json", `{name`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/sessions", tc.body)
			testutil.AssertStatusCode(t, rr.Code, http.StatusBadRequest)
		})
	}
}

func TestStartSession_OverridesClassifierSettings(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/sessions",
		`{"name": "custom", "target_leg_angle_degrees": 20, "tolerance_factor": 0.1}`)
	testutil.AssertStatusCode(t, rr.Code, http.StatusCreated)

	var created db.Session
	decodeJSON(t, rr, &created)
	if created.TargetAngle != 20 || created.Tolerance != 0.1 {
		t.Errorf("classifier settings = %g/%g, want 20/0.1", created.TargetAngle, created.Tolerance)
	}

	// The trainer config itself is untouched; overrides are per session.
	if got := env.srv.trainer.PoseConfig().TargetLegAngleDegrees; got != 10 {
		t.Errorf("trainer target = %g, want 10", got)
	}
}

func TestEndSession(t *testing.T) {
	env := newTestEnv(t)

	created := startTestSession(t, env, "drill")
	observeFrames(t, env, 4)
	env.clock.Advance(90 * time.Second)

	rr := env.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%d/end", created.ID), `{"notes": "steady"}`)
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)

	var ended db.Session
	decodeJSON(t, rr, &ended)
	if ended.EndedAtUnix == nil || *ended.EndedAtUnix != 1700000090 {
		t.Errorf("ended at = %v, want 1700000090", ended.EndedAtUnix)
	}
	if ended.Notes == nil || *ended.Notes != "steady" {
		t.Errorf("notes = %v, want steady", ended.Notes)
	}

	// Ending flushed the buffered frames.
	rr = env.get(t, fmt.Sprintf("/api/sessions/%d", created.ID))
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)

	var detail sessionDetail
	decodeJSON(t, rr, &detail)
	if detail.Frames != 4 {
		t.Errorf("frames = %d, want 4", detail.Frames)
	}
}

func TestEndSession_Repeat(t *testing.T) {
	env := newTestEnv(t)

	created := startTestSession(t, env, "drill")
	path := fmt.Sprintf("/api/sessions/%d/end", created.ID)

	rr := env.do(t, http.MethodPost, path, "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)

	rr = env.do(t, http.MethodPost, path, "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusConflict)
}

func TestEndSession_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/sessions/999/end", "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusNotFound)
}

func TestEndSession_Dangling(t *testing.T) {
	env := newTestEnv(t)

	// A session left open by a crashed daemon: present in the store but
	// unknown to the recorder.
	dangling := &db.Session{Name: "stale", StartedAtUnix: 1600000000, TargetAngle: 10, Tolerance: 0.05}
	if err := env.db.CreateSession(dangling); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	rr := env.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%d/end", dangling.ID), "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)

	var ended db.Session
	decodeJSON(t, rr, &ended)
	if ended.EndedAtUnix == nil {
		t.Error("dangling session not closed")
	}
}

func TestListSessions(t *testing.T) {
	env := newTestEnv(t)

	rr := env.get(t, "/api/sessions")
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)
	var sessions []db.Session
	decodeJSON(t, rr, &sessions)
	if len(sessions) != 0 {
		t.Fatalf("sessions = %d, want 0", len(sessions))
	}

	created := startTestSession(t, env, "drill")
	env.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%d/end", created.ID), "")

	rr = env.get(t, "/api/sessions")
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)
	decodeJSON(t, rr, &sessions)
	if len(sessions) != 1 || sessions[0].Name != "drill" {
		t.Fatalf("sessions = %+v, want one named drill", sessions)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.get(t, "/api/sessions/999")
	testutil.AssertStatusCode(t, rr.Code, http.StatusNotFound)
}

func TestSessionByID_BadID(t *testing.T) {
	env := newTestEnv(t)
	rr := env.get(t, "/api/sessions/abc")
	testutil.AssertStatusCode(t, rr.Code, http.StatusBadRequest)
}

func TestSessionByID_UnknownResource(t *testing.T) {
	env := newTestEnv(t)
	rr := env.get(t, "/api/sessions/1/bogus")
	testutil.AssertStatusCode(t, rr.Code, http.StatusNotFound)
}

func TestSessions_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPut, "/api/sessions", "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusMethodNotAllowed)

	rr = env.do(t, http.MethodPatch, "/api/sessions/1", "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusMethodNotAllowed)

	rr = env.do(t, http.MethodPost, "/api/sessions/1/stats", "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusMethodNotAllowed)

	rr = env.get(t, "/api/sessions/1/end")
	testutil.AssertStatusCode(t, rr.Code, http.StatusMethodNotAllowed)
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t)

	created := startTestSession(t, env, "drill")

	// Still recording: refuse.
	rr := env.do(t, http.MethodDelete, fmt.Sprintf("/api/sessions/%d", created.ID), "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusConflict)

	env.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%d/end", created.ID), "")

	rr = env.do(t, http.MethodDelete, fmt.Sprintf("/api/sessions/%d", created.ID), "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusNoContent)

	rr = env.get(t, fmt.Sprintf("/api/sessions/%d", created.ID))
	testutil.AssertStatusCode(t, rr.Code, http.StatusNotFound)
}

func TestDeleteSession_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodDelete, "/api/sessions/999", "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusNotFound)
}

func TestSessionStats(t *testing.T) {
	env := newTestEnv(t)

	created := startTestSession(t, env, "drill")
	observeFrames(t, env, 6)
	env.clock.Advance(time.Minute)
	env.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%d/end", created.ID), "")

	rr := env.get(t, fmt.Sprintf("/api/sessions/%d/stats", created.ID))
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)

	var st stats.SessionStats
	decodeJSON(t, rr, &st)

	if st.TotalFrames != 6 {
		t.Errorf("total frames = %d, want 6", st.TotalFrames)
	}
	if st.Arms.Counts["correct"] != 6 || st.Arms.Dominant != "correct" {
		t.Errorf("arms = %+v, want 6 correct frames", st.Arms)
	}
	if st.Leg.Counts["above"] != 3 || st.Leg.Counts["below"] != 3 {
		t.Errorf("leg counts = %v, want 3 above / 3 below", st.Leg.Counts)
	}
	testutil.AssertFloatNear(t, st.LegAngle.Mean, 10, 1e-9)
	if st.LegAngle.Count != 6 {
		t.Errorf("angle count = %d, want 6", st.LegAngle.Count)
	}
}

func TestSessionStats_RadianUnits(t *testing.T) {
	env := newTestEnv(t)

	created := startTestSession(t, env, "drill")
	observeFrames(t, env, 6)
	env.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%d/end", created.ID), "")

	radianSrv := NewServer(ServerConfig{
		DB:         env.db,
		Recorder:   env.rec,
		Hub:        env.hub,
		Trainer:    env.srv.trainer,
		AngleUnits: units.Radians,
	})
	mux := radianSrv.ServeMux()

	rr := testutil.NewTestRecorder()
	mux.ServeHTTP(rr, testutil.NewTestRequest(http.MethodGet, fmt.Sprintf("/api/sessions/%d/stats", created.ID)))
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)

	var st stats.SessionStats
	decodeJSON(t, rr, &st)
	testutil.AssertFloatNear(t, st.LegAngle.Mean, 10*math.Pi/180, 1e-9)
}

func TestSessionStats_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.get(t, "/api/sessions/999/stats")
	testutil.AssertStatusCode(t, rr.Code, http.StatusNotFound)
}
