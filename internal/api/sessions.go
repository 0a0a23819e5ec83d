package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kinetic-data/posture.report/internal/db"
	"github.com/kinetic-data/posture.report/internal/httputil"
	"github.com/kinetic-data/posture.report/internal/session"
	"github.com/kinetic-data/posture.report/internal/stats"
)

// startSessionRequest is the body for POST /api/sessions. Omitted
// classifier fields fall back to the live trainer config.
type startSessionRequest struct {
	Name                  string   `json:"name"`
	TargetLegAngleDegrees *float64 `json:"target_leg_angle_degrees"`
	ToleranceFactor       *float64 `json:"tolerance_factor"`
}

// endSessionRequest is the optional body for POST /api/sessions/{id}/end.
type endSessionRequest struct {
	Notes *string `json:"notes"`
}

// sessionDetail is a session row plus its stored frame count.
type sessionDetail struct {
	db.Session
	Frames int `json:"frames"`
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// handleSessions handles list and start operations on /api/sessions.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listSessions(w, r)
	case http.MethodPost:
		s.startSession(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.db.GetAllSessions()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list sessions: %v", err))
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}

	cfg := s.trainer.PoseConfig()
	if req.TargetLegAngleDegrees != nil {
		if *req.TargetLegAngleDegrees < 0 || *req.TargetLegAngleDegrees > 90 {
			httputil.BadRequest(w, "target_leg_angle_degrees must be between 0 and 90")
			return
		}
		cfg.TargetLegAngleDegrees = *req.TargetLegAngleDegrees
	}
	if req.ToleranceFactor != nil {
		if *req.ToleranceFactor < 0 || *req.ToleranceFactor > 1 {
			httputil.BadRequest(w, "tolerance_factor must be between 0 and 1")
			return
		}
		cfg.ToleranceFactor = *req.ToleranceFactor
	}

	created, err := s.recorder.Start(name, cfg)
	if err != nil {
		if errors.Is(err, session.ErrSessionActive) {
			httputil.WriteJSONError(w, http.StatusConflict, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to start session: %v", err))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, created)
}

// handleSessionByID routes /api/sessions/{id}, /api/sessions/{id}/stats
// and /api/sessions/{id}/end.
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		httputil.BadRequest(w, "missing session id")
		return
	}

	id, err := strconv.Atoi(parts[0])
	if err != nil {
		httputil.BadRequest(w, "invalid session id")
		return
	}

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			s.getSession(w, r, id)
		case http.MethodDelete:
			s.deleteSession(w, r, id)
		default:
			httputil.MethodNotAllowed(w)
		}
	case len(parts) == 2 && parts[1] == "stats":
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		s.sessionStats(w, r, id)
	case len(parts) == 2 && parts[1] == "end":
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		s.endSession(w, r, id)
	default:
		httputil.NotFound(w, "unknown session resource")
	}
}

// writeSessionError maps store errors onto API statuses.
func (s *Server) writeSessionError(w http.ResponseWriter, id int, err error) {
	if strings.Contains(err.Error(), "not found") {
		httputil.NotFound(w, fmt.Sprintf("session %d not found", id))
		return
	}
	httputil.InternalServerError(w, fmt.Sprintf("failed to load session %d: %v", id, err))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request, id int) {
	sess, err := s.db.GetSession(id)
	if err != nil {
		s.writeSessionError(w, id, err)
		return
	}

	frames, err := s.db.CountFrameCodes(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to count frames: %v", err))
		return
	}

	httputil.WriteJSONOK(w, sessionDetail{Session: *sess, Frames: frames})
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request, id int) {
	var req endSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if active := s.recorder.Active(); active != nil && active.ID == id {
		if _, err := s.recorder.End(); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to end session: %v", err))
			return
		}
	} else {
		// Not the recording session. Daemon restarts leave sessions
		// dangling open; those can still be closed directly.
		if _, err := s.db.GetSession(id); err != nil {
			s.writeSessionError(w, id, err)
			return
		}
		if err := s.db.EndSession(id, unixNow()); err != nil {
			httputil.WriteJSONError(w, http.StatusConflict, err.Error())
			return
		}
	}

	if req.Notes != nil {
		if err := s.db.UpdateSessionNotes(id, *req.Notes); err != nil {
			s.writeSessionError(w, id, err)
			return
		}
	}

	ended, err := s.db.GetSession(id)
	if err != nil {
		s.writeSessionError(w, id, err)
		return
	}
	httputil.WriteJSONOK(w, ended)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request, id int) {
	if active := s.recorder.Active(); active != nil && active.ID == id {
		httputil.WriteJSONError(w, http.StatusConflict, "session is still recording")
		return
	}

	if err := s.db.DeleteSession(id); err != nil {
		s.writeSessionError(w, id, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sessionStats(w http.ResponseWriter, r *http.Request, id int) {
	if _, err := s.db.GetSession(id); err != nil {
		s.writeSessionError(w, id, err)
		return
	}

	series, err := s.db.FrameCodeTimeline(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load frame codes: %v", err))
		return
	}

	st := stats.Compute(id, series)
	s.convertStatsAngles(st)
	httputil.WriteJSONOK(w, st)
}

// convertStatsAngles rewrites the angle summary into the server's
// configured unit. Stored values are always degrees.
func (s *Server) convertStatsAngles(st *stats.SessionStats) {
	a := &st.LegAngle
	a.Mean = s.convertAngle(a.Mean)
	a.StdDev = s.convertAngle(a.StdDev)
	a.Min = s.convertAngle(a.Min)
	a.Max = s.convertAngle(a.Max)
	a.P25 = s.convertAngle(a.P25)
	a.P50 = s.convertAngle(a.P50)
	a.P75 = s.convertAngle(a.P75)
	a.P95 = s.convertAngle(a.P95)
}
