// Package api exposes the trainer daemon's HTTP surface: session
// lifecycle, runtime configuration, the live classification feed, and
// the serial bridge admin endpoints.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kinetic-data/posture.report/internal/db"
	"github.com/kinetic-data/posture.report/internal/emitter"
	"github.com/kinetic-data/posture.report/internal/httputil"
	"github.com/kinetic-data/posture.report/internal/session"
	"github.com/kinetic-data/posture.report/internal/units"
	"github.com/kinetic-data/posture.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// MQTTStats reports emitter health for /api/health. Satisfied by
// *emitter.Emitter.
type MQTTStats interface {
	Stats() emitter.Stats
}

// ServerConfig carries the server's collaborators. DB, Recorder, Hub and
// Trainer are required; Bridge, MQTT and CommandOK are optional.
type ServerConfig struct {
	DB       *db.DB
	Recorder *session.Recorder
	Hub      *session.Hub
	Trainer  *TrainerState

	// Bridge manages the optional serial-attached sensor bridge.
	Bridge *BridgeManager

	// MQTT reports publisher stats on the health endpoint.
	MQTT MQTTStats

	// CommandOK vets bridge commands before they reach the port;
	// nil rejects everything.
	CommandOK func(string) bool

	// AngleUnits selects the unit for angle values in API responses.
	// Invalid or empty values fall back to degrees.
	AngleUnits string
}

// Server handles the /api routes.
type Server struct {
	db        *db.DB
	recorder  *session.Recorder
	hub       *session.Hub
	trainer   *TrainerState
	bridge    *BridgeManager
	mqtt      MQTTStats
	commandOK func(string) bool
	units     string
	startedAt time.Time
}

func NewServer(cfg ServerConfig) *Server {
	angleUnits := cfg.AngleUnits
	if !units.IsValid(angleUnits) {
		angleUnits = units.Degrees
	}
	return &Server{
		db:        cfg.DB,
		recorder:  cfg.Recorder,
		hub:       cfg.Hub,
		trainer:   cfg.Trainer,
		bridge:    cfg.Bridge,
		mqtt:      cfg.MQTT,
		commandOK: cfg.CommandOK,
		units:     angleUnits,
		startedAt: time.Now(),
	}
}

// convertAngle converts a stored angle (always degrees) into the
// server's configured unit.
func (s *Server) convertAngle(deg float64) float64 {
	return units.ConvertAngle(deg, s.units)
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.showHealth)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/timezones", s.listTimezones)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionByID)
	mux.HandleFunc("/api/live", s.streamLive)
	mux.HandleFunc("/api/bridge/configs", s.handleBridgeConfigsOrCreate)
	mux.HandleFunc("/api/bridge/configs/", s.handleBridgeConfigByID)
	mux.HandleFunc("/api/bridge/command", s.sendBridgeCommand)
	mux.HandleFunc("/api/bridge/reload", s.reloadBridge)
	return mux
}

type healthResponse struct {
	Status          string         `json:"status"`
	Version         string         `json:"version"`
	GitSHA          string         `json:"git_sha"`
	UptimeSeconds   float64        `json:"uptime_seconds"`
	AngleUnits      string         `json:"angle_units"`
	ActiveSession   *db.Session    `json:"active_session,omitempty"`
	LiveSubscribers int            `json:"live_subscribers"`
	MQTT            *emitter.Stats `json:"mqtt,omitempty"`
}

func (s *Server) showHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	resp := healthResponse{
		Status:          "ok",
		Version:         version.Version,
		GitSHA:          version.GitSHA,
		UptimeSeconds:   time.Since(s.startedAt).Seconds(),
		AngleUnits:      s.units,
		ActiveSession:   s.recorder.Active(),
		LiveSubscribers: s.hub.SubscriberCount(),
	}
	if s.mqtt != nil {
		st := s.mqtt.Stats()
		resp.MQTT = &st
	}

	httputil.WriteJSONOK(w, resp)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.trainer.Effective())
	case http.MethodPut:
		s.updateConfig(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

type timezoneEntry struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// listTimezones serves the timezone picker for report tooling, plus the
// angle units the server can render.
func (s *Server) listTimezones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	zones := make([]timezoneEntry, 0, len(units.CommonTimezones))
	for _, tz := range units.CommonTimezones {
		zones = append(zones, timezoneEntry{ID: tz, Label: units.GetTimezoneLabel(tz)})
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"timezones":   zones,
		"angle_units": units.ValidUnits,
	})
}
