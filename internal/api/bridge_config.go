package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/kinetic-data/posture.report/internal/db"
	"github.com/kinetic-data/posture.report/internal/httputil"
	"github.com/kinetic-data/posture.report/internal/serialmux"
)

// BridgeConfigRequest is the body for creating or updating a bridge
// serial configuration.
type BridgeConfigRequest struct {
	Name        string `json:"name"`
	PortPath    string `json:"port_path"`
	BaudRate    int    `json:"baud_rate"`
	DataBits    int    `json:"data_bits"`
	StopBits    int    `json:"stop_bits"`
	Parity      string `json:"parity"`
	FrameRateHz int    `json:"frame_rate_hz"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// validate checks required fields and normalises the serial options.
// The normalised values are written back so stored configs carry the
// defaults explicitly.
func (req *BridgeConfigRequest) validate() error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if req.PortPath == "" {
		return fmt.Errorf("port_path is required")
	}
	if !isValidPortPath(req.PortPath) {
		return fmt.Errorf("invalid port path: must start with /dev/tty or /dev/serial")
	}
	if req.FrameRateHz < 0 || req.FrameRateHz > 120 {
		return fmt.Errorf("frame_rate_hz must be between 0 and 120")
	}

	opts, err := serialmux.PortOptions{
		BaudRate: req.BaudRate,
		DataBits: req.DataBits,
		StopBits: req.StopBits,
		Parity:   req.Parity,
	}.Normalize()
	if err != nil {
		return err
	}
	req.BaudRate = opts.BaudRate
	req.DataBits = opts.DataBits
	req.StopBits = opts.StopBits
	req.Parity = opts.Parity

	if req.FrameRateHz == 0 {
		req.FrameRateHz = 30
	}
	return nil
}

func (req *BridgeConfigRequest) toConfig(id int) *db.BridgeConfig {
	return &db.BridgeConfig{
		ID:          id,
		Name:        req.Name,
		PortPath:    req.PortPath,
		BaudRate:    req.BaudRate,
		DataBits:    req.DataBits,
		StopBits:    req.StopBits,
		Parity:      req.Parity,
		FrameRateHz: req.FrameRateHz,
		Enabled:     req.Enabled,
		Description: req.Description,
	}
}

// isValidPortPath validates that a port path is in an allowed format
func isValidPortPath(path string) bool {
	return strings.HasPrefix(path, "/dev/tty") || strings.HasPrefix(path, "/dev/serial")
}

// handleBridgeConfigsOrCreate handles GET and POST to /api/bridge/configs
func (s *Server) handleBridgeConfigsOrCreate(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listBridgeConfigs(w, r)
	case http.MethodPost:
		s.createBridgeConfig(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listBridgeConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.db.GetBridgeConfigs()
	if err != nil {
		log.Printf("Error fetching bridge configs: %v", err)
		httputil.InternalServerError(w, "failed to fetch bridge configurations")
		return
	}
	if configs == nil {
		configs = []db.BridgeConfig{}
	}
	httputil.WriteJSONOK(w, configs)
}

func (s *Server) createBridgeConfig(w http.ResponseWriter, r *http.Request) {
	var req BridgeConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	id, err := s.db.CreateBridgeConfig(req.toConfig(0))
	if err != nil {
		log.Printf("Error creating bridge config: %v", err)
		httputil.InternalServerError(w, "failed to create bridge configuration")
		return
	}

	created, err := s.db.GetBridgeConfig(int(id))
	if err != nil {
		log.Printf("Error fetching created config: %v", err)
		httputil.InternalServerError(w, "configuration created but failed to fetch")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, created)
}

// handleBridgeConfigByID handles GET/PUT/DELETE /api/bridge/configs/{id}
func (s *Server) handleBridgeConfigByID(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/bridge/configs/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		httputil.BadRequest(w, "missing config id")
		return
	}

	id, err := strconv.Atoi(pathParts[0])
	if err != nil {
		httputil.BadRequest(w, "invalid config id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getBridgeConfig(w, r, id)
	case http.MethodPut:
		s.updateBridgeConfig(w, r, id)
	case http.MethodDelete:
		s.deleteBridgeConfig(w, r, id)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) getBridgeConfig(w http.ResponseWriter, r *http.Request, id int) {
	config, err := s.db.GetBridgeConfig(id)
	if err != nil {
		log.Printf("Error fetching bridge config %d: %v", id, err)
		httputil.InternalServerError(w, "failed to fetch bridge configuration")
		return
	}
	if config == nil {
		httputil.NotFound(w, "configuration not found")
		return
	}
	httputil.WriteJSONOK(w, config)
}

func (s *Server) updateBridgeConfig(w http.ResponseWriter, r *http.Request, id int) {
	var req BridgeConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if err := s.db.UpdateBridgeConfig(req.toConfig(id)); err != nil {
		if strings.Contains(err.Error(), "not found") {
			httputil.NotFound(w, "configuration not found")
			return
		}
		log.Printf("Error updating bridge config %d: %v", id, err)
		httputil.InternalServerError(w, "failed to update bridge configuration")
		return
	}

	updated, err := s.db.GetBridgeConfig(id)
	if err != nil {
		log.Printf("Error fetching updated config: %v", err)
		httputil.InternalServerError(w, "configuration updated but failed to fetch")
		return
	}
	httputil.WriteJSONOK(w, updated)
}

func (s *Server) deleteBridgeConfig(w http.ResponseWriter, r *http.Request, id int) {
	if err := s.db.DeleteBridgeConfig(id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			httputil.NotFound(w, "configuration not found")
			return
		}
		log.Printf("Error deleting bridge config %d: %v", id, err)
		httputil.InternalServerError(w, "failed to delete bridge configuration")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sendBridgeCommand handles POST /api/bridge/command, writing one
// allowlisted command to the sensor bridge.
func (s *Server) sendBridgeCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.bridge == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no serial bridge configured")
		return
	}

	command := strings.TrimSpace(r.FormValue("command"))
	if command == "" {
		httputil.BadRequest(w, "missing command")
		return
	}
	if s.commandOK == nil || !s.commandOK(command) {
		httputil.WriteJSONError(w, http.StatusForbidden,
			fmt.Sprintf("command %q is not in the allowlist", command))
		return
	}

	if err := s.bridge.SendCommand(command); err != nil {
		httputil.InternalServerError(w, "failed to send command")
		return
	}

	httputil.WriteJSONOK(w, map[string]string{"status": "sent", "command": command})
}

// reloadBridge handles POST /api/bridge/reload, swapping the serial mux
// onto the enabled stored configuration.
func (s *Server) reloadBridge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.bridge == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no serial bridge configured")
		return
	}

	result, err := s.bridge.ReloadConfig(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("reload failed: %v", err))
		return
	}
	httputil.WriteJSONOK(w, result)
}
