package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/kinetic-data/posture.report/internal/config"
	"github.com/kinetic-data/posture.report/internal/httputil"
	"github.com/kinetic-data/posture.report/internal/pose"
)

// TrainerState holds the trainer configuration currently in force. The
// capture pipeline reads it on every frame while PUT /api/config swaps
// it, so access goes through a RWMutex.
type TrainerState struct {
	mu  sync.RWMutex
	cfg *config.TrainerConfig
}

// NewTrainerState wraps cfg; nil starts from the built-in defaults.
func NewTrainerState(cfg *config.TrainerConfig) *TrainerState {
	if cfg == nil {
		cfg = config.EmptyTrainerConfig()
	}
	return &TrainerState{cfg: cfg}
}

// Effective returns the configuration with defaults materialised for
// every unset field.
func (ts *TrainerState) Effective() *config.TrainerConfig {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.cfg.Effective()
}

// PoseConfig returns the classifier parameters currently in force.
func (ts *TrainerState) PoseConfig() pose.Config {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.cfg.PoseConfig()
}

// Apply overlays the non-nil fields of updates onto the current
// configuration. The merged result is validated before it replaces the
// active config; on error nothing changes.
func (ts *TrainerState) Apply(updates *config.TrainerConfig) (*config.TrainerConfig, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	merged := *ts.cfg
	if updates.TargetLegAngleDegrees != nil {
		merged.TargetLegAngleDegrees = updates.TargetLegAngleDegrees
	}
	if updates.ToleranceFactor != nil {
		merged.ToleranceFactor = updates.ToleranceFactor
	}
	if updates.FrameRateHz != nil {
		merged.FrameRateHz = updates.FrameRateHz
	}
	if updates.FlushInterval != nil {
		merged.FlushInterval = updates.FlushInterval
	}
	if updates.LiveQueueSize != nil {
		merged.LiveQueueSize = updates.LiveQueueSize
	}
	if updates.MQTTBroker != nil {
		merged.MQTTBroker = updates.MQTTBroker
	}
	if updates.MQTTTopicPrefix != nil {
		merged.MQTTTopicPrefix = updates.MQTTTopicPrefix
	}
	if updates.MQTTRetain != nil {
		merged.MQTTRetain = updates.MQTTRetain
	}

	if err := merged.Validate(); err != nil {
		return nil, err
	}

	ts.cfg = &merged
	return merged.Effective(), nil
}

// updateConfig handles PUT /api/config. The body is a partial trainer
// config; omitted fields keep their current values.
func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var updates config.TrainerConfig
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	applied, err := s.trainer.Apply(&updates)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	httputil.WriteJSONOK(w, applied)
}
