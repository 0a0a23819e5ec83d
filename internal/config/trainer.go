package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kinetic-data/posture.report/internal/pose"
)

// DefaultConfigPath is the path to the canonical trainer defaults file.
// This is the single source of truth for all default trainer values.
const DefaultConfigPath = "config/trainer.defaults.json"

// TrainerConfig represents the root configuration for the exercise
// trainer. The schema matches the /api/config endpoint so the same JSON
// can be used for both startup configuration and runtime updates.
type TrainerConfig struct {
	// Classifier params
	TargetLegAngleDegrees *float64 `json:"target_leg_angle_degrees,omitempty"`
	ToleranceFactor       *float64 `json:"tolerance_factor,omitempty"`

	// Capture params
	FrameRateHz *int `json:"frame_rate_hz,omitempty"`

	// Recorder params
	FlushInterval *string `json:"flush_interval,omitempty"` // duration string like "1s"

	// Live stream params
	LiveQueueSize *int `json:"live_queue_size,omitempty"`

	// MQTT emitter params; an empty broker URL disables publishing.
	MQTTBroker      *string `json:"mqtt_broker,omitempty"`
	MQTTTopicPrefix *string `json:"mqtt_topic_prefix,omitempty"`
	MQTTRetain      *bool   `json:"mqtt_retain,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTrainerConfig returns a TrainerConfig with all fields set to nil.
// Use LoadTrainerConfig to load actual values from the defaults file.
func EmptyTrainerConfig() *TrainerConfig {
	return &TrainerConfig{}
}

// DefaultTrainerConfig returns a TrainerConfig with every field set to
// its default value. This mirrors config/trainer.defaults.json.
func DefaultTrainerConfig() *TrainerConfig {
	return &TrainerConfig{
		TargetLegAngleDegrees: ptrFloat64(pose.DefaultTargetLegAngleDegrees),
		ToleranceFactor:       ptrFloat64(pose.DefaultToleranceFactor),
		FrameRateHz:           ptrInt(30),
		FlushInterval:         ptrString("1s"),
		LiveQueueSize:         ptrInt(16),
		MQTTBroker:            ptrString(""),
		MQTTTopicPrefix:       ptrString("posture"),
		MQTTRetain:            ptrBool(false),
	}
}

// LoadTrainerConfig loads a TrainerConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTrainerConfig(path string) (*TrainerConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTrainerConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical trainer defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TrainerConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/skeleton/network/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTrainerConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TrainerConfig) Validate() error {
	// Validate TargetLegAngleDegrees if set
	if c.TargetLegAngleDegrees != nil {
		if *c.TargetLegAngleDegrees < 0 || *c.TargetLegAngleDegrees > 90 {
			return fmt.Errorf("target_leg_angle_degrees must be between 0 and 90, got %f", *c.TargetLegAngleDegrees)
		}
	}

	// Validate ToleranceFactor if set
	if c.ToleranceFactor != nil {
		if *c.ToleranceFactor < 0 || *c.ToleranceFactor > 1 {
			return fmt.Errorf("tolerance_factor must be between 0 and 1, got %f", *c.ToleranceFactor)
		}
	}

	// Validate FrameRateHz if set
	if c.FrameRateHz != nil {
		if *c.FrameRateHz < 1 || *c.FrameRateHz > 120 {
			return fmt.Errorf("frame_rate_hz must be between 1 and 120, got %d", *c.FrameRateHz)
		}
	}

	// Validate FlushInterval can be parsed if set
	if c.FlushInterval != nil && *c.FlushInterval != "" {
		if _, err := time.ParseDuration(*c.FlushInterval); err != nil {
			return fmt.Errorf("invalid flush_interval '%s': %w", *c.FlushInterval, err)
		}
	}

	// Validate LiveQueueSize if set
	if c.LiveQueueSize != nil {
		if *c.LiveQueueSize < 1 {
			return fmt.Errorf("live_queue_size must be positive, got %d", *c.LiveQueueSize)
		}
	}

	return nil
}

// Effective returns a copy with every field populated, falling back to
// the built-in default for fields that were never set. API responses use
// this so clients always see the values actually in force.
func (c *TrainerConfig) Effective() *TrainerConfig {
	return &TrainerConfig{
		TargetLegAngleDegrees: ptrFloat64(c.GetTargetLegAngleDegrees()),
		ToleranceFactor:       ptrFloat64(c.GetToleranceFactor()),
		FrameRateHz:           ptrInt(c.GetFrameRateHz()),
		FlushInterval:         ptrString(c.GetFlushInterval().String()),
		LiveQueueSize:         ptrInt(c.GetLiveQueueSize()),
		MQTTBroker:            ptrString(c.GetMQTTBroker()),
		MQTTTopicPrefix:       ptrString(c.GetMQTTTopicPrefix()),
		MQTTRetain:            ptrBool(c.GetMQTTRetain()),
	}
}

// PoseConfig materialises the classifier parameters with defaults applied.
func (c *TrainerConfig) PoseConfig() pose.Config {
	return pose.Config{
		TargetLegAngleDegrees: c.GetTargetLegAngleDegrees(),
		ToleranceFactor:       c.GetToleranceFactor(),
	}
}

// GetTargetLegAngleDegrees returns the target_leg_angle_degrees value or the default.
func (c *TrainerConfig) GetTargetLegAngleDegrees() float64 {
	if c.TargetLegAngleDegrees == nil {
		return pose.DefaultTargetLegAngleDegrees
	}
	return *c.TargetLegAngleDegrees
}

// GetToleranceFactor returns the tolerance_factor value or the default.
func (c *TrainerConfig) GetToleranceFactor() float64 {
	if c.ToleranceFactor == nil {
		return pose.DefaultToleranceFactor
	}
	return *c.ToleranceFactor
}

// GetFrameRateHz returns the frame_rate_hz value or the default.
func (c *TrainerConfig) GetFrameRateHz() int {
	if c.FrameRateHz == nil {
		return 30 // default: Kinect full rate
	}
	return *c.FrameRateHz
}

// GetFlushInterval parses and returns the FlushInterval as a time.Duration.
func (c *TrainerConfig) GetFlushInterval() time.Duration {
	if c.FlushInterval == nil || *c.FlushInterval == "" {
		return 1 * time.Second // default
	}
	d, err := time.ParseDuration(*c.FlushInterval)
	if err != nil {
		return 1 * time.Second // default on parse error
	}
	return d
}

// GetLiveQueueSize returns the live_queue_size value or the default.
func (c *TrainerConfig) GetLiveQueueSize() int {
	if c.LiveQueueSize == nil {
		return 16 // default
	}
	return *c.LiveQueueSize
}

// GetMQTTBroker returns the mqtt_broker value or the default.
func (c *TrainerConfig) GetMQTTBroker() string {
	if c.MQTTBroker == nil {
		return "" // default: publishing disabled
	}
	return *c.MQTTBroker
}

// GetMQTTTopicPrefix returns the mqtt_topic_prefix value or the default.
func (c *TrainerConfig) GetMQTTTopicPrefix() string {
	if c.MQTTTopicPrefix == nil || *c.MQTTTopicPrefix == "" {
		return "posture"
	}
	return *c.MQTTTopicPrefix
}

// GetMQTTRetain returns the mqtt_retain value or the default.
func (c *TrainerConfig) GetMQTTRetain() bool {
	if c.MQTTRetain == nil {
		return false // default: displays only want fresh codes
	}
	return *c.MQTTRetain
}
