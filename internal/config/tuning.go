package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TuningConfig holds the overridable analysis thresholds. Every field is
// optional in the JSON file; the Get* accessors supply validated defaults,
// so partial configs are safe. The merge gates and hysteresis windows are
// empirically chosen scalars; do not change defaults without re-validating
// against the recorded merge and seating scenarios.
type TuningConfig struct {
	// Identity stabilization (ghost merge) params
	MergeMaxDistancePx     *float64 `json:"merge_max_distance_px,omitempty"`
	MergeMinVelocityCosine *float64 `json:"merge_min_velocity_cosine,omitempty"`
	MergeMaxColorDistance  *float64 `json:"merge_max_color_distance,omitempty"`
	GhostTTLSeconds        *float64 `json:"ghost_ttl_seconds,omitempty"`

	// Occupancy session params
	StayThresholdSeconds *float64 `json:"stay_threshold_seconds,omitempty"`
	PatienceSeconds      *float64 `json:"patience_seconds,omitempty"`

	// Spatial accumulator params
	HeatRadiusPx *int `json:"heat_radius_px,omitempty"`

	// Feed params
	AssumedFPS *float64 `json:"assumed_fps,omitempty"`
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have
// a .json extension and stay under the size cap.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("tuning file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat tuning file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("tuning file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}

	cfg := &TuningConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tuning JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning config: %w", err)
	}
	return cfg, nil
}

// Validate checks that any supplied values are usable.
func (c *TuningConfig) Validate() error {
	if c.MergeMaxDistancePx != nil && *c.MergeMaxDistancePx <= 0 {
		return fmt.Errorf("merge_max_distance_px must be positive, got %f", *c.MergeMaxDistancePx)
	}
	if c.MergeMinVelocityCosine != nil && (*c.MergeMinVelocityCosine < -1 || *c.MergeMinVelocityCosine > 1) {
		return fmt.Errorf("merge_min_velocity_cosine must be in [-1, 1], got %f", *c.MergeMinVelocityCosine)
	}
	if c.MergeMaxColorDistance != nil && *c.MergeMaxColorDistance < 0 {
		return fmt.Errorf("merge_max_color_distance must be non-negative, got %f", *c.MergeMaxColorDistance)
	}
	if c.GhostTTLSeconds != nil && *c.GhostTTLSeconds <= 0 {
		return fmt.Errorf("ghost_ttl_seconds must be positive, got %f", *c.GhostTTLSeconds)
	}
	if c.StayThresholdSeconds != nil && *c.StayThresholdSeconds < 0 {
		return fmt.Errorf("stay_threshold_seconds must be non-negative, got %f", *c.StayThresholdSeconds)
	}
	if c.PatienceSeconds != nil && *c.PatienceSeconds < 0 {
		return fmt.Errorf("patience_seconds must be non-negative, got %f", *c.PatienceSeconds)
	}
	if c.HeatRadiusPx != nil && *c.HeatRadiusPx <= 0 {
		return fmt.Errorf("heat_radius_px must be positive, got %d", *c.HeatRadiusPx)
	}
	if c.AssumedFPS != nil && *c.AssumedFPS <= 0 {
		return fmt.Errorf("assumed_fps must be positive, got %f", *c.AssumedFPS)
	}
	return nil
}

// GetMergeMaxDistancePx returns the spatial merge gate or the default.
func (c *TuningConfig) GetMergeMaxDistancePx() float64 {
	if c.MergeMaxDistancePx == nil {
		return 60.0
	}
	return *c.MergeMaxDistancePx
}

// GetMergeMinVelocityCosine returns the motion merge gate or the default.
func (c *TuningConfig) GetMergeMinVelocityCosine() float64 {
	if c.MergeMinVelocityCosine == nil {
		return 0.5
	}
	return *c.MergeMinVelocityCosine
}

// GetMergeMaxColorDistance returns the appearance merge gate or the default.
func (c *TuningConfig) GetMergeMaxColorDistance() float64 {
	if c.MergeMaxColorDistance == nil {
		return 50.0
	}
	return *c.MergeMaxColorDistance
}

// GetGhostTTLSeconds returns the ghost retirement deadline or the default.
func (c *TuningConfig) GetGhostTTLSeconds() float64 {
	if c.GhostTTLSeconds == nil {
		return 5.0
	}
	return *c.GhostTTLSeconds
}

// GetStayThresholdSeconds returns the session confirm threshold or the default.
func (c *TuningConfig) GetStayThresholdSeconds() float64 {
	if c.StayThresholdSeconds == nil {
		return 4.0
	}
	return *c.StayThresholdSeconds
}

// GetPatienceSeconds returns the session patience window or the default.
func (c *TuningConfig) GetPatienceSeconds() float64 {
	if c.PatienceSeconds == nil {
		return 5.0
	}
	return *c.PatienceSeconds
}

// GetHeatRadiusPx returns the heat disc radius or the default.
func (c *TuningConfig) GetHeatRadiusPx() int {
	if c.HeatRadiusPx == nil {
		return 30
	}
	return *c.HeatRadiusPx
}

// GetAssumedFPS returns the fallback frame rate used when the detection feed
// carries no timestamps.
func (c *TuningConfig) GetAssumedFPS() float64 {
	if c.AssumedFPS == nil {
		return 30.0
	}
	return *c.AssumedFPS
}
