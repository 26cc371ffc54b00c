package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root configuration for the interception control loop.
// All fields are optional pointers so partial configs inherit defaults; the
// Get* accessors carry the canonical default values.
type TuningConfig struct {
	// Frame geometry
	FrameWidth  *int `json:"frame_width,omitempty"`
	FrameHeight *int `json:"frame_height,omitempty"`

	// Tracker params
	MaxDisappeared   *int     `json:"max_disappeared,omitempty"`
	MaxDistance      *float64 `json:"max_distance,omitempty"`
	FrameRate        *float64 `json:"frame_rate,omitempty"`
	ProcessNoise     *float64 `json:"process_noise,omitempty"`
	MeasurementNoise *float64 `json:"measurement_noise,omitempty"`

	// Target lock params
	RequiredLockTime *string  `json:"required_lock_time,omitempty"` // duration string like "5s"
	LockTolerance    *float64 `json:"lock_tolerance,omitempty"`

	// Mission params
	CommandCooldown *string `json:"command_cooldown,omitempty"` // duration string like "2s"

	// Escape maneuver params
	EscapeMinAltitude *float64 `json:"escape_min_altitude,omitempty"`
	EscapeMaxAltitude *float64 `json:"escape_max_altitude,omitempty"`
	EscapeSpeed       *float64 `json:"escape_speed,omitempty"`
	SafeDistance      *float64 `json:"safe_distance,omitempty"`

	// Kamikaze maneuver params
	KamikazeMinAltitude *float64 `json:"kamikaze_min_altitude,omitempty"`
	DiveAngleDeg        *float64 `json:"dive_angle_deg,omitempty"`
	ApproachSpeed       *float64 `json:"approach_speed,omitempty"`

	// No-fly-zone params
	PenaltyPointsPerSecond *float64 `json:"penalty_points_per_second,omitempty"`
	MaxViolationTime       *string  `json:"max_violation_time,omitempty"` // duration string like "30s"
	SafetyMargin           *float64 `json:"safety_margin,omitempty"`

	// Camera controller params
	TargetZoneMargin *float64 `json:"target_zone_margin,omitempty"`
	MaxPanRate       *float64 `json:"max_pan_rate,omitempty"`  // degrees/second
	MaxTiltRate      *float64 `json:"max_tilt_rate,omitempty"` // degrees/second

	// Servo actuation params
	ServoUpdateRateHz *float64 `json:"servo_update_rate_hz,omitempty"`
	ServoSmoothing    *float64 `json:"servo_smoothing,omitempty"`
	ServoSettleDelay  *string  `json:"servo_settle_delay,omitempty"` // duration string like "500ms"
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the JSON retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/<pkg>/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. This is the only
// place in the system where hard configuration failures are reported.
func (c *TuningConfig) Validate() error {
	if c.FrameWidth != nil && *c.FrameWidth <= 0 {
		return fmt.Errorf("frame_width must be positive, got %d", *c.FrameWidth)
	}
	if c.FrameHeight != nil && *c.FrameHeight <= 0 {
		return fmt.Errorf("frame_height must be positive, got %d", *c.FrameHeight)
	}
	if c.MaxDisappeared != nil && *c.MaxDisappeared < 0 {
		return fmt.Errorf("max_disappeared must be non-negative, got %d", *c.MaxDisappeared)
	}
	if c.MaxDistance != nil && *c.MaxDistance <= 0 {
		return fmt.Errorf("max_distance must be positive, got %f", *c.MaxDistance)
	}
	if c.FrameRate != nil && *c.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %f", *c.FrameRate)
	}
	if c.LockTolerance != nil && (*c.LockTolerance < 0 || *c.LockTolerance > 1) {
		return fmt.Errorf("lock_tolerance must be between 0 and 1, got %f", *c.LockTolerance)
	}
	if c.ServoSmoothing != nil && (*c.ServoSmoothing <= 0 || *c.ServoSmoothing > 1) {
		return fmt.Errorf("servo_smoothing must be in (0, 1], got %f", *c.ServoSmoothing)
	}
	if c.ServoUpdateRateHz != nil && *c.ServoUpdateRateHz <= 0 {
		return fmt.Errorf("servo_update_rate_hz must be positive, got %f", *c.ServoUpdateRateHz)
	}
	if c.MaxPanRate != nil && *c.MaxPanRate <= 0 {
		return fmt.Errorf("max_pan_rate must be positive, got %f", *c.MaxPanRate)
	}
	if c.MaxTiltRate != nil && *c.MaxTiltRate <= 0 {
		return fmt.Errorf("max_tilt_rate must be positive, got %f", *c.MaxTiltRate)
	}
	if c.PenaltyPointsPerSecond != nil && *c.PenaltyPointsPerSecond < 0 {
		return fmt.Errorf("penalty_points_per_second must be non-negative, got %f", *c.PenaltyPointsPerSecond)
	}

	// Validate duration strings can be parsed if set
	for name, v := range map[string]*string{
		"required_lock_time": c.RequiredLockTime,
		"command_cooldown":   c.CommandCooldown,
		"max_violation_time": c.MaxViolationTime,
		"servo_settle_delay": c.ServoSettleDelay,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	return nil
}

func (c *TuningConfig) duration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetFrameWidth returns the frame_width value or the default.
func (c *TuningConfig) GetFrameWidth() int {
	if c.FrameWidth == nil {
		return 1280
	}
	return *c.FrameWidth
}

// GetFrameHeight returns the frame_height value or the default.
func (c *TuningConfig) GetFrameHeight() int {
	if c.FrameHeight == nil {
		return 720
	}
	return *c.FrameHeight
}

// GetMaxDisappeared returns the max_disappeared value or the default.
func (c *TuningConfig) GetMaxDisappeared() int {
	if c.MaxDisappeared == nil {
		return 60
	}
	return *c.MaxDisappeared
}

// GetMaxDistance returns the max_distance value or the default.
func (c *TuningConfig) GetMaxDistance() float64 {
	if c.MaxDistance == nil {
		return 100.0
	}
	return *c.MaxDistance
}

// GetFrameRate returns the frame_rate value or the default.
func (c *TuningConfig) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return 30.0
	}
	return *c.FrameRate
}

// GetProcessNoise returns the process_noise value or the default.
func (c *TuningConfig) GetProcessNoise() float64 {
	if c.ProcessNoise == nil {
		return 1e-3
	}
	return *c.ProcessNoise
}

// GetMeasurementNoise returns the measurement_noise value or the default.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return 1e-4
	}
	return *c.MeasurementNoise
}

// GetRequiredLockTime parses and returns the required_lock_time as a time.Duration.
func (c *TuningConfig) GetRequiredLockTime() time.Duration {
	return c.duration(c.RequiredLockTime, 5*time.Second)
}

// GetLockTolerance returns the lock_tolerance value or the default.
func (c *TuningConfig) GetLockTolerance() float64 {
	if c.LockTolerance == nil {
		return 0.15
	}
	return *c.LockTolerance
}

// GetCommandCooldown parses and returns the command_cooldown as a time.Duration.
func (c *TuningConfig) GetCommandCooldown() time.Duration {
	return c.duration(c.CommandCooldown, 2*time.Second)
}

// GetEscapeMinAltitude returns the escape_min_altitude value or the default.
func (c *TuningConfig) GetEscapeMinAltitude() float64 {
	if c.EscapeMinAltitude == nil {
		return 50.0
	}
	return *c.EscapeMinAltitude
}

// GetEscapeMaxAltitude returns the escape_max_altitude value or the default.
func (c *TuningConfig) GetEscapeMaxAltitude() float64 {
	if c.EscapeMaxAltitude == nil {
		return 100.0
	}
	return *c.EscapeMaxAltitude
}

// GetEscapeSpeed returns the escape_speed value or the default.
func (c *TuningConfig) GetEscapeSpeed() float64 {
	if c.EscapeSpeed == nil {
		return 2.0
	}
	return *c.EscapeSpeed
}

// GetSafeDistance returns the safe_distance value or the default.
func (c *TuningConfig) GetSafeDistance() float64 {
	if c.SafeDistance == nil {
		return 30.0
	}
	return *c.SafeDistance
}

// GetKamikazeMinAltitude returns the kamikaze_min_altitude value or the default.
func (c *TuningConfig) GetKamikazeMinAltitude() float64 {
	if c.KamikazeMinAltitude == nil {
		return 20.0
	}
	return *c.KamikazeMinAltitude
}

// GetDiveAngleDeg returns the dive_angle_deg value or the default.
func (c *TuningConfig) GetDiveAngleDeg() float64 {
	if c.DiveAngleDeg == nil {
		return 45.0
	}
	return *c.DiveAngleDeg
}

// GetApproachSpeed returns the approach_speed value or the default.
func (c *TuningConfig) GetApproachSpeed() float64 {
	if c.ApproachSpeed == nil {
		return 1.0
	}
	return *c.ApproachSpeed
}

// GetPenaltyPointsPerSecond returns the penalty_points_per_second value or the default.
func (c *TuningConfig) GetPenaltyPointsPerSecond() float64 {
	if c.PenaltyPointsPerSecond == nil {
		return 5.0
	}
	return *c.PenaltyPointsPerSecond
}

// GetMaxViolationTime parses and returns the max_violation_time as a time.Duration.
func (c *TuningConfig) GetMaxViolationTime() time.Duration {
	return c.duration(c.MaxViolationTime, 30*time.Second)
}

// GetSafetyMargin returns the safety_margin value or the default.
func (c *TuningConfig) GetSafetyMargin() float64 {
	if c.SafetyMargin == nil {
		return 3.0
	}
	return *c.SafetyMargin
}

// GetTargetZoneMargin returns the target_zone_margin value or the default.
func (c *TuningConfig) GetTargetZoneMargin() float64 {
	if c.TargetZoneMargin == nil {
		return 0.1
	}
	return *c.TargetZoneMargin
}

// GetMaxPanRate returns the max_pan_rate value or the default.
func (c *TuningConfig) GetMaxPanRate() float64 {
	if c.MaxPanRate == nil {
		return 30.0
	}
	return *c.MaxPanRate
}

// GetMaxTiltRate returns the max_tilt_rate value or the default.
func (c *TuningConfig) GetMaxTiltRate() float64 {
	if c.MaxTiltRate == nil {
		return 20.0
	}
	return *c.MaxTiltRate
}

// GetServoUpdateRateHz returns the servo_update_rate_hz value or the default.
func (c *TuningConfig) GetServoUpdateRateHz() float64 {
	if c.ServoUpdateRateHz == nil {
		return 50.0
	}
	return *c.ServoUpdateRateHz
}

// GetServoSmoothing returns the servo_smoothing value or the default.
func (c *TuningConfig) GetServoSmoothing() float64 {
	if c.ServoSmoothing == nil {
		return 0.3
	}
	return *c.ServoSmoothing
}

// GetServoSettleDelay parses and returns the servo_settle_delay as a time.Duration.
func (c *TuningConfig) GetServoSettleDelay() time.Duration {
	return c.duration(c.ServoSettleDelay, 500*time.Millisecond)
}
