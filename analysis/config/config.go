package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-aureo/algorithms/temporal"
)

// MinCurveSize is the smallest curve length a renderer may request
const MinCurveSize = 2

// AnalysisConfig holds the tunables of one analysis run
type AnalysisConfig struct {
	// Visualization curve lengths
	EnergySamples   int `json:"energy_samples"`
	WaveformSamples int `json:"waveform_samples"`

	// Peak detection
	WindowSeconds   float64 `json:"window_seconds"`
	PeakCount       int     `json:"peak_count"`
	MinPeakDistance float64 `json:"min_peak_distance"` // seconds
	ThresholdFactor float64 `json:"threshold_factor"`  // multiple of the average normalized RMS

	// Run the three sample scans concurrently
	Parallel bool `json:"parallel"`
}

// DefaultAnalysisConfig returns the configuration the chart renderers expect
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		EnergySamples:   temporal.DefaultEnergyProfileSize,
		WaveformSamples: temporal.DefaultWaveformSize,
		WindowSeconds:   temporal.DefaultWindowSeconds,
		PeakCount:       temporal.DefaultPeakCount,
		MinPeakDistance: temporal.DefaultMinPeakDistance,
		ThresholdFactor: temporal.DefaultThresholdFactor,
		Parallel:        true,
	}
}

// Validate checks the configuration for values that would produce meaningless output
func (c *AnalysisConfig) Validate() error {
	if c.EnergySamples < MinCurveSize {
		return fmt.Errorf("energy_samples must be at least %d: %d", MinCurveSize, c.EnergySamples)
	}
	if c.WaveformSamples < MinCurveSize {
		return fmt.Errorf("waveform_samples must be at least %d: %d", MinCurveSize, c.WaveformSamples)
	}
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive: %v", c.WindowSeconds)
	}
	if c.PeakCount <= 0 {
		return fmt.Errorf("peak_count must be positive: %d", c.PeakCount)
	}
	if c.MinPeakDistance <= 0 {
		return fmt.Errorf("min_peak_distance must be positive: %v", c.MinPeakDistance)
	}
	if c.ThresholdFactor <= 0 {
		return fmt.Errorf("threshold_factor must be positive: %v", c.ThresholdFactor)
	}
	return nil
}

// LoadAnalysisConfig reads a JSON file over the defaults; fields missing from the file keep their default value.
// An empty path yields the defaults.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cfg := DefaultAnalysisConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse analysis config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config %s: %w", path, err)
	}

	return cfg, nil
}
