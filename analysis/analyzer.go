package analysis

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-aureo/algorithms/proportion"
	"github.com/RyanBlaney/sonido-aureo/algorithms/temporal"
	"github.com/RyanBlaney/sonido-aureo/analysis/config"
	"github.com/RyanBlaney/sonido-aureo/logging"
)

// Analyzer runs the golden-ratio pipeline. It holds only configuration, so one
// Analyzer may serve any number of concurrent Analyze calls.
type Analyzer struct {
	config *config.AnalysisConfig
	logger logging.Logger
}

// NewAnalyzer creates an analyzer; a nil config means DefaultAnalysisConfig
func NewAnalyzer(cfg *config.AnalysisConfig) (*Analyzer, error) {
	if cfg == nil {
		cfg = config.DefaultAnalysisConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// copy so later changes by the caller do not leak into running analyses
	own := *cfg

	return &Analyzer{
		config: &own,
		logger: logging.WithFields(logging.Fields{
			"component": "golden_analyzer",
		}),
	}, nil
}

// Config returns a copy of the analyzer configuration
func (a *Analyzer) Config() config.AnalysisConfig {
	return *a.config
}

// Analyze computes the golden points, energy peaks, proximity score and the
// visualization curves of buf. A cancelled ctx aborts the run and no partial
// result is returned.
func (a *Analyzer) Analyze(ctx context.Context, buf *SampleBuffer) (*Result, error) {
	if buf == nil {
		return nil, fmt.Errorf("%w: sample buffer cannot be nil", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := a.logger.WithContext(ctx).WithFields(logging.Fields{
		"function":    "Analyze",
		"file_name":   buf.Name(),
		"sample_rate": buf.SampleRate(),
		"samples":     buf.Len(),
	})

	energy := temporal.NewEnergy(buf.SampleRate(), a.config.WindowSeconds)
	if energy.WindowSize() <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d too low for a %.3fs RMS window",
			ErrInvalidInput, buf.SampleRate(), a.config.WindowSeconds)
	}

	logger.Debug("Starting golden ratio analysis", logging.Fields{
		"duration":    buf.Duration(),
		"window_size": energy.WindowSize(),
		"parallel":    a.config.Parallel,
	})

	start := time.Now()

	var (
		rms          temporal.RMSSeries
		energyData   []float64
		waveformData []temporal.MinMax
	)

	envelope := temporal.NewEnvelope()
	scans := []func() error{
		func() error {
			rms = energy.ComputeWindowedRMS(buf.Samples())
			return nil
		},
		func() error {
			energyData = envelope.ComputeEnergyProfile(buf.Samples(), a.config.EnergySamples)
			return nil
		},
		func() error {
			waveformData = envelope.ComputeWaveform(buf.Samples(), a.config.WaveformSamples)
			return nil
		},
	}

	if err := a.runScans(ctx, scans); err != nil {
		logger.Error(err, "Sample scans aborted")
		return nil, err
	}

	detector := temporal.NewPeakDetector(a.config.PeakCount, a.config.MinPeakDistance, a.config.ThresholdFactor)
	selection := detector.Detect(rms.Chunks, rms.AverageEnergy)

	duration := buf.Duration()
	goldenPoints := proportion.GoldenPoints(duration)
	score := proportion.ProximityScore(selection.Peaks, goldenPoints, duration)

	if len(selection.Peaks) == 0 {
		logger.Debug("No energy peaks detected, proximity score defaults to 0", logging.Fields{
			"rms_chunks": len(rms.Chunks),
		})
	}

	logger.Debug("Golden ratio analysis completed", logging.Fields{
		"rms_chunks":      len(rms.Chunks),
		"average_energy":  rms.AverageEnergy,
		"threshold":       selection.Threshold,
		"candidates":      selection.Candidates,
		"peaks":           len(selection.Peaks),
		"backfilled":      selection.Backfilled,
		"proximity_score": score,
		"elapsed":         time.Since(start).Seconds(),
	})

	return &Result{
		FileName:       buf.Name(),
		Duration:       duration,
		GoldenPoints:   goldenPoints,
		Peaks:          selection.Peaks,
		ProximityScore: score,
		EnergyData:     energyData,
		WaveformData:   waveformData,
	}, nil
}

// runScans executes the independent sample scans, concurrently when configured.
// The scans only read the buffer and write their own result variable.
func (a *Analyzer) runScans(ctx context.Context, scans []func() error) error {
	if !a.config.Parallel {
		for _, scan := range scans {
			if err := scan(); err != nil {
				return err
			}
		}
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, scan := range scans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return scan()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// AnalyzeSamples is a convenience wrapper for callers holding raw mono samples
func (a *Analyzer) AnalyzeSamples(ctx context.Context, name string, samples []float64, sampleRate int) (*Result, error) {
	buf, err := NewSampleBuffer(name, samples, sampleRate)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, buf)
}
