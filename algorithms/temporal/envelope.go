package temporal

import (
	"github.com/RyanBlaney/sonido-aureo/algorithms/common"
)

// Default curve lengths requested by the chart renderers
const (
	DefaultEnergyProfileSize = 800
	DefaultWaveformSize      = 1000
)

// waveformStrideDivisor bounds the per-block scan to roughly ten samples
const waveformStrideDivisor = 10

// MinMax is the lowest and highest amplitude seen in one waveform block
type MinMax struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Envelope builds fixed-length visualization curves from raw samples
type Envelope struct {
	// No state needed - stateless calculation
}

// NewEnvelope creates a new envelope extractor
func NewEnvelope() *Envelope {
	return &Envelope{}
}

// ComputeEnergyProfile splits signal into n blocks of floor(len/n) samples and
// returns the mean absolute amplitude of each. Samples past n*blockSize are dropped.
// A signal shorter than n yields n zeros.
func (e *Envelope) ComputeEnergyProfile(signal []float64, n int) []float64 {
	if len(signal) == 0 || n <= 0 {
		return []float64{}
	}

	blockSize := len(signal) / n
	profile := make([]float64, n)
	if blockSize == 0 {
		return profile
	}

	for i := range n {
		start := i * blockSize
		profile[i] = common.MeanAbs(signal[start : start+blockSize])
	}

	return profile
}

// ComputeWaveform splits signal into m blocks of floor(len/m) samples and
// returns the min/max of every ceil(blockSize/10)-th sample in each block.
// Both bounds start at zero, so a block never reports min > 0 or max < 0.
// Samples between strides are not inspected.
func (e *Envelope) ComputeWaveform(signal []float64, m int) []MinMax {
	if len(signal) == 0 || m <= 0 {
		return []MinMax{}
	}

	blockSize := len(signal) / m
	waveform := make([]MinMax, m)
	if blockSize == 0 {
		return waveform
	}

	step := (blockSize + waveformStrideDivisor - 1) / waveformStrideDivisor

	for i := range m {
		start := i * blockSize
		var lo, hi float64
		for j := 0; j < blockSize; j += step {
			val := signal[start+j]
			if val < lo {
				lo = val
			}
			if val > hi {
				hi = val
			}
		}
		waveform[i] = MinMax{Min: lo, Max: hi}
	}

	return waveform
}
