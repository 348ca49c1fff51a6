package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-aureo/algorithms/common"
)

// DefaultWindowSeconds is the RMS window length used for peak detection (100ms)
const DefaultWindowSeconds = 0.1

// Chunk is the RMS energy of one window, stamped with the window's start time in seconds
type Chunk struct {
	Time   float64 `json:"time"`
	Energy float64 `json:"energy"`
}

// RMSSeries is a chronologically ordered, max-normalized RMS series
type RMSSeries struct {
	Chunks []Chunk
	// MaxEnergy is the un-normalized maximum RMS (1 when the series is empty or silent)
	MaxEnergy float64
	// AverageEnergy is the mean un-normalized RMS divided by MaxEnergy, 0 with no chunks
	AverageEnergy float64
}

// Energy computes windowed energy features
type Energy struct {
	sampleRate    int
	windowSeconds float64
}

// NewEnergy creates a new energy calculator
func NewEnergy(sampleRate int, windowSeconds float64) *Energy {
	if windowSeconds <= 0 {
		windowSeconds = DefaultWindowSeconds
	}
	return &Energy{
		sampleRate:    sampleRate,
		windowSeconds: windowSeconds,
	}
}

// WindowSize returns the window length in samples, floor(sampleRate * windowSeconds)
func (e *Energy) WindowSize() int {
	return int(math.Floor(float64(e.sampleRate) * e.windowSeconds))
}

// ComputeWindowedRMS splits signal into consecutive non-overlapping windows
// (the last one may be shorter) and returns their RMS normalized by the series maximum.
func (e *Energy) ComputeWindowedRMS(signal []float64) RMSSeries {
	windowSize := e.WindowSize()
	if len(signal) == 0 || windowSize <= 0 {
		return RMSSeries{Chunks: []Chunk{}, MaxEnergy: 1}
	}

	numChunks := (len(signal) + windowSize - 1) / windowSize
	chunks := make([]Chunk, 0, numChunks)
	energies := make([]float64, 0, numChunks)

	for start := 0; start < len(signal); start += windowSize {
		end := min(start+windowSize, len(signal))
		rms := common.RMS(signal[start:end])

		energies = append(energies, rms)
		chunks = append(chunks, Chunk{
			Time:   float64(start) / float64(e.sampleRate),
			Energy: rms,
		})
	}

	maxEnergy := common.MaxOr(energies, 1)
	average := common.Mean(energies) / maxEnergy

	for i := range chunks {
		chunks[i].Energy /= maxEnergy
	}

	return RMSSeries{
		Chunks:        chunks,
		MaxEnergy:     maxEnergy,
		AverageEnergy: average,
	}
}
