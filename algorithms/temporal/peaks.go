package temporal

import (
	"cmp"
	"math"
	"slices"
)

// Peak detection defaults
const (
	DefaultPeakCount       = 5
	DefaultMinPeakDistance = 5.0 // seconds
	DefaultThresholdFactor = 1.2
)

// PeakDetector picks the most prominent, temporally spread energy peaks of an RMS series
type PeakDetector struct {
	peakCount       int
	minDistance     float64
	thresholdFactor float64
}

// PeakSelection is the outcome of one detection run
type PeakSelection struct {
	// Peaks are sorted ascending by time
	Peaks []Chunk
	// Candidates is the number of local maxima above the threshold
	Candidates int
	// Backfilled counts peaks added without honoring the minimum distance
	Backfilled int
	Threshold  float64
}

// NewPeakDetector creates a detector. Non-positive arguments fall back to the defaults.
func NewPeakDetector(peakCount int, minDistance, thresholdFactor float64) *PeakDetector {
	if peakCount <= 0 {
		peakCount = DefaultPeakCount
	}
	if minDistance <= 0 {
		minDistance = DefaultMinPeakDistance
	}
	if thresholdFactor <= 0 {
		thresholdFactor = DefaultThresholdFactor
	}
	return &PeakDetector{
		peakCount:       peakCount,
		minDistance:     minDistance,
		thresholdFactor: thresholdFactor,
	}
}

// Detect selects up to peakCount peaks from a normalized RMS series.
//
// Candidates are interior chunks that are strict local maxima and exceed
// averageEnergy*thresholdFactor; the first and last chunk are never candidates.
// Candidates are ranked by energy (stable for ties) and taken greedily while
// every pair stays more than minDistance seconds apart. If that yields fewer
// than peakCount peaks, the strongest remaining candidates fill the gap
// regardless of distance.
func (pd *PeakDetector) Detect(chunks []Chunk, averageEnergy float64) PeakSelection {
	threshold := averageEnergy * pd.thresholdFactor
	selection := PeakSelection{Peaks: []Chunk{}, Threshold: threshold}

	if len(chunks) < 3 {
		return selection
	}

	var candidates []Chunk
	for i := 1; i < len(chunks)-1; i++ {
		current := chunks[i]
		if current.Energy > chunks[i-1].Energy &&
			current.Energy > chunks[i+1].Energy &&
			current.Energy > threshold {
			candidates = append(candidates, current)
		}
	}
	selection.Candidates = len(candidates)

	slices.SortStableFunc(candidates, func(a, b Chunk) int {
		return cmp.Compare(b.Energy, a.Energy)
	})

	taken := make([]bool, len(candidates))
	selectedTimes := make([]float64, 0, pd.peakCount)
	peaks := make([]Chunk, 0, pd.peakCount)

	for i, candidate := range candidates {
		if len(peaks) >= pd.peakCount {
			break
		}
		if pd.isDistinct(candidate.Time, selectedTimes) {
			peaks = append(peaks, candidate)
			selectedTimes = append(selectedTimes, candidate.Time)
			taken[i] = true
		}
	}

	for i, candidate := range candidates {
		if len(peaks) >= pd.peakCount {
			break
		}
		if !taken[i] {
			peaks = append(peaks, candidate)
			taken[i] = true
			selection.Backfilled++
		}
	}

	slices.SortStableFunc(peaks, func(a, b Chunk) int {
		return cmp.Compare(a.Time, b.Time)
	})
	selection.Peaks = peaks

	return selection
}

func (pd *PeakDetector) isDistinct(t float64, selected []float64) bool {
	for _, s := range selected {
		if math.Abs(s-t) <= pd.minDistance {
			return false
		}
	}
	return true
}
