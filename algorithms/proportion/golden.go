package proportion

import (
	"math"

	"github.com/RyanBlaney/sonido-aureo/algorithms/common"
	"github.com/RyanBlaney/sonido-aureo/algorithms/temporal"
)

// Phi is the golden ratio
const Phi = 1.61803398875

// MaxScore caps the proximity score
const MaxScore = 100.0

// GoldenPoints returns the two golden-ratio division points of a track,
// duration/Phi and its complement, in ascending order.
func GoldenPoints(duration float64) [2]float64 {
	mainPoint := duration / Phi
	secondaryPoint := duration - mainPoint
	if mainPoint > secondaryPoint {
		return [2]float64{secondaryPoint, mainPoint}
	}
	return [2]float64{mainPoint, secondaryPoint}
}

// DistanceToNearest returns the absolute time distance from t to the closest golden point
func DistanceToNearest(t float64, points [2]float64) float64 {
	return math.Min(math.Abs(t-points[0]), math.Abs(t-points[1]))
}

// ProximityScore measures how far the peaks sit from the golden points:
// the mean of each peak's nearest-point distance as a fraction of duration,
// times 100, capped at MaxScore. Lower means better alignment.
//
// With no peaks there is no misalignment to measure and the score is 0.
// A non-positive duration also yields 0.
func ProximityScore(peaks []temporal.Chunk, points [2]float64, duration float64) float64 {
	if len(peaks) == 0 || duration <= 0 {
		return 0
	}

	distances := make([]float64, len(peaks))
	for i, peak := range peaks {
		distances[i] = DistanceToNearest(peak.Time, points) / duration
	}

	score := common.Sum(distances) / float64(len(peaks)) * 100
	return common.Clamp(score, 0, MaxScore)
}
