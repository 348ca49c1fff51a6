package common

import (
	"math"
	"testing"
)

func TestReductions(t *testing.T) {
	for _, trial := range []struct {
		name    string
		data    []float64
		mean    float64
		meanAbs float64
		rms     float64
	}{
		{"empty", nil, 0, 0, 0},
		{"constant", []float64{0.5, 0.5, 0.5, 0.5}, 0.5, 0.5, 0.5},
		{"symmetric", []float64{-1, 1, -1, 1}, 0, 1, 1},
		{"mixed", []float64{0, 3, -4}, -1.0 / 3.0, 7.0 / 3.0, math.Sqrt(25.0 / 3.0)},
	} {
		if got := Mean(trial.data); math.Abs(got-trial.mean) > 1e-12 {
			t.Errorf("%s: Mean = %f, want %f", trial.name, got, trial.mean)
		}
		if got := MeanAbs(trial.data); math.Abs(got-trial.meanAbs) > 1e-12 {
			t.Errorf("%s: MeanAbs = %f, want %f", trial.name, got, trial.meanAbs)
		}
		if got := RMS(trial.data); math.Abs(got-trial.rms) > 1e-12 {
			t.Errorf("%s: RMS = %f, want %f", trial.name, got, trial.rms)
		}
	}
}

func TestMaxOr(t *testing.T) {
	if got := MaxOr(nil, 1); got != 1 {
		t.Errorf("MaxOr(empty) = %f, want 1", got)
	}
	if got := MaxOr([]float64{0, 0, 0}, 1); got != 1 {
		t.Errorf("MaxOr(all zero) = %f, want 1", got)
	}
	if got := MaxOr([]float64{0.1, 0.7, 0.3}, 1); got != 0.7 {
		t.Errorf("MaxOr = %f, want 0.7", got)
	}
}

func TestClampAndNonFinite(t *testing.T) {
	if got := Clamp(150, 0, 100); got != 100 {
		t.Errorf("Clamp(150) = %f", got)
	}
	if got := Clamp(-1, 0, 100); got != 0 {
		t.Errorf("Clamp(-1) = %f", got)
	}
	if HasNonFinite([]float64{0, 0.5, -1}) {
		t.Errorf("finite data reported as non-finite")
	}
	if !HasNonFinite([]float64{0, math.NaN()}) || !HasNonFinite([]float64{math.Inf(-1)}) {
		t.Errorf("NaN/Inf not detected")
	}
}
