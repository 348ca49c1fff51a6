package analysis

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-aureo/algorithms/common"
	"github.com/RyanBlaney/sonido-aureo/transcode"
)

// ErrInvalidInput marks caller contract violations: bad sample rates,
// non-finite samples, curve lengths below the minimum.
var ErrInvalidInput = errors.New("invalid analysis input")

// SampleBuffer is one channel of decoded audio, read-only for the lifetime of an analysis
type SampleBuffer struct {
	name       string
	samples    []float64
	sampleRate int
}

// NewSampleBuffer validates and wraps mono samples. The slice is not copied
// and must not be modified while an analysis is running.
func NewSampleBuffer(name string, samples []float64, sampleRate int) (*SampleBuffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive: %d", ErrInvalidInput, sampleRate)
	}
	if common.HasNonFinite(samples) {
		return nil, fmt.Errorf("%w: samples contain NaN or Inf", ErrInvalidInput)
	}
	return &SampleBuffer{
		name:       name,
		samples:    samples,
		sampleRate: sampleRate,
	}, nil
}

// FromAudioData takes channel 0 of decoded audio; other channels are ignored
func FromAudioData(audio *transcode.AudioData) (*SampleBuffer, error) {
	if audio == nil {
		return nil, fmt.Errorf("%w: audio data cannot be nil", ErrInvalidInput)
	}
	samples, err := audio.Channel(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return NewSampleBuffer(audio.Name, samples, audio.SampleRate)
}

// Name is the display name carried into the result
func (b *SampleBuffer) Name() string { return b.name }

// Samples returns the underlying samples; callers must not modify them
func (b *SampleBuffer) Samples() []float64 { return b.samples }

// SampleRate in Hz
func (b *SampleBuffer) SampleRate() int { return b.sampleRate }

// Len is the number of samples
func (b *SampleBuffer) Len() int { return len(b.samples) }

// Duration in seconds, len / sampleRate
func (b *SampleBuffer) Duration() float64 {
	return float64(len(b.samples)) / float64(b.sampleRate)
}
