package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/youpy/go-wav"

	"github.com/RyanBlaney/sonido-aureo/logging"
)

// wavReadChunk is the number of sample frames pulled from the reader per call
const wavReadChunk = 4096

// ErrUnsupportedWAV marks a well-formed WAV whose sample layout go-wav cannot
// decode: more than two channels, or a bit depth it would misread. It wraps ErrDecode.
var ErrUnsupportedWAV = fmt.Errorf("%w: unsupported WAV layout", ErrDecode)

// WAVDecoder reads RIFF/WAVE files natively, without ffmpeg.
// go-wav holds at most two channels per frame and reads float data as 32-bit,
// so other layouts are handed to the fallback source when one is set.
type WAVDecoder struct {
	fallback Source
}

// NewWAVDecoder creates a WAV decoder without a fallback
func NewWAVDecoder() *WAVDecoder {
	return &WAVDecoder{}
}

// NewWAVDecoderWithFallback creates a WAV decoder that passes files with an
// unsupported layout to fallback
func NewWAVDecoderWithFallback(fallback Source) *WAVDecoder {
	return &WAVDecoder{fallback: fallback}
}

// Decode implements Source
func (w *WAVDecoder) Decode(ctx context.Context, path string) (*AudioData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrDecode, path, err)
	}

	audio, err := w.DecodeBytes(ctx, filepath.Base(path), data)
	if errors.Is(err, ErrUnsupportedWAV) && w.fallback != nil {
		logging.WithFields(logging.Fields{
			"component": "wav_decoder",
			"function":  "Decode",
			"path":      path,
		}).Debug("WAV layout not supported natively, using fallback decoder", logging.Fields{
			"reason": err.Error(),
		})
		return w.fallback.Decode(ctx, path)
	}
	return audio, err
}

// nativeLayout reports whether go-wav decodes this layout correctly.
// 8-bit PCM is unsigned on disk and go-wav does not re-center it.
func nativeLayout(format *wav.WavFormat) error {
	if format.NumChannels > 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedWAV, format.NumChannels)
	}
	switch format.AudioFormat {
	case wav.AudioFormatPCM:
		switch format.BitsPerSample {
		case 16, 24, 32:
			return nil
		}
	case wav.AudioFormatIEEEFloat:
		if format.BitsPerSample == 32 {
			return nil
		}
	}
	return fmt.Errorf("%w: format tag %d with %d bits per sample",
		ErrUnsupportedWAV, format.AudioFormat, format.BitsPerSample)
}

// DecodeBytes decodes an in-memory WAV file
func (w *WAVDecoder) DecodeBytes(ctx context.Context, name string, data []byte) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "wav_decoder",
		"function":  "DecodeBytes",
		"name":      name,
		"data_size": len(data),
	})

	reader := wav.NewReader(bytes.NewReader(data))

	format, err := reader.Format()
	if err != nil {
		logger.Error(err, "Failed to read WAV format chunk")
		return nil, fmt.Errorf("%w: invalid WAV header: %v", ErrDecode, err)
	}

	if format.SampleRate == 0 {
		return nil, fmt.Errorf("%w: WAV sample rate is zero", ErrDecode)
	}

	channels := int(format.NumChannels)
	if channels <= 0 {
		return nil, fmt.Errorf("%w: invalid WAV channel count: %d", ErrDecode, channels)
	}
	if err := nativeLayout(format); err != nil {
		logger.Debug("WAV layout rejected", logging.Fields{"reason": err.Error()})
		return nil, err
	}
	if int(format.BlockAlign) != channels*int(format.BitsPerSample)/8 {
		return nil, fmt.Errorf("%w: WAV block align %d does not match %d channels of %d bits",
			ErrDecode, format.BlockAlign, channels, format.BitsPerSample)
	}

	logger.Debug("WAV format detected", logging.Fields{
		"sample_rate":     format.SampleRate,
		"channels":        format.NumChannels,
		"bits_per_sample": format.BitsPerSample,
		"audio_format":    format.AudioFormat,
	})

	var pcm []float64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		samples, err := reader.ReadSamples(wavReadChunk)
		for _, sample := range samples {
			for ch := range channels {
				pcm = append(pcm, reader.FloatValue(sample, uint(ch)))
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Error(err, "Failed to read WAV samples")
			return nil, fmt.Errorf("%w: read WAV samples: %v", ErrDecode, err)
		}
	}

	frames := len(pcm) / channels
	sampleRate := int(format.SampleRate)

	logger.Debug("WAV decode completed", logging.Fields{
		"frames": frames,
	})

	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second)),
		Name:       name,
		Codec:      "pcm",
		Timestamp:  time.Now(),
	}, nil
}
