package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-aureo/logging"
)

// ErrDecode marks every failure to turn an input into PCM: missing tools,
// unreadable or unsupported formats, inputs without an audio stream.
var ErrDecode = errors.New("audio decode failed")

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float64     `json:"-"` // interleaved samples in [-1, 1]
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	Name       string        `json:"name"`
	Codec      string        `json:"codec,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Channel returns a copy of one channel of the interleaved PCM
func (a *AudioData) Channel(index int) ([]float64, error) {
	if a.Channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", a.Channels)
	}
	if index < 0 || index >= a.Channels {
		return nil, fmt.Errorf("channel %d out of range (channels: %d)", index, a.Channels)
	}
	if a.Channels == 1 {
		out := make([]float64, len(a.PCM))
		copy(out, a.PCM)
		return out, nil
	}

	frames := len(a.PCM) / a.Channels
	out := make([]float64, frames)
	for i := range frames {
		out[i] = a.PCM[i*a.Channels+index]
	}
	return out, nil
}

// Source turns a file into decoded audio
type Source interface {
	Decode(ctx context.Context, path string) (*AudioData, error)
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// 0 keeps the input's sample rate / channel layout
	TargetSampleRate int           `json:"target_sample_rate"`
	TargetChannels   int           `json:"target_channels"`
	MaxDuration      time.Duration `json:"max_duration"`
	ResampleQuality  string        `json:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout"`
	// Loudness normalization rescales the whole track before analysis
	EnableNormalization bool    `json:"enable_normalization"`
	NormalizationMethod string  `json:"normalization_method"` // "loudnorm", "dynaudnorm"
	TargetLUFS          float64 `json:"target_lufs"`
	TargetPeak          float64 `json:"target_peak"`
	LoudnessRange       float64 `json:"loudness_range"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate:    0,
		TargetChannels:      0,
		MaxDuration:         0, // No limit
		ResampleQuality:     "medium",
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		Timeout:             2 * time.Minute,
		EnableNormalization: false,
		NormalizationMethod: "loudnorm",
		TargetLUFS:          -16.0,
		TargetPeak:          -1.0,
		LoudnessRange:       8.0,
	}
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// Decoder handles audio decoding using FFmpeg
type Decoder struct {
	config *DecoderConfig
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// Decode implements Source
func (d *Decoder) Decode(ctx context.Context, path string) (*AudioData, error) {
	return d.DecodeFile(ctx, path)
}

// DecodeFile decodes an audio file and returns PCM data
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	logger.Debug("Starting audio file decode")

	metadata, err := d.probe(ctx, filename, nil)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
		"input_bitrate":     metadata.Bitrate,
	})

	output, err := d.runFFmpeg(ctx, filename, nil, metadata, logger)
	if err != nil {
		return nil, err
	}

	audio, err := d.processFFmpegOutput(output, metadata, logger)
	if err != nil {
		return nil, err
	}
	audio.Name = filepath.Base(filename)
	return audio, nil
}

// DecodeBytes decodes audio held in memory
func (d *Decoder) DecodeBytes(ctx context.Context, name string, data []byte) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeBytes",
		"data_size": len(data),
	})

	logger.Debug("Starting audio bytes decode")

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio data", ErrDecode)
	}

	metadata, err := d.probe(ctx, "pipe:0", data)
	if err != nil {
		logger.Error(err, "Failed to probe audio metadata")
		return nil, err
	}

	output, err := d.runFFmpeg(ctx, "pipe:0", data, metadata, logger)
	if err != nil {
		return nil, err
	}

	audio, err := d.processFFmpegOutput(output, metadata, logger)
	if err != nil {
		return nil, err
	}
	audio.Name = name
	return audio, nil
}

// DecodeReader decodes audio from an io.Reader
func (d *Decoder) DecodeReader(ctx context.Context, name string, reader io.Reader) (*AudioData, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		logging.WithFields(logging.Fields{
			"component": "audio_decoder",
			"function":  "DecodeReader",
		}).Error(err, "Failed to read data from reader")
		return nil, fmt.Errorf("%w: read input: %v", ErrDecode, err)
	}

	return d.DecodeBytes(ctx, name, data)
}

// withTimeout bounds ctx by the configured timeout
func (d *Decoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// probe runs ffprobe on a file, or on stdin when data is non-nil
func (d *Decoder) probe(ctx context.Context, input string, data []byte) (*AudioMetadata, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0", // First audio stream only
		input,
	}

	cmd := exec.CommandContext(ctx, d.config.FFprobePath, args...)
	if data != nil {
		cmd.Stdin = bytes.NewReader(data)
	}

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("%w: ffprobe failed: %v, stderr: %s", ErrDecode, err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("%w: ffprobe failed: %v", ErrDecode, err)
	}

	return parseFFprobeOutput(output)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("%w: failed to parse ffprobe output: %v", ErrDecode, err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("%w: format not supported (no audio streams found)", ErrDecode)
	}

	stream := probe.Streams[0]

	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("%w: stream is not audio type: %s", ErrDecode, stream.CodecType)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %q", ErrDecode, stream.SampleRate)
	}

	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}

	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("%w: invalid channel count: %d", ErrDecode, stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// outputLayout resolves the sample rate and channel count ffmpeg should emit
func (d *Decoder) outputLayout(metadata *AudioMetadata) (sampleRate, channels int) {
	sampleRate = d.config.TargetSampleRate
	if sampleRate <= 0 {
		sampleRate = metadata.SampleRate
	}
	channels = d.config.TargetChannels
	if channels <= 0 {
		channels = metadata.Channels
	}
	return sampleRate, channels
}

func (d *Decoder) runFFmpeg(ctx context.Context, input string, data []byte, metadata *AudioMetadata, logger logging.Logger) ([]byte, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	args := d.buildFFmpegArgs(metadata)
	args = append([]string{"-i", input}, args...)
	args = append(args, "pipe:1")

	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	if data != nil {
		cmd.Stdin = bytes.NewReader(data)
	}

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "FFmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
		}
		return nil, fmt.Errorf("%w: ffmpeg decode failed: %v", ErrDecode, err)
	}

	return output, nil
}

// buildFFmpegArgs builds the ffmpeg arguments based on configuration and metadata
func (d *Decoder) buildFFmpegArgs(metadata *AudioMetadata) []string {
	sampleRate, channels := d.outputLayout(metadata)

	args := []string{
		"-vn",
		"-f", "f64le", // Output raw float64 little-endian
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
	}

	var filters []string
	if metadata.SampleRate != sampleRate {
		switch d.config.ResampleQuality {
		case "fast":
			filters = append(filters, "aresample=resampler=soxr:precision=16")
		case "medium":
			filters = append(filters, "aresample=resampler=soxr:precision=20")
		case "high":
			filters = append(filters, "aresample=resampler=soxr:precision=28")
		}
	}

	if d.config.EnableNormalization {
		if normFilter := d.buildNormalizationFilter(); normFilter != "" {
			filters = append(filters, normFilter)
		}
	}

	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}

	args = append(args, "-v", "error")

	return args
}

// buildNormalizationFilter builds the ffmpeg filter for the configured normalization method
func (d *Decoder) buildNormalizationFilter() string {
	switch d.config.NormalizationMethod {
	case "loudnorm":
		// EBU R128 loudness normalization
		return fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f",
			d.config.TargetLUFS,
			d.config.TargetPeak,
			d.config.LoudnessRange)
	case "dynaudnorm":
		return "dynaudnorm=p=0.95:m=10:s=12"
	default:
		return ""
	}
}

// processFFmpegOutput processes the raw output from ffmpeg
func (d *Decoder) processFFmpegOutput(output []byte, metadata *AudioMetadata, logger logging.Logger) (*AudioData, error) {
	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no audio samples decoded", ErrDecode)
	}

	sampleRate, channels := d.outputLayout(metadata)
	frames := len(samples) / channels
	duration := time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))

	logger.Debug("FFmpeg decode completed successfully", logging.Fields{
		"input_codec":        metadata.Codec,
		"input_duration":     metadata.Duration,
		"output_samples":     len(samples),
		"output_sample_rate": sampleRate,
		"output_channels":    channels,
		"output_duration":    duration.Seconds(),
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   duration,
		Codec:      metadata.Codec,
		Timestamp:  time.Now(),
	}, nil
}

// bytesToFloat64 converts raw float64 little-endian bytes to []float64
func bytesToFloat64(data []byte) []float64 {
	if len(data)%8 != 0 {
		data = data[:len(data)-(len(data)%8)]
	}

	if len(data) == 0 {
		return nil
	}

	sampleCount := len(data) / 8
	samples := make([]float64, sampleCount)

	for i := range sampleCount {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}

	return samples
}

// ValidateConfig validates the decoder configuration and checks that the tools exist
func (d *Decoder) ValidateConfig() error {
	if d.config.TargetSampleRate < 0 {
		return fmt.Errorf("target sample rate must not be negative: %d", d.config.TargetSampleRate)
	}

	if d.config.TargetChannels < 0 || d.config.TargetChannels > 8 {
		return fmt.Errorf("target channels must be between 0 and 8: %d", d.config.TargetChannels)
	}

	if d.config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %v", d.config.Timeout)
	}

	if err := d.checkFFmpegAvailability(); err != nil {
		return fmt.Errorf("%w: ffmpeg not available: %v", ErrDecode, err)
	}

	return nil
}

// checkFFmpegAvailability checks if ffmpeg and ffprobe are available
func (d *Decoder) checkFFmpegAvailability() error {
	if _, err := exec.LookPath(d.config.FFmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", d.config.FFmpegPath, err)
	}

	if _, err := exec.LookPath(d.config.FFprobePath); err != nil {
		return fmt.Errorf("ffprobe not found at %s: %w", d.config.FFprobePath, err)
	}

	return nil
}
