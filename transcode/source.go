package transcode

import (
	"path/filepath"
	"slices"
	"strings"
)

// OpenSource picks the decoder for a path: WAV files are read natively,
// falling back to ffmpeg for layouts go-wav cannot decode; everything else
// goes through ffmpeg.
func OpenSource(path string, config *DecoderConfig) Source {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		if config == nil || (config.TargetSampleRate == 0 && config.TargetChannels == 0 && !config.EnableNormalization) {
			return NewWAVDecoderWithFallback(NewDecoder(config))
		}
	}
	return NewDecoder(config)
}

// SupportedFormats lists the audio container extensions accepted for analysis
func SupportedFormats() []string {
	return []string{
		"wav", "aac", "mp3", "flac", "ogg", "opus", "m4a", "wma",
		"webm", "mp4", "mov", "mkv",
	}
}

// IsSupported reports whether path has one of the SupportedFormats extensions
func IsSupported(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return ext == "wave" || slices.Contains(SupportedFormats(), ext)
}
