package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/youpy/go-wav"
)

func writeWAV(t *testing.T, left, right []float64, channels uint16, rate uint32) []byte {
	t.Helper()
	samples := make([]wav.Sample, len(left))
	for i := range left {
		l := int(left[i] * math.MaxInt16)
		r := l
		if right != nil {
			r = int(right[i] * math.MaxInt16)
		}
		samples[i] = wav.Sample{Values: [2]int{l, r}}
	}

	buf := &bytes.Buffer{}
	writer := wav.NewWriter(buf, uint32(len(samples)), channels, rate, 16)
	if err := writer.WriteSamples(samples); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return buf.Bytes()
}

func TestWAVDecoderMono(t *testing.T) {
	left := make([]float64, 10000)
	for i := range left {
		left[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/8000)
	}
	data := writeWAV(t, left, nil, 1, 8000)

	audio, err := NewWAVDecoder().DecodeBytes(context.Background(), "tone.wav", data)
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if audio.SampleRate != 8000 || audio.Channels != 1 {
		t.Fatalf("layout = %d Hz / %d ch", audio.SampleRate, audio.Channels)
	}
	if len(audio.PCM) != len(left) {
		t.Fatalf("decoded %d samples, want %d", len(audio.PCM), len(left))
	}
	if audio.Duration != 1250*time.Millisecond {
		t.Errorf("duration = %v, want 1.25s", audio.Duration)
	}
	for i := range left {
		if math.Abs(audio.PCM[i]-left[i]) > 1e-3 {
			t.Fatalf("sample %d = %f, want %f", i, audio.PCM[i], left[i])
		}
	}
}

func TestWAVDecoderStereoChannelZero(t *testing.T) {
	left := []float64{0.25, 0.5, -0.25, -0.5}
	right := []float64{-0.9, -0.9, 0.9, 0.9}
	data := writeWAV(t, left, right, 2, 44100)

	audio, err := NewWAVDecoder().DecodeBytes(context.Background(), "stereo.wav", data)
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	ch0, err := audio.Channel(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ch0) != len(left) {
		t.Fatalf("channel 0 has %d samples, want %d", len(ch0), len(left))
	}
	for i := range left {
		if math.Abs(ch0[i]-left[i]) > 1e-3 {
			t.Errorf("ch0[%d] = %f, want %f", i, ch0[i], left[i])
		}
	}
}

func TestWAVDecoderRejectsGarbage(t *testing.T) {
	_, err := NewWAVDecoder().DecodeBytes(context.Background(), "noise.wav", []byte("definitely not a riff file"))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

func TestWAVDecoderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Clip.WAV")
	if err := os.WriteFile(path, writeWAV(t, []float64{0.1, 0.2, 0.3}, nil, 1, 1000), 0o644); err != nil {
		t.Fatal(err)
	}

	src := OpenSource(path, nil)
	if _, ok := src.(*WAVDecoder); !ok {
		t.Fatalf("OpenSource(.WAV) = %T, want *WAVDecoder", src)
	}

	audio, err := src.Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if audio.Name != "Clip.WAV" || len(audio.PCM) != 3 {
		t.Errorf("decoded %q with %d samples", audio.Name, len(audio.PCM))
	}

	if _, err := src.Decode(context.Background(), filepath.Join(t.TempDir(), "missing.wav")); !errors.Is(err, ErrDecode) {
		t.Errorf("missing file err = %v, want ErrDecode", err)
	}
}

func TestOpenSourceSelection(t *testing.T) {
	if _, ok := OpenSource("song.mp3", nil).(*Decoder); !ok {
		t.Errorf("mp3 should use the ffmpeg decoder")
	}

	cfg := DefaultDecoderConfig()
	cfg.TargetSampleRate = 22050
	if _, ok := OpenSource("song.wav", cfg).(*Decoder); !ok {
		t.Errorf("resampled wav should use the ffmpeg decoder")
	}

	wavSrc, ok := OpenSource("song.wav", nil).(*WAVDecoder)
	if !ok {
		t.Fatalf("wav should use the native decoder")
	}
	if _, ok := wavSrc.fallback.(*Decoder); !ok {
		t.Errorf("native wav decoder should fall back to ffmpeg, got %T", wavSrc.fallback)
	}

	if !IsSupported("a/b/track.FLAC") || !IsSupported("x.wave") || IsSupported("notes.txt") {
		t.Errorf("IsSupported mismatch")
	}
}

// rawWAV builds a RIFF/WAVE file from a fmt description and an encoded data chunk
func rawWAV(audioFormat, channels uint16, rate uint32, bits uint16, data []byte) []byte {
	blockAlign := channels * bits / 8
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(4+8+16+8+len(data)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, audioFormat)
	binary.Write(&b, binary.LittleEndian, channels)
	binary.Write(&b, binary.LittleEndian, rate)
	binary.Write(&b, binary.LittleEndian, rate*uint32(blockAlign))
	binary.Write(&b, binary.LittleEndian, blockAlign)
	binary.Write(&b, binary.LittleEndian, bits)
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}

func sineFloat64LE(frames int, amplitude float64) []byte {
	data := make([]byte, frames*8)
	for i := range frames {
		v := amplitude * math.Sin(2*math.Pi*float64(i)/16)
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
	return data
}

func TestWAVDecoderRejectsUnsupportedLayouts(t *testing.T) {
	for _, trial := range []struct {
		name string
		data []byte
	}{
		{"six channels", rawWAV(1, 6, 8000, 16, make([]byte, 800*6*2))},
		{"three channels", rawWAV(1, 3, 8000, 16, make([]byte, 100*3*2))},
		{"64-bit float", rawWAV(3, 1, 8000, 64, sineFloat64LE(160, 0.5))},
		{"8-bit pcm", rawWAV(1, 1, 8000, 8, bytes.Repeat([]byte{128}, 100))},
		{"a-law", rawWAV(6, 1, 8000, 8, make([]byte, 100))},
	} {
		audio, err := NewWAVDecoder().DecodeBytes(context.Background(), trial.name, trial.data)
		if !errors.Is(err, ErrUnsupportedWAV) || !errors.Is(err, ErrDecode) {
			t.Errorf("%s: err = %v, want ErrUnsupportedWAV wrapping ErrDecode", trial.name, err)
		}
		if audio != nil {
			t.Errorf("%s: got audio for an unsupported layout", trial.name)
		}
	}
}

func TestWAVDecoderRejectsBadBlockAlign(t *testing.T) {
	data := rawWAV(1, 1, 8000, 16, make([]byte, 200))
	// block align sits after the format tag, channels, rate and byte rate
	binary.LittleEndian.PutUint16(data[32:], 0)

	_, err := NewWAVDecoder().DecodeBytes(context.Background(), "zero-align.wav", data)
	if !errors.Is(err, ErrDecode) || errors.Is(err, ErrUnsupportedWAV) {
		t.Errorf("err = %v, want a plain ErrDecode", err)
	}
}

func TestWAVDecoderFloat32(t *testing.T) {
	data := make([]byte, 4*4)
	for i := range 4 {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(0.5))
	}

	audio, err := NewWAVDecoder().DecodeBytes(context.Background(), "float.wav", rawWAV(3, 1, 8000, 32, data))
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if len(audio.PCM) != 4 {
		t.Fatalf("decoded %d samples, want 4", len(audio.PCM))
	}
	for i, v := range audio.PCM {
		if math.Abs(v-0.5) > 1e-6 {
			t.Errorf("sample %d = %f, want 0.5", i, v)
		}
	}
}

type recordingSource struct {
	paths []string
}

func (r *recordingSource) Decode(ctx context.Context, path string) (*AudioData, error) {
	r.paths = append(r.paths, path)
	return &AudioData{PCM: []float64{0, 0}, SampleRate: 8000, Channels: 2, Name: filepath.Base(path)}, nil
}

func TestWAVDecoderFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surround.wav")
	if err := os.WriteFile(path, rawWAV(1, 6, 8000, 16, make([]byte, 800*6*2)), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewWAVDecoder().Decode(context.Background(), path); !errors.Is(err, ErrUnsupportedWAV) {
		t.Errorf("without fallback: err = %v, want ErrUnsupportedWAV", err)
	}

	fallback := &recordingSource{}
	audio, err := NewWAVDecoderWithFallback(fallback).Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("with fallback: %v", err)
	}
	if len(fallback.paths) != 1 || fallback.paths[0] != path || audio.Name != "surround.wav" {
		t.Errorf("fallback calls = %v, audio = %+v", fallback.paths, audio)
	}

	// a supported file never reaches the fallback
	mono := filepath.Join(t.TempDir(), "mono.wav")
	if err := os.WriteFile(mono, writeWAV(t, []float64{0.1, 0.2}, nil, 1, 8000), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewWAVDecoderWithFallback(fallback).Decode(context.Background(), mono); err != nil {
		t.Fatal(err)
	}
	if len(fallback.paths) != 1 {
		t.Errorf("supported WAV was sent to the fallback")
	}
}
