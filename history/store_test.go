package history

import (
	"errors"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-aureo/algorithms/temporal"
	"github.com/RyanBlaney/sonido-aureo/analysis"
	"github.com/RyanBlaney/sonido-aureo/logging"
)

func init() {
	logging.SetGlobalLogger(nil)
}

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func result(name string, score float64) *analysis.Result {
	return &analysis.Result{
		FileName:       name,
		Duration:       100,
		GoldenPoints:   [2]float64{38.2, 61.8},
		Peaks:          []temporal.Chunk{{Time: 40, Energy: 1}},
		ProximityScore: score,
		EnergyData:     []float64{0.1},
		WaveformData:   []temporal.MinMax{{Min: -0.1, Max: 0.1}},
	}
}

func TestPutGet(t *testing.T) {
	s := openMemory(t)

	if _, err := s.Put(result("a.wav", 1.8)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entry, err := s.Get("a.wav")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Result.ProximityScore != 1.8 || entry.Result.Peaks[0].Time != 40 {
		t.Errorf("stored result mismatch: %+v", entry.Result)
	}
	if entry.AnalyzedAt.IsZero() {
		t.Errorf("AnalyzedAt not set")
	}

	if _, err := s.Get("missing.wav"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing entry err = %v, want ErrNotFound", err)
	}
}

func TestListNewestFirstAndDedupe(t *testing.T) {
	s := openMemory(t)

	for _, r := range []*analysis.Result{result("a.wav", 1), result("b.wav", 2), result("c.wav", 3)} {
		if _, err := s.Put(r); err != nil {
			t.Fatal(err)
		}
	}
	// re-analyzing a.wav replaces the old entry and moves it to the front
	if _, err := s.Put(result("a.wav", 9)); err != nil {
		t.Fatal(err)
	}

	entries, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Result.FileName)
	}
	want := []string{"a.wav", "c.wav", "b.wav"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
	if entries[0].Result.ProximityScore != 9 {
		t.Errorf("a.wav should hold the newest result, score %f", entries[0].Result.ProximityScore)
	}
}

func TestDeleteAndClear(t *testing.T) {
	s := openMemory(t)
	for _, name := range []string{"a.wav", "b.wav"} {
		if _, err := s.Put(result(name, 0)); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Delete("a.wav"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get("a.wav"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted entry still present: %v", err)
	}
	if err := s.Delete("a.wav"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("List after Clear returned %d entries", len(entries))
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Options{Dir: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Put(result("kept.flac", 4.2)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(Options{Dir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	entry, err := s.Get("kept.flac")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if entry.Result.ProximityScore != 4.2 {
		t.Errorf("score = %f, want 4.2", entry.Result.ProximityScore)
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Errorf("expected error without a directory")
	}
	s := openMemory(t)
	if _, err := s.Put(nil); err == nil {
		t.Errorf("expected error for nil result")
	}
}
