package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/RyanBlaney/sonido-aureo/algorithms/temporal"
)

// Result is the complete outcome of one analysis. It holds only plain values
// and is never modified after Analyze returns it.
type Result struct {
	FileName       string            `json:"fileName"`
	Duration       float64           `json:"duration"`
	GoldenPoints   [2]float64        `json:"goldenPoints"`
	Peaks          []temporal.Chunk  `json:"peaks"`
	ProximityScore float64           `json:"proximityScore"`
	EnergyData     []float64         `json:"energyData"`
	WaveformData   []temporal.MinMax `json:"waveformData"`
}

// WriteJSON writes the result as two-space indented JSON
func (r *Result) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode result for %s: %w", r.FileName, err)
	}
	return nil
}

// ExportFileName derives the download name for a result: analisis_<name>.json.
// Every character outside ASCII letters and digits becomes '_' (one per UTF-16
// code unit, so characters outside the BMP become "__"), then the name is lowercased.
func ExportFileName(fileName string) string {
	var b strings.Builder
	for _, r := range fileName {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteString(strings.Repeat("_", max(utf16.RuneLen(r), 1)))
		}
	}
	return "analisis_" + b.String() + ".json"
}
