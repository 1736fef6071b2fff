package testsupport

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"neuroflow/internal/session"
)

// WriteRecording writes a synthetic multi-channel recording to path in the
// JSON layout the in-memory engine loads: one sinusoid per channel and a
// "stim" marker every two seconds.
func WriteRecording(t testing.TB, path string, channels int, seconds, rate float64) string {
	t.Helper()

	n := int(seconds * rate)
	ds := session.Dataset{SampleRate: rate}
	for c := 0; c < channels; c++ {
		ds.Channels = append(ds.Channels, session.Channel{Name: fmt.Sprintf("C%d", c+1)})
		row := make([]float64, n)
		for i := range row {
			row[i] = math.Sin(2 * math.Pi * float64(c+1) * float64(i) / rate)
		}
		ds.Samples = append(ds.Samples, row)
	}
	for s := int(rate); s < n-int(rate); s += int(2 * rate) {
		ds.Markers = append(ds.Markers, session.Marker{Label: "stim", Sample: s})
	}

	payload, err := json.Marshal(ds)
	if err != nil {
		t.Fatalf("encode recording: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
