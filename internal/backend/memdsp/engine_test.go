package memdsp_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"neuroflow/internal/backend"
	"neuroflow/internal/backend/memdsp"
	"neuroflow/internal/session"
)

func writeDataset(t *testing.T, ds *session.Dataset) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rec.json")
	engine := memdsp.New()
	if err := engine.Save(context.Background(), ds, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return path
}

func testDataset(channels int, seconds float64, rate float64) *session.Dataset {
	total := int(seconds * rate)
	ds := &session.Dataset{SampleRate: rate}
	for c := 0; c < channels; c++ {
		name := []string{"Fz", "Cz", "Pz", "Oz", "C3", "C4", "VEOG", "ECG1"}[c%8]
		ds.Channels = append(ds.Channels, session.Channel{Name: name})
		row := make([]float64, total)
		for s := range row {
			row[s] = math.Sin(float64(s)/rate*2*math.Pi*float64(c+1)) + float64(c)
		}
		ds.Samples = append(ds.Samples, row)
	}
	return ds
}

func TestLoadInfersKindsAndPositions(t *testing.T) {
	ds := testDataset(8, 2, 100)
	path := writeDataset(t, ds)

	loaded, err := memdsp.New().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	byName := map[string]session.Channel{}
	for _, ch := range loaded.Channels {
		byName[ch.Name] = ch
	}
	if byName["VEOG"].Kind != session.ChannelEOG {
		t.Fatalf("expected VEOG classified as eog, got %s", byName["VEOG"].Kind)
	}
	if byName["ECG1"].Kind != session.ChannelECG {
		t.Fatalf("expected ECG1 classified as ecg, got %s", byName["ECG1"].Kind)
	}
	if byName["Fz"].Kind != session.ChannelEEG {
		t.Fatalf("expected Fz classified as eeg, got %s", byName["Fz"].Kind)
	}
	if byName["Cz"].Position == nil {
		t.Fatal("expected Cz position filled from standard layout")
	}
	if byName["VEOG"].Position != nil {
		t.Fatal("expected no standard position for VEOG")
	}
}

func TestLoadRejectsRaggedData(t *testing.T) {
	ds := testDataset(2, 1, 100)
	ds.Samples[1] = ds.Samples[1][:50]
	path := filepath.Join(t.TempDir(), "bad.json")
	// Write by hand since Save would also accept the broken shape.
	data := []byte(`{"sample_rate":100,"channels":[{"name":"a"},{"name":"b"}],"samples":[[1,2],[1]]}`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := memdsp.New().Load(context.Background(), path); err == nil {
		t.Fatal("expected shape error")
	}
}

func TestFilterPreservesShape(t *testing.T) {
	ds := testDataset(4, 2, 100)
	engine := memdsp.New()
	if err := engine.Filter(context.Background(), ds, backend.FilterParams{LowHz: 1, HighHz: 40}); err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(ds.Channels) != 4 || ds.SampleCount() != 200 {
		t.Fatalf("expected shape preserved, got %d channels x %d samples", len(ds.Channels), ds.SampleCount())
	}
	// High-pass stand-in removes the DC offset.
	var mean float64
	for _, v := range ds.Samples[3] {
		mean += v
	}
	mean /= float64(len(ds.Samples[3]))
	if math.Abs(mean) > 1e-9 {
		t.Fatalf("expected zero mean after high-pass, got %g", mean)
	}
}

func TestSegmentExtractsMatchingMarkers(t *testing.T) {
	ds := testDataset(8, 120, 100)
	for s := 500; s < 11500; s += 1000 {
		label := "A"
		if (s/1000)%3 == 0 {
			label = "B"
		}
		ds.Markers = append(ds.Markers, session.Marker{Label: label, Sample: s})
	}
	wantA := ds.MarkerCount("A")

	engine := memdsp.New()
	epochs, err := engine.Segment(context.Background(), ds, backend.SegmentParams{
		Label: "A", TMin: -0.2, TMax: 0.5, Baseline: true,
	})
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if epochs.Count() != wantA {
		t.Fatalf("expected %d epochs, got %d", wantA, epochs.Count())
	}
	wantSamples := int(math.Round(0.7 * 100))
	if got := len(epochs.Epochs[0][0]); got != wantSamples {
		t.Fatalf("expected %d samples per epoch, got %d", wantSamples, got)
	}
	if !epochs.Baselined {
		t.Fatal("expected baseline flag recorded")
	}
}

func TestSegmentDropsOutOfBoundsWindows(t *testing.T) {
	ds := testDataset(2, 1, 100)
	ds.Markers = []session.Marker{{Label: "A", Sample: 5}, {Label: "A", Sample: 50}}

	epochs, err := memdsp.New().Segment(context.Background(), ds, backend.SegmentParams{
		Label: "A", TMin: -0.2, TMax: 0.3,
	})
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if epochs.Count() != 1 {
		t.Fatalf("expected marker near start dropped, got %d epochs", epochs.Count())
	}
}

func TestSegmentErrorsWhenNoMatch(t *testing.T) {
	ds := testDataset(2, 1, 100)
	ds.Markers = []session.Marker{{Label: "B", Sample: 50}}
	if _, err := memdsp.New().Segment(context.Background(), ds, backend.SegmentParams{Label: "A", TMin: -0.1, TMax: 0.1}); err == nil {
		t.Fatal("expected error when label matches nothing")
	}
}

func TestAverageMatchesEpochCount(t *testing.T) {
	ds := testDataset(4, 10, 100)
	for s := 100; s < 900; s += 100 {
		ds.Markers = append(ds.Markers, session.Marker{Label: "A", Sample: s})
	}
	engine := memdsp.New()
	epochs, err := engine.Segment(context.Background(), ds, backend.SegmentParams{Label: "A", TMin: -0.2, TMax: 0.5})
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	evoked, err := engine.Average(context.Background(), epochs)
	if err != nil {
		t.Fatalf("Average failed: %v", err)
	}
	if evoked.EpochCount != epochs.Count() {
		t.Fatalf("expected evoked from %d epochs, got %d", epochs.Count(), evoked.EpochCount)
	}
	if len(evoked.Data) != 4 {
		t.Fatalf("expected 4 channels in evoked, got %d", len(evoked.Data))
	}
}

func TestInterpolateUsesGoodChannels(t *testing.T) {
	ds := &session.Dataset{
		SampleRate: 10,
		Channels:   []session.Channel{{Name: "a"}, {Name: "b"}, {Name: "c"}},
		Samples: [][]float64{
			{1, 1}, {3, 3}, {100, 100},
		},
	}
	if err := memdsp.New().Interpolate(context.Background(), ds, []string{"c"}); err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	if ds.Samples[2][0] != 2 {
		t.Fatalf("expected interpolated value 2, got %g", ds.Samples[2][0])
	}
}

func TestConnectivityMatrixShape(t *testing.T) {
	ds := testDataset(4, 10, 100)
	for s := 100; s < 900; s += 200 {
		ds.Markers = append(ds.Markers, session.Marker{Label: "A", Sample: s})
	}
	engine := memdsp.New()
	epochs, err := engine.Segment(context.Background(), ds, backend.SegmentParams{Label: "A", TMin: 0, TMax: 1})
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	con, err := engine.Connectivity(context.Background(), epochs, backend.ConnectivityParams{Method: "wpli", LowHz: 8, HighHz: 12})
	if err != nil {
		t.Fatalf("Connectivity failed: %v", err)
	}
	if len(con.Values) != 4 || len(con.Values[0]) != 4 {
		t.Fatalf("expected 4x4 matrix, got %dx%d", len(con.Values), len(con.Values[0]))
	}
	for i := range con.Values {
		if con.Values[i][i] != 1 {
			t.Fatalf("expected unit diagonal, got %g", con.Values[i][i])
		}
		for j := range con.Values[i] {
			if con.Values[i][j] != con.Values[j][i] {
				t.Fatal("expected symmetric matrix")
			}
		}
	}
}

func TestTimeFrequencyUnknownChannel(t *testing.T) {
	ds := testDataset(2, 10, 100)
	ds.Markers = []session.Marker{{Label: "A", Sample: 500}}
	engine := memdsp.New()
	epochs, err := engine.Segment(context.Background(), ds, backend.SegmentParams{Label: "A", TMin: -0.5, TMax: 0.5})
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if _, err := engine.TimeFrequency(context.Background(), epochs, backend.TFRParams{Channel: "Nope", LowHz: 4, HighHz: 30, CyclesDiv: 2}); err == nil {
		t.Fatal("expected error for unknown channel")
	}
	spec, err := engine.TimeFrequency(context.Background(), epochs, backend.TFRParams{Channel: "Fz", LowHz: 4, HighHz: 30, CyclesDiv: 2})
	if err != nil {
		t.Fatalf("TimeFrequency failed: %v", err)
	}
	if len(spec.Freqs) != 27 {
		t.Fatalf("expected 27 frequency rows, got %d", len(spec.Freqs))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ds := testDataset(3, 2, 100)
	ds.Markers = []session.Marker{{Label: "A", Sample: 10}}
	path := writeDataset(t, ds)

	loaded, err := memdsp.New().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.SampleCount() != ds.SampleCount() || len(loaded.Channels) != len(ds.Channels) {
		t.Fatal("expected round-tripped shape to match")
	}
	if loaded.SourcePath != path {
		t.Fatalf("expected source path recorded, got %q", loaded.SourcePath)
	}
}
