package batch_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"neuroflow/internal/backend"
	"neuroflow/internal/batch"
	"neuroflow/internal/logging"
)

type fakeDriver struct {
	loaded    []string
	failOn    map[string]error
	panicOn   string
	segmented int
	exported  []string
}

func (d *fakeDriver) Load(_ context.Context, path string) error {
	if d.panicOn != "" && path == d.panicOn {
		panic("driver exploded")
	}
	if err, ok := d.failOn[path]; ok {
		return err
	}
	d.loaded = append(d.loaded, path)
	return nil
}

func (d *fakeDriver) Filter(context.Context, backend.FilterParams) error { return nil }

func (d *fakeDriver) FitDecomposition(context.Context, backend.DecompositionParams) error {
	return nil
}

func (d *fakeDriver) ApplyDecomposition(context.Context, []int) error { return nil }

func (d *fakeDriver) Interpolate(context.Context) error { return nil }

func (d *fakeDriver) Segment(context.Context, backend.SegmentParams) error {
	d.segmented++
	return nil
}

func (d *fakeDriver) Export(_ context.Context, path string) error {
	d.exported = append(d.exported, path)
	return nil
}

type captureEmitter struct {
	progress  []batch.Progress
	summaries []batch.Summary
}

func (e *captureEmitter) BatchProgress(p batch.Progress) { e.progress = append(e.progress, p) }

func (e *captureEmitter) BatchSummary(s batch.Summary) { e.summaries = append(e.summaries, s) }

func writeInputs(t *testing.T, dir string, n int) []string {
	t.Helper()
	var inputs []string
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("rec%d.json", i))
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write input: %v", err)
		}
		inputs = append(inputs, path)
	}
	return inputs
}

func newRunner(driver *fakeDriver, emitter *captureEmitter) *batch.Runner {
	return &batch.Runner{
		Driver:  driver,
		Emitter: emitter,
		Logger:  logging.NewNop(),
	}
}

func TestRunCompletesAllItems(t *testing.T) {
	dir := t.TempDir()
	inputs := writeInputs(t, dir, 3)
	driver := &fakeDriver{}
	emitter := &captureEmitter{}

	summary := newRunner(driver, emitter).Run(context.Background(), batch.JobSpec{
		Inputs:    inputs,
		OutputDir: filepath.Join(dir, "out"),
		Segment:   &backend.SegmentParams{Label: "A", TMin: -0.2, TMax: 0.5},
		Export:    true,
	}, nil)

	if summary.Completed != 3 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(emitter.progress) != 3 {
		t.Fatalf("expected 3 progress events, got %d", len(emitter.progress))
	}
	for i, p := range emitter.progress {
		if p.Index != i+1 || p.Total != 3 || p.Item != inputs[i] {
			t.Fatalf("unexpected progress event %d: %+v", i, p)
		}
	}
	if len(emitter.summaries) != 1 {
		t.Fatalf("expected exactly one summary, got %d", len(emitter.summaries))
	}
	if driver.segmented != 3 || len(driver.exported) != 3 {
		t.Fatalf("expected every item segmented and exported: %+v", driver)
	}
}

func TestRunIsolatesItemFailure(t *testing.T) {
	dir := t.TempDir()
	inputs := writeInputs(t, dir, 4)
	driver := &fakeDriver{failOn: map[string]error{inputs[1]: fmt.Errorf("corrupt header")}}
	emitter := &captureEmitter{}

	summary := newRunner(driver, emitter).Run(context.Background(), batch.JobSpec{
		Inputs:    inputs,
		OutputDir: filepath.Join(dir, "out"),
	}, nil)

	if summary.Completed != 3 || summary.Failed != 1 {
		t.Fatalf("expected 3 completed / 1 failed, got %+v", summary)
	}
	// Items after the failure are still attempted.
	if len(driver.loaded) != 3 {
		t.Fatalf("expected 3 successful loads, got %v", driver.loaded)
	}
	if !emitter.progress[1].Failed {
		t.Fatal("expected progress event for item 2 to be marked failed")
	}
	if len(emitter.summaries) != 1 {
		t.Fatalf("expected exactly one summary, got %d", len(emitter.summaries))
	}
}

func TestRunContainsItemPanic(t *testing.T) {
	dir := t.TempDir()
	inputs := writeInputs(t, dir, 2)
	driver := &fakeDriver{panicOn: inputs[0]}
	emitter := &captureEmitter{}

	summary := newRunner(driver, emitter).Run(context.Background(), batch.JobSpec{
		Inputs:    inputs,
		OutputDir: filepath.Join(dir, "out"),
	}, nil)

	if summary.Failed != 1 || summary.Completed != 1 {
		t.Fatalf("expected panic contained as one failure, got %+v", summary)
	}
}

func TestRunCancellationAtItemBoundary(t *testing.T) {
	dir := t.TempDir()
	inputs := writeInputs(t, dir, 5)
	driver := &fakeDriver{}
	emitter := &captureEmitter{}

	polls := 0
	cancelled := func() bool {
		polls++
		return polls > 2 // allow items 1 and 2, cancel before item 3
	}

	summary := newRunner(driver, emitter).Run(context.Background(), batch.JobSpec{
		Inputs:    inputs,
		OutputDir: filepath.Join(dir, "out"),
	}, cancelled)

	if !summary.Canceled {
		t.Fatal("expected canceled summary")
	}
	if summary.Completed != 2 || summary.Skipped != 3 || summary.Failed != 0 {
		t.Fatalf("expected 2 completed / 3 skipped, got %+v", summary)
	}
	if len(driver.loaded) != 2 {
		t.Fatalf("expected no partially executed item, got %v", driver.loaded)
	}
	if len(emitter.summaries) != 1 {
		t.Fatalf("expected exactly one summary, got %d", len(emitter.summaries))
	}
}

func TestRunSetupFailureEmitsOneSummary(t *testing.T) {
	dir := t.TempDir()
	emitter := &captureEmitter{}

	summary := newRunner(&fakeDriver{}, emitter).Run(context.Background(), batch.JobSpec{
		Inputs:    []string{filepath.Join(dir, "missing.json")},
		OutputDir: filepath.Join(dir, "out"),
	}, nil)

	if summary.SetupError == "" {
		t.Fatal("expected setup error recorded")
	}
	if summary.Completed != 0 || summary.Failed != 0 {
		t.Fatalf("expected no items attempted, got %+v", summary)
	}
	if len(emitter.progress) != 0 {
		t.Fatal("expected no progress events on setup failure")
	}
	if len(emitter.summaries) != 1 {
		t.Fatalf("expected exactly one summary, got %d", len(emitter.summaries))
	}
}

func TestRunInvalidSpecRejectedBeforeLoop(t *testing.T) {
	emitter := &captureEmitter{}
	driver := &fakeDriver{}

	summary := newRunner(driver, emitter).Run(context.Background(), batch.JobSpec{
		Inputs:    nil,
		OutputDir: t.TempDir(),
	}, nil)

	if summary.SetupError == "" {
		t.Fatal("expected validation failure surfaced as setup error")
	}
	if len(driver.loaded) != 0 {
		t.Fatal("expected no items attempted")
	}
}

func TestRunPersistsOutcomes(t *testing.T) {
	dir := t.TempDir()
	inputs := writeInputs(t, dir, 3)
	outputDir := filepath.Join(dir, "out")
	driver := &fakeDriver{failOn: map[string]error{inputs[2]: fmt.Errorf("bad channel table")}}
	emitter := &captureEmitter{}

	summary := newRunner(driver, emitter).Run(context.Background(), batch.JobSpec{
		Inputs:    inputs,
		OutputDir: outputDir,
	}, nil)

	store, err := batch.OpenStore(context.Background(), outputDir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer store.Close()

	jobs, err := store.Jobs(context.Background())
	if err != nil {
		t.Fatalf("Jobs failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(jobs))
	}
	job := jobs[0]
	if job.Completed != summary.Completed || job.Failed != summary.Failed || job.Skipped != summary.Skipped {
		t.Fatalf("store counts %+v disagree with summary %+v", job, summary)
	}
	if job.FinishedAt == nil {
		t.Fatal("expected job finish stamped")
	}

	items, err := store.Items(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[2].Status != batch.ItemFailed || items[2].Error == "" {
		t.Fatalf("expected item 3 failed with message, got %+v", items[2])
	}
	if items[0].Status != batch.ItemCompleted {
		t.Fatalf("expected item 1 completed, got %+v", items[0])
	}
}
