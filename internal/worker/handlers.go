package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"neuroflow/internal/backend"
	"neuroflow/internal/batch"
	"neuroflow/internal/logging"
	"neuroflow/internal/persist"
	"neuroflow/internal/services"
	"neuroflow/internal/session"
	"neuroflow/internal/stagegate"
)

// handle checks preconditions and runs one request against the live session.
// Lineage is appended only for operations the gate marks as logged.
func (w *Worker) handle(ctx context.Context, state *session.State, item queued) (*StageResult, error) {
	if err := stagegate.Check(state, item.req.Op); err != nil {
		return nil, err
	}
	switch item.req.Op {
	case session.OpLoad:
		return w.handleLoad(ctx, state, item.req)
	case session.OpFilter:
		return w.handleFilter(ctx, state, item.req)
	case session.OpFitDecomposition:
		return w.handleFitDecomposition(ctx, state, item.req)
	case session.OpApplyDecomposition:
		return w.handleApplyDecomposition(ctx, state, item.req)
	case session.OpInterpolate:
		return w.handleInterpolate(ctx, state, item.req)
	case session.OpSegment:
		return w.handleSegment(ctx, state, item.req)
	case session.OpAverage:
		return w.handleAverage(ctx, state)
	case session.OpTimeFrequency:
		return w.handleTimeFrequency(ctx, state, item.req)
	case session.OpConnectivity:
		return w.handleConnectivity(ctx, state, item.req)
	case session.OpSaveDataset:
		return w.handleSaveDataset(ctx, state, item.req)
	case session.OpSaveSession:
		return w.handleSaveSession(state, item.req)
	case session.OpRestoreSession:
		return w.handleRestoreSession(state, item.req)
	case session.OpRunBatch:
		return w.handleRunBatch(ctx, item)
	default:
		return nil, services.Wrap(services.ErrValidation, string(item.req.Op), "", "unknown operation", nil)
	}
}

// logLineage appends a lineage entry when the gate's operation table marks
// op as logged. Handlers never call AppendLineage directly, so the table
// stays the single authority on what the audit log records.
func (w *Worker) logLineage(state *session.State, op session.Operation, params map[string]string) int {
	if !stagegate.Logged(op) {
		return 0
	}
	return state.AppendLineage(op, params)
}

// snapshot builds the common part of a completion payload.
func snapshot(state *session.State, op session.Operation, ordinal int) *StageResult {
	result := &StageResult{
		Op:      op,
		Ordinal: ordinal,
		Derived: stagegate.Derive(state),
	}
	if ds := state.Dataset; ds != nil {
		result.ChannelCount = len(ds.Channels)
		result.SampleRate = ds.SampleRate
		result.DurationSeconds = ds.Duration()
	}
	if state.Epochs != nil {
		result.EpochCount = state.Epochs.Count()
	}
	return result
}

func requirePath(op session.Operation, path string) error {
	if strings.TrimSpace(path) == "" {
		return services.Wrap(services.ErrValidation, string(op), "path", "path is required", nil)
	}
	return nil
}

func (w *Worker) handleLoad(ctx context.Context, state *session.State, req Request) (*StageResult, error) {
	if err := requirePath(req.Op, req.Path); err != nil {
		return nil, err
	}
	ds, err := w.engine.Load(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	state.ReplaceDataset(ds)
	ordinal := w.logLineage(state, session.OpLoad, map[string]string{"path": req.Path})

	result := snapshot(state, session.OpLoad, ordinal)
	result.Label = filepath.Base(req.Path)
	return result, nil
}

func (w *Worker) handleFilter(ctx context.Context, state *session.State, req Request) (*StageResult, error) {
	p := req.Filter
	if err := backend.ValidateParams("filter", p); err != nil {
		return nil, err
	}
	if err := w.engine.Filter(ctx, state.Dataset, p); err != nil {
		return nil, err
	}
	// The dataset is mutated at this point, so the lineage entry must land
	// before anything else can fail.
	ordinal := w.logLineage(state, session.OpFilter, backend.ParamsMap(p))

	result := snapshot(state, session.OpFilter, ordinal)
	result.Label = p.Label()
	spectrum, err := w.engine.Spectrum(ctx, state.Dataset)
	if err != nil {
		w.logger.Warn("spectrum computation failed", logging.Error(err))
		return result, nil
	}
	spectrum.FilterLabel = p.Label()
	result.Spectrum = spectrum
	return result, nil
}

func (w *Worker) handleFitDecomposition(ctx context.Context, state *session.State, req Request) (*StageResult, error) {
	p := req.Decomposition
	if p.Components == 0 {
		p.Components = w.cfg.Pipeline.DecompositionComponents
	}
	if p.HighpassHz == 0 {
		p.HighpassHz = w.cfg.Pipeline.DecompositionHighpassHz
	}
	if err := backend.ValidateParams("fit decomposition", p); err != nil {
		return nil, err
	}
	model, err := w.engine.FitDecomposition(ctx, state.Dataset, p)
	if err != nil {
		return nil, err
	}
	state.Decomposition = model
	ordinal := w.logLineage(state, session.OpFitDecomposition, backend.ParamsMap(p))
	model.FittedAtOrdinal = ordinal

	result := snapshot(state, session.OpFitDecomposition, ordinal)
	result.Label = fmt.Sprintf("Fitted %d components", model.Components)
	result.Decomposition = model.Clone()
	return result, nil
}

func (w *Worker) handleApplyDecomposition(ctx context.Context, state *session.State, req Request) (*StageResult, error) {
	// Apply on a candidate copy so a rejected exclusion list leaves the
	// fitted model untouched.
	candidate := state.Decomposition.Clone()
	candidate.Excluded = append([]int(nil), req.Exclude...)
	if err := w.engine.ApplyDecomposition(ctx, state.Dataset, candidate); err != nil {
		return nil, err
	}
	state.Decomposition = candidate
	ordinal := w.logLineage(state, session.OpApplyDecomposition, map[string]string{
		"excluded": joinInts(req.Exclude),
	})

	result := snapshot(state, session.OpApplyDecomposition, ordinal)
	result.Label = fmt.Sprintf("Removed %d components", len(req.Exclude))
	result.Decomposition = candidate.Clone()
	return result, nil
}

func (w *Worker) handleInterpolate(ctx context.Context, state *session.State, req Request) (*StageResult, error) {
	ds := state.Dataset
	if len(req.Channels) > 0 {
		if err := ds.MarkBad(req.Channels...); err != nil {
			return nil, services.Wrap(services.ErrValidation, "interpolate", "channels", "", err)
		}
	}
	targets := append([]string(nil), ds.Bad...)
	if len(targets) == 0 {
		return nil, services.Wrap(services.ErrPrecondition, "interpolate", "", "no channels marked bad", nil)
	}
	if err := w.engine.Interpolate(ctx, ds, targets); err != nil {
		return nil, err
	}
	ds.Bad = nil
	ordinal := w.logLineage(state, session.OpInterpolate, map[string]string{
		"channels": strings.Join(targets, ","),
	})

	result := snapshot(state, session.OpInterpolate, ordinal)
	result.Label = fmt.Sprintf("Interpolated %d channels", len(targets))
	return result, nil
}

func (w *Worker) handleSegment(ctx context.Context, state *session.State, req Request) (*StageResult, error) {
	p := req.Segment
	if err := backend.ValidateParams("segment", p); err != nil {
		return nil, err
	}
	epochs, err := w.engine.Segment(ctx, state.Dataset, p)
	if err != nil {
		return nil, err
	}
	state.SetEpochs(epochs)
	ordinal := w.logLineage(state, session.OpSegment, backend.ParamsMap(p))

	result := snapshot(state, session.OpSegment, ordinal)
	result.Label = p.Label
	return result, nil
}

func (w *Worker) handleAverage(ctx context.Context, state *session.State) (*StageResult, error) {
	evoked, err := w.engine.Average(ctx, state.Epochs)
	if err != nil {
		return nil, err
	}
	state.Evoked = evoked

	result := snapshot(state, session.OpAverage, 0)
	result.Label = evoked.Label
	result.Evoked = evoked.Clone()
	return result, nil
}

func (w *Worker) handleTimeFrequency(ctx context.Context, state *session.State, req Request) (*StageResult, error) {
	p := req.TFR
	if err := backend.ValidateParams("time-frequency", p); err != nil {
		return nil, err
	}
	spectrogram, err := w.engine.TimeFrequency(ctx, state.Epochs, p)
	if err != nil {
		return nil, err
	}
	state.Spectrogram = spectrogram

	result := snapshot(state, session.OpTimeFrequency, 0)
	result.Label = p.Channel
	result.Spectrogram = spectrogram.Clone()
	return result, nil
}

func (w *Worker) handleConnectivity(ctx context.Context, state *session.State, req Request) (*StageResult, error) {
	p := req.Connectivity
	if p.Method == "" {
		p.Method = "wpli"
	}
	if p.LowHz == 0 {
		p.LowHz = w.cfg.Pipeline.ConnectivityLowHz
	}
	if p.HighHz == 0 {
		p.HighHz = w.cfg.Pipeline.ConnectivityHighHz
	}
	if err := backend.ValidateParams("connectivity", p); err != nil {
		return nil, err
	}
	matrix, err := w.engine.Connectivity(ctx, state.Epochs, p)
	if err != nil {
		return nil, err
	}
	state.Connectivity = matrix

	result := snapshot(state, session.OpConnectivity, 0)
	result.Label = fmt.Sprintf("%s %s-%s Hz", p.Method,
		strconv.FormatFloat(p.LowHz, 'f', -1, 64), strconv.FormatFloat(p.HighHz, 'f', -1, 64))
	result.Connectivity = matrix.Clone()
	return result, nil
}

func (w *Worker) handleSaveDataset(ctx context.Context, state *session.State, req Request) (*StageResult, error) {
	if err := requirePath(req.Op, req.Path); err != nil {
		return nil, err
	}
	if err := w.engine.Save(ctx, state.Dataset, req.Path); err != nil {
		return nil, err
	}
	result := snapshot(state, session.OpSaveDataset, 0)
	result.Label = filepath.Base(req.Path)
	result.SavedPath = req.Path
	return result, nil
}

func (w *Worker) handleSaveSession(state *session.State, req Request) (*StageResult, error) {
	path := req.Path
	if strings.TrimSpace(path) == "" {
		path = filepath.Join(w.cfg.Paths.SessionDir, state.ID+".nfses")
	}
	if err := persist.Save(state, &w.cfg.Pipeline, path); err != nil {
		return nil, err
	}
	result := snapshot(state, session.OpSaveSession, 0)
	result.Label = filepath.Base(path)
	result.SavedPath = path
	return result, nil
}

func (w *Worker) handleRestoreSession(state *session.State, req Request) (*StageResult, error) {
	if err := requirePath(req.Op, req.Path); err != nil {
		return nil, err
	}
	restored, err := persist.Restore(req.Path, w.trustFor(req.Path, req.Trust))
	if err != nil {
		return nil, err
	}
	state.ReplaceAll(restored)

	result := snapshot(state, session.OpRestoreSession, 0)
	result.Label = filepath.Base(req.Path)
	return result, nil
}

// trustFor auto-trusts session files inside the configured session
// directory; everything else needs the caller's confirmation callback.
func (w *Worker) trustFor(path string, confirm persist.TrustFunc) persist.TrustFunc {
	dir := strings.TrimSpace(w.cfg.Paths.SessionDir)
	if dir == "" {
		return confirm
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return confirm
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return confirm
	}
	if strings.HasPrefix(abs, absDir+string(filepath.Separator)) {
		return func(persist.FileInfo) bool { return true }
	}
	return confirm
}

func (w *Worker) handleRunBatch(ctx context.Context, item queued) (*StageResult, error) {
	if item.req.Batch == nil {
		return nil, services.Wrap(services.ErrValidation, "run batch", "", "no job specified", nil)
	}
	w.batchCancel.Store(false)

	runner := &batch.Runner{
		Driver:          newBatchDriver(w.engine),
		Emitter:         &hubEmitter{hub: w.hub, correlationID: item.id},
		Logger:          w.logger,
		MinFreeSpaceMiB: w.cfg.Batch.MinFreeSpaceMiB,
	}
	// The runner emits the terminal summary event itself, on every path
	// including setup failure. Returning an error here would surface the
	// same failure twice, so the completion payload carries the summary
	// and callers inspect it.
	summary := runner.Run(ctx, *item.req.Batch, w.batchCancel.Load)
	result := &StageResult{Op: session.OpRunBatch, Label: summary.Message, BatchSummary: &summary}
	return result, nil
}

// hubEmitter forwards batch runner events into the worker hub, tagged with
// the originating request's correlation ID.
type hubEmitter struct {
	hub           *Hub
	correlationID string
}

func (e *hubEmitter) BatchProgress(p batch.Progress) {
	e.hub.Publish(Event{
		Kind:          EventBatchProgress,
		CorrelationID: e.correlationID,
		Op:            session.OpRunBatch,
		Message:       fmt.Sprintf("item %d/%d", p.Index, p.Total),
		BatchProgress: &p,
	})
}

func (e *hubEmitter) BatchSummary(s batch.Summary) {
	e.hub.Publish(Event{
		Kind:          EventBatchSummary,
		CorrelationID: e.correlationID,
		Op:            session.OpRunBatch,
		Message:       s.Message,
		BatchSummary:  &s,
	})
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
