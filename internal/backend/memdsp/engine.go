package memdsp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"neuroflow/internal/backend"
	"neuroflow/internal/session"
)

// Engine implements backend.Interface entirely in memory. Datasets are
// plain JSON files matching the session.Dataset schema.
type Engine struct{}

var _ backend.Interface = Engine{}

// New returns a ready engine.
func New() Engine { return Engine{} }

func (Engine) Load(ctx context.Context, path string) (*session.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var ds session.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", filepath.Base(path), err)
	}
	if err := checkShape(&ds); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", filepath.Base(path), err)
	}
	ds.SourcePath = path
	for i := range ds.Channels {
		ch := &ds.Channels[i]
		if ch.Kind == "" {
			ch.Kind = inferKind(ch.Name)
		}
		if ch.Position == nil {
			ch.Position = standardPosition(ch.Name)
		}
	}
	return &ds, nil
}

func (Engine) Filter(ctx context.Context, ds *session.Dataset, p backend.FilterParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ds == nil {
		return fmt.Errorf("no dataset")
	}
	// Structural stand-in: a high-pass edge removes the DC offset per channel.
	if p.LowHz > 0 {
		for _, row := range ds.Samples {
			mean := rowMean(row)
			for i := range row {
				row[i] -= mean
			}
		}
	}
	return nil
}

func (Engine) Spectrum(ctx context.Context, ds *session.Dataset) (*session.SpectralSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ds == nil || len(ds.Samples) == 0 {
		return nil, fmt.Errorf("no dataset")
	}
	const fmax = 100
	var totalVar float64
	for _, row := range ds.Samples {
		totalVar += rowVariance(row)
	}
	meanVar := totalVar / float64(len(ds.Samples))

	summary := &session.SpectralSummary{
		Freqs: make([]float64, fmax),
		Power: make([]float64, fmax),
	}
	for i := 0; i < fmax; i++ {
		summary.Freqs[i] = float64(i + 1)
		// Flat pink-ish placeholder so consumers have a plottable shape.
		summary.Power[i] = meanVar / float64(i+1)
	}
	return summary, nil
}

func (Engine) FitDecomposition(ctx context.Context, ds *session.Dataset, p backend.DecompositionParams) (*session.Decomposition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, fmt.Errorf("no dataset")
	}
	components := p.Components
	if components > len(ds.Channels) {
		components = len(ds.Channels)
	}
	if components <= 0 {
		return nil, fmt.Errorf("cannot fit %d components over %d channels", p.Components, len(ds.Channels))
	}
	// The fitting copy (high-passed at p.HighpassHz) is internal to the real
	// engine; the stand-in only records the model dimensions.
	return &session.Decomposition{Components: components}, nil
}

func (Engine) ApplyDecomposition(ctx context.Context, ds *session.Dataset, model *session.Decomposition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ds == nil || model == nil {
		return fmt.Errorf("dataset and model required")
	}
	for _, idx := range model.Excluded {
		if idx < 0 || idx >= model.Components {
			return fmt.Errorf("component %d out of range (model has %d)", idx, model.Components)
		}
	}
	if len(model.Excluded) == 0 {
		return nil
	}
	// Structural stand-in: attenuate the shared signal proportionally to the
	// excluded component share.
	share := float64(len(model.Excluded)) / float64(model.Components)
	samples := ds.SampleCount()
	for s := 0; s < samples; s++ {
		var mean float64
		for _, row := range ds.Samples {
			mean += row[s]
		}
		mean /= float64(len(ds.Samples))
		for _, row := range ds.Samples {
			row[s] -= mean * share
		}
	}
	return nil
}

func (Engine) Interpolate(ctx context.Context, ds *session.Dataset, channels []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ds == nil {
		return fmt.Errorf("no dataset")
	}
	targets := map[int]struct{}{}
	for _, name := range channels {
		idx, ok := ds.ChannelIndex(name)
		if !ok {
			return fmt.Errorf("unknown channel %q", name)
		}
		targets[idx] = struct{}{}
	}
	if len(targets) == 0 {
		return nil
	}
	if len(targets) == len(ds.Channels) {
		return fmt.Errorf("cannot interpolate every channel")
	}
	samples := ds.SampleCount()
	for s := 0; s < samples; s++ {
		var sum float64
		good := 0
		for i, row := range ds.Samples {
			if _, bad := targets[i]; bad {
				continue
			}
			sum += row[s]
			good++
		}
		replacement := sum / float64(good)
		for i := range targets {
			ds.Samples[i][s] = replacement
		}
	}
	return nil
}

func (Engine) Segment(ctx context.Context, ds *session.Dataset, p backend.SegmentParams) (*session.EpochCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, fmt.Errorf("no dataset")
	}
	offsetStart := int(math.Round(p.TMin * ds.SampleRate))
	offsetEnd := int(math.Round(p.TMax * ds.SampleRate))
	if offsetEnd <= offsetStart {
		return nil, fmt.Errorf("window [%f, %f] is empty at %g Hz", p.TMin, p.TMax, ds.SampleRate)
	}

	collection := &session.EpochCollection{
		Label:      p.Label,
		TMin:       p.TMin,
		TMax:       p.TMax,
		Baselined:  p.Baseline && p.TMin < 0,
		SampleRate: ds.SampleRate,
		Channels:   append([]session.Channel(nil), ds.Channels...),
	}

	total := ds.SampleCount()
	for _, marker := range ds.Markers {
		if marker.Label != p.Label {
			continue
		}
		start := marker.Sample + offsetStart
		end := marker.Sample + offsetEnd
		if start < 0 || end > total {
			// Window falls outside the recording; the epoch is dropped, as
			// vendor engines do.
			continue
		}
		epoch := make([][]float64, len(ds.Samples))
		for c, row := range ds.Samples {
			epoch[c] = append([]float64(nil), row[start:end]...)
			if collection.Baselined {
				baselineEnd := marker.Sample - start
				if baselineEnd > 0 {
					mean := rowMean(epoch[c][:baselineEnd])
					for i := range epoch[c] {
						epoch[c][i] -= mean
					}
				}
			}
		}
		collection.Epochs = append(collection.Epochs, epoch)
	}

	if collection.Count() == 0 {
		return nil, fmt.Errorf("no usable %q epochs in recording", p.Label)
	}
	return collection, nil
}

func (Engine) Average(ctx context.Context, epochs *session.EpochCollection) (*session.Evoked, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if epochs == nil || epochs.Count() == 0 {
		return nil, fmt.Errorf("no epochs")
	}
	channels := len(epochs.Epochs[0])
	samples := len(epochs.Epochs[0][0])
	data := make([][]float64, channels)
	for c := 0; c < channels; c++ {
		data[c] = make([]float64, samples)
	}
	for _, epoch := range epochs.Epochs {
		for c := 0; c < channels; c++ {
			for s := 0; s < samples; s++ {
				data[c][s] += epoch[c][s]
			}
		}
	}
	n := float64(epochs.Count())
	for c := 0; c < channels; c++ {
		for s := 0; s < samples; s++ {
			data[c][s] /= n
		}
	}
	return &session.Evoked{
		Label:      epochs.Label,
		TMin:       epochs.TMin,
		TMax:       epochs.TMax,
		SampleRate: epochs.SampleRate,
		Channels:   append([]session.Channel(nil), epochs.Channels...),
		Data:       data,
		EpochCount: epochs.Count(),
	}, nil
}

func (Engine) TimeFrequency(ctx context.Context, epochs *session.EpochCollection, p backend.TFRParams) (*session.Spectrogram, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if epochs == nil || epochs.Count() == 0 {
		return nil, fmt.Errorf("no epochs")
	}
	channel := -1
	for i, ch := range epochs.Channels {
		if ch.Name == p.Channel {
			channel = i
			break
		}
	}
	if channel < 0 {
		return nil, fmt.Errorf("channel %q not found in epochs", p.Channel)
	}

	samples := len(epochs.Epochs[0][channel])
	var freqs []float64
	for f := p.LowHz; f <= p.HighHz; f++ {
		freqs = append(freqs, f)
	}
	times := make([]float64, samples)
	for s := 0; s < samples; s++ {
		times[s] = epochs.TMin + float64(s)/epochs.SampleRate
	}

	// Stand-in power: mean squared amplitude across epochs, scaled down with
	// frequency so the map has a plausible 1/f shape.
	base := make([]float64, samples)
	for _, epoch := range epochs.Epochs {
		for s := 0; s < samples; s++ {
			base[s] += epoch[channel][s] * epoch[channel][s]
		}
	}
	for s := range base {
		base[s] /= float64(epochs.Count())
	}

	power := make([][]float64, len(freqs))
	for fi, f := range freqs {
		power[fi] = make([]float64, samples)
		for s := 0; s < samples; s++ {
			power[fi][s] = base[s] / f
		}
	}
	return &session.Spectrogram{Channel: p.Channel, Freqs: freqs, Times: times, Power: power}, nil
}

func (Engine) Connectivity(ctx context.Context, epochs *session.EpochCollection, p backend.ConnectivityParams) (*session.ConnectivityMatrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if epochs == nil || epochs.Count() == 0 {
		return nil, fmt.Errorf("no epochs")
	}
	channels := len(epochs.Channels)
	names := make([]string, channels)
	for i, ch := range epochs.Channels {
		names[i] = ch.Name
	}

	// Stand-in coupling: absolute correlation over concatenated epochs.
	series := make([][]float64, channels)
	for c := 0; c < channels; c++ {
		for _, epoch := range epochs.Epochs {
			series[c] = append(series[c], epoch[c]...)
		}
	}
	values := make([][]float64, channels)
	for i := 0; i < channels; i++ {
		values[i] = make([]float64, channels)
		values[i][i] = 1
	}
	for i := 0; i < channels; i++ {
		for j := i + 1; j < channels; j++ {
			v := math.Abs(correlation(series[i], series[j]))
			values[i][j] = v
			values[j][i] = v
		}
	}
	return &session.ConnectivityMatrix{
		Method:   p.Method,
		LowHz:    p.LowHz,
		HighHz:   p.HighHz,
		Channels: names,
		Values:   values,
	}, nil
}

func (Engine) Save(ctx context.Context, ds *session.Dataset, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ds == nil {
		return fmt.Errorf("no dataset")
	}
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}

func checkShape(ds *session.Dataset) error {
	if ds.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %g", ds.SampleRate)
	}
	if len(ds.Channels) == 0 {
		return fmt.Errorf("no channels")
	}
	if len(ds.Samples) != len(ds.Channels) {
		return fmt.Errorf("%d channel descriptors but %d sample rows", len(ds.Channels), len(ds.Samples))
	}
	width := len(ds.Samples[0])
	for i, row := range ds.Samples {
		if len(row) != width {
			return fmt.Errorf("channel %d has %d samples, expected %d", i, len(row), width)
		}
	}
	total := width
	for _, m := range ds.Markers {
		if m.Sample < 0 || m.Sample >= total {
			return fmt.Errorf("marker %q at sample %d outside recording", m.Label, m.Sample)
		}
	}
	return nil
}

func rowMean(row []float64) float64 {
	if len(row) == 0 {
		return 0
	}
	var sum float64
	for _, v := range row {
		sum += v
	}
	return sum / float64(len(row))
}

func rowVariance(row []float64) float64 {
	if len(row) == 0 {
		return 0
	}
	mean := rowMean(row)
	var sum float64
	for _, v := range row {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(row))
}

func correlation(a, b []float64) float64 {
	n := len(a)
	if n == 0 || n != len(b) {
		return 0
	}
	meanA := rowMean(a)
	meanB := rowMean(b)
	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
