package worker

import (
	"context"

	"neuroflow/internal/backend"
	"neuroflow/internal/services"
	"neuroflow/internal/session"
)

// batchDriver runs batch stages against a scratch dataset. Each Load resets
// it, so item state never leaks between inputs or into the live session.
type batchDriver struct {
	engine backend.Interface
	ds     *session.Dataset
	model  *session.Decomposition
}

func newBatchDriver(engine backend.Interface) *batchDriver {
	return &batchDriver{engine: engine}
}

func (d *batchDriver) Load(ctx context.Context, path string) error {
	ds, err := d.engine.Load(ctx, path)
	if err != nil {
		return err
	}
	d.ds = ds
	d.model = nil
	return nil
}

func (d *batchDriver) Filter(ctx context.Context, p backend.FilterParams) error {
	return d.engine.Filter(ctx, d.ds, p)
}

func (d *batchDriver) FitDecomposition(ctx context.Context, p backend.DecompositionParams) error {
	model, err := d.engine.FitDecomposition(ctx, d.ds, p)
	if err != nil {
		return err
	}
	d.model = model
	return nil
}

func (d *batchDriver) ApplyDecomposition(ctx context.Context, exclude []int) error {
	if d.model == nil {
		return services.Wrap(services.ErrPrecondition, "batch", "apply decomposition",
			"no decomposition model fitted", nil)
	}
	d.model.Excluded = append([]int(nil), exclude...)
	return d.engine.ApplyDecomposition(ctx, d.ds, d.model)
}

func (d *batchDriver) Interpolate(ctx context.Context) error {
	if len(d.ds.Bad) == 0 {
		return nil
	}
	if err := d.engine.Interpolate(ctx, d.ds, d.ds.Bad); err != nil {
		return err
	}
	d.ds.Bad = nil
	return nil
}

func (d *batchDriver) Segment(ctx context.Context, p backend.SegmentParams) error {
	_, err := d.engine.Segment(ctx, d.ds, p)
	return err
}

func (d *batchDriver) Export(ctx context.Context, path string) error {
	return d.engine.Save(ctx, d.ds, path)
}
