package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"neuroflow/internal/logging"
	"neuroflow/internal/services"
)

// lockName guards an output directory against concurrent batch runs.
const lockName = "batch.lock"

// Runner executes batch jobs. It runs entirely inside the worker context;
// the emitter delivers its events back to the host.
type Runner struct {
	Driver          StageDriver
	Emitter         Emitter
	Logger          *slog.Logger
	MinFreeSpaceMiB int
}

// Run drives spec to completion. The cancelled callback is polled once per
// item boundary; once it reports true the loop stops and remaining items are
// marked skipped. Exactly one summary is emitted on every path, including
// setup failures before the loop begins.
func (r *Runner) Run(ctx context.Context, spec JobSpec, cancelled func() bool) Summary {
	logger := logging.NewComponentLogger(r.Logger, "batch")
	if cancelled == nil {
		cancelled = func() bool { return false }
	}

	jobID := uuid.NewString()
	summary := Summary{JobID: jobID, Total: len(spec.Inputs)}

	fail := func(err error) Summary {
		details := services.Details(err)
		summary.SetupError = details.Message
		summary.Message = fmt.Sprintf("batch setup failed: %s", details.Message)
		logger.Error("batch setup failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "batch_setup_failed"),
		)
		r.Emitter.BatchSummary(summary)
		return summary
	}

	if err := spec.Validate(); err != nil {
		return fail(err)
	}
	if err := preflight(spec, r.MinFreeSpaceMiB); err != nil {
		return fail(err)
	}

	lock := flock.New(filepath.Join(spec.OutputDir, lockName))
	locked, err := lock.TryLock()
	if err != nil {
		return fail(services.Wrap(services.ErrIO, "batch", "lock", "acquire output lock", err))
	}
	if !locked {
		return fail(services.Wrap(services.ErrIO, "batch", "lock",
			fmt.Sprintf("another batch is running in %s", spec.OutputDir), nil))
	}
	defer func() { _ = lock.Unlock() }()

	store, err := OpenStore(ctx, spec.OutputDir)
	if err != nil {
		return fail(services.Wrap(services.ErrIO, "batch", "results db", "", err))
	}
	defer store.Close()

	if err := store.CreateJob(ctx, jobID, spec.OutputDir, spec.Inputs); err != nil {
		return fail(services.Wrap(services.ErrIO, "batch", "results db", "", err))
	}

	logger.Info("batch started",
		logging.String("job_id", jobID),
		logging.Int("total", summary.Total),
		logging.String("output_dir", spec.OutputDir),
	)

	for i, input := range spec.Inputs {
		index := i + 1
		if cancelled() {
			summary.Canceled = true
			break
		}

		itemCtx := services.WithBatchItem(ctx, index)
		itemLogger := logging.WithContext(itemCtx, logger)

		if err := store.MarkItemRunning(ctx, jobID, index); err != nil {
			itemLogger.Warn("results db update failed", logging.Error(err))
		}

		itemErr := r.runItem(itemCtx, spec, input)
		if itemErr != nil {
			summary.Failed++
			details := services.Details(itemErr)
			itemLogger.Error("batch item failed",
				logging.String("input", input),
				logging.Error(itemErr),
				logging.String(logging.FieldEventType, "batch_item_failed"),
			)
			if err := store.RecordOutcome(ctx, jobID, index, ItemFailed, details.Message); err != nil {
				itemLogger.Warn("results db update failed", logging.Error(err))
			}
		} else {
			summary.Completed++
			itemLogger.Info("batch item completed", logging.String("input", input))
			if err := store.RecordOutcome(ctx, jobID, index, ItemCompleted, ""); err != nil {
				itemLogger.Warn("results db update failed", logging.Error(err))
			}
		}

		r.Emitter.BatchProgress(Progress{
			Index:  index,
			Total:  summary.Total,
			Item:   input,
			Failed: itemErr != nil,
		})
	}

	summary.Skipped = summary.Total - summary.Completed - summary.Failed
	if summary.Skipped > 0 {
		for index := summary.Completed + summary.Failed + 1; index <= summary.Total; index++ {
			if err := store.RecordOutcome(ctx, jobID, index, ItemSkipped, ""); err != nil {
				logger.Warn("results db update failed", logging.Error(err))
			}
		}
	}

	switch {
	case summary.Canceled:
		summary.Message = fmt.Sprintf("batch canceled after %d of %d items", summary.Completed+summary.Failed, summary.Total)
	case summary.Failed > 0:
		summary.Message = fmt.Sprintf("batch completed with %d failures", summary.Failed)
	default:
		summary.Message = "batch completed"
	}

	if err := store.FinishJob(ctx, summary); err != nil {
		logger.Warn("results db update failed", logging.Error(err))
	}
	logger.Info("batch finished",
		logging.String("job_id", jobID),
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Bool("canceled", summary.Canceled),
	)
	r.Emitter.BatchSummary(summary)
	return summary
}

// runItem drives the stage sequence for one input. A panic in any stage is
// contained here so it counts as that item's failure, not the batch's.
func (r *Runner) runItem(ctx context.Context, spec JobSpec, input string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = services.Wrap(services.ErrBackend, "batch", "item", fmt.Sprintf("panic: %v", rec), nil)
		}
	}()

	if err := r.Driver.Load(ctx, input); err != nil {
		return err
	}
	if spec.Filter != nil {
		if err := r.Driver.Filter(ctx, *spec.Filter); err != nil {
			return err
		}
	}
	if spec.Decomposition != nil {
		if err := r.Driver.FitDecomposition(ctx, *spec.Decomposition); err != nil {
			return err
		}
		if err := r.Driver.ApplyDecomposition(ctx, spec.Exclude); err != nil {
			return err
		}
	}
	if spec.InterpolateBad {
		if err := r.Driver.Interpolate(ctx); err != nil {
			return err
		}
	}
	if spec.Segment != nil {
		if err := r.Driver.Segment(ctx, *spec.Segment); err != nil {
			return err
		}
	}
	if spec.Export {
		if err := r.Driver.Export(ctx, exportPath(spec.OutputDir, input)); err != nil {
			return err
		}
	}
	return nil
}

func exportPath(outputDir, input string) string {
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".json"
	}
	return filepath.Join(outputDir, stem+"_processed"+ext)
}
