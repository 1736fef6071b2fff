package batch

import (
	"context"
	"strings"

	"neuroflow/internal/backend"
	"neuroflow/internal/services"
)

// JobSpec describes one batch job: the input set, the stage configuration
// applied to every input, and the output directory. A spec is consumed once
// per run and is not persisted.
type JobSpec struct {
	Inputs    []string `validate:"min=1,dive,required"`
	OutputDir string   `validate:"required"`

	// Optional stages; nil disables the stage for the whole run.
	Filter        *backend.FilterParams
	Decomposition *backend.DecompositionParams
	// Exclude lists the components removed when a decomposition is fitted.
	Exclude []int
	// InterpolateBad reconstructs channels marked bad after cleanup.
	InterpolateBad bool
	Segment        *backend.SegmentParams
	// Export writes the processed dataset next to the results database.
	Export bool
}

// Validate rejects malformed specs before the loop begins.
func (s JobSpec) Validate() error {
	// Nested stage params are validated transitively by the shared validator.
	if err := backend.ValidateParams("batch", s); err != nil {
		return err
	}
	for _, input := range s.Inputs {
		if strings.TrimSpace(input) == "" {
			return services.Wrap(services.ErrValidation, "batch", "inputs", "blank input path", nil)
		}
	}
	if len(s.Exclude) > 0 && s.Decomposition == nil {
		return services.Wrap(services.ErrValidation, "batch", "exclude", "exclusions require a decomposition stage", nil)
	}
	return nil
}

// StageDriver is the per-item stage surface the runner drives. The worker
// implements it over a scratch dataset so a batch never disturbs the
// interactive session.
type StageDriver interface {
	Load(ctx context.Context, path string) error
	Filter(ctx context.Context, p backend.FilterParams) error
	FitDecomposition(ctx context.Context, p backend.DecompositionParams) error
	ApplyDecomposition(ctx context.Context, exclude []int) error
	Interpolate(ctx context.Context) error
	Segment(ctx context.Context, p backend.SegmentParams) error
	Export(ctx context.Context, path string) error
}

// Progress reports one finished item for determinate progress bars.
type Progress struct {
	Index int    `json:"index"`
	Total int    `json:"total"`
	Item  string `json:"item"`
	// Failed marks items that were attempted but did not complete.
	Failed bool `json:"failed,omitempty"`
}

// Summary is the single terminal report of a batch run.
type Summary struct {
	JobID     string `json:"job_id,omitempty"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Canceled  bool   `json:"canceled"`
	// SetupError is set when the run aborted before any item started.
	SetupError string `json:"setup_error,omitempty"`
	Message    string `json:"message"`
}

// Emitter receives batch events for delivery to the host context.
type Emitter interface {
	BatchProgress(Progress)
	BatchSummary(Summary)
}
