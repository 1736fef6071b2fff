package worker

import (
	"neuroflow/internal/backend"
	"neuroflow/internal/batch"
	"neuroflow/internal/persist"
	"neuroflow/internal/session"
)

// Request is one immutable unit of work for the analysis goroutine. Op
// selects the operation; only the fields that operation reads are consulted.
type Request struct {
	Op session.Operation

	// Path is the input recording for load, or the destination for the
	// save and restore operations.
	Path string

	Filter        backend.FilterParams
	Decomposition backend.DecompositionParams
	// Exclude lists component indices to remove when applying a fitted
	// decomposition.
	Exclude []int
	// Channels names the channels to reconstruct during interpolation. When
	// empty, the dataset's current bad-channel list is used.
	Channels     []string
	Segment      backend.SegmentParams
	TFR          backend.TFRParams
	Connectivity backend.ConnectivityParams

	// Batch is the job to run for the run_batch operation.
	Batch *batch.JobSpec

	// Trust is consulted before restoring a session file from outside the
	// configured session directory.
	Trust persist.TrustFunc
}
