package session

import "time"

// Operation names a pipeline operation. The constants below are the full
// request vocabulary; only operations that mutate or replace the working
// dataset are recorded in lineage.
type Operation string

const (
	OpLoad               Operation = "load"
	OpFilter             Operation = "filter"
	OpFitDecomposition   Operation = "fit_decomposition"
	OpApplyDecomposition Operation = "apply_decomposition"
	OpInterpolate        Operation = "interpolate"
	OpSegment            Operation = "segment"
	OpAverage            Operation = "average"
	OpTimeFrequency      Operation = "time_frequency"
	OpConnectivity       Operation = "connectivity"
	OpSaveDataset        Operation = "save_dataset"
	OpSaveSession        Operation = "save_session"
	OpRestoreSession     Operation = "restore_session"
	OpRunBatch           Operation = "run_batch"
)

// LineageEntry is one immutable record in the append-only lineage log.
type LineageEntry struct {
	Ordinal   int               `json:"ordinal"`
	Op        Operation         `json:"op"`
	Params    map[string]string `json:"params,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func cloneLineage(entries []LineageEntry) []LineageEntry {
	if entries == nil {
		return nil
	}
	cp := make([]LineageEntry, len(entries))
	copy(cp, entries)
	for i := range cp {
		if cp[i].Params != nil {
			params := make(map[string]string, len(cp[i].Params))
			for k, v := range cp[i].Params {
				params[k] = v
			}
			cp[i].Params = params
		}
	}
	return cp
}
