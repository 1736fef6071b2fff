package stagegate

import (
	"fmt"

	"neuroflow/internal/services"
	"neuroflow/internal/session"
)

// Effect describes how an operation touches the working dataset.
type Effect string

const (
	// EffectReplaceAll resets the whole session graph and installs new state.
	EffectReplaceAll Effect = "replace_all"
	// EffectMutateInPlace cumulatively modifies the working dataset.
	EffectMutateInPlace Effect = "mutate_in_place"
	// EffectDeriveCopy produces a new derived structure without touching the
	// working dataset.
	EffectDeriveCopy Effect = "derive_copy"
	// EffectReadOnly neither mutates nor derives persistent session state
	// beyond a read-only artifact slot.
	EffectReadOnly Effect = "read_only"
)

type requirement struct {
	met    func(*session.State) bool
	detail string
}

var (
	needsDataset = requirement{
		met:    func(s *session.State) bool { return s != nil && s.Dataset != nil },
		detail: "no dataset loaded",
	}
	needsMarkers = requirement{
		met:    func(s *session.State) bool { return s != nil && s.Dataset != nil && len(s.Dataset.Markers) > 0 },
		detail: "dataset has no trigger events",
	}
	needsDecomposition = requirement{
		met:    func(s *session.State) bool { return s != nil && s.Decomposition != nil },
		detail: "no decomposition model fitted",
	}
	needsEpochs = requirement{
		met:    func(s *session.State) bool { return s != nil && s.Epochs != nil },
		detail: "dataset has not been segmented",
	}
)

type rule struct {
	effect   Effect
	logged   bool
	requires []requirement
}

// The operation table. Decomposition and cleanup are optional: segment only
// requires a loaded dataset with events, so the pipeline tolerates jumping
// straight from filtering to segmentation.
var rules = map[session.Operation]rule{
	session.OpLoad:               {effect: EffectReplaceAll, logged: true},
	session.OpFilter:             {effect: EffectMutateInPlace, logged: true, requires: []requirement{needsDataset}},
	session.OpFitDecomposition:   {effect: EffectDeriveCopy, logged: true, requires: []requirement{needsDataset}},
	session.OpApplyDecomposition: {effect: EffectMutateInPlace, logged: true, requires: []requirement{needsDataset, needsDecomposition}},
	session.OpInterpolate:        {effect: EffectMutateInPlace, logged: true, requires: []requirement{needsDataset}},
	session.OpSegment:            {effect: EffectDeriveCopy, logged: true, requires: []requirement{needsDataset, needsMarkers}},
	session.OpAverage:            {effect: EffectReadOnly, requires: []requirement{needsEpochs}},
	session.OpTimeFrequency:      {effect: EffectReadOnly, requires: []requirement{needsEpochs}},
	session.OpConnectivity:       {effect: EffectReadOnly, requires: []requirement{needsEpochs}},
	session.OpSaveDataset:        {effect: EffectReadOnly, requires: []requirement{needsDataset}},
	session.OpSaveSession:        {effect: EffectReadOnly, requires: []requirement{needsDataset}},
	session.OpRestoreSession:     {effect: EffectReplaceAll},
	session.OpRunBatch:           {effect: EffectReadOnly},
}

// Check rejects op with a precondition error unless every required session
// field is populated. A nil error means the operation may be dispatched.
func Check(state *session.State, op session.Operation) error {
	r, ok := rules[op]
	if !ok {
		return services.Wrap(services.ErrValidation, string(op), "", "unknown operation", nil)
	}
	for _, req := range r.requires {
		if !req.met(state) {
			return services.Wrap(services.ErrPrecondition, string(op), "", req.detail, nil)
		}
	}
	return nil
}

// EffectOf returns the enumerated dataset effect for op.
func EffectOf(op session.Operation) (Effect, error) {
	r, ok := rules[op]
	if !ok {
		return "", fmt.Errorf("unknown operation %q", op)
	}
	return r.effect, nil
}

// Logged reports whether op is recorded in the lineage log. Read-only
// operations (average, time-frequency, connectivity, exports) are not.
func Logged(op session.Operation) bool {
	return rules[op].logged
}

// DerivedState is the gate's view of pipeline progress, computed purely from
// populated session fields.
type DerivedState struct {
	Loaded          bool `json:"loaded"`
	Filtered        bool `json:"filtered"`
	Decomposed      bool `json:"decomposed"`
	Cleaned         bool `json:"cleaned"`
	Segmented       bool `json:"segmented"`
	Averaged        bool `json:"averaged"`
	SpectroTemporal bool `json:"spectro_temporal"`
	Connectivity    bool `json:"connectivity"`
}

// Derive computes the current pipeline state from state's fields. Lineage
// entries stand in for "has this mutation ever run" so no extra flags exist
// to fall out of sync.
func Derive(state *session.State) DerivedState {
	var d DerivedState
	if state == nil {
		return d
	}
	d.Loaded = state.Dataset != nil
	for _, entry := range state.Lineage {
		switch entry.Op {
		case session.OpFilter:
			d.Filtered = true
		case session.OpApplyDecomposition, session.OpInterpolate:
			d.Cleaned = true
		}
	}
	d.Decomposed = state.Decomposition != nil
	d.Segmented = state.Epochs != nil
	d.Averaged = state.Evoked != nil
	d.SpectroTemporal = state.Spectrogram != nil
	d.Connectivity = state.Connectivity != nil
	return d
}
