package session

import (
	"time"

	"github.com/google/uuid"
)

// State is the full mutable state of one analysis session. It is created
// empty, populated by load, advanced by stage operations, and replaced
// atomically by a restore. All mutation happens on the worker goroutine.
type State struct {
	ID            string
	Dataset       *Dataset
	Decomposition *Decomposition
	Epochs        *EpochCollection
	Evoked        *Evoked
	Spectrogram   *Spectrogram
	Connectivity  *ConnectivityMatrix
	Lineage       []LineageEntry
}

// NewState returns an empty session.
func NewState() *State {
	return &State{ID: uuid.NewString()}
}

// ReplaceDataset installs a freshly loaded dataset, resetting every derived
// artifact and the lineage log first. Reload is re-entrant: the graph returns
// to its empty shape before the new dataset is attached.
func (s *State) ReplaceDataset(ds *Dataset) {
	s.Dataset = ds
	s.Decomposition = nil
	s.Epochs = nil
	s.Evoked = nil
	s.Spectrogram = nil
	s.Connectivity = nil
	s.Lineage = nil
}

// SetEpochs installs a new epoch collection, discarding the previous one and
// every artifact derived from it.
func (s *State) SetEpochs(epochs *EpochCollection) {
	s.Epochs = epochs
	s.Evoked = nil
	s.Spectrogram = nil
	s.Connectivity = nil
}

// AppendLineage records a mutating operation and returns its ordinal.
// Entries are never reordered or removed.
func (s *State) AppendLineage(op Operation, params map[string]string) int {
	ordinal := len(s.Lineage) + 1
	var cp map[string]string
	if len(params) > 0 {
		cp = make(map[string]string, len(params))
		for k, v := range params {
			cp[k] = v
		}
	}
	s.Lineage = append(s.Lineage, LineageEntry{
		Ordinal:   ordinal,
		Op:        op,
		Params:    cp,
		Timestamp: time.Now().UTC(),
	})
	return ordinal
}

// LineageSnapshot returns a deep copy of the lineage log.
func (s *State) LineageSnapshot() []LineageEntry {
	return cloneLineage(s.Lineage)
}

// ReplaceAll swaps the entire session for the restored one. Restore is
// all-or-nothing; callers must fully validate next before calling.
func (s *State) ReplaceAll(next *State) {
	*s = *next
}

// Clone returns a deep copy of the whole session, used by persistence and by
// snapshot payloads that need more than a single artifact.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	return &State{
		ID:            s.ID,
		Dataset:       s.Dataset.Clone(),
		Decomposition: s.Decomposition.Clone(),
		Epochs:        s.Epochs.Clone(),
		Evoked:        s.Evoked.Clone(),
		Spectrogram:   s.Spectrogram.Clone(),
		Connectivity:  s.Connectivity.Clone(),
		Lineage:       cloneLineage(s.Lineage),
	}
}
