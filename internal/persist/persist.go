package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"neuroflow/internal/config"
	"neuroflow/internal/services"
	"neuroflow/internal/session"
	"neuroflow/internal/stagegate"
)

// FormatVersion is bumped whenever the envelope layout changes in a way old
// readers cannot handle.
const FormatVersion = 1

// Envelope is the on-disk session file. Settings records the pipeline
// defaults in effect at save time, for auditing; restore does not apply them.
type Envelope struct {
	Version  int              `json:"version"`
	SavedAt  time.Time        `json:"saved_at"`
	Settings *config.Pipeline `json:"settings,omitempty"`
	Session  *session.State   `json:"session"`
}

// FileInfo describes a session file to the trust callback before any of its
// contents are decoded.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// TrustFunc is asked once per restore whether the file may be opened.
// Returning false aborts the restore.
type TrustFunc func(FileInfo) bool

// Save writes state to path. The write is atomic: the envelope lands in a
// temp file in the target directory and is renamed into place, so a crash
// mid-write never corrupts an existing session file.
func Save(state *session.State, settings *config.Pipeline, path string) error {
	if state == nil || state.Dataset == nil {
		return services.Wrap(services.ErrPrecondition, "save session", "", "no dataset loaded", nil)
	}

	envelope := Envelope{
		Version:  FormatVersion,
		SavedAt:  time.Now().UTC(),
		Settings: settings,
		Session:  state.Clone(),
	}
	payload, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrIO, "save session", "encode", "", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrIO, "save session", "create directory", "", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return services.Wrap(services.ErrIO, "save session", "create temp file", "", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return services.Wrap(services.ErrIO, "save session", "write", "", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return services.Wrap(services.ErrIO, "save session", "close temp file", "", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return services.Wrap(services.ErrIO, "save session", "rename", "", err)
	}
	return nil
}

// Restore reads and fully validates the session file at path. The returned
// state is detached; the caller decides when to swap it in. The live session
// is never touched here, so a corrupt file cannot destroy current work.
func Restore(path string, confirm TrustFunc) (*session.State, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "restore session", "stat", "", err)
	}
	if confirm == nil || !confirm(FileInfo{Path: path, Size: info.Size(), ModTime: info.ModTime()}) {
		return nil, services.Wrap(services.ErrTrustConfirmation, "restore session", "",
			"session file not confirmed as trusted", nil)
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "restore session", "read", "", err)
	}
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, services.Wrap(services.ErrValidation, "restore session", "decode", "not a session file", err)
	}
	if envelope.Version != FormatVersion {
		return nil, services.Wrap(services.ErrValidation, "restore session", "",
			fmt.Sprintf("unsupported session format version %d", envelope.Version), nil)
	}
	if err := validateState(envelope.Session); err != nil {
		return nil, err
	}
	return envelope.Session, nil
}

// validateState checks the restored graph for internal consistency before it
// can replace the live session.
func validateState(s *session.State) error {
	invalid := func(msg string) error {
		return services.Wrap(services.ErrValidation, "restore session", "", msg, nil)
	}
	if s == nil {
		return invalid("file contains no session")
	}
	if s.ID == "" {
		return invalid("session has no identifier")
	}
	if s.Dataset == nil {
		return invalid("session has no dataset")
	}
	ds := s.Dataset
	if ds.SampleRate <= 0 {
		return invalid("dataset sample rate must be positive")
	}
	if len(ds.Channels) == 0 {
		return invalid("dataset has no channels")
	}
	if len(ds.Samples) != len(ds.Channels) {
		return invalid("channel table and signal rows disagree")
	}
	n := len(ds.Samples[0])
	for _, row := range ds.Samples {
		if len(row) != n {
			return invalid("signal rows have unequal lengths")
		}
	}
	for _, marker := range ds.Markers {
		if marker.Sample < 0 || marker.Sample >= n {
			return invalid(fmt.Sprintf("marker %q outside the recording", marker.Label))
		}
	}
	for _, name := range ds.Bad {
		if _, ok := ds.ChannelIndex(name); !ok {
			return invalid(fmt.Sprintf("bad-channel entry %q not in channel table", name))
		}
	}
	if m := s.Decomposition; m != nil {
		if m.Components <= 0 {
			return invalid("decomposition has no components")
		}
		for _, idx := range m.Excluded {
			if idx < 0 || idx >= m.Components {
				return invalid(fmt.Sprintf("excluded component %d out of range", idx))
			}
		}
	}
	if e := s.Epochs; e != nil {
		if e.Count() == 0 {
			return invalid("epoch collection is empty")
		}
		if len(e.Channels) == 0 {
			return invalid("epoch collection has no channels")
		}
		for _, epoch := range e.Epochs {
			if len(epoch) != len(e.Channels) {
				return invalid("epoch channel count disagrees with channel table")
			}
		}
	}
	if err := validateLineage(s.Lineage); err != nil {
		return err
	}
	return nil
}

func validateLineage(entries []session.LineageEntry) error {
	for i, entry := range entries {
		if entry.Ordinal != i+1 {
			return services.Wrap(services.ErrValidation, "restore session", "",
				fmt.Sprintf("lineage ordinal %d at position %d", entry.Ordinal, i+1), nil)
		}
		if entry.Op == "" {
			return services.Wrap(services.ErrValidation, "restore session", "",
				fmt.Sprintf("lineage entry %d has no operation", entry.Ordinal), nil)
		}
		if _, err := stagegate.EffectOf(entry.Op); err != nil {
			return services.Wrap(services.ErrValidation, "restore session", "",
				fmt.Sprintf("lineage entry %d names unknown operation %q", entry.Ordinal, entry.Op), nil)
		}
		if !stagegate.Logged(entry.Op) {
			return services.Wrap(services.ErrValidation, "restore session", "",
				fmt.Sprintf("lineage entry %d records non-mutating operation %q", entry.Ordinal, entry.Op), nil)
		}
	}
	return nil
}
