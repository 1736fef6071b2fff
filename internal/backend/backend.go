package backend

import (
	"context"

	"neuroflow/internal/session"
)

// Interface is the contract an underlying signal-processing engine must
// satisfy. Mutating operations modify the dataset they are handed; deriving
// operations leave their input untouched and return a new structure.
type Interface interface {
	// Load parses the recording at path into a dataset.
	Load(ctx context.Context, path string) (*session.Dataset, error)
	// Filter applies band-pass/notch filtering to ds in place.
	Filter(ctx context.Context, ds *session.Dataset, p FilterParams) error
	// Spectrum computes the mean power spectrum of ds without modifying it.
	Spectrum(ctx context.Context, ds *session.Dataset) (*session.SpectralSummary, error)
	// FitDecomposition fits an artifact decomposition model. The fitting copy
	// is internal; ds is not modified.
	FitDecomposition(ctx context.Context, ds *session.Dataset, p DecompositionParams) (*session.Decomposition, error)
	// ApplyDecomposition removes the model's excluded components from ds in place.
	ApplyDecomposition(ctx context.Context, ds *session.Dataset, model *session.Decomposition) error
	// Interpolate reconstructs the named bad channels in place.
	Interpolate(ctx context.Context, ds *session.Dataset, channels []string) error
	// Segment cuts fixed-window epochs around every marker matching p.Label.
	Segment(ctx context.Context, ds *session.Dataset, p SegmentParams) (*session.EpochCollection, error)
	// Average computes the mean response across epochs.
	Average(ctx context.Context, epochs *session.EpochCollection) (*session.Evoked, error)
	// TimeFrequency computes a per-channel time-frequency map over epochs.
	TimeFrequency(ctx context.Context, epochs *session.EpochCollection, p TFRParams) (*session.Spectrogram, error)
	// Connectivity estimates channel-pair coupling over epochs.
	Connectivity(ctx context.Context, epochs *session.EpochCollection, p ConnectivityParams) (*session.ConnectivityMatrix, error)
	// Save writes ds to path.
	Save(ctx context.Context, ds *session.Dataset, path string) error
}
