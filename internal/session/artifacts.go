package session

// Decomposition is a blind-source-separation style model fitted to the
// dataset at a point in time. It cannot exist before a dataset is loaded and
// is discarded when the dataset is reloaded.
type Decomposition struct {
	Components int   `json:"components"`
	Excluded   []int `json:"excluded,omitempty"`
	// FittedAtOrdinal records the lineage ordinal current when the model was
	// fitted, for staleness auditing.
	FittedAtOrdinal int `json:"fitted_at_ordinal"`
}

// Clone returns a deep copy of the model.
func (m *Decomposition) Clone() *Decomposition {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Excluded = append([]int(nil), m.Excluded...)
	return &cp
}

// EpochCollection is an independent segmented copy of the dataset keyed by
// trigger label and window. Only one instance is live at a time; a new
// segmentation replaces the previous collection entirely.
type EpochCollection struct {
	Label      string    `json:"label"`
	TMin       float64   `json:"tmin"`
	TMax       float64   `json:"tmax"`
	Baselined  bool      `json:"baselined"`
	SampleRate float64   `json:"sample_rate"`
	Channels   []Channel `json:"channels"`
	// Epochs is indexed [epoch][channel][sample].
	Epochs [][][]float64 `json:"epochs"`
}

// Count returns the number of epochs.
func (e *EpochCollection) Count() int {
	if e == nil {
		return 0
	}
	return len(e.Epochs)
}

// Clone returns a deep copy of the collection.
func (e *EpochCollection) Clone() *EpochCollection {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Channels = cloneChannels(e.Channels)
	cp.Epochs = make([][][]float64, len(e.Epochs))
	for i, epoch := range e.Epochs {
		cp.Epochs[i] = cloneMatrix(epoch)
	}
	return &cp
}

// Evoked is the average response across an epoch collection. Read-only.
type Evoked struct {
	Label      string    `json:"label"`
	TMin       float64   `json:"tmin"`
	TMax       float64   `json:"tmax"`
	SampleRate float64   `json:"sample_rate"`
	Channels   []Channel `json:"channels"`
	// Data is indexed [channel][sample].
	Data       [][]float64 `json:"data"`
	EpochCount int         `json:"epoch_count"`
}

// Clone returns a deep copy of the evoked response.
func (e *Evoked) Clone() *Evoked {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Channels = cloneChannels(e.Channels)
	cp.Data = cloneMatrix(e.Data)
	return &cp
}

// Spectrogram is a time-frequency map for a single channel. Read-only.
type Spectrogram struct {
	Channel string    `json:"channel"`
	Freqs   []float64 `json:"freqs"`
	Times   []float64 `json:"times"`
	// Power is indexed [freq][time].
	Power [][]float64 `json:"power"`
}

// Clone returns a deep copy of the spectrogram.
func (s *Spectrogram) Clone() *Spectrogram {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Freqs = append([]float64(nil), s.Freqs...)
	cp.Times = append([]float64(nil), s.Times...)
	cp.Power = cloneMatrix(s.Power)
	return &cp
}

// ConnectivityMatrix is a channel-pair connectivity estimate. Read-only.
type ConnectivityMatrix struct {
	Method   string   `json:"method"`
	LowHz    float64  `json:"low_hz"`
	HighHz   float64  `json:"high_hz"`
	Channels []string `json:"channels"`
	// Values is indexed [channel][channel].
	Values [][]float64 `json:"values"`
}

// Clone returns a deep copy of the matrix.
func (c *ConnectivityMatrix) Clone() *ConnectivityMatrix {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Channels = append([]string(nil), c.Channels...)
	cp.Values = cloneMatrix(c.Values)
	return &cp
}

// SpectralSummary is the mean power spectrum emitted after filter stages.
// It is an event payload only and is never stored in the session state.
type SpectralSummary struct {
	Freqs       []float64 `json:"freqs"`
	Power       []float64 `json:"power"`
	FilterLabel string    `json:"filter_label"`
}
