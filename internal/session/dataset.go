package session

import (
	"fmt"
	"sort"
	"strings"
)

// ChannelKind classifies a recording channel.
type ChannelKind string

const (
	ChannelEEG ChannelKind = "eeg"
	ChannelEOG ChannelKind = "eog"
	ChannelECG ChannelKind = "ecg"
)

// Position is a 3-space sensor coordinate in meters.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Channel describes one recording channel.
type Channel struct {
	Name     string      `json:"name"`
	Kind     ChannelKind `json:"kind"`
	Position *Position   `json:"position,omitempty"`
}

// Marker is a discrete annotation tied to a sample offset.
type Marker struct {
	Label  string `json:"label"`
	Sample int    `json:"sample"`
}

// Dataset is the continuous multi-channel recording under analysis. It is
// exclusively owned by the session State: replaced wholesale on load and
// mutated in place by cumulative stages.
type Dataset struct {
	SourcePath string    `json:"source_path"`
	SampleRate float64   `json:"sample_rate"`
	Channels   []Channel `json:"channels"`
	// Samples is indexed [channel][sample].
	Samples [][]float64 `json:"samples"`
	Bad     []string    `json:"bad,omitempty"`
	Markers []Marker    `json:"markers,omitempty"`
}

// SampleCount returns the number of samples per channel.
func (d *Dataset) SampleCount() int {
	if d == nil || len(d.Samples) == 0 {
		return 0
	}
	return len(d.Samples[0])
}

// Duration returns the recording length in seconds.
func (d *Dataset) Duration() float64 {
	if d == nil || d.SampleRate <= 0 {
		return 0
	}
	return float64(d.SampleCount()) / d.SampleRate
}

// ChannelIndex returns the index of the named channel.
func (d *Dataset) ChannelIndex(name string) (int, bool) {
	if d == nil {
		return 0, false
	}
	for i, ch := range d.Channels {
		if ch.Name == name {
			return i, true
		}
	}
	return 0, false
}

// MarkerCount counts occurrences of the given trigger label.
func (d *Dataset) MarkerCount(label string) int {
	if d == nil {
		return 0
	}
	count := 0
	for _, m := range d.Markers {
		if m.Label == label {
			count++
		}
	}
	return count
}

// MarkerLabels returns the distinct trigger labels in first-seen order.
func (d *Dataset) MarkerLabels() []string {
	if d == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var labels []string
	for _, m := range d.Markers {
		if _, ok := seen[m.Label]; ok {
			continue
		}
		seen[m.Label] = struct{}{}
		labels = append(labels, m.Label)
	}
	return labels
}

// MarkBad records channels as bad, deduplicated and sorted.
func (d *Dataset) MarkBad(names ...string) error {
	if d == nil {
		return fmt.Errorf("no dataset")
	}
	set := map[string]struct{}{}
	for _, existing := range d.Bad {
		set[existing] = struct{}{}
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := d.ChannelIndex(name); !ok {
			return fmt.Errorf("unknown channel %q", name)
		}
		set[name] = struct{}{}
	}
	bad := make([]string, 0, len(set))
	for name := range set {
		bad = append(bad, name)
	}
	sort.Strings(bad)
	d.Bad = bad
	return nil
}

// Clone returns a deep copy safe to hand across the context boundary.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	cp := &Dataset{
		SourcePath: d.SourcePath,
		SampleRate: d.SampleRate,
		Channels:   cloneChannels(d.Channels),
		Samples:    cloneMatrix(d.Samples),
		Bad:        append([]string(nil), d.Bad...),
		Markers:    append([]Marker(nil), d.Markers...),
	}
	return cp
}

func cloneChannels(channels []Channel) []Channel {
	cp := make([]Channel, len(channels))
	copy(cp, channels)
	for i := range cp {
		if cp[i].Position != nil {
			pos := *cp[i].Position
			cp[i].Position = &pos
		}
	}
	return cp
}

func cloneMatrix(m [][]float64) [][]float64 {
	if m == nil {
		return nil
	}
	cp := make([][]float64, len(m))
	for i, row := range m {
		cp[i] = append([]float64(nil), row...)
	}
	return cp
}
