package backend_test

import (
	"errors"
	"testing"

	"neuroflow/internal/backend"
	"neuroflow/internal/services"
)

func TestValidateFilterParams(t *testing.T) {
	cases := []struct {
		name   string
		params backend.FilterParams
		ok     bool
	}{
		{"bandpass", backend.FilterParams{LowHz: 1, HighHz: 40, NotchHz: 50}, true},
		{"notch only", backend.FilterParams{NotchHz: 60}, true},
		{"raw", backend.FilterParams{}, true},
		{"inverted band", backend.FilterParams{LowHz: 40, HighHz: 1}, false},
		{"negative edge", backend.FilterParams{LowHz: -1, HighHz: 40}, false},
	}
	for _, tc := range cases {
		err := backend.ValidateParams("filter", tc.params)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("%s: expected validation error", tc.name)
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("%s: expected ErrValidation, got %v", tc.name, err)
			}
		}
	}
}

func TestValidateSegmentParams(t *testing.T) {
	if err := backend.ValidateParams("segment", backend.SegmentParams{Label: "A", TMin: -0.2, TMax: 0.5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := backend.ValidateParams("segment", backend.SegmentParams{Label: "", TMin: -0.2, TMax: 0.5}); err == nil {
		t.Fatal("expected error for empty label")
	}
	if err := backend.ValidateParams("segment", backend.SegmentParams{Label: "A", TMin: 0.5, TMax: 0.5}); err == nil {
		t.Fatal("expected error for tmin >= tmax")
	}
}

func TestValidateConnectivityMethod(t *testing.T) {
	if err := backend.ValidateParams("connectivity", backend.ConnectivityParams{Method: "wpli", LowHz: 8, HighHz: 12}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := backend.ValidateParams("connectivity", backend.ConnectivityParams{Method: "magic", LowHz: 8, HighHz: 12}); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestFilterLabel(t *testing.T) {
	cases := []struct {
		params   backend.FilterParams
		expected string
	}{
		{backend.FilterParams{LowHz: 1, HighHz: 40}, "Bandpass: 1-40 Hz"},
		{backend.FilterParams{LowHz: 1, HighHz: 40, NotchHz: 50}, "Bandpass: 1-40 Hz | Notch: 50 Hz"},
		{backend.FilterParams{NotchHz: 60}, "Notch: 60 Hz"},
		{backend.FilterParams{}, "Raw Signal"},
	}
	for _, tc := range cases {
		if got := tc.params.Label(); got != tc.expected {
			t.Fatalf("expected %q, got %q", tc.expected, got)
		}
	}
}

func TestParamsMap(t *testing.T) {
	m := backend.ParamsMap(backend.SegmentParams{Label: "A", TMin: -0.2, TMax: 0.5, Baseline: true})
	if m["label"] != "A" || m["tmin"] != "-0.2" || m["tmax"] != "0.5" || m["baseline"] != "true" {
		t.Fatalf("unexpected params map: %v", m)
	}
}
