package memdsp

import (
	"strings"

	"neuroflow/internal/session"
)

// standardPositions approximates a 10-20 sensor layout for the channels a
// recording most commonly carries. Loads fall back to it when the file has
// no position information for a recognized name.
var standardPositions = map[string]session.Position{
	"fp1": {X: -0.031, Y: 0.095, Z: 0.015},
	"fp2": {X: 0.031, Y: 0.095, Z: 0.015},
	"f7":  {X: -0.072, Y: 0.051, Z: 0.012},
	"f3":  {X: -0.047, Y: 0.059, Z: 0.061},
	"fz":  {X: 0, Y: 0.064, Z: 0.077},
	"f4":  {X: 0.047, Y: 0.059, Z: 0.061},
	"f8":  {X: 0.072, Y: 0.051, Z: 0.012},
	"t7":  {X: -0.084, Y: -0.012, Z: 0.009},
	"c3":  {X: -0.063, Y: -0.012, Z: 0.075},
	"cz":  {X: 0, Y: -0.009, Z: 0.1},
	"c4":  {X: 0.063, Y: -0.012, Z: 0.075},
	"t8":  {X: 0.084, Y: -0.012, Z: 0.009},
	"p7":  {X: -0.072, Y: -0.073, Z: 0.011},
	"p3":  {X: -0.047, Y: -0.078, Z: 0.059},
	"pz":  {X: 0, Y: -0.081, Z: 0.082},
	"p4":  {X: 0.047, Y: -0.078, Z: 0.059},
	"p8":  {X: 0.072, Y: -0.073, Z: 0.011},
	"o1":  {X: -0.029, Y: -0.112, Z: 0.008},
	"oz":  {X: 0, Y: -0.115, Z: 0.014},
	"o2":  {X: 0.029, Y: -0.112, Z: 0.008},
}

// inferKind classifies a channel by name the same way the interactive
// loader does: ocular and cardiac channels are recognized by substring.
func inferKind(name string) session.ChannelKind {
	lower := strings.ToLower(name)
	for _, marker := range []string{"eog", "heog", "veog"} {
		if strings.Contains(lower, marker) {
			return session.ChannelEOG
		}
	}
	for _, marker := range []string{"ecg", "ekg"} {
		if strings.Contains(lower, marker) {
			return session.ChannelECG
		}
	}
	return session.ChannelEEG
}

func standardPosition(name string) *session.Position {
	if pos, ok := standardPositions[strings.ToLower(name)]; ok {
		cp := pos
		return &cp
	}
	return nil
}
