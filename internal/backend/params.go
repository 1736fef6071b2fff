package backend

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"

	"neuroflow/internal/services"
)

// FilterParams configures the band-pass/notch filter stage. A zero edge
// disables that edge; a zero notch disables the notch.
type FilterParams struct {
	LowHz   float64 `validate:"gte=0"`
	HighHz  float64 `validate:"gte=0"`
	NotchHz float64 `validate:"gte=0"`
}

// Label renders the filter configuration for events and reports, mirroring
// the labels the interactive front end shows next to spectra.
func (p FilterParams) Label() string {
	switch {
	case p.LowHz > 0 || p.HighHz > 0:
		label := fmt.Sprintf("Bandpass: %s-%s Hz", trimFloat(p.LowHz), trimFloat(p.HighHz))
		if p.NotchHz > 0 {
			label += fmt.Sprintf(" | Notch: %s Hz", trimFloat(p.NotchHz))
		}
		return label
	case p.NotchHz > 0:
		return fmt.Sprintf("Notch: %s Hz", trimFloat(p.NotchHz))
	default:
		return "Raw Signal"
	}
}

// DecompositionParams configures artifact decomposition fitting.
type DecompositionParams struct {
	Components int     `validate:"gt=0,lte=256"`
	HighpassHz float64 `validate:"gte=0"`
}

// SegmentParams configures epoch extraction around a trigger label.
type SegmentParams struct {
	Label    string  `validate:"required"`
	TMin     float64 `validate:"ltfield=TMax"`
	TMax     float64
	Baseline bool
}

// TFRParams configures the time-frequency map.
type TFRParams struct {
	Channel   string  `validate:"required"`
	LowHz     float64 `validate:"gt=0"`
	HighHz    float64 `validate:"gtfield=LowHz"`
	CyclesDiv int     `validate:"gt=0"`
}

// ConnectivityParams configures channel-pair coupling estimation.
type ConnectivityParams struct {
	Method string  `validate:"oneof=wpli plv coh"`
	LowHz  float64 `validate:"gt=0"`
	HighHz float64 `validate:"gtfield=LowHz"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(filterStructLevel, FilterParams{})
	return v
}

func filterStructLevel(sl validator.StructLevel) {
	p := sl.Current().Interface().(FilterParams)
	if p.LowHz > 0 && p.HighHz > 0 && p.LowHz >= p.HighHz {
		sl.ReportError(p.LowHz, "LowHz", "LowHz", "ltband", "")
	}
}

// ValidateParams checks a parameter struct against its declared rules and
// wraps any violation as a validation error so the gate can reject the
// request before dispatch.
func ValidateParams(stage string, params any) error {
	if err := validate.Struct(params); err != nil {
		return services.Wrap(services.ErrValidation, stage, "parameters", describeValidation(err), nil)
	}
	return nil
}

func describeValidation(err error) string {
	var fieldErrors validator.ValidationErrors
	if ok := asValidationErrors(err, &fieldErrors); ok && len(fieldErrors) > 0 {
		fe := fieldErrors[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", fe.Field())
		case "ltband":
			return "low edge must be below high edge"
		case "ltfield", "gtfield":
			return fmt.Sprintf("%s conflicts with %s", fe.Field(), fe.Param())
		case "oneof":
			return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
		default:
			return fmt.Sprintf("%s is out of range", fe.Field())
		}
	}
	return err.Error()
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	*target = fieldErrors
	return true
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParamsMap flattens a parameter struct into the string map recorded in
// lineage entries.
func ParamsMap(params any) map[string]string {
	switch p := params.(type) {
	case FilterParams:
		return map[string]string{
			"low_hz":   trimFloat(p.LowHz),
			"high_hz":  trimFloat(p.HighHz),
			"notch_hz": trimFloat(p.NotchHz),
		}
	case DecompositionParams:
		return map[string]string{
			"components":  strconv.Itoa(p.Components),
			"highpass_hz": trimFloat(p.HighpassHz),
		}
	case SegmentParams:
		return map[string]string{
			"label":    p.Label,
			"tmin":     trimFloat(p.TMin),
			"tmax":     trimFloat(p.TMax),
			"baseline": strconv.FormatBool(p.Baseline),
		}
	case TFRParams:
		return map[string]string{
			"channel":    p.Channel,
			"low_hz":     trimFloat(p.LowHz),
			"high_hz":    trimFloat(p.HighHz),
			"cycles_div": strconv.Itoa(p.CyclesDiv),
		}
	case ConnectivityParams:
		return map[string]string{
			"method":  p.Method,
			"low_hz":  trimFloat(p.LowHz),
			"high_hz": trimFloat(p.HighHz),
		}
	default:
		return nil
	}
}
