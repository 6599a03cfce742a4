// Package classify maps a water-quality sample to a safety verdict.
// Classification is pure: no I/O, no side effects, total over all finite
// inputs.
package classify

import "fmt"

// Reason identifies which threshold(s) an unsafe reading exceeded.
type Reason string

const (
	ReasonNone        Reason = "none"
	ReasonTDS         Reason = "tds_exceeded"
	ReasonTemperature Reason = "temperature_exceeded"
	ReasonBoth        Reason = "tds_and_temperature_exceeded"
)

// Thresholds holds the active safety limits. Upper bounds are inclusive:
// a reading exactly at a maximum is still safe.
type Thresholds struct {
	TDSMaxPPM float64 `json:"tds_max_ppm"`
	TempMaxC  float64 `json:"temp_max_c"`
}

// Default returns the ASHRAE-derived cooling water limits.
func Default() Thresholds {
	return Thresholds{
		TDSMaxPPM: 500,
		TempMaxC:  27,
	}
}

// Verdict is the result of classifying one sample.
type Verdict struct {
	Safe   bool     `json:"safe"`
	Reason Reason   `json:"reason"`
	Issues []string `json:"issues,omitempty"`
}

// Classify checks a sample against the thresholds. A reading is unsafe if
// tds_ppm > tds_max_ppm or temperature_c > temp_max_c.
func Classify(tdsPPM, temperatureC float64, t Thresholds) Verdict {
	tdsHigh := tdsPPM > t.TDSMaxPPM
	tempHigh := temperatureC > t.TempMaxC

	v := Verdict{Safe: !tdsHigh && !tempHigh, Reason: ReasonNone}

	if tdsHigh {
		v.Reason = ReasonTDS
		v.Issues = append(v.Issues,
			fmt.Sprintf("TDS %g ppm exceeds %g ppm (scale formation risk)", tdsPPM, t.TDSMaxPPM))
	}

	if tempHigh {
		v.Reason = ReasonTemperature
		if tdsHigh {
			v.Reason = ReasonBoth
		}
		v.Issues = append(v.Issues,
			fmt.Sprintf("temperature %g C exceeds %g C (reduced cooling efficiency)", temperatureC, t.TempMaxC))
	}

	return v
}
