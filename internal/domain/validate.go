package domain

import (
	"fmt"
	"math"
)

// ValidateSample rejects samples that cannot be assessed without guessing.
func ValidateSample(s WeatherSample) error {
	if s.Temperature != nil && !isFinite(*s.Temperature) {
		return &InvalidInputError{Field: "temperature", Reason: "not a finite number"}
	}
	if !isFinite(s.WindSpeed) {
		return &InvalidInputError{Field: "wind_speed", Reason: "not a finite number"}
	}
	if s.WindSpeed < 0 {
		return &InvalidInputError{Field: "wind_speed", Reason: "negative"}
	}
	for i, v := range s.HourlyPrecipitation {
		if !isFinite(v) {
			return &InvalidInputError{Field: fmt.Sprintf("hourly_precipitation[%d]", i), Reason: "not a finite number"}
		}
		if v < 0 {
			return &InvalidInputError{Field: fmt.Sprintf("hourly_precipitation[%d]", i), Reason: "negative"}
		}
	}
	for i, v := range s.HourlyHumidity {
		if !isFinite(v) || v < 0 || v > 100 {
			return &InvalidInputError{Field: fmt.Sprintf("hourly_humidity[%d]", i), Reason: "outside 0-100"}
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
