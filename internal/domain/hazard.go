package domain

import "math"

// Level is the categorical risk label of a hazard.
type Level string

const (
	LevelLow     Level = "Low"
	LevelMedium  Level = "Medium"
	LevelHigh    Level = "High"
	LevelUnknown Level = "Unknown"
)

// Method tags for the threshold-based verdicts.
const (
	MethodTemperatureThreshold = "temperature-threshold"
	MethodWindThreshold        = "wind-threshold"
)

// HazardVerdict is the assessed risk of one hazard kind.
type HazardVerdict struct {
	Score  float64 `json:"score"`
	Level  Level   `json:"level"`
	Method string  `json:"method,omitempty"`
}

// HeatVerdict maps the current temperature (°C) to a heat verdict.
// A nil temperature yields Unknown rather than Low.
func HeatVerdict(temperature *float64) HazardVerdict {
	if temperature == nil {
		return HazardVerdict{Score: 0.5, Level: LevelUnknown, Method: MethodTemperatureThreshold}
	}

	t := *temperature
	switch {
	case t >= 40:
		return HazardVerdict{Score: 0.95, Level: LevelHigh, Method: MethodTemperatureThreshold}
	case t >= 32:
		return HazardVerdict{Score: 0.7, Level: LevelMedium, Method: MethodTemperatureThreshold}
	default:
		return HazardVerdict{Score: 0.2, Level: LevelLow, Method: MethodTemperatureThreshold}
	}
}

// StormVerdict maps wind speed (km/h) to a storm verdict.
func StormVerdict(windSpeed float64) HazardVerdict {
	switch {
	case windSpeed >= 80:
		return HazardVerdict{Score: 0.95, Level: LevelHigh, Method: MethodWindThreshold}
	case windSpeed >= 45:
		return HazardVerdict{Score: 0.7, Level: LevelMedium, Method: MethodWindThreshold}
	default:
		return HazardVerdict{Score: 0.2, Level: LevelLow, Method: MethodWindThreshold}
	}
}

// RoundScore clamps a score to [0,1] and rounds it to the given decimal places.
func RoundScore(score float64, places int) float64 {
	if math.IsNaN(score) {
		return 0
	}
	score = math.Max(0, math.Min(1, score))
	pow := math.Pow(10, float64(places))
	return math.Round(score*pow) / pow
}
