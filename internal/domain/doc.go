// Package domain models the inputs and outputs of a climate-hazard risk
// assessment and holds the pure rules applied to them.
//
// # Weather Input
//
// A [WeatherSample] is one fetch from the weather source (Open-Meteo in
// production). Hourly series are chronological with the most recent value
// last. Temperature may be absent; wind speed defaults to zero.
//
// # Features
//
// [ExtractFeatures] derives the fixed feature set consumed by the flood
// classifier:
//
//	rain_last_1d  last precipitation value, 0 when the series is empty
//	rain_last_3d  sum of the last 3 values, else rain_last_1d
//	rain_last_7d  sum of the last 7 values, else rain_last_3d
//	humidity      last humidity value, 60 when the series is empty
//	wind_speed    current wind speed
//	elevation     constant 150 (no elevation source yet)
//
// The windows count samples, not days. The classifier was trained on this
// derivation.
//
// # Hazard Levels
//
// Heat and storm verdicts come from fixed thresholds, inclusive on the lower
// edge of each band:
//
//	Heat (°C):    unset Unknown/0.5 | <32 Low/0.2 | <40 Medium/0.7 | ≥40 High/0.95
//	Storm (km/h): <45 Low/0.2 | <80 Medium/0.7 | ≥80 High/0.95
//
// Unknown is distinct from Low: missing temperature is never assumed safe.
//
// # Alerts
//
// Disaster feeds are normalized into [HazardEvent] values by their adapters.
// The reduction of those events into an [AlertSignal] lives in package alerts.
package domain
