package domain

// Feature names produced by ExtractFeatures.
const (
	FeatureRain1d    = "rain_last_1d"
	FeatureRain3d    = "rain_last_3d"
	FeatureRain7d    = "rain_last_7d"
	FeatureHumidity  = "humidity"
	FeatureWindSpeed = "wind_speed"
	FeatureElevation = "elevation"
)

const (
	// PlaceholderElevation stands in for a real elevation lookup.
	PlaceholderElevation = 150.0

	defaultHumidity = 60.0
)

// FeatureNames lists every key of a FeatureVector in training order.
var FeatureNames = []string{
	FeatureRain1d,
	FeatureRain3d,
	FeatureRain7d,
	FeatureHumidity,
	FeatureWindSpeed,
	FeatureElevation,
}

// FeatureVector maps feature names to values.
type FeatureVector map[string]float64

// ExtractFeatures derives the classifier features from a weather sample.
// Missing inputs degrade to fixed defaults; it never fails.
func ExtractFeatures(s WeatherSample) FeatureVector {
	precip := s.HourlyPrecipitation

	rain1d := 0.0
	if len(precip) > 0 {
		rain1d = precip[len(precip)-1]
	}

	rain3d := rain1d
	if len(precip) >= 3 {
		rain3d = sumLast(precip, 3)
	}

	rain7d := rain3d
	if len(precip) >= 7 {
		rain7d = sumLast(precip, 7)
	}

	humidity := defaultHumidity
	if len(s.HourlyHumidity) > 0 {
		humidity = s.HourlyHumidity[len(s.HourlyHumidity)-1]
	}

	return FeatureVector{
		FeatureRain1d:    rain1d,
		FeatureRain3d:    rain3d,
		FeatureRain7d:    rain7d,
		FeatureHumidity:  humidity,
		FeatureWindSpeed: s.WindSpeed,
		FeatureElevation: PlaceholderElevation,
	}
}

func sumLast(values []float64, n int) float64 {
	var total float64
	for _, v := range values[len(values)-n:] {
		total += v
	}
	return total
}
