package domain

import (
	"context"
	"errors"
)

var (
	// ErrLocationNotFound is returned by a Geocoder when no place matches.
	ErrLocationNotFound = errors.New("location not found")

	// ErrWeatherUnavailable is returned when the weather source cannot serve a sample.
	ErrWeatherUnavailable = errors.New("weather service unavailable")
)

// WeatherSample is a single observation fetched for one assessment.
type WeatherSample struct {
	Temperature         *float64  `json:"temperature"` // °C; nil when the source reported none
	WindSpeed           float64   `json:"wind_speed"`  // km/h
	HourlyPrecipitation []float64 `json:"hourly_precipitation"`
	HourlyHumidity      []float64 `json:"hourly_humidity"`
	ObservedAt          string    `json:"observed_at,omitempty"`
}

// Place is a resolved location.
type Place struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// WeatherSource fetches current weather for a coordinate.
type WeatherSource interface {
	Fetch(ctx context.Context, lat, lon float64) (WeatherSample, error)
}

// Geocoder resolves a free-text place name.
type Geocoder interface {
	// Resolve returns ErrLocationNotFound (possibly wrapped) when nothing matches.
	Resolve(ctx context.Context, place string) (Place, error)
}
