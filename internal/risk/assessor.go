package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/climate-risk-engine/internal/domain"
	"github.com/couchcryptid/climate-risk-engine/internal/observability"
)

// WeatherSummary is the condensed view of the sample a report was computed from.
type WeatherSummary struct {
	TempC        *float64 `json:"temp_c"`
	WindKmh      float64  `json:"wind_kmh"`
	RecentRainMM float64  `json:"recent_rain_mm"`
	LastUpdate   string   `json:"last_update"`
}

// Assessment is a risk report together with the resolved place and weather.
type Assessment struct {
	domain.RiskReport
	Location domain.Place   `json:"location"`
	Weather  WeatherSummary `json:"weather"`
}

// Assessor resolves a free-text place and runs the engine on its live weather.
type Assessor struct {
	geocoder domain.Geocoder
	weather  domain.WeatherSource
	engine   *Engine
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewAssessor creates an Assessor.
func NewAssessor(geocoder domain.Geocoder, weather domain.WeatherSource, engine *Engine, logger *slog.Logger, metrics *observability.Metrics) *Assessor {
	return &Assessor{
		geocoder: geocoder,
		weather:  weather,
		engine:   engine,
		logger:   logger,
		metrics:  metrics,
	}
}

// Assess geocodes place, fetches its weather and computes the risk report.
// Unresolvable places yield domain.ErrLocationNotFound and weather failures
// domain.ErrWeatherUnavailable; engine errors are returned unchanged.
func (a *Assessor) Assess(ctx context.Context, place string) (Assessment, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return Assessment{}, fmt.Errorf("empty place: %w", domain.ErrLocationNotFound)
	}

	loc, err := a.geocoder.Resolve(ctx, place)
	if err != nil {
		a.metrics.AssessmentErrors.WithLabelValues("not_found").Inc()
		if !errors.Is(err, domain.ErrLocationNotFound) {
			a.logger.Warn("geocoding failed", "place", place, "error", err)
			err = fmt.Errorf("%w: %w", domain.ErrLocationNotFound, err)
		}
		return Assessment{}, err
	}

	sample, err := a.weather.Fetch(ctx, loc.Lat, loc.Lon)
	if err != nil {
		a.metrics.AssessmentErrors.WithLabelValues("weather").Inc()
		a.logger.Warn("weather fetch failed", "place", loc.Name, "lat", loc.Lat, "lon", loc.Lon, "error", err)
		if !errors.Is(err, domain.ErrWeatherUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrWeatherUnavailable, err)
		}
		return Assessment{}, err
	}

	report, err := a.engine.ComputeRisk(ctx, sample, loc.Name, loc.Country)
	if err != nil {
		return Assessment{}, err
	}

	return Assessment{
		RiskReport: report,
		Location:   loc,
		Weather: WeatherSummary{
			TempC:        sample.Temperature,
			WindKmh:      sample.WindSpeed,
			RecentRainMM: report.Features[domain.FeatureRain1d],
			LastUpdate:   sample.ObservedAt,
		},
	}, nil
}
