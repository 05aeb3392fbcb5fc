// Package risk fuses weather features, the flood estimator and live disaster
// alerts into a per-location risk report.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/climate-risk-engine/internal/domain"
	"github.com/couchcryptid/climate-risk-engine/internal/observability"
)

// Alert override floors applied to the flood score.
const (
	cityAlertScore    = 0.95
	countryAlertScore = 0.85

	methodCityAlert    = "live-city-alert+"
	methodCountryAlert = "national-flood-alert+"
)

// FloodEstimator produces the baseline flood verdict.
type FloodEstimator interface {
	Estimate(f domain.FeatureVector) (domain.HazardVerdict, error)
}

// AlertSource looks up the live alert signal for a location.
type AlertSource interface {
	Signal(ctx context.Context, location, country string) domain.AlertSignal
}

// Engine computes risk reports. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	estimator FloodEstimator
	alerts    AlertSource
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewEngine creates an Engine.
func NewEngine(estimator FloodEstimator, source AlertSource, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		estimator: estimator,
		alerts:    source,
		logger:    logger,
		metrics:   metrics,
	}
}

// ComputeRisk assesses flood, heat and storm risk for one weather sample.
// It returns *domain.InvalidInputError for malformed samples and
// *domain.MissingFeatureError when the classifier needs a feature that was
// not extracted. Alert lookup failures never fail the computation.
func (e *Engine) ComputeRisk(ctx context.Context, sample domain.WeatherSample, location, country string) (domain.RiskReport, error) {
	start := time.Now()
	defer func() {
		e.metrics.AssessmentLatency.Observe(time.Since(start).Seconds())
	}()

	if err := domain.ValidateSample(sample); err != nil {
		e.metrics.AssessmentErrors.WithLabelValues("invalid_input").Inc()
		return domain.RiskReport{}, err
	}

	features := domain.ExtractFeatures(sample)

	flood, err := e.estimator.Estimate(features)
	if err != nil {
		e.metrics.AssessmentErrors.WithLabelValues("engine").Inc()
		return domain.RiskReport{}, err
	}

	signal := e.alerts.Signal(ctx, location, country)
	flood = e.applyAlertOverride(flood, signal, location)

	report := domain.RiskReport{
		Risks: domain.Risks{
			Flood: flood,
			Heat:  domain.HeatVerdict(sample.Temperature),
			Storm: domain.StormVerdict(sample.WindSpeed),
		},
		Alert:    signal,
		Features: features,
		Insight:  Insight(flood, signal),
	}

	e.metrics.Assessments.WithLabelValues("flood", string(report.Risks.Flood.Level)).Inc()
	e.metrics.Assessments.WithLabelValues("heat", string(report.Risks.Heat.Level)).Inc()
	e.metrics.Assessments.WithLabelValues("storm", string(report.Risks.Storm.Level)).Inc()

	return report, nil
}

// applyAlertOverride raises the flood verdict when a live alert is in force.
// A city alert takes precedence over a country alert.
func (e *Engine) applyAlertOverride(flood domain.HazardVerdict, signal domain.AlertSignal, location string) domain.HazardVerdict {
	var floor float64
	var prefix, scope string
	switch {
	case signal.CityAlert:
		floor, prefix, scope = cityAlertScore, methodCityAlert, "city"
	case signal.CountryAlert:
		floor, prefix, scope = countryAlertScore, methodCountryAlert, "country"
	default:
		return flood
	}

	e.metrics.AlertOverrides.WithLabelValues(scope).Inc()
	e.logger.Debug("flood verdict raised by live alert",
		"location", location,
		"scope", scope,
		"prior_score", flood.Score,
		"prior_method", flood.Method,
	)

	return domain.HazardVerdict{
		Score:  math.Max(flood.Score, floor),
		Level:  domain.LevelHigh,
		Method: prefix + flood.Method,
	}
}

// Insight renders the one-line flood summary included in every report. The
// window and source list come from the alert signal the report carries.
func Insight(flood domain.HazardVerdict, signal domain.AlertSignal) string {
	return fmt.Sprintf("Flood risk: %s | score: %s | engine: %s | events window: last %d days | sources: %s",
		flood.Level,
		strconv.FormatFloat(flood.Score, 'f', -1, 64),
		flood.Method,
		signal.WindowDays,
		strings.Join(signal.SourcesUsed, ", "),
	)
}
