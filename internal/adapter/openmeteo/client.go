// Package openmeteo implements domain.Geocoder and domain.WeatherSource using
// the Open-Meteo geocoding and forecast APIs.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/climate-risk-engine/internal/domain"
	"github.com/couchcryptid/climate-risk-engine/internal/observability"
)

// Client talks to the Open-Meteo geocoding and forecast endpoints.
type Client struct {
	httpClient  *http.Client
	geocodeURL  string
	forecastURL string
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewClient creates an Open-Meteo client with the given per-request timeout.
func NewClient(timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		geocodeURL:  "https://geocoding-api.open-meteo.com/v1/search",
		forecastURL: "https://api.open-meteo.com/v1/forecast",
		metrics:     metrics,
		logger:      logger,
	}
}

// Resolve looks up the best match for a place name.
func (c *Client) Resolve(ctx context.Context, place string) (domain.Place, error) {
	params := url.Values{
		"name":     {strings.TrimSpace(place)},
		"count":    {"1"},
		"language": {"en"},
		"format":   {"json"},
	}

	var resp geocodeResponse
	if err := c.getJSON(ctx, c.geocodeURL+"?"+params.Encode(), "geocode", &resp); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.Place{}, err
	}

	if len(resp.Results) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("not_found").Inc()
		return domain.Place{}, fmt.Errorf("geocode %q: %w", place, domain.ErrLocationNotFound)
	}

	c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	r := resp.Results[0]
	return domain.Place{
		Name:    r.Name,
		Country: r.Country,
		Lat:     r.Latitude,
		Lon:     r.Longitude,
	}, nil
}

// Fetch returns current weather and today's hourly series for a coordinate.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) (domain.WeatherSample, error) {
	params := url.Values{
		"latitude":        {strconv.FormatFloat(lat, 'f', 4, 64)},
		"longitude":       {strconv.FormatFloat(lon, 'f', 4, 64)},
		"current_weather": {"true"},
		"hourly":          {"temperature_2m,relativehumidity_2m,precipitation,windgusts_10m"},
		"forecast_days":   {"1"},
		"timezone":        {"auto"},
	}

	var resp forecastResponse
	if err := c.getJSON(ctx, c.forecastURL+"?"+params.Encode(), "forecast", &resp); err != nil {
		return domain.WeatherSample{}, fmt.Errorf("%w: %w", domain.ErrWeatherUnavailable, err)
	}

	return domain.WeatherSample{
		Temperature:         resp.CurrentWeather.Temperature,
		WindSpeed:           resp.CurrentWeather.WindSpeed,
		HourlyPrecipitation: resp.Hourly.Precipitation,
		HourlyHumidity:      resp.Hourly.RelativeHumidity,
		ObservedAt:          resp.CurrentWeather.Time,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, fullURL, source string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Debug("open-meteo request failed", "source", source, "status", resp.StatusCode)
		return fmt.Errorf("open-meteo %s error: status %d: %s", source, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", source, err)
	}
	return nil
}

// Open-Meteo API response types. Hourly nulls decode as zero.

type geocodeResponse struct {
	Results []geocodeResult `json:"results"`
}

type geocodeResult struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type forecastResponse struct {
	CurrentWeather struct {
		Temperature *float64 `json:"temperature"`
		WindSpeed   float64  `json:"windspeed"`
		Time        string   `json:"time"`
	} `json:"current_weather"`
	Hourly struct {
		Precipitation    []float64 `json:"precipitation"`
		RelativeHumidity []float64 `json:"relativehumidity_2m"`
	} `json:"hourly"`
}
