// Package gdacs implements domain.HazardFeed over the GDACS event search API.
package gdacs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/climate-risk-engine/internal/domain"
)

// FeedName identifies GDACS in alert signals.
const FeedName = "GDACS"

// floodEventList is the GDACS event-type code for floods.
const floodEventList = "FL"

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Client lists GDACS flood events for a date range.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a GDACS client.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://www.gdacs.org/gdacsapi/api/events/geteventlist/SEARCH",
		logger:  logger,
	}
}

// Name implements domain.HazardFeed.
func (c *Client) Name() string { return FeedName }

// Search returns global flood events between from and to. GDACS is a typed
// event search, so terms are ignored; location matching happens downstream.
func (c *Client) Search(ctx context.Context, _ []string, from, to time.Time) ([]domain.HazardEvent, error) {
	params := url.Values{
		"eventlist": {floodEventList},
		"fromdate":  {from.UTC().Format(time.DateOnly)},
		"todate":    {to.UTC().Format(time.DateOnly)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gdacs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gdacs API error: status %d: %s", resp.StatusCode, body)
	}

	var gResp response
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	feats := gResp.Features
	if len(feats) == 0 {
		feats = gResp.FeaturesUpper
	}

	events := make([]domain.HazardEvent, 0, len(feats))
	for _, f := range feats {
		ev, ok := f.Properties.toEvent()
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// GDACS API response types. The list is GeoJSON-like; some deployments
// capitalize the collection key.

type response struct {
	Features      []feature `json:"features"`
	FeaturesUpper []feature `json:"Features"`
}

type feature struct {
	Properties properties `json:"properties"`
}

type properties struct {
	EventName string `json:"eventname"`
	Name      string `json:"name"`
	Country   string `json:"country"`
	FromDate  string `json:"fromdate"`
	ToDate    string `json:"todate"`
}

func (p properties) toEvent() (domain.HazardEvent, bool) {
	title := p.EventName
	if title == "" {
		title = p.Name
	}
	if title == "" {
		return domain.HazardEvent{}, false
	}

	ts, ok := parseTime(p.ToDate)
	if !ok {
		ts, ok = parseTime(p.FromDate)
	}
	if !ok {
		return domain.HazardEvent{}, false
	}

	return domain.HazardEvent{
		Title:      title,
		HazardType: "Flood",
		Country:    p.Country,
		Time:       ts,
		Source:     FeedName,
	}, true
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
