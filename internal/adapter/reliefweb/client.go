// Package reliefweb implements domain.HazardFeed over the ReliefWeb disasters API.
package reliefweb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/climate-risk-engine/internal/domain"
)

// FeedName identifies ReliefWeb in alert signals.
const FeedName = "ReliefWeb"

// Client searches ReliefWeb disasters by free text.
type Client struct {
	appName    string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a ReliefWeb client. appName is required by the API.
func NewClient(appName string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		appName: appName,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.reliefweb.int/v1/disasters",
		logger:  logger,
	}
}

// Name implements domain.HazardFeed.
func (c *Client) Name() string { return FeedName }

// Search runs one text query per non-empty term and returns events dated
// within [from, to]. Undated events are dropped. A failed term query does not
// discard the results of the others; the first error is returned alongside
// whatever was collected.
func (c *Client) Search(ctx context.Context, terms []string, from, to time.Time) ([]domain.HazardEvent, error) {
	var (
		events   []domain.HazardEvent
		firstErr error
	)
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		found, err := c.search(ctx, term)
		if err != nil {
			c.logger.Warn("reliefweb query failed", "term", term, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, ev := range found {
			if ev.Time.Before(from) || ev.Time.After(to) {
				continue
			}
			events = append(events, ev)
		}
	}
	return events, firstErr
}

func (c *Client) search(ctx context.Context, term string) ([]domain.HazardEvent, error) {
	params := url.Values{
		"appname":      {c.appName},
		"profile":      {"full"},
		"preset":       {"latest"},
		"limit":        {"50"},
		"query[value]": {term},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reliefweb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("reliefweb API error: status %d: %s", resp.StatusCode, body)
	}

	var rwResp response
	if err := json.NewDecoder(resp.Body).Decode(&rwResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	events := make([]domain.HazardEvent, 0, len(rwResp.Data))
	for _, d := range rwResp.Data {
		ev, ok := d.Fields.toEvent()
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// ReliefWeb API response types.

type response struct {
	Data []disaster `json:"data"`
}

type disaster struct {
	Fields fields `json:"fields"`
}

type fields struct {
	Name           string    `json:"name"`
	Title          string    `json:"title"`
	Type           []named   `json:"type"`
	PrimaryCountry named     `json:"primary_country"`
	Date           dateBlock `json:"date"`
}

type named struct {
	Name string `json:"name"`
}

type dateBlock struct {
	Created  string `json:"created"`
	Original string `json:"original"`
	Event    string `json:"event"`
	Start    string `json:"start"`
}

func (f fields) toEvent() (domain.HazardEvent, bool) {
	ts, ok := f.Date.timestamp()
	if !ok {
		return domain.HazardEvent{}, false
	}

	title := f.Name
	if title == "" {
		title = f.Title
	}
	var hazardType string
	if len(f.Type) > 0 {
		hazardType = f.Type[0].Name
	}

	return domain.HazardEvent{
		Title:      title,
		HazardType: hazardType,
		Country:    f.PrimaryCountry.Name,
		Time:       ts,
		Source:     FeedName,
	}, true
}

// timestamp picks the first non-empty date in priority order. An unparseable
// value means the event is undated; later candidates are not consulted.
func (d dateBlock) timestamp() (time.Time, bool) {
	for _, s := range []string{d.Created, d.Original, d.Event, d.Start} {
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}
