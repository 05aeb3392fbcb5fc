// Package alerts reduces disaster-feed events to a flood alert signal for a location.
package alerts

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/climate-risk-engine/internal/domain"
	"github.com/couchcryptid/climate-risk-engine/internal/observability"
)

const (
	// WindowDays is the fixed lookback for live alerts.
	WindowDays = 7

	// maxTitles caps AlertSignal.Titles.
	maxTitles = 5
)

// floodKeywords mark an event as flood-relevant when found in its type or title.
var floodKeywords = []string{"flood", "flash flood", "heavy rain", "landslide"}

// Aggregator queries every configured feed and merges their events into an AlertSignal.
type Aggregator struct {
	feeds   []domain.HazardFeed
	clock   clockwork.Clock
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewAggregator creates an Aggregator. Feeds are consulted concurrently; their
// order fixes the order of SourcesUsed and of the merged titles.
func NewAggregator(feeds []domain.HazardFeed, clock clockwork.Clock, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{
		feeds:   feeds,
		clock:   clock,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// windowStart returns midnight UTC of the day WindowDays before now. Feeds
// such as GDACS report day-granular dates, so an event dated on the first
// day of the window must not be lost to the time of day of now.
func windowStart(now time.Time) time.Time {
	y, m, d := now.UTC().AddDate(0, 0, -WindowDays).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Signal looks up recent flood events mentioning location or country. Feed
// failures and timeouts count as "no events" for that feed and never fail the lookup.
func (a *Aggregator) Signal(ctx context.Context, location, country string) domain.AlertSignal {
	location = strings.TrimSpace(location)
	country = strings.TrimSpace(country)

	now := a.clock.Now()
	from := windowStart(now)

	var terms []string
	if location != "" {
		terms = append(terms, location)
	}
	if country != "" {
		terms = append(terms, country)
	}

	results := make([][]domain.HazardEvent, len(a.feeds))
	var g errgroup.Group
	for i, feed := range a.feeds {
		g.Go(func() error {
			results[i] = a.query(ctx, feed, terms, from, now)
			return nil
		})
	}
	_ = g.Wait() // feed goroutines never return errors

	sources := make([]string, len(a.feeds))
	for i, feed := range a.feeds {
		sources[i] = feed.Name()
	}

	m := newMatcher(location, country)
	var cityAlert, countryAlert bool
	var titles []string
	for _, events := range results {
		var cityHits, countryHits []string
		for _, ev := range events {
			if ev.Time.IsZero() || ev.Time.Before(from) || ev.Time.After(now) {
				continue
			}
			if !isFloodRelevant(ev) {
				continue
			}
			if m.matchesCity(ev) {
				cityAlert = true
				cityHits = append(cityHits, ev.Title)
			}
			if m.matchesCountry(ev) {
				countryAlert = true
				countryHits = append(countryHits, ev.Title)
			}
		}
		titles = append(titles, cityHits...)
		titles = append(titles, countryHits...)
	}

	return domain.AlertSignal{
		CityAlert:    cityAlert,
		CountryAlert: countryAlert,
		Titles:       dedupeTitles(titles, maxTitles),
		WindowDays:   WindowDays,
		SourcesUsed:  sources,
	}
}

// query runs one feed under the per-call timeout. Events returned alongside an
// error are kept: text-search feeds report partial results per term.
func (a *Aggregator) query(ctx context.Context, feed domain.HazardFeed, terms []string, from, to time.Time) []domain.HazardEvent {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	events, err := feed.Search(ctx, terms, from, to)
	a.metrics.FeedDuration.WithLabelValues(feed.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		a.metrics.FeedRequests.WithLabelValues(feed.Name(), "error").Inc()
		a.logger.Warn("alert feed unavailable, treating as no signal",
			"feed", feed.Name(),
			"partial_events", len(events),
			"error", err,
		)
		return events
	}
	a.metrics.FeedRequests.WithLabelValues(feed.Name(), "success").Inc()
	a.logger.Debug("alert feed queried", "feed", feed.Name(), "events", len(events))
	return events
}

func isFloodRelevant(ev domain.HazardEvent) bool {
	text := strings.ToLower(ev.HazardType + " " + ev.Title)
	for _, kw := range floodKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

type matcher struct {
	location string
	country  string
}

func newMatcher(location, country string) matcher {
	return matcher{
		location: strings.ToLower(location),
		country:  strings.ToLower(country),
	}
}

func (m matcher) matchesCity(ev domain.HazardEvent) bool {
	return m.location != "" && strings.Contains(strings.ToLower(ev.Title), m.location)
}

// matchesCountry checks the event's own country field and its title. Events
// without a country field therefore match on title alone, which can fire on
// titles that merely mention the country.
func (m matcher) matchesCountry(ev domain.HazardEvent) bool {
	if m.country == "" {
		return false
	}
	return strings.Contains(strings.ToLower(ev.Country), m.country) ||
		strings.Contains(strings.ToLower(ev.Title), m.country)
}

// dedupeTitles keeps the first occurrence of each non-empty title, up to limit.
func dedupeTitles(titles []string, limit int) []string {
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, min(len(titles), limit))
	for _, title := range titles {
		if title == "" {
			continue
		}
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}
		out = append(out, title)
		if len(out) == limit {
			break
		}
	}
	return out
}
