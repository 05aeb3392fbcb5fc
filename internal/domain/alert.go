package domain

import (
	"context"
	"time"
)

// HazardEvent is a disaster event normalized from any feed.
type HazardEvent struct {
	Title      string
	HazardType string
	Country    string // empty when the feed does not report one
	Time       time.Time
	Source     string
}

// HazardFeed searches a disaster-event source.
type HazardFeed interface {
	// Name identifies the feed in AlertSignal.SourcesUsed.
	Name() string

	// Search returns events between from and to. Text-search feeds query each
	// term; typed feeds may ignore terms entirely. A feed may return the events
	// it did collect together with an error.
	Search(ctx context.Context, terms []string, from, to time.Time) ([]HazardEvent, error)
}

// AlertSignal summarizes recent flood alerts near a location.
type AlertSignal struct {
	CityAlert    bool     `json:"city_alert"`
	CountryAlert bool     `json:"country_alert"`
	Titles       []string `json:"titles"`
	WindowDays   int      `json:"window_days"`
	SourcesUsed  []string `json:"sources_used"`
}
