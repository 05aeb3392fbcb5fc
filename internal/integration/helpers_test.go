//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/climate-risk-engine/internal/alerts"
	"github.com/couchcryptid/climate-risk-engine/internal/domain"
	"github.com/couchcryptid/climate-risk-engine/internal/model"
	"github.com/couchcryptid/climate-risk-engine/internal/observability"
	"github.com/couchcryptid/climate-risk-engine/internal/risk"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("climate-risk-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		_ = ctr.Terminate(context.Background())
	})

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// --- in-memory collaborators for the assessor ---

var testNow = time.Date(2025, time.December, 3, 12, 0, 0, 0, time.UTC)

var testPlaces = map[string]domain.Place{
	"Kochi":   {Name: "Kochi", Country: "India", Lat: 9.9312, Lon: 76.2673},
	"Jakarta": {Name: "Jakarta", Country: "Indonesia", Lat: -6.2088, Lon: 106.8456},
	"Colombo": {Name: "Colombo", Country: "Sri Lanka", Lat: 6.9271, Lon: 79.8612},
}

type mapGeocoder struct{}

func (mapGeocoder) Resolve(_ context.Context, place string) (domain.Place, error) {
	p, ok := testPlaces[place]
	if !ok {
		return domain.Place{}, domain.ErrLocationNotFound
	}
	return p, nil
}

type fixedWeather struct{}

func (fixedWeather) Fetch(context.Context, float64, float64) (domain.WeatherSample, error) {
	temp := 35.0
	return domain.WeatherSample{
		Temperature:         &temp,
		WindSpeed:           10,
		HourlyPrecipitation: []float64{0, 0, 0, 0, 0, 0, 50},
		HourlyHumidity:      []float64{70},
		ObservedAt:          "2025-12-03T12:00",
	}, nil
}

// staticFeed reports a fixed list of events regardless of the query.
type staticFeed struct {
	events []domain.HazardEvent
}

func (staticFeed) Name() string { return "ReliefWeb" }

func (f staticFeed) Search(context.Context, []string, time.Time, time.Time) ([]domain.HazardEvent, error) {
	return f.events, nil
}

// newTestAssessor wires the real engine with in-memory upstreams. Kochi has a
// live city flood alert; the other places have none.
func newTestAssessor() *risk.Assessor {
	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()
	feed := staticFeed{events: []domain.HazardEvent{{
		Title:      "India: Kochi Floods - Dec 2025",
		HazardType: "Flood",
		Country:    "India",
		Time:       testNow.Add(-24 * time.Hour),
	}}}
	agg := alerts.NewAggregator([]domain.HazardFeed{feed}, clockwork.NewFakeClockAt(testNow), 5*time.Second, logger, metrics)
	engine := risk.NewEngine(model.NewEstimator(nil), agg, logger, metrics)
	return risk.NewAssessor(mapGeocoder{}, fixedWeather{}, engine, logger, metrics)
}
