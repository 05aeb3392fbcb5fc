package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-risk-engine/internal/domain"
	"github.com/couchcryptid/climate-risk-engine/internal/observability"
	"github.com/couchcryptid/climate-risk-engine/internal/pipeline"
	"github.com/couchcryptid/climate-risk-engine/internal/risk"
)

// --- mocks ---

// mockExtractor hands out its batches in order, then blocks until cancelled.
type mockExtractor struct {
	batches  [][]domain.RawMessage
	err      error
	failures atomic.Int64 // calls left that fail before batches are served
	index    atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawMessage, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.failures.Add(-1) >= 0 {
		return nil, errors.New("broker not available")
	}
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockTransformer struct {
	failKeys map[string]bool
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawMessage) (domain.OutputMessage, error) {
	if m.failKeys[string(raw.Key)] {
		return domain.OutputMessage{}, errors.New("bad request")
	}
	return domain.OutputMessage{Key: raw.Key, Value: raw.Value}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	err    error
	calls  int
	loaded []domain.OutputMessage
}

func (m *mockLoader) LoadBatch(_ context.Context, msgs []domain.OutputMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, msgs...)
	return nil
}

// commitLog records which messages were committed.
type commitLog struct {
	mu   sync.Mutex
	keys []string
}

func (c *commitLog) raw(key string) domain.RawMessage {
	return domain.RawMessage{
		Key:   []byte(key),
		Value: []byte(`{"location":"` + key + `"}`),
		Topic: "risk-requests",
		Commit: func(context.Context) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.keys = append(c.keys, key)
			return nil
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- pipeline tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	commits := &commitLog{}
	ext := &mockExtractor{batches: [][]domain.RawMessage{{commits.raw("Kochi"), commits.raw("Jakarta")}}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, testLogger(), observability.NewMetricsForTesting(), 10)
	require.Error(t, p.CheckReadiness(context.Background()))

	runFor(t, p, 300*time.Millisecond)

	require.Len(t, ldr.loaded, 2)
	assert.Equal(t, []byte("Kochi"), ldr.loaded[0].Key)
	assert.Equal(t, []byte("Jakarta"), ldr.loaded[1].Key)
	assert.Equal(t, 1, ldr.calls, "one LoadBatch per batch")
	assert.Equal(t, []string{"Kochi", "Jakarta"}, commits.keys)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, testLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	commits := &commitLog{}
	ext := &mockExtractor{batches: [][]domain.RawMessage{{commits.raw("Atlantis"), commits.raw("Kochi")}}}
	tfm := &mockTransformer{failKeys: map[string]bool{"Atlantis": true}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, tfm, ldr, testLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, []byte("Kochi"), ldr.loaded[0].Key)
	assert.ElementsMatch(t, []string{"Atlantis", "Kochi"}, commits.keys)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_AllTransformsFail(t *testing.T) {
	commits := &commitLog{}
	ext := &mockExtractor{batches: [][]domain.RawMessage{{commits.raw("Atlantis")}}}
	tfm := &mockTransformer{failKeys: map[string]bool{"Atlantis": true}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, tfm, ldr, testLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	assert.Empty(t, ldr.loaded)
	assert.Zero(t, ldr.calls)
	assert.Equal(t, []string{"Atlantis"}, commits.keys)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	commits := &commitLog{}
	ext := &mockExtractor{batches: [][]domain.RawMessage{{commits.raw("Kochi")}}}
	ldr := &mockLoader{err: errors.New("broker unavailable")}

	p := pipeline.New(ext, &mockTransformer{}, ldr, testLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	assert.Equal(t, 1, ldr.calls)
	assert.Empty(t, commits.keys)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ExtractErrorBacksOff(t *testing.T) {
	ext := &mockExtractor{err: errors.New("connection refused")}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, testLogger(), observability.NewMetricsForTesting(), 10)

	start := time.Now()
	runFor(t, p, 500*time.Millisecond)

	// 200ms + 400ms of backoff cannot both fit in the run window.
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Zero(t, ldr.calls)
}

func TestPipeline_Run_RecoversAfterExtractFailures(t *testing.T) {
	commits := &commitLog{}
	ext := &mockExtractor{batches: [][]domain.RawMessage{{commits.raw("Colombo")}}}
	ext.failures.Store(2) // 200ms + 400ms of backoff before the batch arrives
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, testLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 1500*time.Millisecond)

	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, []byte("Colombo"), ldr.loaded[0].Key)
	assert.Equal(t, []string{"Colombo"}, commits.keys)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

// --- transformer tests ---

type stubAssessor struct {
	assessment risk.Assessment
	err        error
	place      string
}

func (s *stubAssessor) Assess(_ context.Context, place string) (risk.Assessment, error) {
	s.place = place
	return s.assessment, s.err
}

var assessedAt = time.Date(2025, time.December, 3, 12, 0, 0, 0, time.UTC)

func kochiAssessment() risk.Assessment {
	return risk.Assessment{
		RiskReport: domain.RiskReport{
			Risks: domain.Risks{
				Flood: domain.HazardVerdict{Score: 0.95, Level: domain.LevelHigh, Method: "live-city-alert+fallback-rule"},
				Heat:  domain.HazardVerdict{Score: 0.7, Level: domain.LevelMedium},
				Storm: domain.HazardVerdict{Score: 0.2, Level: domain.LevelLow},
			},
			Insight: "Flood risk: High",
		},
		Location: domain.Place{Name: "Kochi", Country: "India", Lat: 9.9312, Lon: 76.2673},
	}
}

func TestRiskTransformer_Transform(t *testing.T) {
	assessor := &stubAssessor{assessment: kochiAssessment()}
	tfm := pipeline.NewTransformer(assessor, clockwork.NewFakeClockAt(assessedAt))

	out, err := tfm.Transform(context.Background(), domain.RawMessage{Value: []byte(`{"location":" kochi "}`)})
	require.NoError(t, err)

	assert.Equal(t, "kochi", assessor.place)
	assert.Equal(t, []byte("Kochi"), out.Key)
	want := map[string]string{
		pipeline.HeaderFloodLevel: "High",
		pipeline.HeaderAssessedAt: "2025-12-03T12:00:00Z",
	}
	if diff := cmp.Diff(want, out.Headers); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}

	var msg pipeline.RiskReportMessage
	require.NoError(t, json.Unmarshal(out.Value, &msg))
	assert.Equal(t, "kochi", msg.Query)
	assert.True(t, msg.AssessedAt.Equal(assessedAt))
	assert.Equal(t, kochiAssessment().Location, msg.Location)
	assert.Equal(t, domain.LevelHigh, msg.Risks.Flood.Level)
}

func TestRiskTransformer_KeyFallsBackToQuery(t *testing.T) {
	a := kochiAssessment()
	a.Location.Name = ""
	tfm := pipeline.NewTransformer(&stubAssessor{assessment: a}, clockwork.NewFakeClockAt(assessedAt))

	out, err := tfm.Transform(context.Background(), domain.RawMessage{Value: []byte(`{"location":"Kochi"}`)})
	require.NoError(t, err)
	assert.Equal(t, []byte("Kochi"), out.Key)
}

func TestRiskTransformer_InvalidRequests(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "not json", value: "not json"},
		{name: "empty location", value: `{"location":""}`},
		{name: "missing location", value: `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assessor := &stubAssessor{}
			tfm := pipeline.NewTransformer(assessor, clockwork.NewFakeClockAt(assessedAt))

			_, err := tfm.Transform(context.Background(), domain.RawMessage{Value: []byte(tt.value)})
			require.ErrorIs(t, err, pipeline.ErrInvalidRequest)
			assert.Empty(t, assessor.place, "assessor must not be called")
		})
	}
}

func TestRiskTransformer_AssessError(t *testing.T) {
	tfm := pipeline.NewTransformer(&stubAssessor{err: domain.ErrLocationNotFound}, clockwork.NewFakeClockAt(assessedAt))

	_, err := tfm.Transform(context.Background(), domain.RawMessage{Value: []byte(`{"location":"Atlantis"}`)})
	require.ErrorIs(t, err, domain.ErrLocationNotFound)
	assert.NotErrorIs(t, err, pipeline.ErrInvalidRequest)
}
