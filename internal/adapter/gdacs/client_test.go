package gdacs

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow  = time.Date(2025, time.December, 3, 12, 0, 0, 0, time.UTC)
	testFrom = testNow.AddDate(0, 0, -7)
)

func testClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_Search_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "FL", q.Get("eventlist"))
		assert.Equal(t, "2025-11-26", q.Get("fromdate"))
		assert.Equal(t, "2025-12-03", q.Get("todate"))

		_, _ = w.Write([]byte(`{
		  "type": "FeatureCollection",
		  "features": [
		    {"properties": {"eventname": "Flood in Kerala", "country": "India", "todate": "2025-12-02T00:00:00"}},
		    {"properties": {"name": "Jakarta Floods", "fromdate": "2025-11-29T06:00:00Z"}},
		    {"properties": {"eventname": "", "name": "", "country": "Chad", "todate": "2025-12-01T00:00:00"}},
		    {"properties": {"eventname": "Undated Flood", "country": "Peru"}}
		  ]
		}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	events, err := c.Search(context.Background(), []string{"ignored"}, testFrom, testNow)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "Flood in Kerala", events[0].Title)
	assert.Equal(t, "India", events[0].Country)
	assert.Equal(t, "Flood", events[0].HazardType)
	assert.Equal(t, time.Date(2025, time.December, 2, 0, 0, 0, 0, time.UTC), events[0].Time)
	assert.Equal(t, FeedName, events[0].Source)

	assert.Equal(t, "Jakarta Floods", events[1].Title, "falls back to name")
	assert.Empty(t, events[1].Country)
	assert.Equal(t, time.Date(2025, time.November, 29, 6, 0, 0, 0, time.UTC), events[1].Time)
}

func TestClient_Search_CapitalizedFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Features": [{"properties": {"eventname": "Flood in Colombo", "todate": "2025-12-01"}}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	events, err := c.Search(context.Background(), nil, testFrom, testNow)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Flood in Colombo", events[0].Title)
}

func TestClient_Search_EmptyObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	events, err := c.Search(context.Background(), nil, testFrom, testNow)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestClient_Search_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.Search(context.Background(), nil, testFrom, testNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestClient_Search_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.Search(context.Background(), nil, testFrom, testNow)
	require.Error(t, err)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"2025-12-02T00:00:00", true},
		{"2025-12-02T00:00:00Z", true},
		{"2025-12-02", true},
		{"", false},
		{"02/12/2025", false},
	}
	for _, tt := range tests {
		_, ok := parseTime(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}
