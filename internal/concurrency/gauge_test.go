package concurrency

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"dialcast/internal/api"
)

func TestCoerce(t *testing.T) {
	assert.Equal(t, 12.0, coerce(12.0))
	assert.Equal(t, 7.0, coerce(7))
	assert.Equal(t, 3.5, coerce("3.5"))
	assert.Equal(t, 0.0, coerce("not a number"))
	assert.Equal(t, 0.0, coerce(nil))
	assert.Equal(t, 0.0, coerce(-4.0))
	assert.Equal(t, 0.0, coerce(math.NaN()))
	assert.Equal(t, 0.0, coerce(math.Inf(1)))
	assert.Equal(t, 0.0, coerce(map[string]any{}))
}

func TestUtilizationPct(t *testing.T) {
	assert.Equal(t, 0, UtilizationPct(0, 0))
	assert.Equal(t, 70, UtilizationPct(35, 50))
	assert.Equal(t, 96, UtilizationPct(48, 50))
	assert.Equal(t, 100, UtilizationPct(50, 50))
	assert.Equal(t, 33, UtilizationPct(1, 3))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		active, allowed float64
		want            Level
	}{
		{0, 0, LevelDisabled},
		{5, 0, LevelDisabled},
		{10, 100, LevelHealthy},
		{69, 100, LevelHealthy},
		{70, 100, LevelWarning},
		{94, 100, LevelWarning},
		{95, 100, LevelCritical},
		{100, 100, LevelCritical},
		{60, 50, LevelCritical},
	}
	for _, tc := range cases {
		got := Classify(Snapshot{Active: tc.active, Allowed: tc.allowed})
		assert.Equal(t, tc.want, got, "active=%v allowed=%v", tc.active, tc.allowed)
	}
}

func TestStatusMessageGranularity(t *testing.T) {
	assert.Contains(t, StatusMessage(Snapshot{Active: 3, Allowed: 0}), "disabled")
	assert.Contains(t, StatusMessage(Snapshot{Active: 50, Allowed: 50}), "limit reached (50/50)")
	assert.Contains(t, StatusMessage(Snapshot{Active: 60, Allowed: 50}), "limit reached")
	assert.Contains(t, StatusMessage(Snapshot{Active: 48, Allowed: 50}), "near capacity")
	assert.Contains(t, StatusMessage(Snapshot{Active: 40, Allowed: 50}), "approaching limit")
	assert.Contains(t, StatusMessage(Snapshot{Active: 10, Allowed: 50}), "healthy")
}

func newGaugeClient(t *testing.T, handler http.HandlerFunc) *api.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return api.NewClient(api.ClientConfig{APIKey: "test-key", BaseURL: srv.URL})
}

func TestFetchCoercesMalformedPayload(t *testing.T) {
	client := newGaugeClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"active":"7","concurrency":null}`))
	})

	reading := Fetch(context.Background(), client)
	assert.True(t, reading.Available)
	assert.Equal(t, 7.0, reading.Snapshot.Active)
	assert.Equal(t, 0.0, reading.Snapshot.Allowed)
	assert.Equal(t, LevelDisabled, reading.Level)
}

func TestFetchAuthFailureDistinct(t *testing.T) {
	client := newGaugeClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	reading := Fetch(context.Background(), client)
	assert.False(t, reading.Available)
	assert.Contains(t, reading.Message, "not authorized")
	assert.Contains(t, reading.Message, "403")
}

func TestFetchGenericFailure(t *testing.T) {
	client := newGaugeClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	reading := Fetch(context.Background(), client)
	assert.False(t, reading.Available)
	assert.Equal(t, "concurrency information unavailable", reading.Message)
}
