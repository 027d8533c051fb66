package campaign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeStatsCoversCampaignTotal(t *testing.T) {
	calls := map[string]*CallState{
		"c1": {Status: StatusCompleted},
		"c2": {Status: StatusCompleted},
		"c3": {Status: StatusRunning},
		"c4": {Status: StatusFailed},
	}
	stats := ComputeStats(calls, 7, time.Now().UTC())

	assert.Equal(t, 2, stats.Count(StatusCompleted))
	assert.Equal(t, 1, stats.Count(StatusRunning))
	assert.Equal(t, 1, stats.Count(StatusFailed))
	assert.Equal(t, 3, stats.Count(StatusCreated))

	sum := 0
	for _, status := range AllStatuses {
		sum += stats.Count(status)
	}
	assert.Equal(t, 7, sum)
}

func TestComputeStatsIsPure(t *testing.T) {
	calls := map[string]*CallState{"c1": {Status: StatusQueued}}
	start := time.Now().UTC()

	first := ComputeStats(calls, 3, start)
	second := ComputeStats(calls, 3, start)

	assert.Equal(t, first.Counts, second.Counts)
	assert.Equal(t, start, first.StartTime)
}

func TestComputeStatsObservedBeyondTotal(t *testing.T) {
	calls := map[string]*CallState{
		"c1": {Status: StatusCompleted},
		"c2": {Status: StatusCompleted},
	}
	stats := ComputeStats(calls, 1, time.Now().UTC())
	assert.Equal(t, 0, stats.Count(StatusCreated))
}

func TestRecordHasCall(t *testing.T) {
	record := &Record{
		CallIDs:     []string{"c1"},
		CallMapping: map[string]CallMeta{"c2": {Endpoint: "+1555"}},
	}
	assert.True(t, record.HasCall("c1"))
	assert.True(t, record.HasCall("c2"))
	assert.False(t, record.HasCall("c3"))
}

func TestStatsCountNilSafe(t *testing.T) {
	var stats *Stats
	assert.Equal(t, 0, stats.Count(StatusCompleted))
	assert.Equal(t, 0, (&Stats{}).Count(StatusCompleted))
}
