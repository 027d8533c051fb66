package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialcast/internal/api"
)

type fakeCreator struct {
	calls     [][]api.CallRequest
	responses []func(batch []api.CallRequest) ([]api.CreatedCall, error)
}

func (f *fakeCreator) CreateCalls(_ context.Context, _ string, batch []api.CallRequest) ([]api.CreatedCall, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, batch)
	if idx < len(f.responses) && f.responses[idx] != nil {
		return f.responses[idx](batch)
	}
	return echo(batch), nil
}

func echo(batch []api.CallRequest) []api.CreatedCall {
	created := make([]api.CreatedCall, len(batch))
	for i, req := range batch {
		created[i] = api.CreatedCall{
			CallID:   fmt.Sprintf("call_%s", req.Endpoint),
			Endpoint: req.Endpoint,
			Status:   "queued",
		}
	}
	return created
}

func requests(n int) []api.CallRequest {
	out := make([]api.CallRequest, n)
	for i := range out {
		out[i] = api.CallRequest{Endpoint: fmt.Sprintf("+1555%07d", i)}
	}
	return out
}

func newTestDispatcher(creator *fakeCreator, batchSize int) *Dispatcher {
	d := New(creator, "agent_1", batchSize, time.Second)
	d.sleep = func(time.Duration) {}
	return d
}

func TestChunkPartitioning(t *testing.T) {
	cases := []struct {
		total, size int
		wantChunks  int
		wantLast    int
	}{
		{10, 3, 4, 1},
		{9, 3, 3, 3},
		{1, 5, 1, 1},
		{0, 5, 0, 0},
		{5, 1, 5, 1},
	}
	for _, tc := range cases {
		chunks := chunk(requests(tc.total), tc.size)
		assert.Len(t, chunks, tc.wantChunks, "total=%d size=%d", tc.total, tc.size)
		if tc.wantChunks > 0 {
			assert.Len(t, chunks[len(chunks)-1], tc.wantLast)
		}

		var flat []api.CallRequest
		for _, c := range chunks {
			flat = append(flat, c...)
		}
		assert.Equal(t, requests(tc.total), append([]api.CallRequest{}, flat...))
	}
}

func TestRunAllChunksSucceed(t *testing.T) {
	creator := &fakeCreator{}
	d := newTestDispatcher(creator, 4)

	result := d.Run(context.Background(), requests(10))

	assert.Len(t, creator.calls, 3)
	assert.Equal(t, 10, result.Attempted)
	assert.Equal(t, 10, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, result.Created, 10)
	assert.NoError(t, result.ExitError())
}

func TestRunSleepsBetweenChunksOnly(t *testing.T) {
	creator := &fakeCreator{}
	d := New(creator, "agent_1", 2, time.Second)
	sleeps := 0
	d.sleep = func(time.Duration) { sleeps++ }

	d.Run(context.Background(), requests(6))
	assert.Len(t, creator.calls, 3)
	assert.Equal(t, 2, sleeps)
}

func TestFatalAbortsRemainingChunks(t *testing.T) {
	fatal := func([]api.CallRequest) ([]api.CreatedCall, error) {
		return nil, &api.APIError{Status: 401, Body: "unauthorized"}
	}

	t.Run("clean run until the fatal batch", func(t *testing.T) {
		creator := &fakeCreator{responses: []func([]api.CallRequest) ([]api.CreatedCall, error){nil, fatal}}
		d := newTestDispatcher(creator, 2)

		result := d.Run(context.Background(), requests(10))

		assert.Len(t, creator.calls, 2)
		assert.Equal(t, 2, result.Succeeded)
		assert.Equal(t, 8, result.Failed)
		require.Error(t, result.FatalErr)
		assert.ErrorContains(t, result.ExitError(), "invalid API key")
	})

	t.Run("prior transient failures stay counted", func(t *testing.T) {
		transient := func([]api.CallRequest) ([]api.CreatedCall, error) {
			return nil, fmt.Errorf("connection reset")
		}
		creator := &fakeCreator{responses: []func([]api.CallRequest) ([]api.CreatedCall, error){transient, fatal}}
		d := newTestDispatcher(creator, 2)

		result := d.Run(context.Background(), requests(10))
		assert.Equal(t, 0, result.Succeeded)
		assert.Equal(t, 10, result.Failed)
	})
}

func TestFatalMessages(t *testing.T) {
	cases := []struct {
		status int
		want   string
	}{
		{401, "invalid API key"},
		{403, "forbidden"},
		{404, "agent not found"},
	}
	for _, tc := range cases {
		creator := &fakeCreator{responses: []func([]api.CallRequest) ([]api.CreatedCall, error){
			func([]api.CallRequest) ([]api.CreatedCall, error) {
				return nil, &api.APIError{Status: tc.status}
			},
		}}
		d := newTestDispatcher(creator, 2)
		result := d.Run(context.Background(), requests(2))
		assert.ErrorContains(t, result.FatalErr, tc.want, "status %d", tc.status)
	}
}

func TestTransientFailureContinues(t *testing.T) {
	creator := &fakeCreator{responses: []func([]api.CallRequest) ([]api.CreatedCall, error){
		func([]api.CallRequest) ([]api.CreatedCall, error) {
			return nil, fmt.Errorf("connection reset")
		},
	}}
	d := newTestDispatcher(creator, 3)

	result := d.Run(context.Background(), requests(7))

	assert.Len(t, creator.calls, 3)
	assert.Equal(t, 7, result.Attempted)
	assert.Equal(t, 3, result.Failed)
	assert.Equal(t, 4, result.Succeeded)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Chunk)
	assert.Equal(t, 0, result.Errors[0].Status)
	assert.ErrorContains(t, result.ExitError(), "3 of 7 calls failed")
}

func TestPrimaryFailure(t *testing.T) {
	single := &Result{Errors: []ErrorRecord{
		{Chunk: 1, Status: 500},
		{Chunk: 2, Status: 500},
		{Chunk: 3, Status: 0},
	}}
	status, count, ok := single.PrimaryFailure()
	assert.True(t, ok)
	assert.Equal(t, 500, status)
	assert.Equal(t, 2, count)

	mixed := &Result{Errors: []ErrorRecord{
		{Chunk: 1, Status: 500},
		{Chunk: 2, Status: 429},
	}}
	_, _, ok = mixed.PrimaryFailure()
	assert.False(t, ok)

	noStatus := &Result{Errors: []ErrorRecord{{Chunk: 1, Status: 0}}}
	_, _, ok = noStatus.PrimaryFailure()
	assert.False(t, ok)
}

func TestEarliestScheduledTracked(t *testing.T) {
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	creator := &fakeCreator{responses: []func([]api.CallRequest) ([]api.CreatedCall, error){
		func(batch []api.CallRequest) ([]api.CreatedCall, error) {
			return []api.CreatedCall{
				{CallID: "c1", NextScheduleTime: base.Add(time.Hour).Format(time.RFC3339)},
				{CallID: "c2", NextScheduleTime: base.Add(30 * time.Minute).Format(time.RFC3339)},
				{CallID: "c3", NextScheduleTime: base.Add(-time.Hour).Format(time.RFC3339)},
				{CallID: "c4", NextScheduleTime: "not-a-timestamp"},
			}, nil
		},
	}}
	d := newTestDispatcher(creator, 10)
	d.now = func() time.Time { return base }

	result := d.Run(context.Background(), requests(4))
	require.NotNil(t, result.EarliestScheduled)
	assert.True(t, result.EarliestScheduled.Equal(base.Add(30*time.Minute)))
}

func TestContextCancellationAborts(t *testing.T) {
	creator := &fakeCreator{}
	d := newTestDispatcher(creator, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := d.Run(ctx, requests(4))
	assert.Empty(t, creator.calls)
	assert.Equal(t, 4, result.Failed)
	require.Error(t, result.FatalErr)
	assert.ErrorContains(t, result.FatalErr, "cancelled")
}
