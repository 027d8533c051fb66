package campaign

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"dialcast/internal/api"
	"dialcast/internal/logging"
)

const (
	activityFeedSize    = 10
	incrementalLookback = 5 * time.Minute
)

// SessionState labels where a watch session currently is.
type SessionState string

const (
	StateIdle     SessionState = "idle"
	StateSyncing  SessionState = "syncing"
	StatePaused   SessionState = "paused"
	StateComplete SessionState = "complete"
)

// Searcher is the slice of the remote client the watcher needs.
type Searcher interface {
	SearchCalls(ctx context.Context, req api.SearchRequest) (*api.SearchResponse, error)
}

// Watcher polls the call-search endpoint for a single campaign and maintains
// a reconciled in-memory view of every call it owns.
type Watcher struct {
	client   Searcher
	pageSize int

	mu        sync.Mutex
	record    *Record
	calls     map[string]*CallState
	stats     *Stats
	activity  []ActivityEvent
	startTime time.Time
	paused    bool
	syncing   bool
	firstPoll bool
	lastErr   error

	refresh singleflight.Group
	now     func() time.Time
}

// NewWatcher builds a watcher for one campaign record.
func NewWatcher(client Searcher, record *Record, pageSize int) *Watcher {
	if pageSize <= 0 {
		pageSize = 100
	}
	start := time.Now().UTC()
	return &Watcher{
		client:    client,
		pageSize:  pageSize,
		record:    record,
		calls:     make(map[string]*CallState),
		stats:     ComputeStats(nil, record.TotalCalls, start),
		startTime: start,
		firstPoll: true,
		now:       time.Now,
	}
}

// Record returns the campaign record the watcher is tracking.
func (w *Watcher) Record() *Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.record
}

// ReloadRecord swaps in a freshly read record, picking up calls appended by a
// concurrent dispatch. Records for a different campaign are ignored.
func (w *Watcher) ReloadRecord(record *Record) {
	if record == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if record.CampaignID != w.record.CampaignID {
		logging.WatchDebug("ignoring reload for foreign campaign %s", record.CampaignID)
		return
	}
	w.record = record
	w.stats = ComputeStats(w.calls, record.TotalCalls, w.startTime)
}

// State reports the current session state. Completion outranks an in-flight
// sync, which outranks pause.
func (w *Watcher) State() SessionState {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.isCompleteLocked():
		return StateComplete
	case w.syncing:
		return StateSyncing
	case w.paused:
		return StatePaused
	default:
		return StateIdle
	}
}

func (w *Watcher) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = true
}

func (w *Watcher) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = false
}

// TogglePause flips the paused flag and returns the new value.
func (w *Watcher) TogglePause() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = !w.paused
	return w.paused
}

func (w *Watcher) IsPaused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

// LastError returns the most recent poll failure, nil after a clean poll.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Refresh runs one poll cycle. Concurrent callers (the ticker and a manual
// refresh keypress) collapse onto a single in-flight update.
func (w *Watcher) Refresh(ctx context.Context) error {
	_, err, _ := w.refresh.Do("update", func() (interface{}, error) {
		return nil, w.update(ctx)
	})
	return err
}

func (w *Watcher) update(ctx context.Context) error {
	w.mu.Lock()
	if w.paused {
		w.mu.Unlock()
		return nil
	}
	w.syncing = true
	firstPoll := w.firstPoll
	req := w.baseSearchRequestLocked()
	w.mu.Unlock()

	results, err := w.fetchAllPages(ctx, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.syncing = false
	if err != nil {
		// Keep the wide first-poll window until a poll actually succeeds.
		w.lastErr = err
		logging.WatchError("poll failed: %v", err)
		return err
	}
	w.lastErr = nil
	if firstPoll {
		w.firstPoll = false
	}
	w.reconcileLocked(results)
	return nil
}

func (w *Watcher) baseSearchRequestLocked() api.SearchRequest {
	now := w.now().UTC()
	from := now.Add(-incrementalLookback)
	if w.firstPoll {
		from = w.record.CreatedAt.UTC()
	}
	return api.SearchRequest{
		Page:                  1,
		Size:                  w.pageSize,
		FromDate:              from.Format(time.RFC3339),
		ToDate:                now.Format(time.RFC3339),
		AgentIDs:              []string{w.record.AgentID},
		AdditionalDataFilters: uniformAdditionalData(w.record),
		SortField:             "createdTime",
		SortDirection:         "DESC",
	}
}

// uniformAdditionalData returns the key/value pairs shared with identical
// values by every call in the campaign, usable as a server-side filter. A
// single divergent value disqualifies the key.
func uniformAdditionalData(record *Record) map[string]string {
	var shared map[string]string
	first := true
	for _, meta := range record.CallMapping {
		if first {
			shared = make(map[string]string, len(meta.AdditionalData))
			for k, v := range meta.AdditionalData {
				shared[k] = v
			}
			first = false
			continue
		}
		for k, v := range shared {
			if meta.AdditionalData[k] != v {
				delete(shared, k)
			}
		}
	}
	if len(shared) == 0 {
		return nil
	}
	return shared
}

func (w *Watcher) fetchAllPages(ctx context.Context, base api.SearchRequest) ([]api.CallResult, error) {
	var all []api.CallResult
	page := 1
	for {
		req := base
		req.Page = page
		resp, err := w.client.SearchCalls(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("search page %d: %w", page, err)
		}
		all = append(all, resp.Results...)

		totalPages := 1
		switch {
		case resp.TotalPages != nil:
			totalPages = *resp.TotalPages
		case resp.TotalCount != nil:
			totalPages = int(math.Ceil(float64(*resp.TotalCount) / float64(w.pageSize)))
		}
		if page >= totalPages || len(resp.Results) == 0 {
			return all, nil
		}
		page++
	}
}

func (w *Watcher) reconcileLocked(results []api.CallResult) {
	now := w.now().UTC()
	for i := range results {
		res := &results[i]
		if !w.record.HasCall(res.CallID) {
			continue
		}
		status := MapStatus(res.CallStatus)
		existing := w.calls[res.CallID]

		endpoint := res.Endpoint
		if endpoint == "" && existing != nil {
			endpoint = existing.Endpoint
		}
		if endpoint == "" {
			endpoint = w.record.CallMapping[res.CallID].Endpoint
		}

		if existing == nil || existing.Status != status {
			old := Status("")
			if existing != nil {
				old = existing.Status
			}
			w.appendActivityLocked(ActivityEvent{
				CallID:          res.CallID,
				Endpoint:        endpoint,
				OldStatus:       old,
				NewStatus:       status,
				Timestamp:       now,
				DurationSeconds: callDuration(res),
			})
		}

		w.calls[res.CallID] = &CallState{
			Endpoint:        endpoint,
			Status:          status,
			CreatedTime:     res.CreatedTime,
			CompletedTime:   res.CompletedTime,
			DurationSeconds: res.DurationSeconds,
			ServerJobID:     res.ServerJobID,
			InspectorURL:    res.InspectorURL,
		}
	}
	w.stats = ComputeStats(w.calls, w.record.TotalCalls, w.startTime)
}

// callDuration prefers the server-reported duration and falls back to the
// difference of the completion and creation timestamps.
func callDuration(res *api.CallResult) float64 {
	if res.DurationSeconds > 0 {
		return res.DurationSeconds
	}
	if res.CreatedTime == "" || res.CompletedTime == "" {
		return 0
	}
	createdAt, err := time.Parse(time.RFC3339, res.CreatedTime)
	if err != nil {
		return 0
	}
	completedAt, err := time.Parse(time.RFC3339, res.CompletedTime)
	if err != nil {
		return 0
	}
	if d := completedAt.Sub(createdAt).Seconds(); d > 0 {
		return d
	}
	return 0
}

func (w *Watcher) appendActivityLocked(event ActivityEvent) {
	w.activity = append(w.activity, event)
	if len(w.activity) > activityFeedSize {
		w.activity = w.activity[len(w.activity)-activityFeedSize:]
	}
}

// Stats returns the latest recomputed counts.
func (w *Watcher) Stats() *Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Activity returns a copy of the recent-event feed, oldest first.
func (w *Watcher) Activity() []ActivityEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]ActivityEvent, len(w.activity))
	copy(out, w.activity)
	return out
}

// ObservedCalls returns a snapshot of every call state the watcher has seen.
func (w *Watcher) ObservedCalls() map[string]CallState {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]CallState, len(w.calls))
	for id, call := range w.calls {
		out[id] = *call
	}
	return out
}

func (w *Watcher) isCompleteLocked() bool {
	return w.stats.Count(StatusCompleted) >= w.record.TotalCalls
}

// IsComplete reports whether every call in the campaign has completed.
func (w *Watcher) IsComplete() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isCompleteLocked()
}

// Progress returns percent complete, 0 for an empty campaign.
func (w *Watcher) Progress() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.record.TotalCalls == 0 {
		return 0
	}
	return 100 * w.stats.Count(StatusCompleted) / w.record.TotalCalls
}

// CallsPerMinute estimates throughput from completions since the session
// started.
func (w *Watcher) CallsPerMinute() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	elapsed := w.now().UTC().Sub(w.startTime).Minutes()
	if elapsed <= 0 {
		return 0
	}
	return int(math.Round(float64(w.stats.Count(StatusCompleted)) / elapsed))
}

// EstimatedTimeRemaining renders a coarse ETA from the current rate.
func (w *Watcher) EstimatedTimeRemaining() string {
	rate := w.CallsPerMinute()

	w.mu.Lock()
	remaining := w.record.TotalCalls - w.stats.Count(StatusCompleted)
	w.mu.Unlock()

	if remaining <= 0 {
		return "0m"
	}
	if rate <= 0 {
		return "calculating"
	}
	minutes := int(math.Ceil(float64(remaining) / float64(rate)))
	if minutes > 60 {
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}

// Run polls at the given interval until the context is cancelled or every
// call completes. Poll errors are logged and retried on the next tick.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_ = w.Refresh(ctx)
	if w.IsComplete() {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = w.Refresh(ctx)
			if w.IsComplete() {
				return nil
			}
		}
	}
}
