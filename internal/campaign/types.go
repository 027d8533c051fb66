// Package campaign tracks dispatched call batches on disk and reconciles
// their live status against the remote call-search endpoint.
package campaign

import (
	"strings"
	"time"
)

// Status is a normalized call lifecycle state.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusRunning   Status = "running"
	StatusQueued    Status = "queued"
	StatusPending   Status = "pending"
	StatusCreated   Status = "created"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
	StatusUnknown   Status = "unknown"
)

// AllStatuses lists every normalized status in display order.
var AllStatuses = []Status{
	StatusCompleted,
	StatusRunning,
	StatusQueued,
	StatusPending,
	StatusCreated,
	StatusFailed,
	StatusCanceled,
	StatusUnknown,
}

// MapStatus normalizes a remote status string. Unrecognized values map to
// StatusUnknown rather than failing so new remote states degrade gracefully.
func MapStatus(remote string) Status {
	switch strings.ToLower(strings.TrimSpace(remote)) {
	case "completed":
		return StatusCompleted
	case "running", "in_progress", "in-progress":
		return StatusRunning
	case "queued":
		return StatusQueued
	case "pending":
		return StatusPending
	case "created":
		return StatusCreated
	case "failed", "error":
		return StatusFailed
	case "canceled", "cancelled":
		return StatusCanceled
	default:
		return StatusUnknown
	}
}

// CallMeta is what we remember about a call at dispatch time.
type CallMeta struct {
	Endpoint       string            `json:"endpoint"`
	AdditionalData map[string]string `json:"additionalData,omitempty"`
}

// Record is the persisted shape of a campaign. One record accumulates every
// call dispatched from the same source identity.
type Record struct {
	CampaignID     string              `json:"campaignId"`
	SourceIdentity string              `json:"sourceIdentity"`
	AgentID        string              `json:"agentId"`
	TotalCalls     int                 `json:"totalCalls"`
	CallIDs        []string            `json:"callIds"`
	CallMapping    map[string]CallMeta `json:"callMapping"`
	CreatedAt      time.Time           `json:"createdAt"`
	LastUpdated    time.Time           `json:"lastUpdated"`
}

// HasCall reports whether the campaign owns the given call id.
func (r *Record) HasCall(id string) bool {
	if _, ok := r.CallMapping[id]; ok {
		return true
	}
	for _, existing := range r.CallIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// CallState is the latest observed state of a single call.
type CallState struct {
	Endpoint        string
	Status          Status
	CreatedTime     string
	CompletedTime   string
	DurationSeconds float64
	ServerJobID     string
	InspectorURL    string
}

// ActivityEvent records one observed status transition.
type ActivityEvent struct {
	CallID          string
	Endpoint        string
	OldStatus       Status
	NewStatus       Status
	Timestamp       time.Time
	DurationSeconds float64
}

// Stats is a full recomputation of per-status counts for a campaign.
type Stats struct {
	Counts         map[Status]int
	StartTime      time.Time
	LastUpdateTime time.Time
}

// Count returns the tally for a status, tolerating a nil receiver.
func (s *Stats) Count(status Status) int {
	if s == nil || s.Counts == nil {
		return 0
	}
	return s.Counts[status]
}

// ComputeStats rebuilds counts from scratch on every call. Calls the campaign
// dispatched but the search has not yet surfaced are counted as created.
func ComputeStats(calls map[string]*CallState, campaignTotal int, startTime time.Time) *Stats {
	counts := make(map[Status]int)
	for _, call := range calls {
		counts[call.Status]++
	}
	if missing := campaignTotal - len(calls); missing > 0 {
		counts[StatusCreated] += missing
	}
	return &Stats{
		Counts:         counts,
		StartTime:      startTime,
		LastUpdateTime: time.Now().UTC(),
	}
}
