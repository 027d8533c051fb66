package api

import "encoding/json"

// CallRequest is one validated outbound call in a bulk create request.
// Rows arrive already validated (numbers normalized, deadlines parsed)
// from the calls-file loader.
type CallRequest struct {
	Endpoint       string            `json:"endpoint"`
	Priority       int               `json:"priority"`
	CallDeadLine   string            `json:"callDeadLine,omitempty"`
	Timezone       string            `json:"timezone,omitempty"`
	AdditionalData map[string]string `json:"additionalData,omitempty"`
}

// CreatedCall is one call accepted by the bulk create endpoint.
type CreatedCall struct {
	CallID           string            `json:"callId"`
	Endpoint         string            `json:"endpoint"`
	Status           string            `json:"status"`
	NextScheduleTime string            `json:"nextScheduleTime,omitempty"`
	AdditionalData   map[string]string `json:"additionalData,omitempty"`
}

// createCallsRequest is the bulk create wire envelope.
type createCallsRequest struct {
	AgentID string        `json:"agentId"`
	Calls   []CallRequest `json:"calls"`
}

// createCallsResponse is the bulk create wire response.
type createCallsResponse struct {
	Calls []CreatedCall `json:"calls"`
}

// ConcurrencyResponse is the org-wide concurrency snapshot. Both fields
// may be absent or malformed; the gauge coerces them to numbers.
type ConcurrencyResponse struct {
	Active      any `json:"active"`
	Concurrency any `json:"concurrency"`
}

// AgentResponse describes an agent. Schedule is kept raw because the
// schedule object mixes weekday keys with a timezone field; the schedule
// resolver owns that parsing.
type AgentResponse struct {
	Name     string          `json:"name,omitempty"`
	Schedule json.RawMessage `json:"schedule,omitempty"`
}

// SearchRequest queries the call-results endpoint.
type SearchRequest struct {
	Page                  int               `json:"page"`
	Size                  int               `json:"size"`
	FromDate              string            `json:"fromDate,omitempty"`
	ToDate                string            `json:"toDate,omitempty"`
	CallStatuses          []string          `json:"callStatuses,omitempty"`
	AgentIDs              []string          `json:"agentIds,omitempty"`
	AdditionalDataFilters map[string]string `json:"additionalDataFilters,omitempty"`
	SortField             string            `json:"sortField,omitempty"`
	SortDirection         string            `json:"sortDirection,omitempty"`
}

// CallResult is one remote call record from search.
type CallResult struct {
	CallID          string  `json:"callId"`
	Endpoint        string  `json:"endpoint"`
	CallStatus      string  `json:"callStatus"`
	CreatedTime     string  `json:"createdTime,omitempty"`
	CompletedTime   string  `json:"completedTime,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	ServerJobID     string  `json:"serverJobId,omitempty"`
	InspectorURL    string  `json:"inspectorUrl,omitempty"`
}

// SearchResponse carries one page of results. TotalPages and TotalCount
// are both optional; pagination falls back accordingly.
type SearchResponse struct {
	Results    []CallResult `json:"results"`
	TotalPages *int         `json:"totalPages,omitempty"`
	TotalCount *int         `json:"totalCount,omitempty"`
}
