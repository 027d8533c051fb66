// Package dispatch submits call requests to the remote API in fixed-size
// batches with a pacing delay between them.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dialcast/internal/api"
	"dialcast/internal/logging"
)

// CallCreator is the slice of the remote client the dispatcher needs.
type CallCreator interface {
	CreateCalls(ctx context.Context, agentID string, calls []api.CallRequest) ([]api.CreatedCall, error)
}

// ErrorRecord describes one failed batch.
type ErrorRecord struct {
	Chunk   int
	Status  int
	Message string
}

// Result summarizes a dispatch run.
type Result struct {
	Attempted         int
	Succeeded         int
	Failed            int
	Created           []api.CreatedCall
	Errors            []ErrorRecord
	FatalErr          error
	EarliestScheduled *time.Time
}

// PrimaryFailure reports the HTTP status shared by every recorded failure,
// when there is exactly one such status. Mixed statuses or failures without a
// status yield ok false.
func (r *Result) PrimaryFailure() (status, count int, ok bool) {
	for _, rec := range r.Errors {
		if rec.Status == 0 {
			continue
		}
		if status == 0 {
			status = rec.Status
		} else if status != rec.Status {
			return 0, 0, false
		}
		count++
	}
	if status == 0 {
		return 0, 0, false
	}
	return status, count, true
}

// ExitError converts the result into the error the command should return.
func (r *Result) ExitError() error {
	if r.FatalErr != nil {
		return r.FatalErr
	}
	if r.Failed > 0 {
		return fmt.Errorf("%d of %d calls failed to dispatch", r.Failed, r.Attempted)
	}
	return nil
}

// Dispatcher runs batches sequentially so the pacing delay applies between
// every pair of submissions.
type Dispatcher struct {
	client     CallCreator
	agentID    string
	batchSize  int
	batchDelay time.Duration

	sleep func(time.Duration)
	now   func() time.Time
}

// New builds a dispatcher. A non-positive batch size falls back to 1.
func New(client CallCreator, agentID string, batchSize int, batchDelay time.Duration) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Dispatcher{
		client:     client,
		agentID:    agentID,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

func chunk(requests []api.CallRequest, size int) [][]api.CallRequest {
	var chunks [][]api.CallRequest
	for len(requests) > 0 {
		n := size
		if n > len(requests) {
			n = len(requests)
		}
		chunks = append(chunks, requests[:n])
		requests = requests[n:]
	}
	return chunks
}

func fatalMessage(status int) string {
	switch status {
	case 401:
		return "invalid API key (401): check DIALCAST_API_KEY"
	case 403:
		return "access forbidden (403): this key cannot dispatch for the agent"
	default:
		return "agent not found (404): check the configured agent id"
	}
}

// Run submits every request in order. Auth and missing-agent failures abort
// the run and count every undelivered call as failed; other failures only
// fail their own batch.
func (d *Dispatcher) Run(ctx context.Context, requests []api.CallRequest) *Result {
	result := &Result{}
	chunks := chunk(requests, d.batchSize)
	logging.Dispatch("dispatching %d calls in %d batches", len(requests), len(chunks))

	for i, batch := range chunks {
		if err := ctx.Err(); err != nil {
			d.abort(result, chunks, i, 0, "dispatch cancelled", err)
			return result
		}

		result.Attempted += len(batch)
		created, err := d.client.CreateCalls(ctx, d.agentID, batch)
		if err != nil {
			var apiErr *api.APIError
			if errors.As(err, &apiErr) && apiErr.IsAuthOrMissing() {
				d.abort(result, chunks, i+1, apiErr.Status, fatalMessage(apiErr.Status), err)
				result.Failed += len(batch)
				return result
			}
			status := 0
			if errors.As(err, &apiErr) {
				status = apiErr.Status
			}
			result.Failed += len(batch)
			result.Errors = append(result.Errors, ErrorRecord{
				Chunk:   i + 1,
				Status:  status,
				Message: err.Error(),
			})
			logging.DispatchError("batch %d failed: %v", i+1, err)
		} else {
			result.Succeeded += len(created)
			result.Created = append(result.Created, created...)
			for j := range created {
				d.trackScheduled(result, &created[j])
			}
			logging.DispatchDebug("batch %d created %d calls", i+1, len(created))
		}

		if i < len(chunks)-1 && d.batchDelay > 0 {
			d.sleep(d.batchDelay)
		}
	}
	return result
}

// abort marks every batch from index from onward as failed.
func (d *Dispatcher) abort(result *Result, chunks [][]api.CallRequest, from, status int, msg string, cause error) {
	for _, batch := range chunks[from:] {
		result.Failed += len(batch)
	}
	result.Errors = append(result.Errors, ErrorRecord{
		Chunk:   from,
		Status:  status,
		Message: msg,
	})
	result.FatalErr = fmt.Errorf("%s: %w", msg, cause)
	logging.DispatchError("aborting dispatch: %s", msg)
}

func (d *Dispatcher) trackScheduled(result *Result, call *api.CreatedCall) {
	if call.NextScheduleTime == "" {
		return
	}
	at, err := time.Parse(time.RFC3339, call.NextScheduleTime)
	if err != nil || !at.After(d.now()) {
		return
	}
	if result.EarliestScheduled == nil || at.Before(*result.EarliestScheduled) {
		result.EarliestScheduled = &at
	}
}
