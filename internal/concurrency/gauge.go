// Package concurrency reads the org concurrency quota and classifies how
// close current usage is to the limit.
package concurrency

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"dialcast/internal/api"
)

// Level buckets utilization for display.
type Level string

const (
	LevelDisabled Level = "disabled"
	LevelHealthy  Level = "healthy"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Snapshot is a coerced view of the remote concurrency payload.
type Snapshot struct {
	Active  float64
	Allowed float64
}

// Reading is a snapshot plus its classification, or a failure note when the
// endpoint could not be read.
type Reading struct {
	Available bool
	Snapshot  Snapshot
	Level     Level
	Message   string
}

// coerce turns whatever the API sent (number, string, null) into a usable
// count. Anything unparseable or out of range becomes zero.
func coerce(v any) float64 {
	var f float64
	switch value := v.(type) {
	case float64:
		f = value
	case int:
		f = float64(value)
	case string:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// UtilizationPct returns active over allowed as a rounded percentage, zero
// when no quota is allowed.
func UtilizationPct(active, allowed float64) int {
	if allowed <= 0 {
		return 0
	}
	return int(math.Round(100 * active / allowed))
}

// Classify buckets a snapshot. A zero quota means concurrent calling is
// disabled for the org.
func Classify(s Snapshot) Level {
	if s.Allowed <= 0 {
		return LevelDisabled
	}
	pct := UtilizationPct(s.Active, s.Allowed)
	switch {
	case s.Active > s.Allowed || pct >= 95:
		return LevelCritical
	case pct >= 70:
		return LevelWarning
	default:
		return LevelHealthy
	}
}

// StatusMessage renders a one-line summary for a snapshot.
func StatusMessage(s Snapshot) string {
	if s.Allowed <= 0 {
		return "concurrent calling is disabled for your org"
	}
	active := int(s.Active)
	allowed := int(s.Allowed)
	pct := UtilizationPct(s.Active, s.Allowed)
	switch {
	case s.Active > s.Allowed || pct >= 100:
		return fmt.Sprintf("concurrency limit reached (%d/%d)", active, allowed)
	case pct >= 95:
		return fmt.Sprintf("near capacity (%d%% of %d concurrent calls)", pct, allowed)
	case pct >= 70:
		return fmt.Sprintf("approaching limit (%d%% of %d concurrent calls)", pct, allowed)
	default:
		return fmt.Sprintf("healthy utilization (%d of %d concurrent calls)", active, allowed)
	}
}

// Fetch reads the concurrency endpoint and returns a classified reading.
// Failures never error out; they come back as unavailable readings.
func Fetch(ctx context.Context, client *api.Client) Reading {
	resp, err := client.GetConcurrency(ctx)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && (apiErr.Status == 401 || apiErr.Status == 403) {
			return Reading{Message: fmt.Sprintf("not authorized to read concurrency (status %d)", apiErr.Status)}
		}
		return Reading{Message: "concurrency information unavailable"}
	}

	snap := Snapshot{
		Active:  coerce(resp.Active),
		Allowed: coerce(resp.Concurrency),
	}
	return Reading{
		Available: true,
		Snapshot:  snap,
		Level:     Classify(snap),
		Message:   StatusMessage(snap),
	}
}
