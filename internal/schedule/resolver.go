// Package schedule parses agent calling-hours definitions and answers
// whether dialing is currently allowed.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"dialcast/internal/api"
	"dialcast/internal/logging"
)

// TimePoint is a wall-clock instant within a day.
type TimePoint struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (p TimePoint) minutes() int {
	return p.Hour*60 + p.Minute
}

// Range is a half-open [Start, End) calling window.
type Range struct {
	Start TimePoint `json:"start"`
	End   TimePoint `json:"end"`
}

// Model is a parsed weekly schedule. A nil Model means no schedule is
// configured and dialing is always allowed.
type Model struct {
	Days     map[time.Weekday][]Range
	Timezone string

	loc *time.Location
}

// OpenState is the answer to "can we dial right now".
type OpenState struct {
	Open       bool
	NextWindow *time.Time
}

var displayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

var dayNames = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday,
}

var shortDay = map[time.Weekday]string{
	time.Monday:    "Mon",
	time.Tuesday:   "Tue",
	time.Wednesday: "Wed",
	time.Thursday:  "Thu",
	time.Friday:    "Fri",
	time.Saturday:  "Sat",
	time.Sunday:    "Sun",
}

func normalizeDayKey(key string) (time.Weekday, bool) {
	day, ok := dayNames[strings.ToLower(strings.TrimSpace(key))]
	return day, ok
}

// Parse decodes the raw schedule object an agent carries. The object mixes
// weekday keys and a timezone field at the same level, so every key is
// inspected individually. Unknown keys are logged and skipped.
func Parse(raw json.RawMessage) (*Model, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse schedule: %w", err)
	}

	model := &Model{Days: make(map[time.Weekday][]Range)}
	for key, value := range fields {
		if strings.EqualFold(key, "timezone") {
			if err := json.Unmarshal(value, &model.Timezone); err != nil {
				return nil, fmt.Errorf("failed to parse schedule timezone: %w", err)
			}
			continue
		}
		day, ok := normalizeDayKey(key)
		if !ok {
			logging.Schedule("ignoring unknown schedule key %q", key)
			continue
		}
		var ranges []Range
		if err := json.Unmarshal(value, &ranges); err != nil {
			return nil, fmt.Errorf("failed to parse schedule ranges for %s: %w", key, err)
		}
		model.Days[day] = ranges
	}

	model.loc = time.UTC
	if model.Timezone != "" {
		loc, err := time.LoadLocation(model.Timezone)
		if err != nil {
			logging.Schedule("unknown timezone %q, falling back to UTC", model.Timezone)
		} else {
			model.loc = loc
		}
	}
	return model, nil
}

// Resolve fetches and parses the agent's schedule. Auth and missing-agent
// failures are fatal; any other failure degrades to an always-open schedule
// so dialing is never blocked by a flaky lookup.
func Resolve(ctx context.Context, client *api.Client, agentID string) (*Model, error) {
	agent, err := client.GetAgent(ctx, agentID)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.IsAuthOrMissing() {
			return nil, fmt.Errorf("cannot access agent %s: %w", agentID, err)
		}
		logging.Schedule("agent lookup failed, treating schedule as always open: %v", err)
		return nil, nil
	}

	model, err := Parse(agent.Schedule)
	if err != nil {
		logging.Schedule("schedule unparseable, treating as always open: %v", err)
		return nil, nil
	}
	return model, nil
}

// IsOpen reports whether dialing is allowed at the given instant and, when
// closed, when the next window opens.
func (m *Model) IsOpen(now time.Time) OpenState {
	if m == nil || len(m.Days) == 0 {
		return OpenState{Open: true}
	}

	local := now.In(m.loc)
	nowMinutes := local.Hour()*60 + local.Minute()

	for _, r := range m.Days[local.Weekday()] {
		if r.Start.minutes() <= nowMinutes && nowMinutes < r.End.minutes() {
			return OpenState{Open: true}
		}
	}

	// Later range today.
	var next *time.Time
	for _, r := range m.Days[local.Weekday()] {
		if r.Start.minutes() > nowMinutes {
			at := atTime(local, 0, r.Start)
			if next == nil || at.Before(*next) {
				next = &at
			}
		}
	}
	if next != nil {
		return OpenState{NextWindow: next}
	}

	// First range on a following day within the week.
	for offset := 1; offset <= 7; offset++ {
		day := (local.Weekday() + time.Weekday(offset)) % 7
		ranges := m.Days[day]
		if len(ranges) == 0 {
			continue
		}
		earliest := ranges[0]
		for _, r := range ranges[1:] {
			if r.Start.minutes() < earliest.Start.minutes() {
				earliest = r
			}
		}
		at := atTime(local, offset, earliest.Start)
		return OpenState{NextWindow: &at}
	}
	return OpenState{}
}

func atTime(local time.Time, dayOffset int, p TimePoint) time.Time {
	return time.Date(
		local.Year(), local.Month(), local.Day()+dayOffset,
		p.Hour, p.Minute, 0, 0, local.Location(),
	)
}

func formatClock(p TimePoint) string {
	hour := p.Hour % 12
	suffix := "AM"
	if p.Hour >= 12 {
		suffix = "PM"
	}
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%02d%s", hour, p.Minute, suffix)
}

func formatRanges(ranges []Range) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = fmt.Sprintf("%s-%s", formatClock(r.Start), formatClock(r.End))
	}
	return strings.Join(parts, ", ")
}

// FormatDisplay renders the weekly schedule, folding consecutive days with
// identical hours into a single line such as "Mon-Fri 9:00AM-5:00PM".
func (m *Model) FormatDisplay() []string {
	if m == nil || len(m.Days) == 0 {
		return []string{"always open"}
	}

	rendered := make(map[time.Weekday]string)
	for day, ranges := range m.Days {
		if len(ranges) == 0 {
			continue
		}
		sorted := make([]Range, len(ranges))
		copy(sorted, ranges)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Start.minutes() < sorted[j].Start.minutes()
		})
		rendered[day] = formatRanges(sorted)
	}

	var lines []string
	for i := 0; i < len(displayOrder); {
		day := displayOrder[i]
		hours, ok := rendered[day]
		if !ok {
			i++
			continue
		}
		j := i
		for j+1 < len(displayOrder) && rendered[displayOrder[j+1]] == hours {
			j++
		}
		if j > i {
			lines = append(lines, fmt.Sprintf("%s-%s %s", shortDay[day], shortDay[displayOrder[j]], hours))
		} else {
			lines = append(lines, fmt.Sprintf("%s %s", shortDay[day], hours))
		}
		i = j + 1
	}
	return lines
}
