package campaign

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var exportHeader = []string{
	"endpoint", "status", "callId", "createdTime", "completedTime", "duration", "inspectorUrl",
}

// quoteField always quotes, doubling embedded quotes, so downstream tools
// never have to guess at delimiters inside endpoints or URLs.
func quoteField(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

func quoteRow(fields []string) string {
	quoted := make([]string, len(fields))
	for i, field := range fields {
		quoted[i] = quoteField(field)
	}
	return strings.Join(quoted, ",")
}

func exportRow(id string, call CallState) []string {
	duration := ""
	if call.DurationSeconds > 0 {
		duration = strconv.FormatFloat(call.DurationSeconds, 'f', -1, 64)
	}
	return []string{
		call.Endpoint,
		string(call.Status),
		id,
		call.CreatedTime,
		call.CompletedTime,
		duration,
		call.InspectorURL,
	}
}

// ExportResults writes the current campaign view to a CSV file. Calls the
// search has not surfaced yet are emitted as created rows so the export
// always covers the whole campaign.
func (w *Watcher) ExportResults(path string) error {
	w.mu.Lock()
	record := w.record
	observed := make(map[string]CallState, len(w.calls))
	for id, call := range w.calls {
		observed[id] = *call
	}
	w.mu.Unlock()

	lines := []string{quoteRow(exportHeader)}

	emitted := make(map[string]bool, len(observed))
	for _, id := range record.CallIDs {
		call, ok := observed[id]
		if !ok {
			continue
		}
		lines = append(lines, quoteRow(exportRow(id, call)))
		emitted[id] = true
	}

	var leftover []string
	for id := range observed {
		if !emitted[id] {
			leftover = append(leftover, id)
		}
	}
	sort.Strings(leftover)
	for _, id := range leftover {
		lines = append(lines, quoteRow(exportRow(id, observed[id])))
		emitted[id] = true
	}

	for _, id := range record.CallIDs {
		if emitted[id] {
			continue
		}
		lines = append(lines, quoteRow([]string{
			record.CallMapping[id].Endpoint,
			string(StatusCreated),
			id,
			"", "", "", "",
		}))
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	data := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
