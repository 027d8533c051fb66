package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dialcast/internal/api"
)

// Reserved column headers; everything else lands in additionalData.
const (
	colEndpoint = "endpoint"
	colPriority = "priority"
	colDeadline = "calldeadline"
	colTimezone = "timezone"
)

// loadCallsFile reads a CSV of call requests. The first row is a header; the
// endpoint column is required, rows without one are skipped. Returns the
// requests plus the source identity (the file's base name) that keys the
// campaign.
func loadCallsFile(path string) ([]api.CallRequest, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open calls file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse calls file: %w", err)
	}
	if len(rows) < 2 {
		return nil, "", fmt.Errorf("calls file %s has no data rows", filepath.Base(path))
	}

	header := make([]string, len(rows[0]))
	endpointIdx := -1
	for i, name := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(name))
		if header[i] == colEndpoint {
			endpointIdx = i
		}
	}
	if endpointIdx == -1 {
		return nil, "", fmt.Errorf("calls file %s has no endpoint column", filepath.Base(path))
	}

	var requests []api.CallRequest
	for _, row := range rows[1:] {
		if endpointIdx >= len(row) || strings.TrimSpace(row[endpointIdx]) == "" {
			continue
		}
		req := api.CallRequest{}
		for i, value := range row {
			value = strings.TrimSpace(value)
			if i >= len(header) || value == "" {
				continue
			}
			switch header[i] {
			case colEndpoint:
				req.Endpoint = value
			case colPriority:
				if p, err := strconv.Atoi(value); err == nil {
					req.Priority = p
				}
			case colDeadline:
				req.CallDeadLine = value
			case colTimezone:
				req.Timezone = value
			default:
				if req.AdditionalData == nil {
					req.AdditionalData = make(map[string]string)
				}
				req.AdditionalData[header[i]] = value
			}
		}
		requests = append(requests, req)
	}
	return requests, filepath.Base(path), nil
}
