package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialcast/internal/schedule"
)

func TestScheduleAdvisorLine(t *testing.T) {
	assert.Equal(t, "calling hours open", scheduleAdvisorLine(nil))

	model, err := schedule.Parse(json.RawMessage(`{
		"Mon": [{"start":{"hour":0,"minute":0},"end":{"hour":0,"minute":1}}],
		"timezone": "UTC"
	}`))
	require.NoError(t, err)

	line := scheduleAdvisorLine(model)
	if line != "calling hours open" {
		assert.Contains(t, line, "calling hours closed")
		assert.Contains(t, line, "next window")
	}
}
