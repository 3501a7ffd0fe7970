package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfell/reaper/types"
)

func testReport() *Report {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return &Report{
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Regions:    []string{"us-east-1"},
		Pairs: []PairStatus{
			{Region: "us-east-1", Service: types.ServiceEC2, Enumerated: 2},
			{Region: "us-east-1", Service: types.ServiceRDS, Error: "api down"},
		},
		Results: []types.DeletionResult{
			{
				Resource: types.Resource{ID: "i-1", Service: types.ServiceEC2, Region: "us-east-1"},
				Outcome:  types.OutcomeDeleted,
			},
			{
				Resource: types.Resource{ID: "i-2", Service: types.ServiceEC2, Region: "us-east-1"},
				Outcome:  types.OutcomeSkipped,
				Reason:   "younger than age threshold",
			},
		},
	}
}

func TestSummarize(t *testing.T) {
	s := testReport().Summarize()
	assert.Equal(t, 2, s.Enumerated)
	assert.Equal(t, 1, s.Deleted)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 0, s.Failed)
	assert.Equal(t, 1, s.PairsFailed)
}

func TestCleanRequiresNoFailures(t *testing.T) {
	r := testReport()
	assert.False(t, r.Clean())

	r.Pairs[1].Error = ""
	assert.True(t, r.Clean())

	r.Results[0].Outcome = types.OutcomeFailed
	assert.False(t, r.Clean())
}

func TestWriteJSONIncludesSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, testReport().WriteJSON(&buf))

	var decoded struct {
		Summary Summary      `json:"summary"`
		Pairs   []PairStatus `json:"pairs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 1, decoded.Summary.Deleted)
	assert.Len(t, decoded.Pairs, 2)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, testReport().WriteTable(&buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "REGION"))
	assert.Contains(t, out, "i-1")
	assert.Contains(t, out, "deleted")
	assert.Contains(t, out, "api down")
	assert.Contains(t, out, "1 deleted, 1 skipped, 0 failed")
}
