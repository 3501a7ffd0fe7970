package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfell/reaper/report"
	"github.com/skyfell/reaper/types"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "reaper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func sampleReport(start time.Time) *report.Report {
	return &report.Report{
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		Regions:    []string{"us-east-1"},
		Pairs: []report.PairStatus{
			{Region: "us-east-1", Service: types.ServiceEC2, Enumerated: 1},
		},
		Results: []types.DeletionResult{
			{
				Resource: types.Resource{ID: "i-1", Service: types.ServiceEC2, Region: "us-east-1"},
				Outcome:  types.OutcomeDeleted,
			},
		},
	}
}

func TestRecordAndLast(t *testing.T) {
	j := openTestJournal(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, j.Record(sampleReport(base)))
	require.NoError(t, j.Record(sampleReport(base.Add(time.Hour))))

	last, err := j.Last()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, base.Add(time.Hour), last.StartedAt)
	assert.Len(t, last.Results, 1)
	assert.Equal(t, "i-1", last.Results[0].Resource.ID)
}

func TestLastOnEmptyJournal(t *testing.T) {
	j := openTestJournal(t)

	last, err := j.Last()
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestListReturnsNewestFirst(t *testing.T) {
	j := openTestJournal(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(sampleReport(base.Add(time.Duration(i)*time.Hour))))
	}

	reports, err := j.List(3)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, base.Add(4*time.Hour), reports[0].StartedAt)
	assert.Equal(t, base.Add(2*time.Hour), reports[2].StartedAt)
}
