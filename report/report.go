// Package report aggregates the outcome of a nuke run across every
// region and service pair and renders it as JSON or a table.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/skyfell/reaper/types"
)

// PairStatus records how one region and service pair fared. Skipped
// pairs never started, which is normal partial termination on a run
// deadline, not a failure.
type PairStatus struct {
	Region     string        `json:"region"`
	Service    types.Service `json:"service"`
	Enumerated int           `json:"enumerated"`
	Skipped    string        `json:"skipped,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Failed reports whether the pair's enumeration failed outright.
func (p PairStatus) Failed() bool {
	return p.Error != ""
}

// Report is the full accounting of a single run.
type Report struct {
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Regions    []string               `json:"regions"`
	DryRun     bool                   `json:"dry_run"`
	Pairs      []PairStatus           `json:"pairs"`
	Results    []types.DeletionResult `json:"results"`
}

// Summary holds the headline counts.
type Summary struct {
	Enumerated   int `json:"enumerated"`
	Deleted      int `json:"deleted"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
	PairsFailed  int `json:"pairs_failed"`
	PairsSkipped int `json:"pairs_skipped"`
}

// Summarize tallies the run.
func (r *Report) Summarize() Summary {
	var s Summary
	for _, pair := range r.Pairs {
		s.Enumerated += pair.Enumerated
		if pair.Failed() {
			s.PairsFailed++
		}
		if pair.Skipped != "" {
			s.PairsSkipped++
		}
	}
	for _, result := range r.Results {
		switch result.Outcome {
		case types.OutcomeDeleted:
			s.Deleted++
		case types.OutcomeSkipped:
			s.Skipped++
		case types.OutcomeFailed:
			s.Failed++
		}
	}
	return s
}

// Clean reports whether every delete attempted in the run succeeded and
// every pair enumerated.
func (r *Report) Clean() bool {
	s := r.Summarize()
	return s.Failed == 0 && s.PairsFailed == 0
}

// WriteJSON renders the full report, summary included, as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	out := struct {
		*Report
		Summary Summary `json:"summary"`
	}{Report: r, Summary: r.Summarize()}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteTable renders a human-readable table of per-resource outcomes
// followed by the summary line.
func (r *Report) WriteTable(w io.Writer) error {
	results := make([]types.DeletionResult, len(r.Results))
	copy(results, r.Results)
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Resource, results[j].Resource
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Service != b.Service {
			return a.Service.Precedence() < b.Service.Precedence()
		}
		return a.ID < b.ID
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REGION\tSERVICE\tRESOURCE\tOUTCOME\tREASON")
	for _, result := range results {
		res := result.Resource
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			res.Region, res.Service, res.ID, result.Outcome, result.Reason)
	}
	for _, pair := range r.Pairs {
		if pair.Failed() {
			fmt.Fprintf(tw, "%s\t%s\t-\terror\t%s\n", pair.Region, pair.Service, pair.Error)
		}
		if pair.Skipped != "" {
			fmt.Fprintf(tw, "%s\t%s\t-\tskipped\t%s\n", pair.Region, pair.Service, pair.Skipped)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := r.Summarize()
	_, err := fmt.Fprintf(w, "\n%d enumerated, %d deleted, %d skipped, %d failed, %d pairs errored (%s)\n",
		s.Enumerated, s.Deleted, s.Skipped, s.Failed, s.PairsFailed,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	return err
}
