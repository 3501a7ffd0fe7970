// Package filter decides which enumerated resources are kept for
// deletion. The pipeline is a pure function over (resource, criteria);
// evaluation order is fixed and not configurable.
package filter

import (
	"time"

	"github.com/skyfell/reaper/types"
)

// Criteria narrows enumerated resources down to deletion candidates.
type Criteria struct {
	// Include limits deletion to these services. When non-empty it takes
	// precedence over Exclude for any service present in both.
	Include []types.Service

	// Exclude protects whole services.
	Exclude []types.Service

	// RequiredTags exempt a resource when ANY of these key=value pairs
	// matches one of its tags.
	RequiredTags map[string]string

	// OlderThan rejects resources younger than this. Zero disables age
	// filtering. Resources without a creation timestamp cannot be judged
	// too young and pass this step.
	OlderThan time.Duration
}

// Verdict explains why a resource was kept or rejected.
type Verdict struct {
	Keep   bool
	Reason string
}

const (
	ReasonNotIncluded  = "service not in include set"
	ReasonExcluded     = "service excluded"
	ReasonProtectedTag = "protected by required tag"
	ReasonTooYoung     = "younger than age threshold"
	ReasonEligible     = "eligible for deletion"
)

// Keep reports whether the resource should be deleted under the criteria.
func (c Criteria) Keep(r types.Resource, now time.Time) bool {
	return c.Evaluate(r, now).Keep
}

// Evaluate runs the fixed pipeline:
//  1. include set (when non-empty, membership is mandatory)
//  2. exclude set
//  3. required-tag exemption
//  4. age threshold (skipped for nil timestamps)
func (c Criteria) Evaluate(r types.Resource, now time.Time) Verdict {
	if len(c.Include) > 0 {
		if !containsService(c.Include, r.Service) {
			return Verdict{Keep: false, Reason: ReasonNotIncluded}
		}
	} else if containsService(c.Exclude, r.Service) {
		return Verdict{Keep: false, Reason: ReasonExcluded}
	}

	for key, value := range c.RequiredTags {
		if r.HasTag(key, value) {
			return Verdict{Keep: false, Reason: ReasonProtectedTag}
		}
	}

	if c.OlderThan > 0 {
		if age, ok := r.Age(now); ok && age < c.OlderThan {
			return Verdict{Keep: false, Reason: ReasonTooYoung}
		}
	}

	return Verdict{Keep: true, Reason: ReasonEligible}
}

// Apply filters a slice of resources, returning kept and skipped halves.
// Skipped resources come back as results so the report can account for
// every enumerated resource.
func (c Criteria) Apply(resources []types.Resource, now time.Time) (kept []types.Resource, skipped []types.DeletionResult) {
	for _, r := range resources {
		verdict := c.Evaluate(r, now)
		if verdict.Keep {
			kept = append(kept, r)
			continue
		}
		skipped = append(skipped, types.DeletionResult{
			Resource:   r,
			Outcome:    types.OutcomeSkipped,
			Reason:     verdict.Reason,
			FinishedAt: now,
		})
	}
	return kept, skipped
}

func containsService(services []types.Service, svc types.Service) bool {
	for _, s := range services {
		if s == svc {
			return true
		}
	}
	return false
}
