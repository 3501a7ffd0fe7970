// Package executor deletes batches of resources through a provider,
// ordered by service precedence, with retries on transient failures.
package executor

import (
	"context"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/skyfell/reaper/providers"
	"github.com/skyfell/reaper/types"
)

// Options tunes deletion behavior.
type Options struct {
	// DryRun reports what would be deleted without calling any delete API.
	DryRun bool
	// MaxAttempts caps attempts per resource, first try included.
	MaxAttempts uint
	// InitialInterval seeds the exponential backoff between attempts.
	InitialInterval time.Duration
}

// DefaultOptions returns the production retry settings.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:     5,
		InitialInterval: 2 * time.Second,
	}
}

// Executor deletes resources through a single provider.
type Executor struct {
	provider providers.CloudProvider
	logger   zerolog.Logger
	opts     Options
}

// New creates an executor for one provider.
func New(provider providers.CloudProvider, logger zerolog.Logger, opts Options) *Executor {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultOptions().MaxAttempts
	}
	if opts.InitialInterval == 0 {
		opts.InitialInterval = DefaultOptions().InitialInterval
	}
	return &Executor{provider: provider, logger: logger, opts: opts}
}

// Run deletes the batch in precedence order and returns one result per
// resource. A failed delete never stops the batch; later resources
// still get their chance.
func (e *Executor) Run(ctx context.Context, resources []types.Resource) []types.DeletionResult {
	ordered := make([]types.Resource, len(resources))
	copy(ordered, resources)
	sort.SliceStable(ordered, func(i, j int) bool {
		if pi, pj := ordered[i].Service.Precedence(), ordered[j].Service.Precedence(); pi != pj {
			return pi < pj
		}
		return ordered[i].ID < ordered[j].ID
	})

	results := make([]types.DeletionResult, 0, len(ordered))
	for i, resource := range ordered {
		if ctx.Err() != nil {
			for _, remaining := range ordered[i:] {
				results = append(results, types.DeletionResult{
					Resource:   remaining,
					Outcome:    types.OutcomeSkipped,
					Reason:     "run deadline reached",
					FinishedAt: time.Now(),
				})
			}
			break
		}
		results = append(results, e.deleteOne(ctx, resource))
	}
	return results
}

func (e *Executor) deleteOne(ctx context.Context, resource types.Resource) types.DeletionResult {
	start := time.Now()
	result := types.DeletionResult{Resource: resource}

	if e.opts.DryRun {
		e.logger.Info().
			Str("service", resource.Service.String()).
			Str("region", resource.Region).
			Str("resource_id", resource.ID).
			Msg("dry run, would delete")
		result.Outcome = types.OutcomeSkipped
		result.Reason = "dry run"
		result.FinishedAt = time.Now()
		return result
	}

	var attempts int
	alreadyGone := false

	operation := func() (struct{}, error) {
		attempts++
		err := e.provider.DeleteResource(ctx, resource)
		switch {
		case err == nil:
			return struct{}{}, nil
		case IsNotFound(err):
			alreadyGone = true
			return struct{}{}, nil
		case IsPermissionDenied(err):
			return struct{}{}, backoff.Permanent(err)
		case IsTransient(err):
			e.logger.Debug().
				Err(err).
				Str("resource_id", resource.ID).
				Int("attempt", attempts).
				Msg("transient delete failure, retrying")
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.opts.InitialInterval

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(e.opts.MaxAttempts),
	)

	result.Attempts = attempts
	result.Duration = time.Since(start)
	result.FinishedAt = time.Now()

	switch {
	case err != nil:
		result.Outcome = types.OutcomeFailed
		result.Reason = err.Error()
		e.logger.Warn().
			Err(err).
			Str("service", resource.Service.String()).
			Str("region", resource.Region).
			Str("resource_id", resource.ID).
			Int("attempts", attempts).
			Msg("delete failed")
	case alreadyGone:
		result.Outcome = types.OutcomeDeleted
		result.Reason = "already deleted"
	default:
		result.Outcome = types.OutcomeDeleted
		e.logger.Info().
			Str("service", resource.Service.String()).
			Str("region", resource.Region).
			Str("resource_id", resource.ID).
			Int("attempts", attempts).
			Msg("resource deleted")
	}
	return result
}
