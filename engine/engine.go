// Package engine fans a run out across every region and service pair,
// filters what the providers enumerate, and hands survivors to the
// executor. Pairs are isolated: one failing enumeration never stops
// the others.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/skyfell/reaper/config"
	"github.com/skyfell/reaper/executor"
	"github.com/skyfell/reaper/filter"
	"github.com/skyfell/reaper/policy"
	"github.com/skyfell/reaper/providers"
	"github.com/skyfell/reaper/report"
	"github.com/skyfell/reaper/telemetry"
	"github.com/skyfell/reaper/types"
)

// ProviderFactory builds one provider per region.
type ProviderFactory func(ctx context.Context, region string) (providers.CloudProvider, error)

// RegionResolver names the region to sweep when none is configured.
type RegionResolver func(ctx context.Context) (string, error)

// Engine coordinates a full run.
type Engine struct {
	cfg      config.Config
	logger   zerolog.Logger
	factory  ProviderFactory
	resolver RegionResolver
	policies *policy.Engine
	execOpts executor.Options
}

// Option customizes an Engine.
type Option func(*Engine)

// WithProviderFactory overrides how per-region providers are built.
func WithProviderFactory(f ProviderFactory) Option {
	return func(e *Engine) { e.factory = f }
}

// WithRegionResolver overrides how the default region is discovered.
func WithRegionResolver(r RegionResolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithPolicyEngine attaches Rego protection policies.
func WithPolicyEngine(p *policy.Engine) Option {
	return func(e *Engine) { e.policies = p }
}

// WithExecutorOptions overrides retry tuning.
func WithExecutorOptions(opts executor.Options) Option {
	return func(e *Engine) { e.execOpts = opts }
}

// New creates an engine from configuration. The default provider
// factory builds the registered aws provider.
func New(cfg config.Config, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		logger: logger,
		factory: func(ctx context.Context, region string) (providers.CloudProvider, error) {
			return providers.GetProvider(ctx, "aws", providers.ProviderConfig{Region: region})
		},
		resolver: func(ctx context.Context) (string, error) {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return "", err
			}
			if awsCfg.Region == "" {
				return "", errors.New("no region in the default AWS config; set regions or AWS_REGION")
			}
			return awsCfg.Region, nil
		},
		execOpts: executor.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.execOpts.DryRun = cfg.DryRun
	return e
}

func (e *Engine) criteria() filter.Criteria {
	return filter.Criteria{
		Include:      e.cfg.Include,
		Exclude:      e.cfg.Exclude,
		RequiredTags: e.cfg.RequiredTags,
		OlderThan:    e.cfg.OlderThan,
	}
}

// Run executes one full sweep and returns the report. The error return
// covers only setup problems; per-pair failures land in the report.
func (e *Engine) Run(ctx context.Context) (*report.Report, error) {
	start := time.Now()

	if e.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RunTimeout)
		defer cancel()
	}

	ctx, span := telemetry.Tracer.Start(ctx, "engine.run")
	defer span.End()

	// An empty region list means the ambient default region, never an
	// empty sweep.
	regions := e.cfg.Regions
	if len(regions) == 0 {
		region, err := e.resolver(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve default region: %w", err)
		}
		regions = []string{region}
	}

	services := e.cfg.Services()
	rpt := &report.Report{
		StartedAt: start,
		Regions:   regions,
		DryRun:    e.cfg.DryRun,
	}

	e.logger.Info().
		Strs("regions", regions).
		Int("services", len(services)).
		Bool("dry_run", e.cfg.DryRun).
		Msg("run started")

	sem := make(chan struct{}, e.cfg.MaxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	record := func(status report.PairStatus, results []types.DeletionResult) {
		mu.Lock()
		defer mu.Unlock()
		rpt.Pairs = append(rpt.Pairs, status)
		rpt.Results = append(rpt.Results, results...)
	}

	for _, region := range regions {
		provider, err := e.factory(ctx, region)
		if err != nil {
			e.logger.Error().Err(err).Str("region", region).Msg("provider setup failed")
			for _, svc := range services {
				record(report.PairStatus{Region: region, Service: svc, Error: err.Error()}, nil)
			}
			continue
		}

		for _, svc := range services {
			// Once the deadline passes, no new pair starts. Pairs
			// already running finish their accounting on their own.
			if ctx.Err() != nil {
				record(report.PairStatus{Region: region, Service: svc, Skipped: "run deadline reached"}, nil)
				continue
			}

			wg.Add(1)
			go func(region string, svc types.Service, provider providers.CloudProvider) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				// The deadline may pass while a pair waits its turn.
				if ctx.Err() != nil {
					record(report.PairStatus{Region: region, Service: svc, Skipped: "run deadline reached"}, nil)
					return
				}

				status, results := e.runPair(ctx, provider, svc)
				record(status, results)
			}(region, svc, provider)
		}
	}

	wg.Wait()
	rpt.FinishedAt = time.Now()

	summary := rpt.Summarize()
	e.logger.Info().
		Int("enumerated", summary.Enumerated).
		Int("deleted", summary.Deleted).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("pairs_failed", summary.PairsFailed).
		Dur("duration", rpt.FinishedAt.Sub(rpt.StartedAt)).
		Msg("run finished")

	if telemetry.RunDuration != nil {
		telemetry.RunDuration.Record(ctx, rpt.FinishedAt.Sub(rpt.StartedAt).Seconds())
	}

	return rpt, nil
}

// runPair enumerates, filters, and deletes one region and service pair.
func (e *Engine) runPair(ctx context.Context, provider providers.CloudProvider, svc types.Service) (report.PairStatus, []types.DeletionResult) {
	region := provider.Region()
	pairStart := time.Now()

	ctx, span := telemetry.Tracer.Start(ctx, "engine.pair", trace.WithAttributes(
		attribute.String("region", region),
		attribute.String("service", svc.String()),
	))
	defer span.End()

	logger := e.logger.With().Str("region", region).Str("service", svc.String()).Logger()
	status := report.PairStatus{Region: region, Service: svc}

	resources, err := provider.ListResources(ctx, svc)
	if err != nil {
		// A pair cut short by the run deadline ended normally, it did
		// not fail.
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			status.Skipped = "run deadline reached"
			logger.Info().Msg("pair skipped at run deadline")
			return status, nil
		}
		status.Error = err.Error()
		logger.Error().Err(err).Msg("enumeration failed")
		e.count(ctx, telemetry.PairsFailed, 1, region, svc)
		return status, nil
	}

	status.Enumerated = len(resources)
	e.count(ctx, telemetry.ResourcesEnumerated, int64(len(resources)), region, svc)

	kept, skipped := e.criteria().Apply(resources, time.Now())

	kept, protected, err := e.applyPolicies(ctx, kept)
	if err != nil {
		status.Error = err.Error()
		logger.Error().Err(err).Msg("policy evaluation failed")
		e.count(ctx, telemetry.PairsFailed, 1, region, svc)
		return status, nil
	}
	skipped = append(skipped, protected...)

	logger.Debug().
		Int("enumerated", len(resources)).
		Int("candidates", len(kept)).
		Int("skipped", len(skipped)).
		Msg("pair filtered")

	results := executor.New(provider, logger, e.execOpts).Run(ctx, kept)
	results = append(results, skipped...)

	for _, result := range results {
		switch result.Outcome {
		case types.OutcomeDeleted:
			e.count(ctx, telemetry.ResourcesDeleted, 1, region, svc)
		case types.OutcomeSkipped:
			e.count(ctx, telemetry.ResourcesSkipped, 1, region, svc)
		case types.OutcomeFailed:
			e.count(ctx, telemetry.DeletesFailed, 1, region, svc)
		}
	}

	if telemetry.PairDuration != nil {
		telemetry.PairDuration.Record(ctx, time.Since(pairStart).Seconds())
	}

	return status, results
}

// applyPolicies splits candidates into deletable and policy-protected.
func (e *Engine) applyPolicies(ctx context.Context, candidates []types.Resource) (kept []types.Resource, protected []types.DeletionResult, err error) {
	if e.policies == nil || e.policies.Empty() {
		return candidates, nil, nil
	}

	for _, resource := range candidates {
		decision, err := e.policies.Evaluate(ctx, resource)
		if err != nil {
			return nil, nil, err
		}
		if decision.Protected {
			protected = append(protected, types.DeletionResult{
				Resource:   resource,
				Outcome:    types.OutcomeSkipped,
				Reason:     decision.Reason,
				FinishedAt: time.Now(),
			})
			continue
		}
		kept = append(kept, resource)
	}
	return kept, protected, nil
}

// count adds to a counter when instruments are initialized. They stay
// nil in tests that never call telemetry.InitOTEL.
func (e *Engine) count(ctx context.Context, counter metric.Int64Counter, n int64, region string, svc types.Service) {
	if counter == nil {
		return
	}
	counter.Add(ctx, n, metric.WithAttributes(
		attribute.String("region", region),
		attribute.String("service", svc.String()),
	))
}
