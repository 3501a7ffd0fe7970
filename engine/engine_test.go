package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfell/reaper/config"
	"github.com/skyfell/reaper/executor"
	"github.com/skyfell/reaper/policy"
	"github.com/skyfell/reaper/providers"
	"github.com/skyfell/reaper/report"
	"github.com/skyfell/reaper/types"
)

// fakeProvider serves canned resources per service and records deletes.
// Tests that need enumeration to react to prior deletes or to the
// context install a listFn instead.
type fakeProvider struct {
	mu        sync.Mutex
	region    string
	resources map[types.Service][]types.Resource
	listErrs  map[types.Service]error
	listFn    func(ctx context.Context, service types.Service) ([]types.Resource, error)
	deleted   []string
}

func (f *fakeProvider) ListResources(ctx context.Context, service types.Service) ([]types.Resource, error) {
	if f.listFn != nil {
		return f.listFn(ctx, service)
	}
	if err := f.listErrs[service]; err != nil {
		return nil, err
	}
	return f.resources[service], nil
}

func (f *fakeProvider) DeleteResource(ctx context.Context, r types.Resource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, r.ID)
	return nil
}

func (f *fakeProvider) Name() string   { return "fake" }
func (f *fakeProvider) Region() string { return f.region }

func (f *fakeProvider) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func testConfig(services ...types.Service) config.Config {
	return config.Config{
		Regions:        []string{"us-east-1"},
		Include:        services,
		MaxConcurrency: 4,
	}
}

func newEngine(t *testing.T, cfg config.Config, fakes map[string]*fakeProvider, opts ...Option) *Engine {
	t.Helper()
	opts = append(opts,
		WithExecutorOptions(executor.Options{MaxAttempts: 2, InitialInterval: time.Millisecond}),
		WithProviderFactory(func(ctx context.Context, region string) (providers.CloudProvider, error) {
			fake, ok := fakes[region]
			if !ok {
				return nil, errors.New("no provider for region")
			}
			return fake, nil
		}),
	)
	return New(cfg, zerolog.Nop(), opts...)
}

func ts(age time.Duration) *time.Time {
	t := time.Now().Add(-age)
	return &t
}

func findResult(t *testing.T, rpt *report.Report, id string) types.DeletionResult {
	t.Helper()
	for _, r := range rpt.Results {
		if r.Resource.ID == id {
			return r
		}
	}
	t.Fatalf("no result for %s", id)
	return types.DeletionResult{}
}

func TestRunDeletesEligibleResources(t *testing.T) {
	fake := &fakeProvider{
		region: "us-east-1",
		resources: map[types.Service][]types.Resource{
			types.ServiceEC2: {
				{ID: "i-old", Service: types.ServiceEC2, Region: "us-east-1", CreatedAt: ts(240 * time.Hour)},
				{ID: "i-new", Service: types.ServiceEC2, Region: "us-east-1", CreatedAt: ts(72 * time.Hour)},
			},
		},
	}

	cfg := testConfig(types.ServiceEC2)
	cfg.OlderThan = 7 * 24 * time.Hour
	eng := newEngine(t, cfg, map[string]*fakeProvider{"us-east-1": fake})

	rpt, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"i-old"}, fake.deletedIDs())
	assert.Equal(t, types.OutcomeDeleted, findResult(t, rpt, "i-old").Outcome)

	young := findResult(t, rpt, "i-new")
	assert.Equal(t, types.OutcomeSkipped, young.Outcome)
	assert.Equal(t, "younger than age threshold", young.Reason)

	summary := rpt.Summarize()
	assert.Equal(t, 2, summary.Enumerated)
	assert.Equal(t, 1, summary.Deleted)
	assert.Equal(t, 1, summary.Skipped)
}

func TestRunIsolatesFailingPairs(t *testing.T) {
	fake := &fakeProvider{
		region: "us-east-1",
		resources: map[types.Service][]types.Resource{
			types.ServiceEBS: {
				{ID: "vol-1", Service: types.ServiceEBS, Region: "us-east-1", CreatedAt: ts(time.Hour)},
			},
		},
		listErrs: map[types.Service]error{
			types.ServiceEC2: errors.New("api down"),
		},
	}

	eng := newEngine(t, testConfig(types.ServiceEC2, types.ServiceEBS), map[string]*fakeProvider{"us-east-1": fake})

	rpt, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"vol-1"}, fake.deletedIDs())

	var failedPair, okPair *report.PairStatus
	for i := range rpt.Pairs {
		switch rpt.Pairs[i].Service {
		case types.ServiceEC2:
			failedPair = &rpt.Pairs[i]
		case types.ServiceEBS:
			okPair = &rpt.Pairs[i]
		}
	}
	require.NotNil(t, failedPair)
	require.NotNil(t, okPair)
	assert.True(t, failedPair.Failed())
	assert.Contains(t, failedPair.Error, "api down")
	assert.False(t, okPair.Failed())
	assert.Equal(t, 1, rpt.Summarize().PairsFailed)
}

func TestRunRequiredTagExemption(t *testing.T) {
	fake := &fakeProvider{
		region: "us-east-1",
		resources: map[types.Service][]types.Resource{
			types.ServiceEC2: {
				{ID: "i-keep", Service: types.ServiceEC2, Region: "us-east-1",
					Tags: map[string]string{"keep": "true"}, CreatedAt: ts(240 * time.Hour)},
				{ID: "i-reap", Service: types.ServiceEC2, Region: "us-east-1", CreatedAt: ts(240 * time.Hour)},
			},
		},
	}

	cfg := testConfig(types.ServiceEC2)
	cfg.RequiredTags = map[string]string{"keep": "true"}
	eng := newEngine(t, cfg, map[string]*fakeProvider{"us-east-1": fake})

	rpt, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"i-reap"}, fake.deletedIDs())
	protected := findResult(t, rpt, "i-keep")
	assert.Equal(t, types.OutcomeSkipped, protected.Outcome)
	assert.Equal(t, "protected by required tag", protected.Reason)
}

func TestRunDryRunDeletesNothing(t *testing.T) {
	fake := &fakeProvider{
		region: "us-east-1",
		resources: map[types.Service][]types.Resource{
			types.ServiceEC2: {
				{ID: "i-1", Service: types.ServiceEC2, Region: "us-east-1", CreatedAt: ts(240 * time.Hour)},
			},
		},
	}

	cfg := testConfig(types.ServiceEC2)
	cfg.DryRun = true
	eng := newEngine(t, cfg, map[string]*fakeProvider{"us-east-1": fake})

	rpt, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, fake.deletedIDs())
	result := findResult(t, rpt, "i-1")
	assert.Equal(t, types.OutcomeSkipped, result.Outcome)
	assert.Equal(t, "dry run", result.Reason)
	assert.True(t, rpt.DryRun)
}

func TestRunExpiredDeadlineStartsNoPairs(t *testing.T) {
	fake := &fakeProvider{
		region: "us-east-1",
		resources: map[types.Service][]types.Resource{
			types.ServiceEC2: {
				{ID: "i-1", Service: types.ServiceEC2, Region: "us-east-1", CreatedAt: ts(240 * time.Hour)},
			},
		},
	}

	cfg := testConfig(types.ServiceEC2, types.ServiceEBS)
	cfg.RunTimeout = time.Nanosecond
	eng := newEngine(t, cfg, map[string]*fakeProvider{"us-east-1": fake})

	time.Sleep(time.Millisecond)
	rpt, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, fake.deletedIDs())
	require.Len(t, rpt.Pairs, 2)
	for _, pair := range rpt.Pairs {
		assert.Equal(t, "run deadline reached", pair.Skipped)
		assert.False(t, pair.Failed())
	}
	assert.Equal(t, 2, rpt.Summarize().PairsSkipped)
	assert.True(t, rpt.Clean())
}

func TestRunResolvesDefaultRegion(t *testing.T) {
	fake := &fakeProvider{
		region: "us-west-2",
		resources: map[types.Service][]types.Resource{
			types.ServiceEC2: {
				{ID: "i-ambient", Service: types.ServiceEC2, Region: "us-west-2", CreatedAt: ts(240 * time.Hour)},
			},
		},
	}

	cfg := testConfig(types.ServiceEC2)
	cfg.Regions = nil
	eng := newEngine(t, cfg, map[string]*fakeProvider{"us-west-2": fake},
		WithRegionResolver(func(ctx context.Context) (string, error) {
			return "us-west-2", nil
		}))

	rpt, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"us-west-2"}, rpt.Regions)
	assert.Equal(t, []string{"i-ambient"}, fake.deletedIDs())
}

func TestRunFailsWithoutResolvableRegion(t *testing.T) {
	cfg := testConfig(types.ServiceEC2)
	cfg.Regions = nil
	eng := newEngine(t, cfg, map[string]*fakeProvider{},
		WithRegionResolver(func(ctx context.Context) (string, error) {
			return "", errors.New("no region configured")
		}))

	_, err := eng.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no region configured")
}

func TestRunDeadlineSkipsQueuedPairs(t *testing.T) {
	fake := &fakeProvider{region: "us-east-1"}
	fake.listFn = func(ctx context.Context, service types.Service) ([]types.Resource, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	cfg := testConfig(types.ServiceEC2, types.ServiceEBS)
	cfg.MaxConcurrency = 1
	cfg.RunTimeout = 20 * time.Millisecond
	eng := newEngine(t, cfg, map[string]*fakeProvider{"us-east-1": fake})

	rpt, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, fake.deletedIDs())
	require.Len(t, rpt.Pairs, 2)
	for _, pair := range rpt.Pairs {
		assert.Equal(t, "run deadline reached", pair.Skipped)
		assert.False(t, pair.Failed())
	}
	summary := rpt.Summarize()
	assert.Equal(t, 0, summary.PairsFailed)
	assert.Equal(t, 2, summary.PairsSkipped)
	assert.True(t, rpt.Clean())
}

func TestRunTwiceDeletesOnlyOnce(t *testing.T) {
	live := []types.Resource{
		{ID: "i-1", Service: types.ServiceEC2, Region: "us-east-1", CreatedAt: ts(240 * time.Hour)},
		{ID: "i-2", Service: types.ServiceEC2, Region: "us-east-1", CreatedAt: ts(240 * time.Hour)},
	}
	fake := &fakeProvider{region: "us-east-1"}
	fake.listFn = func(ctx context.Context, service types.Service) ([]types.Resource, error) {
		gone := make(map[string]bool)
		for _, id := range fake.deletedIDs() {
			gone[id] = true
		}
		var remaining []types.Resource
		for _, r := range live {
			if !gone[r.ID] {
				remaining = append(remaining, r)
			}
		}
		return remaining, nil
	}

	eng := newEngine(t, testConfig(types.ServiceEC2), map[string]*fakeProvider{"us-east-1": fake})

	first, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Summarize().Deleted)

	second, err := eng.Run(context.Background())
	require.NoError(t, err)
	summary := second.Summarize()
	assert.Equal(t, 0, summary.Enumerated)
	assert.Equal(t, 0, summary.Deleted)
	assert.True(t, second.Clean())
	assert.Len(t, fake.deletedIDs(), 2)
}

func TestRunRecordsProviderSetupFailure(t *testing.T) {
	cfg := config.Config{
		Regions:        []string{"us-east-1", "eu-west-1"},
		Include:        []types.Service{types.ServiceEC2},
		MaxConcurrency: 2,
	}
	fake := &fakeProvider{region: "us-east-1"}
	eng := newEngine(t, cfg, map[string]*fakeProvider{"us-east-1": fake})

	rpt, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rpt.Pairs, 2)
	var euPair *report.PairStatus
	for i := range rpt.Pairs {
		if rpt.Pairs[i].Region == "eu-west-1" {
			euPair = &rpt.Pairs[i]
		}
	}
	require.NotNil(t, euPair)
	assert.Contains(t, euPair.Error, "no provider for region")
}

func TestRunPolicyProtection(t *testing.T) {
	fake := &fakeProvider{
		region: "us-east-1",
		resources: map[types.Service][]types.Resource{
			types.ServiceEC2: {
				{ID: "i-prod", Service: types.ServiceEC2, Region: "us-east-1",
					Tags: map[string]string{"env": "production"}, CreatedAt: ts(240 * time.Hour)},
				{ID: "i-dev", Service: types.ServiceEC2, Region: "us-east-1",
					Tags: map[string]string{"env": "dev"}, CreatedAt: ts(240 * time.Hour)},
			},
		},
	}

	policies := policy.NewEngine(zerolog.Nop())
	require.NoError(t, policies.LoadPolicy(context.Background(), "production.rego", `package reaper

protect if {
	input.resource.tags.env == "production"
}

reason := "production resources are protected" if protect
`))

	eng := newEngine(t, testConfig(types.ServiceEC2), map[string]*fakeProvider{"us-east-1": fake},
		WithPolicyEngine(policies))

	rpt, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"i-dev"}, fake.deletedIDs())
	protected := findResult(t, rpt, "i-prod")
	assert.Equal(t, types.OutcomeSkipped, protected.Outcome)
	assert.Equal(t, "production resources are protected", protected.Reason)
}
