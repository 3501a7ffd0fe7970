package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfell/reaper/types"
)

// fakeProvider records delete order and serves scripted errors per
// resource ID.
type fakeProvider struct {
	deleted []string
	errs    map[string][]error
	calls   map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		errs:  make(map[string][]error),
		calls: make(map[string]int),
	}
}

func (f *fakeProvider) ListResources(ctx context.Context, service types.Service) ([]types.Resource, error) {
	return nil, nil
}

func (f *fakeProvider) DeleteResource(ctx context.Context, r types.Resource) error {
	n := f.calls[r.ID]
	f.calls[r.ID]++
	if queue := f.errs[r.ID]; n < len(queue) {
		return queue[n]
	}
	f.deleted = append(f.deleted, r.ID)
	return nil
}

func (f *fakeProvider) Name() string   { return "fake" }
func (f *fakeProvider) Region() string { return "us-east-1" }

func fastOptions() Options {
	return Options{MaxAttempts: 3, InitialInterval: time.Millisecond}
}

func res(id string, svc types.Service) types.Resource {
	return types.Resource{ID: id, Service: svc, Region: "us-east-1"}
}

func TestRunDeletesInPrecedenceOrder(t *testing.T) {
	provider := newFakeProvider()
	exec := New(provider, zerolog.Nop(), fastOptions())

	results := exec.Run(context.Background(), []types.Resource{
		res("vol-1", types.ServiceEBS),
		res("i-1", types.ServiceEC2),
		res("asg-1", types.ServiceAutoScaling),
	})

	require.Len(t, results, 3)
	assert.Equal(t, []string{"asg-1", "i-1", "vol-1"}, provider.deleted)
	for _, r := range results {
		assert.Equal(t, types.OutcomeDeleted, r.Outcome)
	}
}

func TestRunRetriesTransientErrors(t *testing.T) {
	provider := newFakeProvider()
	provider.errs["sg-1"] = []error{
		&smithy.GenericAPIError{Code: "DependencyViolation", Message: "in use"},
		&smithy.GenericAPIError{Code: "Throttling", Message: "slow down"},
	}
	exec := New(provider, zerolog.Nop(), fastOptions())

	results := exec.Run(context.Background(), []types.Resource{res("sg-1", types.ServiceSecurityGroup)})

	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeDeleted, results[0].Outcome)
	assert.Equal(t, 3, results[0].Attempts)
}

func TestRunDoesNotRetryPermissionDenied(t *testing.T) {
	provider := newFakeProvider()
	provider.errs["key-1"] = []error{
		&smithy.GenericAPIError{Code: "AccessDeniedException", Message: "no"},
	}
	exec := New(provider, zerolog.Nop(), fastOptions())

	results := exec.Run(context.Background(), []types.Resource{res("key-1", types.ServiceKMS)})

	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeFailed, results[0].Outcome)
	assert.Equal(t, 1, results[0].Attempts)
}

func TestRunDoesNotRetryKeyStateErrors(t *testing.T) {
	provider := newFakeProvider()
	provider.errs["key-pending"] = []error{
		&smithy.GenericAPIError{Code: "KMSInvalidStateException", Message: "pending deletion"},
	}
	exec := New(provider, zerolog.Nop(), fastOptions())

	results := exec.Run(context.Background(), []types.Resource{res("key-pending", types.ServiceKMS)})

	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeFailed, results[0].Outcome)
	assert.Equal(t, 1, results[0].Attempts)
}

func TestRunTreatsNotFoundAsDeleted(t *testing.T) {
	provider := newFakeProvider()
	provider.errs["i-gone"] = []error{
		&smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound", Message: "gone"},
	}
	exec := New(provider, zerolog.Nop(), fastOptions())

	results := exec.Run(context.Background(), []types.Resource{res("i-gone", types.ServiceEC2)})

	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeDeleted, results[0].Outcome)
	assert.Equal(t, "already deleted", results[0].Reason)
}

func TestRunGivesUpAfterMaxAttempts(t *testing.T) {
	provider := newFakeProvider()
	provider.errs["sg-stuck"] = []error{
		&smithy.GenericAPIError{Code: "DependencyViolation"},
		&smithy.GenericAPIError{Code: "DependencyViolation"},
		&smithy.GenericAPIError{Code: "DependencyViolation"},
		&smithy.GenericAPIError{Code: "DependencyViolation"},
	}
	exec := New(provider, zerolog.Nop(), fastOptions())

	results := exec.Run(context.Background(), []types.Resource{res("sg-stuck", types.ServiceSecurityGroup)})

	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeFailed, results[0].Outcome)
	assert.Equal(t, 3, results[0].Attempts)
}

func TestRunContinuesAfterFailure(t *testing.T) {
	provider := newFakeProvider()
	provider.errs["i-bad"] = []error{errors.New("boom")}
	exec := New(provider, zerolog.Nop(), fastOptions())

	results := exec.Run(context.Background(), []types.Resource{
		res("i-bad", types.ServiceEC2),
		res("vol-ok", types.ServiceEBS),
	})

	require.Len(t, results, 2)
	assert.Equal(t, types.OutcomeFailed, results[0].Outcome)
	assert.Equal(t, types.OutcomeDeleted, results[1].Outcome)
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	provider := newFakeProvider()
	opts := fastOptions()
	opts.DryRun = true
	exec := New(provider, zerolog.Nop(), opts)

	results := exec.Run(context.Background(), []types.Resource{res("i-1", types.ServiceEC2)})

	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeSkipped, results[0].Outcome)
	assert.Equal(t, "dry run", results[0].Reason)
	assert.Empty(t, provider.deleted)
	assert.Zero(t, provider.calls["i-1"])
}

func TestRunSkipsRemainingOnCancel(t *testing.T) {
	provider := newFakeProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := New(provider, zerolog.Nop(), fastOptions())

	results := exec.Run(ctx, []types.Resource{
		res("i-1", types.ServiceEC2),
		res("vol-1", types.ServiceEBS),
	})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, types.OutcomeSkipped, r.Outcome)
		assert.Equal(t, "run deadline reached", r.Reason)
	}
	assert.Empty(t, provider.deleted)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		code      string
		transient bool
		denied    bool
		notFound  bool
	}{
		{code: "Throttling", transient: true},
		{code: "RequestLimitExceeded", transient: true},
		{code: "DependencyViolation", transient: true},
		{code: "AccessDenied", denied: true},
		{code: "UnauthorizedOperation", denied: true},
		{code: "InvalidInstanceID.NotFound", notFound: true},
		{code: "NoSuchBucket", notFound: true},
		{code: "ResourceNotFoundException", notFound: true},
		{code: "ValidationError"},
		// Key state, not authorization. Unclassified, so the executor
		// still fails it without retrying.
		{code: "KMSInvalidStateException"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := &smithy.GenericAPIError{Code: tt.code}
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Equal(t, tt.denied, IsPermissionDenied(err))
			assert.Equal(t, tt.notFound, IsNotFound(err))
		})
	}

	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsNotFound(errors.New("plain")))
}
