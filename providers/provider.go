// Package providers defines the cloud provider boundary: enumerating
// resources of one service in one region, and deleting a single resource.
package providers

import (
	"context"
	"fmt"

	"github.com/skyfell/reaper/types"
)

// CloudProvider enumerates and deletes resources in a single region.
type CloudProvider interface {
	// ListResources enumerates every resource of the service visible in
	// the provider's region, paginating transparently. The returned slice
	// reflects live cloud state at call time.
	ListResources(ctx context.Context, service types.Service) ([]types.Resource, error)

	// DeleteResource issues the owning service's delete operation.
	// Deletion is irreversible; the provider performs no retries itself.
	DeleteResource(ctx context.Context, resource types.Resource) error

	// Provider info
	Name() string
	Region() string
}

// ServiceUnavailableError marks an enumeration failure for one
// (region, service) pair. Other pairs keep running.
type ServiceUnavailableError struct {
	Service types.Service
	Region  string
	Err     error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable in %s: %v", e.Service, e.Region, e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error {
	return e.Err
}

// ProviderConfig holds provider construction parameters.
type ProviderConfig struct {
	Region string
}

// ProviderFactory creates a provider instance for one region.
type ProviderFactory func(ctx context.Context, config ProviderConfig) (CloudProvider, error)

var factories = make(map[string]ProviderFactory)

// RegisterProvider registers a provider factory under a name.
func RegisterProvider(name string, factory ProviderFactory) {
	factories[name] = factory
}

// GetProvider creates a provider instance by name.
func GetProvider(ctx context.Context, name string, config ProviderConfig) (CloudProvider, error) {
	factory, exists := factories[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return factory(ctx, config)
}
