package types

import "time"

// Resource represents a single cloud resource candidate for deletion.
// CreatedAt is nil for services that expose no creation timestamp
// (key pairs and security groups); those resources are never judged by age.
type Resource struct {
	ID        string            `json:"id"`
	Service   Service           `json:"service"`
	Region    string            `json:"region"`
	Name      string            `json:"name,omitempty"`
	Status    string            `json:"status,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
}

// Age returns how old the resource is at the given instant.
// The second return value is false when the service has no creation timestamp.
func (r *Resource) Age(now time.Time) (time.Duration, bool) {
	if r.CreatedAt == nil {
		return 0, false
	}
	return now.Sub(*r.CreatedAt), true
}

// HasTag reports whether the resource carries the exact key=value tag.
func (r *Resource) HasTag(key, value string) bool {
	v, ok := r.Tags[key]
	return ok && v == value
}

// Key uniquely identifies a resource within a run.
// IDs are unique per (service, region), so the triple is globally unique.
func (r *Resource) Key() string {
	return string(r.Service) + "/" + r.Region + "/" + r.ID
}
