package health

import (
	"sort"
	"strings"
	"sync"
)

// Status is the observed health of a single resource.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// ParseStatus normalizes a raw status string, falling back to unknown.
func ParseStatus(raw string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusHealthy:
		return StatusHealthy
	case StatusDegraded:
		return StatusDegraded
	case StatusCritical:
		return StatusCritical
	default:
		return StatusUnknown
	}
}

// IsUnhealthy reports whether the status makes a resource eligible for remediation.
func (s Status) IsUnhealthy() bool {
	return s == StatusDegraded || s == StatusCritical
}

// Registry tracks the last observed health per resource. Policy trusts only what
// has been observed: a resource never fed through Observe is not unhealthy here,
// no matter what the real infrastructure looks like.
//
// The unhealthy set is derived state; Observe, ObserveAll and MarkRecovered are
// the only mutators and each keeps it in sync with the status map.
type Registry struct {
	mu        sync.RWMutex
	statuses  map[string]Status
	unhealthy map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		statuses:  make(map[string]Status),
		unhealthy: make(map[string]struct{}),
	}
}

// Observe unconditionally overwrites the authoritative health of a resource.
// Idempotent.
func (r *Registry) Observe(resource string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observeLocked(resource, status)
}

// ObserveAll applies Observe to every entry of a full snapshot. Used after a
// fleet-wide status check so that resources that silently recovered do not
// linger in the unhealthy set.
func (r *Registry) ObserveAll(snapshot map[string]Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for resource, status := range snapshot {
		r.observeLocked(resource, status)
	}
}

func (r *Registry) observeLocked(resource string, status Status) {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return
	}
	r.statuses[resource] = status
	if status.IsUnhealthy() {
		r.unhealthy[resource] = struct{}{}
	} else {
		delete(r.unhealthy, resource)
	}
}

// MarkRecovered resets a resource to healthy after a successful remediation.
func (r *Registry) MarkRecovered(resource string) {
	r.Observe(resource, StatusHealthy)
}

// IsUnhealthy reports whether the resource is currently in the unhealthy set.
// Unknown resources are not unhealthy.
func (r *Registry) IsUnhealthy(resource string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.unhealthy[resource]
	return ok
}

// StatusOf returns the last observed status, or unknown if never observed.
func (r *Registry) StatusOf(resource string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if status, ok := r.statuses[resource]; ok {
		return status
	}
	return StatusUnknown
}

// Unhealthy returns the sorted list of resources eligible for remediation.
func (r *Registry) Unhealthy() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.unhealthy))
	for resource := range r.unhealthy {
		out = append(out, resource)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of every observed resource status.
func (r *Registry) Snapshot() map[string]Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Status, len(r.statuses))
	for resource, status := range r.statuses {
		out[resource] = status
	}
	return out
}
