package infra

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opsgate/opsgate/internal/health"
)

// executionLogCap bounds the audit trail; oldest entries are evicted first.
const executionLogCap = 100

const (
	minFleetSize = 1
	maxFleetSize = 100
)

// ErrUnknownService marks requests naming a service that does not exist.
// Distinct from a policy violation: "that doesn't exist" vs "you're not allowed".
var ErrUnknownService = errors.New("unknown service")

// ErrRefused marks operations the infrastructure refuses to perform at all.
var ErrRefused = errors.New("operation refused")

// LogEntry is one recorded infrastructure action.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
}

// ListResult is the outcome of list_services.
type ListResult struct {
	Services  []string  `json:"services"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// ServiceStatusResult is the outcome of a single-service status check.
type ServiceStatusResult struct {
	Service   string        `json:"service"`
	Health    health.Status `json:"health"`
	IsHealthy bool          `json:"is_healthy"`
	Timestamp time.Time     `json:"timestamp"`
}

// FleetStatusResult is the outcome of a fleet-wide status check.
type FleetStatusResult struct {
	Services          map[string]health.Status `json:"services"`
	FleetSize         int                      `json:"fleet_size"`
	UnhealthyCount    int                      `json:"unhealthy_count"`
	UnhealthyServices []string                 `json:"unhealthy_services"`
	AllHealthy        bool                     `json:"all_healthy"`
	Timestamp         time.Time                `json:"timestamp"`
}

// LogsResult is the outcome of read_logs.
type LogsResult struct {
	Lines          []string  `json:"log_lines"`
	TotalAvailable int       `json:"total_available"`
	Timestamp      time.Time `json:"timestamp"`
}

// RestartResult is the outcome of restart_service.
type RestartResult struct {
	Service   string        `json:"service"`
	OldHealth health.Status `json:"old_health"`
	NewHealth health.Status `json:"new_health"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

// ScaleResult is the outcome of scale_fleet.
type ScaleResult struct {
	OldSize   int       `json:"old_size"`
	NewSize   int       `json:"new_size"`
	Change    int       `json:"change"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Cloud is a mock infrastructure: a handful of named services with a health
// value each, a fleet size, and a bounded execution log. It knows nothing
// about policy; the gateway decides what reaches it.
type Cloud struct {
	mu        sync.Mutex
	services  map[string]health.Status
	fleetSize int
	log       []LogEntry
	now       func() time.Time
}

// NewCloud seeds the default demo environment: five healthy services, fleet of 3.
func NewCloud() *Cloud {
	return &Cloud{
		services: map[string]health.Status{
			"web-server":    health.StatusHealthy,
			"api-gateway":   health.StatusHealthy,
			"database":      health.StatusHealthy,
			"cache":         health.StatusHealthy,
			"load-balancer": health.StatusHealthy,
		},
		fleetSize: 3,
		now:       time.Now,
	}
}

func (c *Cloud) logAction(action string, details map[string]any) {
	c.log = append(c.log, LogEntry{Timestamp: c.now(), Action: action, Details: details})
	if len(c.log) > executionLogCap {
		c.log = c.log[len(c.log)-executionLogCap:]
	}
}

// ListServices returns every known service name.
func (c *Cloud) ListServices() ListResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logAction("list_services", nil)
	return ListResult{
		Services:  c.serviceNamesLocked(),
		Count:     len(c.services),
		Timestamp: c.now(),
	}
}

// ServiceStatus reports the ground-truth health of one service.
func (c *Cloud) ServiceStatus(name string) (ServiceStatusResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logAction("get_service_status", map[string]any{"service": name})

	status, ok := c.services[name]
	if !ok {
		return ServiceStatusResult{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownService, name, c.serviceNamesLocked())
	}
	return ServiceStatusResult{
		Service:   name,
		Health:    status,
		IsHealthy: status == health.StatusHealthy,
		Timestamp: c.now(),
	}, nil
}

// FleetStatus reports the ground-truth health of every service.
func (c *Cloud) FleetStatus() FleetStatusResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logAction("get_service_status", nil)

	services := make(map[string]health.Status, len(c.services))
	unhealthy := make([]string, 0)
	for name, status := range c.services {
		services[name] = status
		if status.IsUnhealthy() {
			unhealthy = append(unhealthy, name)
		}
	}
	sort.Strings(unhealthy)
	return FleetStatusResult{
		Services:          services,
		FleetSize:         c.fleetSize,
		UnhealthyCount:    len(unhealthy),
		UnhealthyServices: unhealthy,
		AllHealthy:        len(unhealthy) == 0,
		Timestamp:         c.now(),
	}
}

// ReadLogs synthesizes recent log lines from current service health.
func (c *Cloud) ReadLogs(lines int) LogsResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logAction("read_logs", map[string]any{"lines": lines})

	if lines <= 0 {
		lines = 10
	}

	entries := make([]string, 0, len(c.services)+2)
	for _, name := range c.serviceNamesLocked() {
		switch c.services[name] {
		case health.StatusHealthy:
			entries = append(entries, fmt.Sprintf("[INFO] %s: operating normally", name))
		case health.StatusDegraded:
			entries = append(entries, fmt.Sprintf("[WARN] %s: performance degraded, response time elevated", name))
		case health.StatusCritical:
			entries = append(entries, fmt.Sprintf("[ERROR] %s: service experiencing critical issues", name))
		}
	}
	entries = append(entries,
		fmt.Sprintf("[INFO] fleet health check: %d instances responding", c.fleetSize),
		fmt.Sprintf("[INFO] total services monitored: %d", len(c.services)),
	)

	total := len(entries)
	if lines < len(entries) {
		entries = entries[:lines]
	}
	return LogsResult{Lines: entries, TotalAvailable: total, Timestamp: c.now()}
}

// Restart restarts a service. A successful restart always recovers the
// service to healthy.
func (c *Cloud) Restart(name string) (RestartResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logAction("restart_service", map[string]any{"service": name})

	old, ok := c.services[name]
	if !ok {
		return RestartResult{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownService, name, c.serviceNamesLocked())
	}
	c.services[name] = health.StatusHealthy
	return RestartResult{
		Service:   name,
		OldHealth: old,
		NewHealth: health.StatusHealthy,
		Message:   fmt.Sprintf("service %q successfully restarted and recovered", name),
		Timestamp: c.now(),
	}, nil
}

// Scale resizes the fleet within [1, 100].
func (c *Cloud) Scale(count int) (ScaleResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logAction("scale_fleet", map[string]any{"target_count": count})

	if count < minFleetSize {
		return ScaleResult{}, fmt.Errorf("fleet size must be at least %d", minFleetSize)
	}
	if count > maxFleetSize {
		return ScaleResult{}, fmt.Errorf("fleet size cannot exceed %d instances", maxFleetSize)
	}
	old := c.fleetSize
	c.fleetSize = count
	return ScaleResult{
		OldSize:   old,
		NewSize:   count,
		Change:    count - old,
		Message:   fmt.Sprintf("fleet scaled from %d to %d instances", old, count),
		Timestamp: c.now(),
	}, nil
}

// DeleteDatabase never executes. The policy engine blocks the tool globally;
// reaching this method means the gate failed, so the infrastructure refuses too.
func (c *Cloud) DeleteDatabase(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logAction("delete_database_attempt", map[string]any{"db_name": name})
	return fmt.Errorf("%w: delete_database must never execute", ErrRefused)
}

// SetHealth overrides ground-truth health, used by incident simulation.
func (c *Cloud) SetHealth(name string, status health.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.services[name]
	if !ok {
		return fmt.Errorf("%w: %q (available: %v)", ErrUnknownService, name, c.serviceNamesLocked())
	}
	c.services[name] = status
	c.logAction("health_change", map[string]any{
		"service":    name,
		"old_status": string(old),
		"new_status": string(status),
	})
	return nil
}

// Snapshot returns a copy of the ground-truth health map.
func (c *Cloud) Snapshot() map[string]health.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]health.Status, len(c.services))
	for name, status := range c.services {
		out[name] = status
	}
	return out
}

// FleetSize returns the current instance count.
func (c *Cloud) FleetSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fleetSize
}

// RecentActions returns the newest n execution log entries, oldest first.
func (c *Cloud) RecentActions(n int) []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || n > len(c.log) {
		n = len(c.log)
	}
	out := make([]LogEntry, n)
	copy(out, c.log[len(c.log)-n:])
	return out
}

func (c *Cloud) serviceNamesLocked() []string {
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
