package tools

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownTool marks requests naming a tool outside the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// Kind classifies a tool by the worst effect it can have.
type Kind string

const (
	KindReadOnly    Kind = "read-only"
	KindActive      Kind = "active"
	KindDestructive Kind = "destructive"
)

// ArgSpec describes one declared tool argument.
type ArgSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Spec is one entry of the closed tool catalog. Whether a tool mutates state,
// which argument names its target and whether success repairs the target are
// static properties of the tool, never of the request.
type Spec struct {
	Name        string    `json:"name"`
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	Args        []ArgSpec `json:"parameters"`

	// Mutating marks tools capable of changing infrastructure state.
	Mutating bool `json:"-"`
	// TargetArg names the argument holding the single-target resource.
	// Empty for fleet-wide or untargeted tools.
	TargetArg string `json:"-"`
	// Remediation marks mutating tools whose success repairs the target.
	Remediation bool `json:"-"`
	// ObservesHealth marks read-only tools whose result carries health truth.
	ObservesHealth bool `json:"-"`
}

const (
	ToolListServices     = "list_services"
	ToolGetServiceStatus = "get_service_status"
	ToolReadLogs         = "read_logs"
	ToolRestartService   = "restart_service"
	ToolScaleFleet       = "scale_fleet"
	ToolDeleteDatabase   = "delete_database"
)

var catalog = map[string]Spec{
	ToolListServices: {
		Name:        ToolListServices,
		Kind:        KindReadOnly,
		Description: "List all available cloud services",
	},
	ToolGetServiceStatus: {
		Name:        ToolGetServiceStatus,
		Kind:        KindReadOnly,
		Description: "Get the current health status of cloud services",
		Args: []ArgSpec{
			{Name: "service_name", Type: "string", Description: "Specific service to check (optional)"},
		},
		ObservesHealth: true,
	},
	ToolReadLogs: {
		Name:        ToolReadLogs,
		Kind:        KindReadOnly,
		Description: "Read recent system logs",
		Args: []ArgSpec{
			{Name: "lines", Type: "integer", Description: "Number of log lines to retrieve"},
		},
	},
	ToolRestartService: {
		Name:        ToolRestartService,
		Kind:        KindActive,
		Description: "Restart a cloud service (unhealthy targets only under restricted modes)",
		Args: []ArgSpec{
			{Name: "service_name", Type: "string", Description: "Service to restart", Required: true},
		},
		Mutating:    true,
		TargetArg:   "service_name",
		Remediation: true,
	},
	ToolScaleFleet: {
		Name:        ToolScaleFleet,
		Kind:        KindActive,
		Description: "Scale the number of service instances",
		Args: []ArgSpec{
			{Name: "count", Type: "integer", Description: "Target number of instances", Required: true},
		},
		Mutating: true,
	},
	ToolDeleteDatabase: {
		Name:        ToolDeleteDatabase,
		Kind:        KindDestructive,
		Description: "Delete a database (blocked by global policy)",
		Args: []ArgSpec{
			{Name: "db_name", Type: "string", Description: "Database to delete", Required: true},
		},
		Mutating:  true,
		TargetArg: "db_name",
	},
}

// Lookup returns the catalog entry for a tool name.
func Lookup(name string) (Spec, bool) {
	spec, ok := catalog[strings.TrimSpace(name)]
	return spec, ok
}

// All returns every catalog entry sorted by name.
func All() []Spec {
	out := make([]Spec, 0, len(catalog))
	for _, spec := range catalog {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Targets extracts the resource names a request aims at. The target argument
// accepts either a single string or a list of strings; requests naming several
// targets are evaluated as a whole. Returns nil when the tool has no target
// argument or the request omits it.
func (s Spec) Targets(arguments map[string]any) ([]string, error) {
	if s.TargetArg == "" {
		return nil, nil
	}
	raw, ok := arguments[s.TargetArg]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case string:
		if name := strings.TrimSpace(v); name != "" {
			return []string{name}, nil
		}
		return nil, nil
	case []string:
		return cleanTargets(v)
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			name, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("argument %q must contain only strings", s.TargetArg)
			}
			names = append(names, name)
		}
		return cleanTargets(names)
	default:
		return nil, fmt.Errorf("argument %q must be a string or list of strings", s.TargetArg)
	}
}

func cleanTargets(raw []string) ([]string, error) {
	names := make([]string, 0, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, nil
	}
	return names, nil
}
