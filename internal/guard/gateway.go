package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/opsgate/opsgate/internal/audit"
	"github.com/opsgate/opsgate/internal/health"
	"github.com/opsgate/opsgate/internal/infra"
	"github.com/opsgate/opsgate/internal/policy"
	"github.com/opsgate/opsgate/internal/tools"
)

// ErrInvalidMode marks mode-change requests naming an undeclared mode.
var ErrInvalidMode = errors.New("invalid mode")

// Request is one tool-call reaching the gateway.
type Request struct {
	ToolName  string
	Arguments map[string]any
	Shadow    bool
	RequestID string
}

// Result is the gateway's answer. A policy denial and an execution failure are
// different outcomes: the first sets PolicyViolation, the second only Error.
type Result struct {
	Success         bool   `json:"success"`
	Result          any    `json:"result,omitempty"`
	Error           string `json:"error,omitempty"`
	PolicyViolation bool   `json:"policy_violation"`
	BlockedReason   string `json:"blocked_reason,omitempty"`
}

// PolicyStatus is the read-only introspection view.
type PolicyStatus struct {
	CurrentMode       string   `json:"current_mode"`
	Description       string   `json:"description"`
	AllowedTools      []string `json:"allowed_tools"`
	BlockedTools      []string `json:"blocked_tools"`
	UnhealthyServices []string `json:"unhealthy_services"`
}

// InfraStatus is the diagnostic ground-truth view.
type InfraStatus struct {
	Services          map[string]health.Status `json:"services"`
	FleetSize         int                      `json:"fleet_size"`
	RecentActions     []infra.LogEntry         `json:"recent_actions"`
	UnhealthyServices []string                 `json:"policy_unhealthy_services"`
}

// Gateway sequences observe, validate, execute and reconcile around every tool
// call. It is the single authority over the current mode and the health
// registry: one mutex makes each read-decide-write sequence atomic with
// respect to concurrent requests.
type Gateway struct {
	mu       sync.Mutex
	mode     string
	doc      *policy.Document
	engine   *policy.Engine
	registry *health.Registry
	cloud    *infra.Cloud
	audit    *audit.Writer
}

// New builds a gateway starting in the given mode. The mode must be declared
// in the policy document.
func New(doc *policy.Document, cloud *infra.Cloud, auditWriter *audit.Writer, startMode string) (*Gateway, error) {
	startMode = policy.NormalizeMode(startMode)
	if _, ok := doc.Mode(startMode); !ok {
		return nil, fmt.Errorf("%w: %s is not declared in the policy document", ErrInvalidMode, startMode)
	}
	return &Gateway{
		mode:     startMode,
		doc:      doc,
		engine:   policy.NewEngine(doc),
		registry: health.NewRegistry(),
		cloud:    cloud,
		audit:    auditWriter,
	}, nil
}

// Mode returns the current operational mode.
func (g *Gateway) Mode() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// SetMode switches the operational mode. Undeclared modes are rejected and
// leave the state unchanged.
func (g *Gateway) SetMode(mode string) error {
	normalized := policy.NormalizeMode(mode)
	if _, ok := g.doc.Mode(normalized); !ok {
		return fmt.Errorf("%w: %s (declared: %v)", ErrInvalidMode, normalized, g.doc.ModeNames())
	}

	g.mu.Lock()
	g.mode = normalized
	g.mu.Unlock()

	slog.Info("mode changed", "mode", normalized)
	g.appendAudit(audit.Event{Type: audit.TypeModeChange, Mode: normalized})
	return nil
}

// SimulateIncident writes ground truth and the health registry together, so
// the incident is visible to the very next policy decision.
func (g *Gateway) SimulateIncident(service string, status health.Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.cloud.SetHealth(service, status); err != nil {
		return err
	}
	g.registry.Observe(service, status)

	slog.Info("incident simulated", "service", service, "status", status)
	g.appendAudit(audit.Event{
		Type:   audit.TypeIncident,
		Mode:   g.mode,
		Result: fmt.Sprintf("%s=%s", service, status),
	})
	return nil
}

// FixService manually repairs a service in both ground truth and the registry.
func (g *Gateway) FixService(service string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.cloud.SetHealth(service, health.StatusHealthy); err != nil {
		return err
	}
	g.registry.MarkRecovered(service)
	return nil
}

// Status returns the introspection view of the current policy state.
func (g *Gateway) Status() PolicyStatus {
	g.mu.Lock()
	mode := g.mode
	g.mu.Unlock()

	mp, _ := g.doc.Mode(mode)
	return PolicyStatus{
		CurrentMode:       mode,
		Description:       mp.Description,
		AllowedTools:      append([]string(nil), mp.AllowedTools...),
		BlockedTools:      append([]string(nil), mp.BlockedTools...),
		UnhealthyServices: g.registry.Unhealthy(),
	}
}

// Infra returns the diagnostic ground-truth view.
func (g *Gateway) Infra() InfraStatus {
	return InfraStatus{
		Services:          g.cloud.Snapshot(),
		FleetSize:         g.cloud.FleetSize(),
		RecentActions:     g.cloud.RecentActions(10),
		UnhealthyServices: g.registry.Unhealthy(),
	}
}

// Unhealthy exposes the registry's current unhealthy set.
func (g *Gateway) Unhealthy() []string {
	return g.registry.Unhealthy()
}

// Execute handles one tool call to completion. Observational tools run
// without a policy check and feed observed health back into the registry;
// mutating tools pass through the decision engine first, and successful
// remediations reconcile the registry.
func (g *Gateway) Execute(ctx context.Context, req Request) Result {
	spec, ok := tools.Lookup(req.ToolName)
	if !ok {
		err := fmt.Errorf("%w: %q", tools.ErrUnknownTool, strings.TrimSpace(req.ToolName))
		return Result{Error: err.Error()}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !spec.Mutating {
		return g.executeObservation(req, spec)
	}

	decision := g.engine.Decide(policy.Input{
		Tool:      spec,
		Arguments: req.Arguments,
		Mode:      g.mode,
		Health:    g.registry,
	})
	if !decision.Allowed {
		slog.Info("tool blocked by policy",
			"tool", spec.Name, "mode", g.mode, "rule", decision.Rule, "reason", decision.Reason)
		g.appendAudit(audit.Event{
			Type:      audit.TypePolicyDeny,
			RequestID: req.RequestID,
			Tool:      spec.Name,
			Mode:      g.mode,
			Rule:      decision.Rule,
			Result:    decision.Reason,
		})
		return Result{
			PolicyViolation: true,
			BlockedReason:   decision.Reason,
			Error:           fmt.Sprintf("policy violation: %s", decision.Reason),
		}
	}

	g.appendAudit(audit.Event{
		Type:      audit.TypePolicyAllow,
		RequestID: req.RequestID,
		Tool:      spec.Name,
		Mode:      g.mode,
	})

	if req.Shadow {
		return g.executeShadow(req, spec)
	}
	return g.executeReal(req, spec)
}

// executeObservation runs a read-only tool and, when the tool observes
// health, feeds the result back into the registry. This is the only path by
// which the registry learns a resource is broken.
func (g *Gateway) executeObservation(req Request, spec tools.Spec) Result {
	switch spec.Name {
	case tools.ToolListServices:
		return g.succeed(req, spec, g.cloud.ListServices())

	case tools.ToolReadLogs:
		return g.succeed(req, spec, g.cloud.ReadLogs(intArg(req.Arguments, "lines", 10)))

	case tools.ToolGetServiceStatus:
		name, _ := req.Arguments["service_name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			result := g.cloud.FleetStatus()
			g.registry.ObserveAll(result.Services)
			g.appendAudit(audit.Event{
				Type: audit.TypeObserved, RequestID: req.RequestID, Tool: spec.Name, Mode: g.mode,
				Result: fmt.Sprintf("unhealthy=%v", result.UnhealthyServices),
			})
			return Result{Success: true, Result: result}
		}
		result, err := g.cloud.ServiceStatus(name)
		if err != nil {
			return g.fail(req, spec, err)
		}
		g.registry.Observe(name, result.Health)
		g.appendAudit(audit.Event{
			Type: audit.TypeObserved, RequestID: req.RequestID, Tool: spec.Name, Mode: g.mode,
			Result: fmt.Sprintf("%s=%s", name, result.Health),
		})
		return Result{Success: true, Result: result}

	default:
		return g.fail(req, spec, fmt.Errorf("observational tool %q has no executor", spec.Name))
	}
}

// executeShadow produces a predicted-impact report instead of the real
// mutation: no infrastructure effect, no health reconciliation.
func (g *Gateway) executeShadow(req Request, spec tools.Spec) Result {
	report := simulateImpact(spec, req.Arguments, g.cloud)
	g.appendAudit(audit.Event{
		Type:      audit.TypeShadowRun,
		RequestID: req.RequestID,
		Tool:      spec.Name,
		Mode:      g.mode,
		Result:    report.RiskLevel,
	})
	return Result{Success: true, Result: ShadowResult{
		Mode:   "SHADOW",
		Impact: report,
		Note:   "no real action was executed",
	}}
}

func (g *Gateway) executeReal(req Request, spec tools.Spec) Result {
	switch spec.Name {
	case tools.ToolScaleFleet:
		result, err := g.cloud.Scale(intArg(req.Arguments, "count", 0))
		if err != nil {
			return g.fail(req, spec, err)
		}
		return g.succeed(req, spec, result)

	case tools.ToolRestartService:
		targets, err := spec.Targets(req.Arguments)
		if err != nil {
			return g.fail(req, spec, err)
		}
		results := make([]infra.RestartResult, 0, len(targets))
		for _, target := range targets {
			result, err := g.cloud.Restart(target)
			if err != nil {
				// Execution failure: surface it, leave health untouched for
				// the failed target. Targets already restarted stay reconciled.
				return g.fail(req, spec, err)
			}
			g.registry.MarkRecovered(target)
			results = append(results, result)
		}
		g.appendAudit(audit.Event{
			Type: audit.TypeExecuted, RequestID: req.RequestID, Tool: spec.Name, Mode: g.mode,
			Result: fmt.Sprintf("recovered %v", targets),
		})
		if len(results) == 1 {
			return Result{Success: true, Result: results[0]}
		}
		return Result{Success: true, Result: results}

	case tools.ToolDeleteDatabase:
		name, _ := req.Arguments["db_name"].(string)
		return g.fail(req, spec, g.cloud.DeleteDatabase(name))

	default:
		return g.fail(req, spec, fmt.Errorf("mutating tool %q has no executor", spec.Name))
	}
}

func (g *Gateway) succeed(req Request, spec tools.Spec, result any) Result {
	g.appendAudit(audit.Event{
		Type:      audit.TypeExecuted,
		RequestID: req.RequestID,
		Tool:      spec.Name,
		Mode:      g.mode,
	})
	return Result{Success: true, Result: result}
}

func (g *Gateway) fail(req Request, spec tools.Spec, err error) Result {
	slog.Warn("tool execution failed", "tool", spec.Name, "error", err)
	g.appendAudit(audit.Event{
		Type:      audit.TypeExecuteError,
		RequestID: req.RequestID,
		Tool:      spec.Name,
		Mode:      g.mode,
		Result:    err.Error(),
	})
	return Result{Error: fmt.Sprintf("execution error: %s", err.Error())}
}

func (g *Gateway) appendAudit(event audit.Event) {
	if g.audit == nil {
		return
	}
	event.Time = time.Now().UTC()
	if err := g.audit.Append(event); err != nil {
		slog.Warn("audit append failed", "type", event.Type, "error", err)
	}
}

// intArg coerces a numeric argument that may arrive as int, float64 (JSON) or
// a numeric string.
func intArg(arguments map[string]any, key string, fallback int) int {
	raw, ok := arguments[key]
	if !ok || raw == nil {
		return fallback
	}
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var parsed int
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}
