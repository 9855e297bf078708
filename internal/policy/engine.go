package policy

import (
	"fmt"
	"strings"

	"github.com/opsgate/opsgate/internal/tools"
)

// Rule identifies which policy check produced a denial.
const (
	RuleGlobal         = "global"
	RuleModeBlocked    = "mode-blocked"
	RuleNotAllowed     = "not-allowed"
	RuleNoTarget       = "no-target"
	RuleServiceHealthy = "service-healthy"
)

// Decision is the outcome of one policy evaluation. Denial is a value, not an
// error: callers convert it into a structured refusal at the boundary.
type Decision struct {
	Allowed bool
	Reason  string
	Rule    string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(rule, format string, args ...any) Decision {
	return Decision{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

// HealthView is the read-only slice of the health registry the engine needs.
type HealthView interface {
	IsUnhealthy(resource string) bool
	Unhealthy() []string
}

// Input carries everything one evaluation depends on.
type Input struct {
	Tool      tools.Spec
	Arguments map[string]any
	Mode      string
	Health    HealthView
}

// Engine evaluates tool requests against an immutable policy document.
// Decide reads the health view but never writes it.
type Engine struct {
	doc *Document
}

// NewEngine builds an engine over a validated document.
func NewEngine(doc *Document) *Engine {
	return &Engine{doc: doc}
}

// Decide runs the fixed check order: global block, mode block, whitelist,
// target presence, health gate. Each step short-circuits; later, more
// expensive checks are unreachable once an earlier one denies.
func (e *Engine) Decide(input Input) Decision {
	name := input.Tool.Name

	if e.doc.IsAlwaysBlocked(name) {
		return deny(RuleGlobal, "'%s' is permanently blocked: destructive operation", name)
	}

	mode, ok := e.doc.Mode(input.Mode)
	if !ok {
		return deny(RuleNotAllowed, "mode %s is not declared in the policy document", NormalizeMode(input.Mode))
	}

	if contains(mode.BlockedTools, name) {
		reason := strings.TrimSpace(mode.Rationale)
		if reason == "" {
			reason = fmt.Sprintf("'%s' is blocked in %s mode", name, NormalizeMode(input.Mode))
		}
		return deny(RuleModeBlocked, "%s", reason)
	}

	if !contains(mode.AllowedTools, name) {
		return deny(RuleNotAllowed, "'%s' is not whitelisted for %s mode", name, NormalizeMode(input.Mode))
	}

	if !input.Tool.Mutating || input.Tool.TargetArg == "" {
		return allow()
	}

	targets, err := input.Tool.Targets(input.Arguments)
	if err != nil {
		return deny(RuleNoTarget, "%s", err.Error())
	}
	if len(targets) == 0 {
		return deny(RuleNoTarget, "'%s' requires a %s argument", name, input.Tool.TargetArg)
	}

	if !mode.ServiceRestrictions.Enabled {
		return allow()
	}

	// One healthy target denies the whole request: no partial execution.
	for _, target := range targets {
		if !input.Health.IsUnhealthy(target) {
			return deny(RuleServiceHealthy,
				"cannot modify '%s': target is healthy, only unhealthy services may be modified (currently unhealthy: %v)",
				target, input.Health.Unhealthy())
		}
	}
	return allow()
}

func contains(list []string, name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}
