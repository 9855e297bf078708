package guard

import (
	"strings"
	"time"

	"github.com/opsgate/opsgate/internal/infra"
	"github.com/opsgate/opsgate/internal/tools"
)

// Risk levels for predicted impact.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskCritical = "CRITICAL"
)

// ImpactReport predicts what a mutation would do without performing it.
type ImpactReport struct {
	Action                   string    `json:"action"`
	Service                  string    `json:"service,omitempty"`
	CurrentHealth            string    `json:"current_health,omitempty"`
	PredictedEffect          string    `json:"predicted_effect,omitempty"`
	EstimatedDowntimeSeconds int       `json:"estimated_downtime_seconds,omitempty"`
	AffectedUsersEstimate    int       `json:"affected_users_estimate,omitempty"`
	CurrentSize              int       `json:"current_size,omitempty"`
	TargetSize               int       `json:"target_size,omitempty"`
	EstimatedCostDelta       int       `json:"estimated_cost_delta,omitempty"`
	RiskLevel                string    `json:"risk_level"`
	Reversible               bool      `json:"reversible"`
	Warning                  string    `json:"warning,omitempty"`
	Summary                  string    `json:"summary,omitempty"`
	Timestamp                time.Time `json:"timestamp"`
}

// ShadowResult wraps an impact report returned instead of a real execution.
type ShadowResult struct {
	Mode   string       `json:"mode"`
	Impact ImpactReport `json:"impact_report"`
	Note   string       `json:"note"`
}

// instanceMonthlyCost is the rough per-instance cost used for scale estimates.
const instanceMonthlyCost = 4000

// simulateImpact predicts the effect of a mutation against current ground
// truth. Read-only with respect to the infrastructure.
func simulateImpact(spec tools.Spec, arguments map[string]any, cloud *infra.Cloud) ImpactReport {
	now := time.Now().UTC()

	switch spec.Name {
	case tools.ToolRestartService:
		service, _ := arguments["service_name"].(string)
		service = strings.TrimSpace(service)
		current := "unknown"
		if status, ok := cloud.Snapshot()[service]; ok {
			current = string(status)
		}
		return ImpactReport{
			Action:                   spec.Name,
			Service:                  service,
			CurrentHealth:            current,
			PredictedEffect:          "temporary service downtime during restart",
			EstimatedDowntimeSeconds: 10,
			AffectedUsersEstimate:    200,
			RiskLevel:                RiskMedium,
			Reversible:               true,
			Timestamp:                now,
		}

	case tools.ToolScaleFleet:
		current := cloud.FleetSize()
		target := intArg(arguments, "count", current)
		return ImpactReport{
			Action:             spec.Name,
			CurrentSize:        current,
			TargetSize:         target,
			EstimatedCostDelta: (target - current) * instanceMonthlyCost,
			RiskLevel:          RiskMedium,
			Reversible:         true,
			Timestamp:          now,
		}

	case tools.ToolDeleteDatabase:
		return ImpactReport{
			Action:     spec.Name,
			RiskLevel:  RiskCritical,
			Reversible: false,
			Warning:    "permanent data loss",
			Timestamp:  now,
		}

	default:
		return ImpactReport{
			Action:     spec.Name,
			Summary:    "no significant impact predicted",
			RiskLevel:  RiskLow,
			Reversible: true,
			Timestamp:  now,
		}
	}
}
