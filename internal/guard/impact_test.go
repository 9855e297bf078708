package guard

import (
	"testing"

	"github.com/opsgate/opsgate/internal/health"
	"github.com/opsgate/opsgate/internal/infra"
	"github.com/opsgate/opsgate/internal/tools"
)

func specFor(t *testing.T, name string) tools.Spec {
	t.Helper()
	spec, ok := tools.Lookup(name)
	if !ok {
		t.Fatalf("tool %s missing from catalog", name)
	}
	return spec
}

func TestSimulateImpact_RestartReportsCurrentHealth(t *testing.T) {
	cloud := infra.NewCloud()
	if err := cloud.SetHealth("cache", health.StatusCritical); err != nil {
		t.Fatalf("set health: %v", err)
	}

	report := simulateImpact(specFor(t, "restart_service"), map[string]any{"service_name": "cache"}, cloud)
	if report.CurrentHealth != "critical" {
		t.Fatalf("expected critical, got %s", report.CurrentHealth)
	}
	if report.RiskLevel != RiskMedium || !report.Reversible {
		t.Fatalf("unexpected risk assessment: %+v", report)
	}
	if report.EstimatedDowntimeSeconds == 0 {
		t.Fatal("expected a downtime estimate")
	}
}

func TestSimulateImpact_RestartUnknownServiceReportsUnknownHealth(t *testing.T) {
	report := simulateImpact(specFor(t, "restart_service"), map[string]any{"service_name": "mainframe"}, infra.NewCloud())
	if report.CurrentHealth != "unknown" {
		t.Fatalf("expected unknown health, got %s", report.CurrentHealth)
	}
}

func TestSimulateImpact_ScaleEstimatesCostDelta(t *testing.T) {
	cloud := infra.NewCloud() // fleet of 3

	report := simulateImpact(specFor(t, "scale_fleet"), map[string]any{"count": float64(5)}, cloud)
	if report.CurrentSize != 3 || report.TargetSize != 5 {
		t.Fatalf("unexpected sizes: %+v", report)
	}
	if report.EstimatedCostDelta != 2*instanceMonthlyCost {
		t.Fatalf("expected cost delta %d, got %d", 2*instanceMonthlyCost, report.EstimatedCostDelta)
	}
}

func TestSimulateImpact_ScaleDownIsNegativeDelta(t *testing.T) {
	report := simulateImpact(specFor(t, "scale_fleet"), map[string]any{"count": 1}, infra.NewCloud())
	if report.EstimatedCostDelta != -2*instanceMonthlyCost {
		t.Fatalf("expected negative delta, got %d", report.EstimatedCostDelta)
	}
}

func TestSimulateImpact_DeleteDatabaseIsCriticalIrreversible(t *testing.T) {
	report := simulateImpact(specFor(t, "delete_database"), map[string]any{"db_name": "database"}, infra.NewCloud())
	if report.RiskLevel != RiskCritical || report.Reversible {
		t.Fatalf("expected critical irreversible, got %+v", report)
	}
	if report.Warning == "" {
		t.Fatal("expected a data-loss warning")
	}
}

func TestSimulateImpact_DefaultIsLowRisk(t *testing.T) {
	report := simulateImpact(specFor(t, "read_logs"), nil, infra.NewCloud())
	if report.RiskLevel != RiskLow {
		t.Fatalf("expected low risk, got %s", report.RiskLevel)
	}
}
