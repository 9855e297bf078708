package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opsgate/opsgate/internal/guard"
	"github.com/opsgate/opsgate/internal/infra"
	"github.com/opsgate/opsgate/internal/policy"
	"github.com/opsgate/opsgate/internal/version"
)

func testGateway(t *testing.T) *guard.Gateway {
	t.Helper()
	doc := &policy.Document{
		Modes: map[string]policy.ModePolicy{
			"NORMAL": {
				Description:  "Read-only operations",
				AllowedTools: []string{"get_service_status", "read_logs", "list_services"},
				BlockedTools: []string{"restart_service", "scale_fleet", "delete_database"},
			},
			"EMERGENCY": {
				Description:         "Restricted write access",
				AllowedTools:        []string{"get_service_status", "read_logs", "list_services", "restart_service", "scale_fleet"},
				BlockedTools:        []string{"delete_database"},
				ServiceRestrictions: policy.ServiceRestrictions{Enabled: true},
			},
		},
		GlobalRules: policy.GlobalRules{AlwaysBlocked: []string{"delete_database"}},
	}
	g, err := guard.New(doc, infra.NewCloud(), nil, "NORMAL")
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return g
}

func decodeJSON(t *testing.T, body *bytes.Buffer) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	return out
}

func doRequest(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	h := NewHandler("", testGateway(t))
	rr := doRequest(t, h, http.MethodGet, "/health", "", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := decodeJSON(t, rr.Body)
	if body["status"] != "ok" {
		t.Fatalf("expected status=ok, got %v", body["status"])
	}
	if body["current_mode"] != "NORMAL" {
		t.Fatalf("expected current_mode=NORMAL, got %v", body["current_mode"])
	}
}

func TestVersionEndpoint(t *testing.T) {
	h := NewHandler("", testGateway(t))
	rr := doRequest(t, h, http.MethodGet, "/version", "", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := decodeJSON(t, rr.Body)
	if body["version"] != version.Version {
		t.Fatalf("expected version=%s, got %v", version.Version, body["version"])
	}
}

func TestExecute_RequiresPost(t *testing.T) {
	h := NewHandler("", testGateway(t))
	rr := doRequest(t, h, http.MethodGet, "/tools/execute", "", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestExecute_Unauthorized(t *testing.T) {
	h := NewHandler("secret-token", testGateway(t))
	rr := doRequest(t, h, http.MethodPost, "/tools/execute", "", `{"tool_name":"list_services"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestExecute_AuthorizedReadOnly(t *testing.T) {
	h := NewHandler("secret-token", testGateway(t))
	rr := doRequest(t, h, http.MethodPost, "/tools/execute", "secret-token", `{"tool_name":"list_services"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeJSON(t, rr.Body)
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}
}

func TestExecute_PolicyViolationIsStructured(t *testing.T) {
	h := NewHandler("", testGateway(t))
	rr := doRequest(t, h, http.MethodPost, "/tools/execute", "",
		`{"tool_name":"restart_service","arguments":{"service_name":"web-server"}}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("denials are results, not transport errors; expected 200, got %d", rr.Code)
	}
	body := decodeJSON(t, rr.Body)
	if body["policy_violation"] != true {
		t.Fatalf("expected policy_violation=true, got %v", body)
	}
	if body["blocked_reason"] == "" {
		t.Fatal("expected a blocked_reason")
	}
}

func TestExecute_InvalidExecutionMode(t *testing.T) {
	h := NewHandler("", testGateway(t))
	rr := doRequest(t, h, http.MethodPost, "/tools/execute", "",
		`{"tool_name":"list_services","execution_mode":"DRYRUN"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestExecute_ShadowMode(t *testing.T) {
	gate := testGateway(t)
	h := NewHandler("", gate)

	doRequest(t, h, http.MethodPost, "/infrastructure/simulate-incident", "",
		`{"service":"cache","status":"critical"}`)
	doRequest(t, h, http.MethodPost, "/policy/set-mode", "", `{"mode":"EMERGENCY"}`)

	rr := doRequest(t, h, http.MethodPost, "/tools/execute", "",
		`{"tool_name":"restart_service","arguments":{"service_name":"cache"},"execution_mode":"SHADOW"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeJSON(t, rr.Body)
	if body["success"] != true {
		t.Fatalf("expected shadow success, got %v", body)
	}
	result, ok := body["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected result object, got %T", body["result"])
	}
	if result["mode"] != "SHADOW" {
		t.Fatalf("expected SHADOW result, got %v", result)
	}

	// Shadow run must not reconcile: cache is still unhealthy.
	status := doRequest(t, h, http.MethodGet, "/policy/status", "", "")
	statusBody := decodeJSON(t, status.Body)
	inner := statusBody["status"].(map[string]any)
	unhealthy, _ := inner["unhealthy_services"].([]any)
	if len(unhealthy) != 1 {
		t.Fatalf("expected cache still unhealthy, got %v", unhealthy)
	}
}

func TestSetMode_InvalidModeRejected(t *testing.T) {
	h := NewHandler("", testGateway(t))
	rr := doRequest(t, h, http.MethodPost, "/policy/set-mode", "", `{"mode":"PANIC"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestSetMode_ChangesVisibleImmediately(t *testing.T) {
	gate := testGateway(t)
	h := NewHandler("", gate)

	rr := doRequest(t, h, http.MethodPost, "/policy/set-mode", "", `{"mode":"EMERGENCY"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gate.Mode() != "EMERGENCY" {
		t.Fatalf("expected EMERGENCY, got %s", gate.Mode())
	}
}

func TestSimulateIncident_UnknownService(t *testing.T) {
	h := NewHandler("", testGateway(t))
	rr := doRequest(t, h, http.MethodPost, "/infrastructure/simulate-incident", "",
		`{"service":"mainframe"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSimulateIncident_DefaultsToCritical(t *testing.T) {
	gate := testGateway(t)
	h := NewHandler("", gate)

	rr := doRequest(t, h, http.MethodPost, "/infrastructure/simulate-incident", "",
		`{"service":"database"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := gate.Unhealthy(); len(got) != 1 || got[0] != "database" {
		t.Fatalf("expected unhealthy=[database], got %v", got)
	}
}

func TestCatalogEndpoint(t *testing.T) {
	h := NewHandler("", testGateway(t))
	rr := doRequest(t, h, http.MethodGet, "/tools/catalog", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeJSON(t, rr.Body)
	toolList, ok := body["tools"].([]any)
	if !ok || len(toolList) != 6 {
		t.Fatalf("expected 6 tools, got %v", body["tools"])
	}
}

func TestInfrastructureStatus(t *testing.T) {
	h := NewHandler("", testGateway(t))
	rr := doRequest(t, h, http.MethodGet, "/infrastructure/status", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeJSON(t, rr.Body)
	inner, ok := body["infrastructure"].(map[string]any)
	if !ok {
		t.Fatalf("expected infrastructure object, got %T", body["infrastructure"])
	}
	if inner["fleet_size"] != float64(3) {
		t.Fatalf("expected fleet_size=3, got %v", inner["fleet_size"])
	}
}

func TestFixService_ClearsUnhealthy(t *testing.T) {
	gate := testGateway(t)
	h := NewHandler("", gate)

	doRequest(t, h, http.MethodPost, "/infrastructure/simulate-incident", "",
		`{"service":"cache","status":"degraded"}`)
	rr := doRequest(t, h, http.MethodPost, "/infrastructure/fix-service", "", `{"service":"cache"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(gate.Unhealthy()) != 0 {
		t.Fatalf("expected empty unhealthy set, got %v", gate.Unhealthy())
	}
}
