package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opsgate/opsgate/internal/config"
	"github.com/opsgate/opsgate/internal/guard"
	"github.com/opsgate/opsgate/internal/health"
	"github.com/opsgate/opsgate/internal/tools"
	"github.com/opsgate/opsgate/internal/version"
)

// Server exposes the decision gateway over HTTP.
type Server struct {
	cfg        config.GatewayConfig
	gate       *guard.Gateway
	httpServer *http.Server
}

// New creates a server around a decision gateway.
func New(cfg config.GatewayConfig, gate *guard.Gateway) *Server {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Port
	if port <= 0 {
		port = 8400
	}

	cfg.Host = host
	cfg.Port = port
	return &Server{
		cfg:  cfg,
		gate: gate,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Start blocks serving HTTP until shutdown.
func (s *Server) Start() error {
	mux := NewHandler(s.cfg.Token, s.gate)
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("gateway listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type executeRequest struct {
	ToolName      string         `json:"tool_name"`
	Arguments     map[string]any `json:"arguments"`
	ExecutionMode string         `json:"execution_mode"`
}

type modeChangeRequest struct {
	Mode string `json:"mode"`
}

type incidentRequest struct {
	Service string `json:"service"`
	Status  string `json:"status"`
}

type fixServiceRequest struct {
	Service string `json:"service"`
}

// NewHandler builds the HTTP mux. An empty token disables bearer auth.
func NewHandler(token string, gate *guard.Gateway) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "ok",
			"current_mode": gate.Mode(),
			"request_id":   requestID,
		})
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"version":    version.Version,
			"request_id": requestID,
		})
	})

	mux.HandleFunc("/tools/execute", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}

		var req executeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
			return
		}
		if strings.TrimSpace(req.ToolName) == "" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "tool_name is required")
			return
		}

		execMode := strings.ToUpper(strings.TrimSpace(req.ExecutionMode))
		if execMode == "" {
			execMode = "REAL"
		}
		if execMode != "REAL" && execMode != "SHADOW" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid execution_mode, use REAL or SHADOW")
			return
		}

		result := gate.Execute(r.Context(), guard.Request{
			ToolName:  req.ToolName,
			Arguments: req.Arguments,
			Shadow:    execMode == "SHADOW",
			RequestID: requestID,
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"success":          result.Success,
			"result":           result.Result,
			"error":            result.Error,
			"policy_violation": result.PolicyViolation,
			"blocked_reason":   result.BlockedReason,
			"request_id":       requestID,
		})
	})

	mux.HandleFunc("/tools/catalog", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		status := gate.Status()
		writeJSON(w, http.StatusOK, map[string]any{
			"tools":                   tools.All(),
			"current_mode":            status.CurrentMode,
			"allowed_in_current_mode": status.AllowedTools,
			"unhealthy_services":      status.UnhealthyServices,
			"request_id":              requestID,
		})
	})

	mux.HandleFunc("/policy/status", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     gate.Status(),
			"request_id": requestID,
		})
	})

	mux.HandleFunc("/policy/set-mode", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}

		var req modeChangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
			return
		}
		if err := gate.SetMode(req.Mode); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "invalid_mode", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"status":     gate.Status(),
			"request_id": requestID,
		})
	})

	mux.HandleFunc("/infrastructure/status", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"infrastructure": gate.Infra(),
			"request_id":     requestID,
		})
	})

	mux.HandleFunc("/infrastructure/simulate-incident", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}

		var req incidentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
			return
		}
		if strings.TrimSpace(req.Service) == "" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "service is required")
			return
		}
		status := health.ParseStatus(req.Status)
		if req.Status == "" {
			status = health.StatusCritical
		}
		if err := gate.SimulateIncident(req.Service, status); err != nil {
			writeError(w, requestID, http.StatusNotFound, "unknown_service", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"message":    fmt.Sprintf("simulated incident: %s set to %s", req.Service, status),
			"unhealthy":  gate.Unhealthy(),
			"request_id": requestID,
		})
	})

	mux.HandleFunc("/infrastructure/fix-service", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}

		var req fixServiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
			return
		}
		if err := gate.FixService(req.Service); err != nil {
			writeError(w, requestID, http.StatusNotFound, "unknown_service", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"message":    fmt.Sprintf("service %s marked as healthy", req.Service),
			"unhealthy":  gate.Unhealthy(),
			"request_id": requestID,
		})
	})

	return mux
}

func isAuthorized(r *http.Request, expected string) bool {
	if strings.TrimSpace(expected) == "" {
		return true
	}
	got := strings.TrimSpace(r.Header.Get("Authorization"))
	if got == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(got, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(got, prefix))
	return token == expected
}

func getRequestID(r *http.Request) string {
	rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if rid != "" {
		return rid
	}
	return uuid.NewString()
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":       code,
		"message":    message,
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
