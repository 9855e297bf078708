package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func NewExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <tool>",
		Short: "Execute a tool through the gateway",
		Long: `Executes a tool call against a running gateway. Arguments are passed as
repeated --arg key=value flags; numeric values are sent as numbers.

Examples:
  opsgate exec list_services
  opsgate exec get_service_status --arg service_name=database
  opsgate exec restart_service --arg service_name=database --shadow
  opsgate exec scale_fleet --arg count=5`,
		Args: cobra.ExactArgs(1),
		RunE: runExec,
	}
	cmd.Flags().StringArray("arg", nil, "Tool argument as key=value (repeatable)")
	cmd.Flags().Bool("shadow", false, "Shadow execution: predicted impact only, no real action")
	return cmd
}

type executeResponse struct {
	Success         bool   `json:"success"`
	Result          any    `json:"result"`
	Error           string `json:"error"`
	PolicyViolation bool   `json:"policy_violation"`
	BlockedReason   string `json:"blocked_reason"`
}

func runExec(cmd *cobra.Command, args []string) error {
	rawArgs, _ := cmd.Flags().GetStringArray("arg")
	shadow, _ := cmd.Flags().GetBool("shadow")

	arguments, err := parseToolArgs(rawArgs)
	if err != nil {
		return err
	}

	client, err := loadClient()
	if err != nil {
		return err
	}

	execMode := "REAL"
	if shadow {
		execMode = "SHADOW"
	}

	var resp executeResponse
	if err := client.post("/tools/execute", map[string]any{
		"tool_name":      args[0],
		"arguments":      arguments,
		"execution_mode": execMode,
	}, &resp); err != nil {
		return err
	}

	switch {
	case resp.PolicyViolation:
		blockedStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#CD5C5C"))
		fmt.Println(blockedStyle.Render("BLOCKED"))
		fmt.Printf("  %s\n", resp.BlockedReason)
		return nil

	case !resp.Success:
		fmt.Printf("Execution failed: %s\n", resp.Error)
		return nil
	}

	if shadow {
		shadowStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8E4EC6"))
		fmt.Println(shadowStyle.Render("SHADOW RUN (no real action executed)"))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp.Result)
}

// parseToolArgs turns repeated key=value flags into a tool argument map.
func parseToolArgs(raw []string) (map[string]any, error) {
	arguments := make(map[string]any, len(raw))
	for _, pair := range raw {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --arg %q, expected key=value", pair)
		}
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			arguments[key] = n
			continue
		}
		arguments[key] = value
	}
	return arguments, nil
}
