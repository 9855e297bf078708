package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/opsgate/opsgate/internal/guard"
	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show current policy and infrastructure state",
		RunE:  runStatus,
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

type statusPayload struct {
	Policy guard.PolicyStatus `json:"status"`
}

type infraPayload struct {
	Infra guard.InfraStatus `json:"infrastructure"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := loadClient()
	if err != nil {
		return err
	}

	var policyResp statusPayload
	if err := client.get("/policy/status", &policyResp); err != nil {
		return err
	}
	var infraResp infraPayload
	if err := client.get("/infrastructure/status", &infraResp); err != nil {
		return err
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"policy":         policyResp.Policy,
			"infrastructure": infraResp.Infra,
		})
	}

	renderStatus(policyResp.Policy, infraResp.Infra)
	return nil
}

func renderStatus(policy guard.PolicyStatus, infra guard.InfraStatus) {
	var (
		headerStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FAFAFA")).
				Background(lipgloss.Color("#8E4EC6")). // Purple
				Padding(0, 1).
				MarginBottom(1)

		sectionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#8E4EC6")).
				Bold(true)

		labelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

		normalColor    = lipgloss.Color("#2E8B57") // SeaGreen
		emergencyColor = lipgloss.Color("#CD5C5C") // IndianRed
	)

	fmt.Println(headerStyle.Render("Opsgate Status"))

	modeColor := normalColor
	if policy.CurrentMode != "NORMAL" {
		modeColor = emergencyColor
	}
	modeStyle := lipgloss.NewStyle().Bold(true).Foreground(modeColor)

	fmt.Printf("  %s %s\n", labelStyle.Render("Mode:"), modeStyle.Render(policy.CurrentMode))
	if policy.Description != "" {
		fmt.Printf("  %s %s\n", labelStyle.Render("Policy:"), policy.Description)
	}

	fmt.Println()
	fmt.Printf("  %s\n", sectionStyle.Render("Tools"))
	fmt.Printf("    allowed: %s\n", joinOrNone(policy.AllowedTools))
	fmt.Printf("    blocked: %s\n", joinOrNone(policy.BlockedTools))

	fmt.Println()
	fmt.Printf("  %s\n", sectionStyle.Render("Observed Health"))
	if len(policy.UnhealthyServices) == 0 {
		fmt.Println("    no unhealthy services observed")
	} else {
		unhealthyStyle := lipgloss.NewStyle().Foreground(emergencyColor)
		for _, name := range policy.UnhealthyServices {
			fmt.Printf("    %s\n", unhealthyStyle.Render(name))
		}
	}

	fmt.Println()
	fmt.Printf("  %s\n", sectionStyle.Render("Infrastructure"))
	fmt.Printf("    fleet size: %d\n", infra.FleetSize)
	for _, name := range sortedServiceNames(infra) {
		status := infra.Services[name]
		line := fmt.Sprintf("%-16s %s", name, status)
		if status.IsUnhealthy() {
			line = lipgloss.NewStyle().Foreground(emergencyColor).Render(line)
		}
		fmt.Printf("    %s\n", line)
	}

	fmt.Println()
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func sortedServiceNames(infra guard.InfraStatus) []string {
	names := make([]string, 0, len(infra.Services))
	for name := range infra.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
