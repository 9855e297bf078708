package commands

import (
	"fmt"
	"os"

	"github.com/opsgate/opsgate/internal/config"
	"github.com/spf13/cobra"
)

// defaultPolicyJSON seeds a starter policy document: read-only in NORMAL,
// health-gated remediation in EMERGENCY, deletes blocked everywhere.
const defaultPolicyJSON = `{
  "policy_name": "production-ops-policy",
  "version": "1.0",
  "modes": {
    "NORMAL": {
      "description": "Normal operations: read-only diagnostics only",
      "allowed_tools": ["list_services", "get_service_status", "read_logs"],
      "blocked_tools": ["restart_service", "scale_fleet", "delete_database"],
      "rationale": "Mutations require an active incident; switch to EMERGENCY mode first"
    },
    "EMERGENCY": {
      "description": "Active incident: remediation of unhealthy services permitted",
      "allowed_tools": ["list_services", "get_service_status", "read_logs", "restart_service", "scale_fleet"],
      "blocked_tools": ["delete_database"],
      "rationale": "Destructive operations stay blocked even during incidents",
      "service_restrictions": {
        "enabled": true
      }
    }
  },
  "global_rules": {
    "always_blocked": ["delete_database"]
  }
}
`

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize Opsgate configuration",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := config.ConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return nil
	}

	cfg := config.DefaultConfig()

	dirs := []string{
		config.ConfigDir(),
		cfg.State.Dir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	if _, err := os.Stat(cfg.Policy.Path); os.IsNotExist(err) {
		if err := os.WriteFile(cfg.Policy.Path, []byte(defaultPolicyJSON), 0644); err != nil {
			return fmt.Errorf("failed to write policy document: %w", err)
		}
	}

	fmt.Printf("Opsgate initialized!\n")
	fmt.Printf("Config: %s\n", configPath)
	fmt.Printf("Policy: %s\n", cfg.Policy.Path)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("1. Review the policy document at %s\n", cfg.Policy.Path)
	fmt.Printf("2. Run 'opsgate serve' to start the gateway\n")

	return nil
}
