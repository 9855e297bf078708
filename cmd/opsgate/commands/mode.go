package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewModeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode [new-mode]",
		Short: "Show or change the operational mode",
		Long: `With no argument, prints the current operational mode. With an argument,
switches the gateway to that mode. The mode must be declared in the
policy document; anything else is rejected.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runMode,
	}
	return cmd
}

func runMode(cmd *cobra.Command, args []string) error {
	client, err := loadClient()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		var resp statusPayload
		if err := client.get("/policy/status", &resp); err != nil {
			return err
		}
		fmt.Println(resp.Policy.CurrentMode)
		return nil
	}

	var resp struct {
		Status struct {
			CurrentMode  string   `json:"current_mode"`
			AllowedTools []string `json:"allowed_tools"`
		} `json:"status"`
	}
	if err := client.post("/policy/set-mode", map[string]any{"mode": args[0]}, &resp); err != nil {
		return err
	}

	fmt.Printf("Mode changed to %s\n", resp.Status.CurrentMode)
	fmt.Printf("Allowed tools: %s\n", joinOrNone(resp.Status.AllowedTools))
	return nil
}
