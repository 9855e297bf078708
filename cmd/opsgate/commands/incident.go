package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewIncidentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "incident",
		Short: "Inject or repair simulated infrastructure incidents",
	}

	simulate := &cobra.Command{
		Use:   "simulate <service>",
		Short: "Degrade a service's health",
		Args:  cobra.ExactArgs(1),
		RunE:  runIncidentSimulate,
	}
	simulate.Flags().String("status", "critical", "Health status to set (degraded|critical)")

	fix := &cobra.Command{
		Use:   "fix <service>",
		Short: "Restore a service to healthy",
		Args:  cobra.ExactArgs(1),
		RunE:  runIncidentFix,
	}

	cmd.AddCommand(simulate, fix)
	return cmd
}

type incidentResponse struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	Unhealthy []string `json:"unhealthy"`
}

func runIncidentSimulate(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")

	client, err := loadClient()
	if err != nil {
		return err
	}

	var resp incidentResponse
	if err := client.post("/infrastructure/simulate-incident", map[string]any{
		"service": args[0],
		"status":  status,
	}, &resp); err != nil {
		return err
	}

	fmt.Println(resp.Message)
	fmt.Printf("Unhealthy services: %s\n", joinOrNone(resp.Unhealthy))
	return nil
}

func runIncidentFix(cmd *cobra.Command, args []string) error {
	client, err := loadClient()
	if err != nil {
		return err
	}

	var resp incidentResponse
	if err := client.post("/infrastructure/fix-service", map[string]any{
		"service": args[0],
	}, &resp); err != nil {
		return err
	}

	fmt.Println(resp.Message)
	fmt.Printf("Unhealthy services: %s\n", joinOrNone(resp.Unhealthy))
	return nil
}
