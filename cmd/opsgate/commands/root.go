package commands

import (
	"github.com/opsgate/opsgate/internal/config"
	"github.com/spf13/cobra"
)

var logLevelOverride string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opsgate",
		Short: "Opsgate - Authorization gateway for infrastructure operations",
		Long: `Opsgate sits between an autonomous operator and the infrastructure it
manages, gating every mutation behind the current operational mode and
the observed health of the target.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return configureLogger(config.DefaultConfig(), logLevelOverride)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return configureLogger(cfg, logLevelOverride)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewInitCmd(),
		NewServeCmd(),
		NewStatusCmd(),
		NewExecCmd(),
		NewModeCmd(),
		NewIncidentCmd(),
		NewCatalogCmd(),
		NewVersionCmd(),
	)

	return cmd
}
