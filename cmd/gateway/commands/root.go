// Package commands implements the gateway CLI: serve, migrate and probe.
package commands

import (
	"npcgateway/internal/config"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	envFiles   []string
}

func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "NPC decision gateway",
		Long: `gateway relays world snapshots from game producers to a language model,
answers each one with an NPC decision, archives it and mirrors it to observers.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return config.LoadDotEnv(flags.envFiles...)
		},
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML config file (env GATEWAY_* overrides it)")
	cmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newMigrateCmd(flags))
	cmd.AddCommand(newProbeCmd())
	return cmd
}

func Execute() error {
	return NewRootCmd().Execute()
}
