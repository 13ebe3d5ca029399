// Package commands defines all Cobra CLI commands for the curio binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/curio-ai/curio-go/internal/audit"
	"github.com/curio-ai/curio-go/internal/config"
	"github.com/curio-ai/curio-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "curio",
		Short: "curio — research a topic, then ask it anything",
		Long: `curio is a local-first research assistant.

It researches a topic through web search, chunks and embeds what it finds
into a per-topic vector index, and then answers your questions using only
the indexed material — with sources and a confidence score attached.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.curio/config.yaml).
See 'curio --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.curio/config.yaml)")

	root.AddCommand(
		NewResearchCmd(),
		NewAskCmd(),
		NewChatCmd(),
		NewTopicsCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
