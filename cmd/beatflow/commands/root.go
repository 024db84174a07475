package commands

import (
	"fmt"

	"github.com/ozzaii/beatflow/internal/config"
	"github.com/spf13/cobra"
)

var versionInfo = "dev"

// NewRootCmd builds the beatflow command tree. Each call returns an
// independent tree with its own flag state.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "beatflow",
		Short: "Beatflow - store, share and serve drum machine patterns",
		Long: `Beatflow keeps a collection of beat patterns in one storage slot and
moves them in and out as standalone JSON artefacts.

Patterns are stored in SQLite by default. Redis, Postgres and an in-memory
backend can be selected in beatflow.yml.`,
		Version: versionInfo,
		// Show help rather than silently succeeding without a subcommand
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
		// Errors are printed with colour by the printer package
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		fmt.Sprintf("Config file (default: $%s or ./%s)", config.EnvPath, config.DefaultPath))

	root.AddCommand(
		newInitCmd(a),
		newCreateCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newUpdateCmd(a),
		newRmCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newServeCmd(a),
	)
	return root
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
