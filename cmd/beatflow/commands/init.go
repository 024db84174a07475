package commands

import (
	"os"

	"github.com/ozzaii/beatflow/internal/scaffold"
	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	var opts scaffold.Options

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create beatflow.yml and an example pattern",
		Long: `Create a starter configuration in the current directory.

Creates:
  • beatflow.yml - storage, defaults, exchange and server settings
  • patterns/example.json - an artefact ready for 'beatflow import'

Use --force to replace an existing beatflow.yml. Stored patterns are untouched.`,
		Args: cobra.NoArgs,
		// init must work before a valid config exists
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.setupOutput(cmd)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			created, err := scaffold.Initialize(dir, opts)
			if err != nil {
				return a.out.Error("initialization failed", err.Error(), nil)
			}

			a.out.Success("Initialized beatflow project\n")
			a.out.Info("\nCreated:\n")
			for _, path := range created {
				a.out.Info("  ✓ %s\n", path)
			}
			a.out.Info("\nNext steps:\n")
			a.out.Info("  1. Add '*.db' to your .gitignore file\n")
			a.out.Info("  2. Run 'beatflow import %s --save'\n", scaffold.ExamplePath)
			a.out.Info("  3. Run 'beatflow serve' to open the HTTP API\n")
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "Replace an existing beatflow.yml")
	cmd.Flags().StringVar(&opts.Namespace, "namespace", "", "Namespace written to the config (default \"default\")")
	cmd.Flags().StringVar(&opts.Kit, "kit", "", "Default kit for new patterns (default \"909\")")
	return cmd
}
