package commands

import (
	"context"

	"github.com/ozzaii/beatflow/internal/listing"
	"github.com/spf13/cobra"
)

func newCreateCmd(a *app) *cobra.Command {
	var (
		name    string
		kit     string
		pattern string
		file    string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store a new pattern",
		Long: `Store a new pattern and print its id.

The pattern content is any JSON value, given inline with --pattern or read
from --file ("-" reads stdin). Without --name the pattern is called
"Pattern N"; without --kit it uses defaults.kit from the config.

Examples:
  beatflow create --name "Four on the floor" --kit 808 --pattern '{"kick":[1,0,0,0]}'
  beatflow create --file groove.json
  cat groove.json | beatflow create --file -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			payload, err := a.readPayload(pattern, file)
			if err != nil {
				return err
			}
			if payload == nil {
				return a.out.Error(
					"no pattern content",
					"A pattern needs content to store.",
					[]string{"Pass --pattern '<json>'", "Pass --file <path> (or - for stdin)"},
				)
			}

			repo, closeRepo, err := a.openRepository(ctx, nil)
			if err != nil {
				return err
			}
			defer closeRepo()

			p, err := repo.Create(ctx, payload, name, kit)
			if err != nil {
				return a.out.PatternError(err)
			}
			a.warnUnknownKit(p.Kit)

			if asJSON {
				return listing.FormatSingleJSON(a.out.Out, p)
			}
			a.out.Success("Created %q (kit %s)\n", p.Name, p.Kit)
			a.out.Info("%s\n", p.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Pattern name (default \"Pattern N\")")
	cmd.Flags().StringVar(&kit, "kit", "", "Sample kit (default from config)")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "Pattern content as inline JSON")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read pattern content from a file, - for stdin")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the stored pattern as JSON")
	return cmd
}
