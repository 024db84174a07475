package commands

import (
	"context"

	"github.com/ozzaii/beatflow/internal/listing"
	"github.com/ozzaii/beatflow/pkg/patterns"
	"github.com/spf13/cobra"
)

func newUpdateCmd(a *app) *cobra.Command {
	var (
		name    string
		kit     string
		pattern string
		file    string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "update PATTERN_ID",
		Short: "Change the name, kit or content of a pattern",
		Long: `Change fields of a stored pattern. Only the flags given are applied;
the id and creation time never change.

Examples:
  beatflow update 3f2a9c --name "Half time"
  beatflow update 3f2a9c --kit 707 --file groove.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			var patch patterns.Patch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("kit") {
				patch.Kit = &kit
			}
			payload, err := a.readPayload(pattern, file)
			if err != nil {
				return err
			}
			patch.Pattern = payload
			if patch.IsEmpty() {
				return a.out.Error("nothing to update", "No changes were requested.",
					[]string{"Pass at least one of --name, --kit, --pattern or --file"})
			}

			repo, closeRepo, err := a.openRepository(ctx, nil)
			if err != nil {
				return err
			}
			defer closeRepo()

			id, err := a.resolveID(ctx, repo, args[0])
			if err != nil {
				return err
			}
			p, err := repo.Update(ctx, id, patch)
			if err != nil {
				return a.out.PatternError(err)
			}
			if patch.Kit != nil {
				a.warnUnknownKit(p.Kit)
			}

			if asJSON {
				return listing.FormatSingleJSON(a.out.Out, p)
			}
			a.out.Success("Updated %q\n", p.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&kit, "kit", "", "New sample kit")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "New content as inline JSON")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read new content from a file, - for stdin")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the updated pattern as JSON")
	return cmd
}
