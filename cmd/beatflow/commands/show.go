package commands

import (
	"context"

	"github.com/ozzaii/beatflow/internal/listing"
	"github.com/spf13/cobra"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show PATTERN_ID",
		Short: "Print one pattern as JSON",
		Long: `Print the complete stored pattern as pretty-printed JSON.

Supports short IDs (e.g., "3f2a9c" instead of the full UUID).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			repo, closeRepo, err := a.openRepository(ctx, nil)
			if err != nil {
				return err
			}
			defer closeRepo()

			id, err := a.resolveID(ctx, repo, args[0])
			if err != nil {
				return err
			}
			p, err := repo.Get(ctx, id)
			if err != nil {
				return a.out.PatternError(err)
			}
			return listing.FormatSingleJSON(a.out.Out, p)
		},
	}
}
