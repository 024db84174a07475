package commands

import (
	"context"

	"github.com/ozzaii/beatflow/internal/resolver"
	"github.com/ozzaii/beatflow/pkg/patterns"
	"github.com/spf13/cobra"
)

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm PATTERN_ID...",
		Aliases: []string{"remove"},
		Short:   "Remove patterns",
		Long: `Remove one or more patterns. Full ids that are not stored are ignored,
so removing twice succeeds. Short ids must match a stored pattern.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			repo, closeRepo, err := a.openRepository(ctx, nil)
			if err != nil {
				return err
			}
			defer closeRepo()

			for _, arg := range args {
				id := arg
				if !patterns.IsUUID(arg) {
					if id, err = a.resolveID(ctx, repo, arg); err != nil {
						return err
					}
				}
				if err := repo.Remove(ctx, id); err != nil {
					return a.out.PatternError(err)
				}
				a.out.Success("Removed %s\n", resolver.ShortID(id))
			}
			return nil
		},
	}
}
