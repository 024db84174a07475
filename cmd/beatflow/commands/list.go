package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/ozzaii/beatflow/internal/filter"
	"github.com/ozzaii/beatflow/internal/listing"
	"github.com/ozzaii/beatflow/internal/timespec"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var (
		output string
		since  string
		until  string
		kit    string
		name   string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored patterns",
		Long: `List stored patterns in the order they were created.

Output Formats:
  default - Human-readable table with ID, Name, Kit, Modified and Pattern
  jsonl   - Line-delimited JSON, one pattern per line
  json    - A single JSON array

Time Filters (on the modified timestamp):
  --since  - Show patterns modified after this time
  --until  - Show patterns modified before this time (a date covers the whole day)

Content Filters:
  --kit    - Filter by kit (glob pattern: "8*")
  --name   - Filter by name (case-insensitive glob: "*groove*")

Examples:
  beatflow list
  beatflow list --kit=909 --since=24h
  beatflow list --output=jsonl | jq -r .id`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			format, err := listing.ParseOutputFormat(output)
			if err != nil {
				return a.out.Error("invalid output format", err.Error(),
					[]string{"Valid formats: default, jsonl, json"})
			}

			now := time.Now()
			sinceTime, untilTime, err := timespec.ParseRange(since, until, now)
			if err != nil {
				return a.out.Error("invalid time filter", err.Error(), []string{
					"Use a duration such as 2h or 90m",
					"Use an RFC3339 timestamp such as 2025-03-14T09:00:00Z",
				})
			}
			criteria := &filter.Criteria{Since: sinceTime, Until: untilTime, KitGlob: kit, NameGlob: name}
			if err := criteria.Validate(); err != nil {
				return a.out.Error("invalid filter", err.Error(), nil)
			}

			repo, closeRepo, err := a.openRepository(ctx, nil)
			if err != nil {
				return err
			}
			defer closeRepo()

			err = listing.ListPatterns(ctx, repo, listing.Options{
				Namespace: a.cfg.Namespace,
				Format:    format,
				Filters:   criteria,
				Now:       now,
			}, a.out.Out)
			if err != nil {
				return a.out.PatternError(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(listing.OutputFormatDefault),
		fmt.Sprintf("Output format: %s, %s or %s", listing.OutputFormatDefault, listing.OutputFormatJSONL, listing.OutputFormatJSON))
	cmd.Flags().StringVar(&since, "since", "", "Show patterns modified after time (duration or RFC3339)")
	cmd.Flags().StringVar(&until, "until", "", "Show patterns modified before time (duration, date or RFC3339; a date covers the whole day)")
	cmd.Flags().StringVar(&kit, "kit", "", "Filter by kit (glob pattern)")
	cmd.Flags().StringVar(&name, "name", "", "Filter by name (case-insensitive glob pattern)")
	return cmd
}
