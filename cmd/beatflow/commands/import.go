package commands

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/ozzaii/beatflow/internal/exchange"
	"github.com/ozzaii/beatflow/internal/listing"
	"github.com/ozzaii/beatflow/pkg/patterns"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "import SOURCE",
		Short: "Validate a pattern artefact and optionally store it",
		Long: `Read a pattern artefact and validate it. The artefact must be a JSON object
with a "pattern" value and a non-empty "kit" string; anything else is rejected
and nothing is stored. Ids and timestamps inside the artefact are ignored.

Without --save the validated pattern is printed as JSON. With --save it is
stored as a new pattern with a fresh id.

Sources:
  FILE           - a local file
  -              - stdin
  s3://bucket/key - an object in S3

Examples:
  beatflow import groove.json
  beatflow import groove.json --save
  beatflow import s3://my-beats/2025/groove.json --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			d, err := a.importDraft(ctx, args[0])
			if err != nil {
				return err
			}
			a.warnUnknownKit(d.Kit)

			if !save {
				return listing.FormatDraftJSON(a.out.Out, d)
			}

			repo, closeRepo, err := a.openRepository(ctx, nil)
			if err != nil {
				return err
			}
			defer closeRepo()

			p, err := repo.CreateFromDraft(ctx, d)
			if err != nil {
				return a.out.PatternError(err)
			}
			a.out.Success("Imported %q (kit %s)\n", p.Name, p.Kit)
			a.out.Info("%s\n", p.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Store the imported pattern")
	return cmd
}

// importDraft reads and validates the artefact at source.
func (a *app) importDraft(ctx context.Context, source string) (*patterns.Draft, error) {
	x := a.exchange()

	if strings.HasPrefix(source, "s3://") {
		bucket, key, ok := exchange.ParseS3URI(source)
		if !ok {
			return nil, a.out.Error("invalid S3 location", "Expected s3://bucket/key, got "+source, nil)
		}
		client, err := a.s3Client(ctx, a.s3Config(bucket))
		if err != nil {
			return nil, err
		}
		d, err := x.ImportS3(ctx, exchange.NewS3Source(client, bucket), key)
		if err != nil {
			return nil, a.out.PatternError(err)
		}
		return d, nil
	}

	var src io.Reader = a.stdin
	if source != "-" {
		f, err := os.Open(source)
		if err != nil {
			return nil, a.out.ErrorWithContext("cannot read artefact", err.Error(),
				map[string]string{"Source": source}, nil)
		}
		defer f.Close()
		src = f
	}
	d, err := x.Import(ctx, src)
	if err != nil {
		return nil, a.out.PatternError(err)
	}
	return d, nil
}
