package commands

import (
	"context"
	"strings"

	"github.com/ozzaii/beatflow/internal/exchange"
	"github.com/ozzaii/beatflow/pkg/patterns"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		out string
		all bool
	)

	cmd := &cobra.Command{
		Use:   "export [PATTERN_ID...]",
		Short: "Write patterns out as standalone JSON artefacts",
		Long: `Write each pattern as a standalone JSON artefact named after the pattern.

Destinations (--out):
  DIR                 - a directory; existing files are never overwritten,
                        a taken name becomes "name (1).json"
  -                   - stdout
  s3://bucket/prefix  - an S3 bucket; s3:// alone uses exchange.s3 from the config

Examples:
  beatflow export 3f2a9c
  beatflow export --all --out backups/
  beatflow export 3f2a9c --out - | jq .pattern
  beatflow export --all --out s3://my-beats/2025`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if all == (len(args) > 0) {
				return a.out.Error("nothing to export", "Name the patterns to export or pass --all, not both.",
					[]string{"beatflow export PATTERN_ID...", "beatflow export --all"})
			}

			sink, err := a.sinkFor(ctx, out)
			if err != nil {
				return err
			}

			repo, closeRepo, err := a.openRepository(ctx, nil)
			if err != nil {
				return err
			}
			defer closeRepo()

			var selected patterns.Collection
			if all {
				if selected, err = repo.List(ctx); err != nil {
					return a.out.PatternError(err)
				}
			} else {
				for _, arg := range args {
					id, err := a.resolveID(ctx, repo, arg)
					if err != nil {
						return err
					}
					p, err := repo.Get(ctx, id)
					if err != nil {
						return a.out.PatternError(err)
					}
					selected = append(selected, *p)
				}
			}

			artifacts, err := a.exchange().ExportAll(ctx, selected, sink)
			if err != nil {
				return a.out.PatternError(err)
			}
			if out == "-" {
				return nil
			}
			for _, art := range artifacts {
				a.out.Success("Exported %s\n", art.Location)
			}
			if len(artifacts) == 0 {
				a.out.Info("No patterns to export\n")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", ".", "Destination directory, - for stdout, or s3://bucket/prefix")
	cmd.Flags().BoolVar(&all, "all", false, "Export every stored pattern")
	return cmd
}

// sinkFor maps an --out value onto a sink.
func (a *app) sinkFor(ctx context.Context, out string) (exchange.Sink, error) {
	switch {
	case out == "-":
		return exchange.NewWriterSink(a.out.Out), nil
	case strings.HasPrefix(out, "s3://"):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(out, "s3://"), "/")
		cfg := a.s3Config(bucket)
		if prefix != "" {
			cfg.Prefix = prefix
		}
		client, err := a.s3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return exchange.NewS3Sink(client, cfg.Bucket, cfg.Prefix), nil
	default:
		sink, err := exchange.NewDirSink(out)
		if err != nil {
			return nil, a.out.ErrorWithContext("cannot export here", err.Error(),
				map[string]string{"Destination": out}, nil)
		}
		return sink, nil
	}
}
