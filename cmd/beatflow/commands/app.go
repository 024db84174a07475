package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ozzaii/beatflow/internal/config"
	"github.com/ozzaii/beatflow/internal/exchange"
	"github.com/ozzaii/beatflow/internal/logging"
	"github.com/ozzaii/beatflow/internal/printer"
	"github.com/ozzaii/beatflow/internal/resolver"
	"github.com/ozzaii/beatflow/pkg/patterns"
	"github.com/ozzaii/beatflow/pkg/slot"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string

	cfg   *config.Config
	log   *logging.Logger
	out   *printer.Printer
	stdin io.Reader

	// s3HTTPClient overrides the transport of S3 clients; tests point it at a fake.
	s3HTTPClient *http.Client
}

// setup loads configuration and builds the logger and printer.
func (a *app) setup(cmd *cobra.Command) error {
	a.setupOutput(cmd)

	cfg, err := config.Resolve(a.configPath)
	if err != nil {
		return a.out.Error(
			"invalid configuration",
			err.Error(),
			[]string{
				fmt.Sprintf("Pass a valid file with --config or $%s", config.EnvPath),
				fmt.Sprintf("Remove ./%s to run with defaults", config.DefaultPath),
			},
		)
	}
	a.cfg = cfg

	log, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return a.out.Error("invalid log configuration", err.Error(), nil)
	}
	a.log = log.With("namespace", cfg.Namespace)
	return nil
}

func (a *app) setupOutput(cmd *cobra.Command) {
	a.out = printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
	a.stdin = cmd.InOrStdin()
}

func (a *app) teardown() {
	if a.log != nil {
		a.log.Sync()
	}
}

// openRepository connects the configured backend and composes store and
// repository on top of it. The returned func closes the backend.
func (a *app) openRepository(ctx context.Context, metrics *patterns.Metrics) (*patterns.Repository, func(), error) {
	opts := a.cfg.Storage.SlotOptions()
	backend, err := slot.Open(ctx, opts)
	if err != nil {
		return nil, nil, a.out.ErrorWithContext(
			"storage unavailable",
			err.Error(),
			map[string]string{"Driver": string(opts.Driver)},
			[]string{"Check the storage section of " + config.DefaultPath},
		)
	}
	a.log.Debug("storage backend opened",
		"driver", opts.Driver, "dsn", opts.PostgresDSN, "url", opts.RedisURL)

	zl := a.log.Zap()
	store, err := patterns.NewStore(backend, patterns.StoreOptions{
		Namespace:   a.cfg.Namespace,
		MaxBytes:    a.cfg.Storage.MaxBytes,
		StrictReads: a.cfg.Storage.StrictReads,
		MaxRetries:  a.cfg.Storage.MaxRetries,
		Logger:      zl,
		Metrics:     metrics,
	})
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}
	repo := patterns.NewRepository(store, patterns.RepositoryOptions{
		DefaultKit: a.cfg.Defaults.Kit,
		Logger:     zl,
		Metrics:    metrics,
	})

	closeFn := func() {
		if err := backend.Close(); err != nil {
			a.log.Warn("failed to close storage backend", "error", err)
		}
	}
	return repo, closeFn, nil
}

func (a *app) exchange() *exchange.Exchange {
	return exchange.New(exchange.Options{
		MaxImportBytes: a.cfg.Exchange.MaxImportBytes,
		Logger:         a.log.Zap(),
	})
}

// s3Config merges a bucket named on the command line with exchange.s3 from
// the config. The configured prefix only applies to the configured bucket.
func (a *app) s3Config(bucket string) exchange.S3Config {
	c := exchange.S3Config{Bucket: bucket, HTTPClient: a.s3HTTPClient}
	if s := a.cfg.Exchange.S3; s != nil {
		c.Region = s.Region
		c.Endpoint = s.Endpoint
		c.PathStyle = s.PathStyle
		if bucket == "" || bucket == s.Bucket {
			c.Bucket = s.Bucket
			c.Prefix = s.Prefix
		}
	}
	return c
}

func (a *app) s3Client(ctx context.Context, cfg exchange.S3Config) (*s3.Client, error) {
	client, err := exchange.NewS3Client(ctx, cfg)
	if err != nil {
		return nil, a.out.Error("S3 unavailable", err.Error(), []string{
			"Set exchange.s3.bucket in " + config.DefaultPath + " or use an s3://bucket/key location",
		})
	}
	return client, nil
}

// resolveID expands a short id against the stored collection.
func (a *app) resolveID(ctx context.Context, repo *patterns.Repository, id string) (string, error) {
	c, err := repo.List(ctx)
	if err != nil {
		return "", a.out.PatternError(err)
	}
	full, err := resolver.ResolvePatternID(c, id)
	if err == nil {
		return full, nil
	}
	var amb *resolver.AmbiguousError
	if errors.As(err, &amb) {
		return "", a.out.Error("ambiguous pattern id", resolver.FormatAmbiguousError(amb), nil)
	}
	if resolver.IsNotFoundError(err) {
		return "", a.out.ErrorWithContext("pattern not found", "No stored pattern has this id.",
			map[string]string{"Pattern": id},
			[]string{"Run 'beatflow list' to see stored patterns"})
	}
	return "", a.out.Error("invalid pattern id", err.Error(), []string{
		"Use a full id or a prefix of at least 6 characters",
	})
}

// readPayload returns the pattern content from an inline value or a file,
// where "-" reads stdin. The content must be JSON.
func (a *app) readPayload(inline, file string) (json.RawMessage, error) {
	var data []byte
	switch {
	case inline != "" && file != "":
		return nil, a.out.Error("conflicting flags", "--pattern and --file cannot be used together", nil)
	case inline != "":
		data = []byte(inline)
	case file == "-":
		b, err := io.ReadAll(a.stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		data = b
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, a.out.ErrorWithContext("cannot read pattern file", err.Error(),
				map[string]string{"File": file}, nil)
		}
		data = b
	default:
		return nil, nil
	}

	data = []byte(strings.TrimSpace(string(data)))
	if !json.Valid(data) {
		return nil, a.out.PatternError(&patterns.Error{
			Kind: patterns.KindParse,
			Op:   "read",
			Err:  errors.New("pattern content is not valid JSON"),
		})
	}
	return json.RawMessage(data), nil
}

// warnUnknownKit flags kits outside the catalogue without rejecting them.
func (a *app) warnUnknownKit(kit string) {
	if kit != "" && !patterns.IsKnownKit(kit) {
		a.out.Warning("kit %q is not in the catalogue (%s)\n", kit, strings.Join(patterns.KitNames(), ", "))
	}
}
