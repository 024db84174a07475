package listing

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ozzaii/beatflow/internal/filter"
	"github.com/ozzaii/beatflow/pkg/patterns"
)

// OutputFormat specifies how to format the pattern list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated payloads
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete patterns as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"

	// OutputFormatJSON outputs the matching collection as one JSON array
	OutputFormatJSON OutputFormat = "json"
)

// ParseOutputFormat maps a --output flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", "table", OutputFormatDefault:
		return OutputFormatDefault, nil
	case OutputFormatJSONL, OutputFormatJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format: %s (use 'table', 'jsonl' or 'json')", s)
	}
}

// Lister is the part of the repository listing needs.
type Lister interface {
	List(ctx context.Context) (patterns.Collection, error)
}

// Options controls ListPatterns.
type Options struct {
	Namespace string
	Format    OutputFormat
	Filters   *filter.Criteria
	Now       time.Time // reference for ages in the table, default time.Now()
}

// ListPatterns writes the stored collection, filtered, in insertion order.
// Repository errors are returned unchanged so callers can inspect their kind.
func ListPatterns(ctx context.Context, repo Lister, opts Options, w io.Writer) error {
	c, err := repo.List(ctx)
	if err != nil {
		return err
	}
	if opts.Filters != nil {
		c = opts.Filters.Apply(c)
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	switch opts.Format {
	case OutputFormatDefault, "":
		FormatTable(w, c, opts.Namespace, now)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, c); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	case OutputFormatJSON:
		if err := FormatJSON(w, c); err != nil {
			return fmt.Errorf("failed to format JSON output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", opts.Format)
	}
	return nil
}
