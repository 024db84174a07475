// Package exchange converts patterns to and from standalone JSON artefacts for
// backup and sharing. It never touches the persisted collection: export reads
// one entity it is handed, import mints a detached draft without id or
// timestamps.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ozzaii/beatflow/pkg/patterns"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxImportBytes caps how much of an import source is read.
	DefaultMaxImportBytes = 1 << 20

	// DefaultArtifactName is used when the exported entity has no name.
	DefaultArtifactName = "pattern"

	// ContentType of every artefact.
	ContentType = "application/json"

	exportConcurrency = 4
)

// Artifact is one exported pattern document.
type Artifact struct {
	Name     string // File name, "<name or pattern>.json"
	Data     []byte // Indented JSON
	Location string // Where the sink put it (path, s3 URI, "-" for a writer)
}

// Options configures an Exchange.
type Options struct {
	MaxImportBytes int64
	Logger         *zap.Logger
}

// Exchange exports and imports pattern artefacts.
type Exchange struct {
	maxImport int64
	log       *zap.Logger
}

// New returns an Exchange using opts, filling in defaults.
func New(opts Options) *Exchange {
	x := &Exchange{maxImport: opts.MaxImportBytes, log: opts.Logger}
	if x.maxImport <= 0 {
		x.maxImport = DefaultMaxImportBytes
	}
	if x.log == nil {
		x.log = zap.NewNop()
	}
	return x
}

// exportView mirrors whatever fields the caller set; zero values are omitted so
// a partial entity exports as a partial document.
type exportView struct {
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name,omitempty"`
	Kit      string          `json:"kit,omitempty"`
	Pattern  json.RawMessage `json:"pattern,omitempty"`
	Created  *time.Time      `json:"created,omitempty"`
	Modified *time.Time      `json:"modified,omitempty"`
}

// ArtifactName returns the file name an entity exports under.
func ArtifactName(p *patterns.Pattern) string {
	name := DefaultArtifactName
	if p != nil && p.Name != "" {
		name = p.Name
	}
	return name + ".json"
}

// Encode renders p as an indented JSON document.
func Encode(p *patterns.Pattern) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("pattern is nil")
	}
	v := exportView{ID: p.ID, Name: p.Name, Kit: p.Kit, Pattern: p.Pattern}
	if !p.Created.IsZero() {
		created := p.Created
		v.Created = &created
	}
	if !p.Modified.IsZero() {
		modified := p.Modified
		v.Modified = &modified
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pattern: %w", err)
	}
	return append(data, '\n'), nil
}

// Export serialises p and offers it to sink. Success means the sink accepted
// the artefact, not that anyone saved it anywhere in particular.
func (x *Exchange) Export(ctx context.Context, p *patterns.Pattern, sink Sink) (*Artifact, error) {
	if p == nil {
		return nil, x.fail("export", "", &patterns.Error{Kind: patterns.KindValidation, Op: "export", Err: errors.New("pattern is nil")})
	}
	data, err := Encode(p)
	if err != nil {
		return nil, x.fail("export", p.ID, &patterns.Error{Kind: patterns.KindParse, Op: "export", ID: p.ID, Err: err})
	}
	a := &Artifact{Name: ArtifactName(p), Data: data}
	loc, err := sink.Offer(ctx, a.Name, data)
	if err != nil {
		return nil, x.fail("export", p.ID, &patterns.Error{Kind: patterns.KindStorageUnavailable, Op: "export", ID: p.ID, Err: err})
	}
	a.Location = loc
	x.log.Debug("pattern exported", zap.String("id", p.ID), zap.String("location", loc))
	return a, nil
}

// ExportAll exports every pattern of c to sink concurrently. Artefacts come
// back in collection order. The first failure cancels the remaining exports.
func (x *Exchange) ExportAll(ctx context.Context, c patterns.Collection, sink Sink) ([]*Artifact, error) {
	out := make([]*Artifact, len(c))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exportConcurrency)
	for i := range c {
		i := i
		g.Go(func() error {
			a, err := x.Export(gctx, &c[i], sink)
			if err != nil {
				return err
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Import reads a full artefact from src and validates it. The document must be
// a JSON object with a non-null "pattern" and a non-empty string "kit"; an
// optional "name" must be a string. Anything else is rejected wholesale. id,
// created and modified in the input are dropped.
func (x *Exchange) Import(ctx context.Context, src io.Reader) (*patterns.Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, x.fail("import", "", &patterns.Error{Kind: patterns.KindParse, Op: "import", Err: err})
	}
	data, err := io.ReadAll(io.LimitReader(src, x.maxImport+1))
	if err != nil {
		return nil, x.fail("import", "", &patterns.Error{Kind: patterns.KindParse, Op: "import", Err: fmt.Errorf("failed to read source: %w", err)})
	}
	if int64(len(data)) > x.maxImport {
		return nil, x.fail("import", "", &patterns.Error{Kind: patterns.KindValidation, Op: "import",
			Err: fmt.Errorf("artefact exceeds %d bytes", x.maxImport)})
	}
	d, err := ParseDraft(data)
	if err != nil {
		return nil, x.fail("import", "", err)
	}
	return d, nil
}

// ParseDraft validates an artefact already held in memory.
func ParseDraft(data []byte) (*patterns.Draft, error) {
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return nil, &patterns.Error{Kind: patterns.KindParse, Op: "import", Err: errors.New("content is not valid JSON")}
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil || doc == nil {
		return nil, invalid("content must be a JSON object")
	}

	d := &patterns.Draft{}
	if !patterns.HasPayload(doc["pattern"]) {
		return nil, invalid("missing required field \"pattern\"")
	}
	d.Pattern = doc["pattern"]

	rawKit, ok := doc["kit"]
	if !ok {
		return nil, invalid("missing required field \"kit\"")
	}
	if err := json.Unmarshal(rawKit, &d.Kit); err != nil || d.Kit == "" {
		return nil, invalid("field \"kit\" must be a non-empty string")
	}

	if rawName, ok := doc["name"]; ok && !bytes.Equal(bytes.TrimSpace(rawName), []byte("null")) {
		if err := json.Unmarshal(rawName, &d.Name); err != nil {
			return nil, invalid("field \"name\" must be a string")
		}
	}
	return d, nil
}

func invalid(msg string) error {
	return &patterns.Error{Kind: patterns.KindValidation, Op: "import", Err: errors.New(msg)}
}

func (x *Exchange) fail(op, id string, err error) error {
	fields := []zap.Field{zap.String("op", op), zap.String("kind", string(patterns.KindOf(err))), zap.Error(err)}
	if id != "" {
		fields = append(fields, zap.String("id", id))
	}
	x.log.Warn("pattern exchange failed", fields...)
	return err
}
