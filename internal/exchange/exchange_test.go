package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/ozzaii/beatflow/pkg/patterns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fixture() *patterns.Pattern {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	return &patterns.Pattern{
		ID:       "6f1c2e1a-8d0b-4b59-9a55-0c8f6b1f2d11",
		Name:     "Groove1",
		Kit:      "808",
		Pattern:  json.RawMessage(`{"beats":[1,0,1,0]}`),
		Created:  ts,
		Modified: ts,
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	x := New(Options{})

	t.Run("writes an indented document named after the pattern", func(t *testing.T) {
		var buf bytes.Buffer
		a, err := x.Export(ctx, fixture(), NewWriterSink(&buf))
		require.NoError(t, err)

		assert.Equal(t, "Groove1.json", a.Name)
		assert.Equal(t, "-", a.Location)
		assert.Equal(t, buf.String(), string(a.Data))
		assert.Contains(t, buf.String(), "\n  \"kit\": \"808\"")

		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "2025-03-14T09:26:53.589Z", got["created"])
	})

	t.Run("partial entity exports as a partial document", func(t *testing.T) {
		var buf bytes.Buffer
		a, err := x.Export(ctx, &patterns.Pattern{Kit: "909", Pattern: json.RawMessage(`[]`)}, NewWriterSink(&buf))
		require.NoError(t, err)

		assert.Equal(t, "pattern.json", a.Name)
		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, map[string]any{"kit": "909", "pattern": []any{}}, got)
	})

	t.Run("nil entity is a validation error", func(t *testing.T) {
		_, err := x.Export(ctx, nil, NewWriterSink(&bytes.Buffer{}))
		assert.ErrorIs(t, err, patterns.ErrValidation)
	})

	t.Run("malformed payload is a parse error", func(t *testing.T) {
		p := fixture()
		p.Pattern = json.RawMessage(`{"beats":`)
		_, err := x.Export(ctx, p, NewWriterSink(&bytes.Buffer{}))
		assert.ErrorIs(t, err, patterns.ErrParse)
	})

	t.Run("sink failure is storage unavailable", func(t *testing.T) {
		sink := SinkFunc(func(context.Context, string, []byte) (string, error) {
			return "", errors.New("disk full")
		})
		_, err := x.Export(ctx, fixture(), sink)
		assert.ErrorIs(t, err, patterns.ErrStorageUnavailable)
		assert.Contains(t, err.Error(), "disk full")
	})
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	x := New(Options{})

	t.Run("accepts pattern and kit", func(t *testing.T) {
		d, err := x.Import(ctx, strings.NewReader(`{"pattern":{"steps":[]}, "kit":"909"}`))
		require.NoError(t, err)
		assert.Equal(t, "909", d.Kit)
		assert.JSONEq(t, `{"steps":[]}`, string(d.Pattern))
		assert.Empty(t, d.Name)
	})

	t.Run("drops identity and timestamps", func(t *testing.T) {
		d, err := x.Import(ctx, strings.NewReader(`{
			"id": "abc", "created": "2020-01-01T00:00:00Z", "modified": "2020-01-01T00:00:00Z",
			"name": "Shared", "kit": "707", "pattern": [1, 2], "extra": true
		}`))
		require.NoError(t, err)
		assert.Equal(t, &patterns.Draft{Name: "Shared", Kit: "707", Pattern: json.RawMessage(`[1, 2]`)}, d)
	})

	rejected := []struct {
		name  string
		input string
		want  error
	}{
		{"missing pattern", `{"kit":"909"}`, patterns.ErrValidation},
		{"null pattern", `{"kit":"909","pattern":null}`, patterns.ErrValidation},
		{"missing kit", `{"pattern":{}}`, patterns.ErrValidation},
		{"empty kit", `{"pattern":{},"kit":""}`, patterns.ErrValidation},
		{"numeric kit", `{"pattern":{},"kit":909}`, patterns.ErrValidation},
		{"numeric name", `{"pattern":{},"kit":"909","name":7}`, patterns.ErrValidation},
		{"array document", `[{"pattern":{},"kit":"909"}]`, patterns.ErrValidation},
		{"null document", `null`, patterns.ErrValidation},
		{"truncated json", `{"pattern":{},"kit":"90`, patterns.ErrParse},
		{"empty input", ``, patterns.ErrParse},
	}
	for _, tc := range rejected {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			d, err := x.Import(ctx, strings.NewReader(tc.input))
			assert.Nil(t, d)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("read failure is a parse error", func(t *testing.T) {
		d, err := x.Import(ctx, iotest.ErrReader(errors.New("connection reset")))
		assert.Nil(t, d)
		assert.ErrorIs(t, err, patterns.ErrParse)
	})

	t.Run("oversized source is rejected", func(t *testing.T) {
		small := New(Options{MaxImportBytes: 32})
		d, err := small.Import(ctx, strings.NewReader(`{"kit":"909","pattern":{"steps":[1,1,1,1,1,1,1,1]}}`))
		assert.Nil(t, d)
		assert.ErrorIs(t, err, patterns.ErrValidation)
	})
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	x := New(Options{})
	p := fixture()

	var buf bytes.Buffer
	_, err := x.Export(ctx, p, NewWriterSink(&buf))
	require.NoError(t, err)

	d, err := x.Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, p.Kit, d.Kit)
	assert.Equal(t, p.Name, d.Name)
	assert.JSONEq(t, string(p.Pattern), string(d.Pattern))
}

func TestDirSink(t *testing.T) {
	ctx := context.Background()

	t.Run("never replaces an existing file", func(t *testing.T) {
		dir := t.TempDir()
		sink, err := NewDirSink(dir)
		require.NoError(t, err)

		first, err := sink.Offer(ctx, "Groove1.json", []byte("one"))
		require.NoError(t, err)
		second, err := sink.Offer(ctx, "Groove1.json", []byte("two"))
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(dir, "Groove1.json"), first)
		assert.Equal(t, filepath.Join(dir, "Groove1 (1).json"), second)

		data, err := os.ReadFile(first)
		require.NoError(t, err)
		assert.Equal(t, "one", string(data))
	})

	t.Run("sanitises names", func(t *testing.T) {
		dir := t.TempDir()
		sink, err := NewDirSink(filepath.Join(dir, "nested"))
		require.NoError(t, err)

		loc, err := sink.Offer(ctx, "../a/b:c?.json", []byte("{}"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "nested", "..-a-b-c.json"), loc)
	})
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"My Beat.json":   "My Beat.json",
		"a/b\\c.json":    "a-b-c.json",
		"what?*.json":    "what.json",
		"  .json ":       "pattern.json",
		"..":             "pattern.json",
		"tab\there.json": "tabhere.json",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}

func TestExportAll(t *testing.T) {
	ctx := context.Background()
	x := New(Options{})

	t.Run("keeps collection order and unique files", func(t *testing.T) {
		dir := t.TempDir()
		sink, err := NewDirSink(dir)
		require.NoError(t, err)

		var c patterns.Collection
		for i := 0; i < 9; i++ {
			p := fixture()
			p.ID = patterns.UUIDAllocator{}.Allocate()
			if i%3 == 0 {
				p.Name = patterns.DefaultName(i)
			}
			c = append(c, *p)
		}

		out, err := x.ExportAll(ctx, c, sink)
		require.NoError(t, err)
		require.Len(t, out, len(c))

		seen := map[string]bool{}
		for i, a := range out {
			assert.Equal(t, ArtifactName(&c[i]), a.Name)
			assert.False(t, seen[a.Location], "duplicate location %s", a.Location)
			seen[a.Location] = true
		}
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, len(c))
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		sink := SinkFunc(func(ctx context.Context, name string, _ []byte) (string, error) {
			if name == "Broken.json" {
				return "", errors.New("rejected")
			}
			return name, ctx.Err()
		})
		c := patterns.Collection{*fixture(), *fixture()}
		c[1].Name = "Broken"

		out, err := x.ExportAll(ctx, c, sink)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, patterns.ErrStorageUnavailable)
	})

	t.Run("empty collection", func(t *testing.T) {
		out, err := x.ExportAll(ctx, nil, NewWriterSink(&bytes.Buffer{}))
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}
