package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// maxNameAttempts bounds the " (n)" suffix search in collision-avoiding sinks.
const maxNameAttempts = 1000

// Sink receives exported artefacts. Offer returns where the artefact ended up.
type Sink interface {
	Offer(ctx context.Context, name string, data []byte) (string, error)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, name string, data []byte) (string, error)

// Offer calls f.
func (f SinkFunc) Offer(ctx context.Context, name string, data []byte) (string, error) {
	return f(ctx, name, data)
}

// WriterSink streams artefacts to an io.Writer, one after another.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Offer writes data to the underlying writer. The location is always "-".
func (s *WriterSink) Offer(ctx context.Context, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return "", fmt.Errorf("failed to write artefact: %w", err)
	}
	return "-", nil
}

// DirSink saves artefacts as files in a directory. Existing files are never
// replaced: a colliding name gets a " (n)" suffix before the extension.
type DirSink struct {
	Dir string
}

// NewDirSink returns a sink saving into dir, creating it when missing.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}
	return &DirSink{Dir: dir}, nil
}

// Offer writes data to a fresh file and returns its path.
func (s *DirSink) Offer(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	base, ext := splitName(SanitizeFilename(name))
	for n := 0; n < maxNameAttempts; n++ {
		path := filepath.Join(s.Dir, candidateName(base, ext, n))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free file name for %q in %s", name, s.Dir)
}

// SanitizeFilename strips characters that are unsafe in file names and object
// keys. Spaces are kept so "My Beat.json" stays recognisable.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '-'
		case '*', '?', '"', '<', '>', '|':
			return -1
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	switch name {
	case "", ".", "..", ".json":
		return DefaultArtifactName + ".json"
	}
	return name
}

func splitName(name string) (string, string) {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

func candidateName(base, ext string, n int) string {
	if n == 0 {
		return base + ext
	}
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}
