package patterns

import (
	"context"
	"errors"
	"fmt"

	"github.com/ozzaii/beatflow/pkg/slot"
	"go.uber.org/zap"
)

const (
	// DefaultMaxBytes mirrors the usual per-origin quota of browser storage.
	DefaultMaxBytes = 5 << 20

	// DefaultMaxRetries bounds how often Update re-runs after a conflict.
	DefaultMaxRetries = 5
)

// StoreOptions configures a Store.
type StoreOptions struct {
	Namespace   string      // Required; isolates this collection on a shared backend
	MaxBytes    int         // Encoded size limit, 0 = DefaultMaxBytes, <0 = unlimited
	StrictReads bool        // Surface ParseError instead of reading a damaged slot as empty
	MaxRetries  int         // Update attempts on conflict, 0 = DefaultMaxRetries
	Logger      *zap.Logger // nil = no logging
	Metrics     *Metrics    // nil = no metrics
}

// Store gives scoped access to the one slot holding a namespace's collection.
// It is safe for concurrent use when the backend is.
type Store struct {
	backend  slot.Backend
	key      string
	maxBytes int
	strict   bool
	retries  int
	log      *zap.Logger
	metrics  *Metrics
}

// UpdateFunc transforms the current collection into the one to persist.
// Returning an error aborts the update without writing.
type UpdateFunc func(Collection) (Collection, error)

// NewStore creates a Store over backend. Returns an error if the namespace is empty.
func NewStore(backend slot.Backend, opts StoreOptions) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	s := &Store{
		backend:  backend,
		key:      CollectionKey(opts.Namespace),
		maxBytes: opts.MaxBytes,
		strict:   opts.StrictReads,
		retries:  opts.MaxRetries,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
	if s.maxBytes == 0 {
		s.maxBytes = DefaultMaxBytes
	}
	if s.retries <= 0 {
		s.retries = DefaultMaxRetries
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.With(zap.String("slot", s.key))
	return s, nil
}

// Key returns the slot key this store reads and writes.
func (s *Store) Key() string { return s.key }

// Read loads the collection. An empty slot reads as an empty collection. A slot
// that fails to parse also reads as empty (and is logged) unless StrictReads is set.
func (s *Store) Read(ctx context.Context) (Collection, error) {
	data, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, slot.ErrNotFound) {
		return Collection{}, nil
	}
	if err != nil {
		e := newError(KindStorageUnavailable, "read", "", err)
		s.log.Error("failed to read pattern collection", zap.Error(e))
		return nil, e
	}
	return s.decode("read", data)
}

// Write serialises c and overwrites the slot in one backend call. Patterns
// absent from c are gone afterwards.
func (s *Store) Write(ctx context.Context, c Collection) error {
	data, err := s.encode("write", c, c.Validate())
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, s.key, data); err != nil {
		e := newError(KindStorageUnavailable, "write", "", err)
		s.log.Error("failed to write pattern collection", zap.Error(e))
		return e
	}
	return nil
}

// Update runs fn inside the backend's compare-and-swap. When another writer got
// in between, the whole cycle (read, fn, write) runs again, up to MaxRetries
// times. Errors returned by fn are passed through unchanged.
func (s *Store) Update(ctx context.Context, fn UpdateFunc) error {
	for attempt := 1; ; attempt++ {
		err := s.backend.Update(ctx, s.key, func(current []byte) ([]byte, error) {
			c, err := s.decode("update", current)
			if err != nil {
				return nil, err
			}
			prev := append(Collection(nil), c...)
			next, err := fn(c)
			if err != nil {
				return nil, err
			}
			return s.encode("update", next, next.ValidateChanges(prev))
		})
		if err == nil {
			return nil
		}

		var pe *Error
		if errors.As(err, &pe) {
			return err
		}
		if errors.Is(err, slot.ErrConflict) {
			s.metrics.conflict()
			if attempt < s.retries {
				s.log.Debug("slot changed during update, retrying", zap.Int("attempt", attempt))
				continue
			}
			err = fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}
		e := newError(KindStorageUnavailable, "update", "", err)
		s.log.Error("failed to update pattern collection", zap.Error(e))
		return e
	}
}

func (s *Store) decode(op string, data []byte) (Collection, error) {
	c, err := DecodeCollection(data)
	if err == nil {
		return c, nil
	}
	e := newError(KindParse, op, "", err)
	if s.strict {
		s.log.Error("stored pattern collection is malformed", zap.Error(e))
		return nil, e
	}
	s.log.Error("stored pattern collection is malformed, treating as empty", zap.Error(e))
	return Collection{}, nil
}

// encode serialises c once invalid, the result of the caller's validation, is nil.
func (s *Store) encode(op string, c Collection, invalid error) ([]byte, error) {
	if err := invalid; err != nil {
		e := newError(KindValidation, op, "", err)
		s.log.Error("refusing to persist invalid collection", zap.Error(e))
		return nil, e
	}
	data, err := EncodeCollection(c)
	if err != nil {
		e := newError(KindParse, op, "", err)
		s.log.Error("failed to encode pattern collection", zap.Error(e))
		return nil, e
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		e := newError(KindStorageUnavailable, op, "",
			fmt.Errorf("%w: %d bytes exceeds limit of %d", slot.ErrCapacity, len(data), s.maxBytes))
		s.log.Error("pattern collection too large to persist", zap.Error(e))
		return nil, e
	}
	return data, nil
}
