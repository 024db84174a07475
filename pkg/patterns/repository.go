package patterns

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

// RepositoryOptions configures a Repository. Zero values select the defaults.
type RepositoryOptions struct {
	Allocator  IdentityAllocator // default UUIDAllocator
	Now        func() time.Time  // default time.Now
	DefaultKit string            // default DefaultKit
	Logger     *zap.Logger
	Metrics    *Metrics
}

// Repository implements the pattern lifecycle on top of a Store. Every mutation
// is a single load-mutate-persist cycle run through Store.Update.
type Repository struct {
	store      *Store
	ids        IdentityAllocator
	now        func() time.Time
	defaultKit string
	log        *zap.Logger
	metrics    *Metrics
}

// NewRepository composes store with the identity allocator and clock from opts.
func NewRepository(store *Store, opts RepositoryOptions) *Repository {
	r := &Repository{
		store:      store,
		ids:        opts.Allocator,
		now:        opts.Now,
		defaultKit: opts.DefaultKit,
		log:        opts.Logger,
		metrics:    opts.Metrics,
	}
	if r.ids == nil {
		r.ids = UUIDAllocator{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.defaultKit == "" {
		r.defaultKit = DefaultKit
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

// Create stores a new pattern and returns it. An empty name becomes "Pattern N"
// where N follows the current collection length; an empty kit becomes the
// default kit. Returns nil and a *Error when the payload is missing or the
// collection cannot be persisted.
func (r *Repository) Create(ctx context.Context, payload json.RawMessage, name, kit string) (*Pattern, error) {
	if !HasPayload(payload) {
		return nil, r.fail("create", "", newError(KindValidation, "create", "", errors.New("pattern payload is required")))
	}
	if kit == "" {
		kit = r.defaultKit
	}

	var created Pattern
	err := r.store.Update(ctx, func(c Collection) (Collection, error) {
		now := r.timestamp()
		created = Pattern{
			ID:       r.ids.Allocate(),
			Name:     name,
			Kit:      kit,
			Pattern:  cloneRaw(payload),
			Created:  now,
			Modified: now,
		}
		if created.Name == "" {
			created.Name = DefaultName(len(c))
		}
		if c.Index(created.ID) >= 0 {
			return nil, newError(KindValidation, "create", created.ID, errors.New("allocated id already in use"))
		}
		return append(c, created), nil
	})
	if err != nil {
		return nil, r.fail("create", "", err)
	}

	r.metrics.observe("create", nil)
	r.log.Debug("pattern created", zap.String("id", created.ID), zap.String("kit", created.Kit))
	return &created, nil
}

// CreateFromDraft stores an imported draft as a new pattern.
func (r *Repository) CreateFromDraft(ctx context.Context, d *Draft) (*Pattern, error) {
	if d == nil {
		return nil, r.fail("create", "", newError(KindValidation, "create", "", errors.New("draft is nil")))
	}
	return r.Create(ctx, d.Pattern, d.Name, d.Kit)
}

// List returns the stored collection in insertion order.
func (r *Repository) List(ctx context.Context) (Collection, error) {
	c, err := r.store.Read(ctx)
	if err != nil {
		return nil, r.fail("list", "", err)
	}
	r.metrics.observe("list", nil)
	return c, nil
}

// Get returns the pattern with the given id.
func (r *Repository) Get(ctx context.Context, id string) (*Pattern, error) {
	c, err := r.store.Read(ctx)
	if err != nil {
		return nil, r.fail("get", id, err)
	}
	p, ok := c.Find(id)
	if !ok {
		return nil, r.fail("get", id, newError(KindNotFound, "get", id, nil))
	}
	r.metrics.observe("get", nil)
	return &p, nil
}

// Update merges patch over the pattern with the given id and bumps Modified.
// ID and Created never change. An unknown id returns nil and a NotFound error
// and leaves the slot unwritten.
func (r *Repository) Update(ctx context.Context, id string, patch Patch) (*Pattern, error) {
	if err := patch.Validate(); err != nil {
		return nil, r.fail("update", id, newError(KindValidation, "update", id, err))
	}

	var updated Pattern
	err := r.store.Update(ctx, func(c Collection) (Collection, error) {
		i := c.Index(id)
		if i < 0 {
			return nil, newError(KindNotFound, "update", id, nil)
		}
		p := c[i]
		patch.Apply(&p)
		p.Modified = latest(latest(r.timestamp(), p.Modified), p.Created)
		c[i] = p
		updated = p
		return c, nil
	})
	if err != nil {
		return nil, r.fail("update", id, err)
	}

	r.metrics.observe("update", nil)
	r.log.Debug("pattern updated", zap.String("id", id))
	return &updated, nil
}

// Remove drops the pattern with the given id and persists the remainder. The
// result reports whether the write succeeded, not whether the id existed, so
// removing an unknown id is a successful no-op.
func (r *Repository) Remove(ctx context.Context, id string) error {
	err := r.store.Update(ctx, func(c Collection) (Collection, error) {
		kept := c[:0]
		for _, p := range c {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		return kept, nil
	})
	if err != nil {
		return r.fail("remove", id, err)
	}
	r.metrics.observe("remove", nil)
	r.log.Debug("pattern removed", zap.String("id", id))
	return nil
}

// Store exposes the underlying store for bulk operations.
func (r *Repository) Store() *Store { return r.store }

func (r *Repository) timestamp() time.Time {
	return Timestamp(r.now())
}

// fail logs and counts err, making sure callers always receive a *Error.
func (r *Repository) fail(op, id string, err error) error {
	var e *Error
	if !errors.As(err, &e) {
		e = newError(KindStorageUnavailable, op, id, err)
		err = e
	}
	r.metrics.observe(op, err)
	fields := []zap.Field{zap.String("op", op), zap.String("kind", string(e.Kind)), zap.Error(err)}
	if id != "" {
		fields = append(fields, zap.String("id", id))
	}
	if e.Kind == KindNotFound {
		r.log.Info("pattern operation failed", fields...)
	} else {
		r.log.Warn("pattern operation failed", fields...)
	}
	return err
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
