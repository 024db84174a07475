package patterns

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/ozzaii/beatflow/pkg/slot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// fakeClock returns a fixed time that tests advance explicitly.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// setupTestRepository creates a repository over an in-memory backend.
func setupTestRepository(t *testing.T) (*Repository, *slot.Memory, *fakeClock) {
	backend := slot.NewMemory()
	store, err := NewStore(backend, StoreOptions{Namespace: "test-namespace"})
	require.NoError(t, err)

	clock := newFakeClock()
	repo := NewRepository(store, RepositoryOptions{Now: clock.Now})
	return repo, backend, clock
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("adds exactly one entry with matching fields", func(t *testing.T) {
		repo, _, _ := setupTestRepository(t)

		before, err := repo.List(ctx)
		require.NoError(t, err)

		p, err := repo.Create(ctx, raw(`{"beats":[1,0,1,0]}`), "Groove1", "808")
		require.NoError(t, err)
		require.NotNil(t, p)

		assert.Equal(t, "Groove1", p.Name)
		assert.Equal(t, "808", p.Kit)
		assert.JSONEq(t, `{"beats":[1,0,1,0]}`, string(p.Pattern))
		assert.Equal(t, p.Created, p.Modified)
		assert.True(t, IsUUID(p.ID))

		after, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, after, len(before)+1)

		stored := after[len(after)-1]
		assert.Equal(t, p.ID, stored.ID)
		assert.Equal(t, "808", stored.Kit)
		assert.JSONEq(t, `{"beats":[1,0,1,0]}`, string(stored.Pattern))
		assert.True(t, stored.Created.Equal(stored.Modified))
	})

	t.Run("defaults kit to 909", func(t *testing.T) {
		repo, _, _ := setupTestRepository(t)

		p, err := repo.Create(ctx, raw(`{"steps":[]}`), "Kick", "")
		require.NoError(t, err)
		assert.Equal(t, "909", p.Kit)
	})

	t.Run("defaults name from collection length", func(t *testing.T) {
		repo, _, _ := setupTestRepository(t)

		first, err := repo.Create(ctx, raw(`[1]`), "", "")
		require.NoError(t, err)
		second, err := repo.Create(ctx, raw(`[2]`), "", "")
		require.NoError(t, err)
		_, err = repo.Create(ctx, raw(`[3]`), "Named", "")
		require.NoError(t, err)
		fourth, err := repo.Create(ctx, raw(`[4]`), "", "")
		require.NoError(t, err)

		assert.Equal(t, "Pattern 1", first.Name)
		assert.Equal(t, "Pattern 2", second.Name)
		assert.Equal(t, "Pattern 4", fourth.Name)
	})

	t.Run("preserves insertion order", func(t *testing.T) {
		repo, _, clock := setupTestRepository(t)

		var ids []string
		for i := 0; i < 5; i++ {
			p, err := repo.Create(ctx, raw(fmt.Sprintf(`{"n":%d}`, i)), "", "")
			require.NoError(t, err)
			ids = append(ids, p.ID)
			clock.Advance(-time.Second) // order must not follow timestamps
		}

		list, err := repo.List(ctx)
		require.NoError(t, err)
		if diff := cmp.Diff(ids, list.IDs()); diff != "" {
			t.Errorf("list order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("rejects missing payload", func(t *testing.T) {
		repo, _, _ := setupTestRepository(t)

		for _, payload := range []string{"", "null", "  ", "{not json"} {
			p, err := repo.Create(ctx, raw(payload), "x", "909")
			assert.Nil(t, p, "payload %q", payload)
			assert.ErrorIs(t, err, ErrValidation, "payload %q", payload)
		}

		list, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("rejects id collision from allocator", func(t *testing.T) {
		backend := slot.NewMemory()
		store, err := NewStore(backend, StoreOptions{Namespace: "test-namespace"})
		require.NoError(t, err)
		repo := NewRepository(store, RepositoryOptions{
			Allocator: AllocatorFunc(func() string { return "always-the-same" }),
		})

		_, err = repo.Create(ctx, raw(`{}`), "a", "")
		require.NoError(t, err)
		p, err := repo.Create(ctx, raw(`{}`), "b", "")
		assert.Nil(t, p)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("returns nil when persistence fails", func(t *testing.T) {
		backend := slot.NewMemory()
		store, err := NewStore(backend, StoreOptions{Namespace: "test-namespace", MaxBytes: 64})
		require.NoError(t, err)
		repo := NewRepository(store, RepositoryOptions{})

		p, err := repo.Create(ctx, raw(`{"steps":[1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1]}`), "big", "")
		assert.Nil(t, p)
		assert.ErrorIs(t, err, ErrStorageUnavailable)
		assert.ErrorIs(t, err, slot.ErrCapacity)
	})

	t.Run("does not alias caller payload", func(t *testing.T) {
		repo, _, _ := setupTestRepository(t)

		payload := raw(`{"a":1}`)
		p, err := repo.Create(ctx, payload, "", "")
		require.NoError(t, err)
		payload[5] = '2'

		got, err := repo.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(got.Pattern))
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("changes name and advances modified", func(t *testing.T) {
		repo, _, clock := setupTestRepository(t)

		p, err := repo.Create(ctx, raw(`{"steps":[]}`), "Old", "909")
		require.NoError(t, err)

		clock.Advance(1500 * time.Millisecond)
		name := "X"
		u, err := repo.Update(ctx, p.ID, Patch{Name: &name})
		require.NoError(t, err)
		require.NotNil(t, u)

		assert.Equal(t, "X", u.Name)
		assert.Equal(t, p.ID, u.ID)
		assert.True(t, u.Created.Equal(p.Created))
		assert.False(t, u.Modified.Before(p.Modified))
		assert.Equal(t, p.Modified.Add(1500*time.Millisecond), u.Modified)
		assert.Equal(t, "909", u.Kit)
		assert.JSONEq(t, `{"steps":[]}`, string(u.Pattern))

		stored, err := repo.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, *u, *stored)
	})

	t.Run("modified never goes backwards", func(t *testing.T) {
		repo, _, clock := setupTestRepository(t)

		p, err := repo.Create(ctx, raw(`{}`), "", "")
		require.NoError(t, err)

		clock.Advance(-time.Hour)
		kit := "808"
		u, err := repo.Update(ctx, p.ID, Patch{Kit: &kit})
		require.NoError(t, err)
		assert.Equal(t, p.Modified, u.Modified)
		assert.False(t, u.Created.After(u.Modified))
	})

	t.Run("replaces pattern content", func(t *testing.T) {
		repo, _, _ := setupTestRepository(t)

		p, err := repo.Create(ctx, raw(`{"steps":[1]}`), "", "")
		require.NoError(t, err)

		u, err := repo.Update(ctx, p.ID, Patch{Pattern: raw(`{"steps":[1,0,0,1]}`)})
		require.NoError(t, err)
		assert.JSONEq(t, `{"steps":[1,0,0,1]}`, string(u.Pattern))
	})

	t.Run("ignores id and created from patch documents", func(t *testing.T) {
		repo, _, _ := setupTestRepository(t)

		p, err := repo.Create(ctx, raw(`{}`), "Keep", "")
		require.NoError(t, err)

		patch, err := DecodePatch([]byte(`{"id":"hijack","created":"1999-01-01T00:00:00Z","name":"New"}`))
		require.NoError(t, err)

		u, err := repo.Update(ctx, p.ID, patch)
		require.NoError(t, err)
		assert.Equal(t, p.ID, u.ID)
		assert.True(t, u.Created.Equal(p.Created))
		assert.Equal(t, "New", u.Name)
	})

	t.Run("unknown id returns not found and leaves collection unchanged", func(t *testing.T) {
		repo, backend, _ := setupTestRepository(t)

		_, err := repo.Create(ctx, raw(`{}`), "", "")
		require.NoError(t, err)
		before, err := backend.Get(ctx, repo.Store().Key())
		require.NoError(t, err)

		name := "X"
		u, err := repo.Update(ctx, "does-not-exist", Patch{Name: &name})
		assert.Nil(t, u)
		assert.True(t, IsNotFound(err))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NotErrorIs(t, err, ErrStorageUnavailable)

		after, err := backend.Get(ctx, repo.Store().Key())
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("rejects null pattern and empty kit", func(t *testing.T) {
		repo, _, _ := setupTestRepository(t)

		p, err := repo.Create(ctx, raw(`{}`), "", "")
		require.NoError(t, err)

		u, err := repo.Update(ctx, p.ID, Patch{Pattern: raw(`null`)})
		assert.Nil(t, u)
		assert.ErrorIs(t, err, ErrValidation)

		empty := ""
		u, err = repo.Update(ctx, p.ID, Patch{Kit: &empty})
		assert.Nil(t, u)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("removed id is gone from list", func(t *testing.T) {
		repo, _, _ := setupTestRepository(t)

		a, err := repo.Create(ctx, raw(`{"a":1}`), "", "")
		require.NoError(t, err)
		b, err := repo.Create(ctx, raw(`{"b":1}`), "", "")
		require.NoError(t, err)

		require.NoError(t, repo.Remove(ctx, a.ID))

		list, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{b.ID}, list.IDs())
	})

	t.Run("unknown id succeeds and leaves content unchanged", func(t *testing.T) {
		repo, _, _ := setupTestRepository(t)

		_, err := repo.Create(ctx, raw(`{"a":1}`), "", "")
		require.NoError(t, err)
		before, err := repo.List(ctx)
		require.NoError(t, err)

		err = repo.Remove(ctx, "not-there")
		assert.NoError(t, err)

		after, err := repo.List(ctx)
		require.NoError(t, err)
		if diff := cmp.Diff(before, after); diff != "" {
			t.Errorf("collection changed (-before +after):\n%s", diff)
		}
	})

	t.Run("on empty slot persists an empty collection", func(t *testing.T) {
		repo, backend, _ := setupTestRepository(t)

		require.NoError(t, repo.Remove(ctx, "anything"))

		data, err := backend.Get(ctx, repo.Store().Key())
		require.NoError(t, err)
		assert.Equal(t, "[]", string(data))
	})
}

func TestRepository_StoredInvalidEntry(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *Repository {
		repo, backend, _ := setupTestRepository(t)
		require.NoError(t, backend.Put(ctx, repo.Store().Key(), []byte(
			`[{"id":"a","name":"x","kit":"909","pattern":{},`+
				`"created":"2030-01-01T00:00:00Z","modified":"2020-01-01T00:00:00Z"}]`)))
		return repo
	}

	t.Run("list still returns it", func(t *testing.T) {
		c, err := setup(t).List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, c.IDs())
	})

	t.Run("create is not blocked", func(t *testing.T) {
		repo := setup(t)
		p, err := repo.Create(ctx, raw(`{"steps":[1]}`), "Fresh", "808")
		require.NoError(t, err)
		require.NotNil(t, p)

		c, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", p.ID}, c.IDs())
	})

	t.Run("removing an unrelated id is not blocked", func(t *testing.T) {
		repo := setup(t)
		assert.NoError(t, repo.Remove(ctx, "unrelated"))
	})

	t.Run("removing the entry itself succeeds", func(t *testing.T) {
		repo := setup(t)
		require.NoError(t, repo.Remove(ctx, "a"))
		c, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, c)
	})

	t.Run("updating the entry repairs its timestamps", func(t *testing.T) {
		repo := setup(t)
		name := "renamed"
		p, err := repo.Update(ctx, "a", Patch{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "renamed", p.Name)
		assert.False(t, p.Created.After(p.Modified))
		assert.NoError(t, p.Validate())
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := setupTestRepository(t)

	p, err := repo.Create(ctx, raw(`{}`), "Find me", "707")
	require.NoError(t, err)

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, *p, *got)

	missing, err := repo.Get(ctx, "nope")
	assert.Nil(t, missing)
	assert.True(t, IsNotFound(err))
}

func TestCreateFromDraft(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := setupTestRepository(t)

	p, err := repo.CreateFromDraft(ctx, &Draft{Kit: "606", Pattern: raw(`{"steps":[1]}`)})
	require.NoError(t, err)
	assert.Equal(t, "606", p.Kit)
	assert.Equal(t, "Pattern 1", p.Name)
	assert.NotEmpty(t, p.ID)

	_, err = repo.CreateFromDraft(ctx, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRepository_Metrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	store, err := NewStore(slot.NewMemory(), StoreOptions{Namespace: "test-namespace", Metrics: metrics})
	require.NoError(t, err)
	repo := NewRepository(store, RepositoryOptions{Metrics: metrics})

	_, err = repo.Create(ctx, raw(`{}`), "", "")
	require.NoError(t, err)
	_, _ = repo.Update(ctx, "missing", Patch{})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("update", string(KindNotFound))))
}

// TestConcurrentCreates checks that concurrent writers sharing one slot lose no
// entries on every backend with a compare-and-swap.
func TestConcurrentCreates(t *testing.T) {
	backends := map[string]func(t *testing.T) slot.Backend{
		"memory": func(t *testing.T) slot.Backend { return slot.NewMemory() },
		"redis": func(t *testing.T) slot.Backend {
			mr := miniredis.RunT(t)
			b := slot.NewRedis(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { b.Close() })
			return b
		},
		"sqlite": func(t *testing.T) slot.Backend {
			b, err := slot.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "beatflow.db"))
			require.NoError(t, err)
			t.Cleanup(func() { b.Close() })
			return b
		},
	}

	for name, newBackend := range backends {
		newBackend := newBackend
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			backend := newBackend(t)

			// Two repositories on one backend stand in for two tabs/processes.
			const writers = 2
			const perWriter = 10
			repos := make([]*Repository, writers)
			for i := range repos {
				store, err := NewStore(backend, StoreOptions{Namespace: "shared", MaxRetries: 1000})
				require.NoError(t, err)
				repos[i] = NewRepository(store, RepositoryOptions{})
			}

			g, gctx := errgroup.WithContext(ctx)
			for w := 0; w < writers; w++ {
				repo := repos[w]
				w := w
				g.Go(func() error {
					for i := 0; i < perWriter; i++ {
						if _, err := repo.Create(gctx, raw(fmt.Sprintf(`{"w":%d,"i":%d}`, w, i)), "", ""); err != nil {
							return err
						}
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			list, err := repos[0].List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, writers*perWriter)
			assert.NoError(t, list.Validate())

			names := make(map[string]bool)
			for _, p := range list {
				names[p.Name] = true
			}
			assert.Len(t, names, writers*perWriter, "default names must stay unique under concurrency")
		})
	}
}
