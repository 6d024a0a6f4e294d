package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/neomart/pkg/config"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newSQLiteRepository(t *testing.T) *SQLRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "kv.db")), &gorm.Config{})
	require.NoError(t, err)

	repo, err := NewSQLRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newMiniRedisRepository(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := &config.RedisConfig{Addr: mr.Addr()}
	repo := NewRedisRepository(cfg)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, mr
}

func backends(t *testing.T) map[string]KV {
	redisRepo, _ := newMiniRedisRepository(t)
	return map[string]KV{
		"memory": NewMemoryRepository(),
		"sqlite": newSQLiteRepository(t),
		"redis":  redisRepo,
	}
}

func TestKVBasicOperations(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, kv.Ping(ctx))

			_, err := kv.Get(ctx, "ns:products")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Set(ctx, "ns:products", []byte(`[]`)))
			require.NoError(t, kv.Set(ctx, "ns:products", []byte(`[{"id":"NM001"}]`)))

			got, err := kv.Get(ctx, "ns:products")
			require.NoError(t, err)
			assert.Equal(t, `[{"id":"NM001"}]`, string(got))

			require.NoError(t, kv.Set(ctx, "ns:orders", []byte(`[]`)))
			require.NoError(t, kv.Del(ctx, "ns:products", "ns:orders", "ns:missing"))

			_, err = kv.Get(ctx, "ns:orders")
			assert.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, kv.Del(ctx))
		})
	}
}

func TestKVTxnCommitsAllWrites(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, kv.Set(ctx, "a", []byte("1")))
			require.NoError(t, kv.Set(ctx, "gone", []byte("x")))

			err := kv.Txn(ctx, []string{"a", "b", "gone"}, func(tx Txn) error {
				v, err := tx.Get("a")
				if err != nil {
					return err
				}
				if _, err := tx.Get("b"); !errors.Is(err, ErrNotFound) {
					return errors.New("expected b to be missing")
				}
				tx.Set("a", append(v, '2'))
				tx.Set("b", []byte("new"))
				tx.Del("gone")

				own, err := tx.Get("a")
				if err != nil || string(own) != "12" {
					return errors.New("txn should read its own writes")
				}
				return nil
			})
			require.NoError(t, err)

			a, err := kv.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "12", string(a))

			b, err := kv.Get(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, "new", string(b))

			_, err = kv.Get(ctx, "gone")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestKVTxnAbortsOnError(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, kv.Set(ctx, "a", []byte("1")))

			boom := errors.New("boom")
			err := kv.Txn(ctx, []string{"a"}, func(tx Txn) error {
				tx.Set("a", []byte("2"))
				tx.Del("a")
				tx.Set("c", []byte("3"))
				return boom
			})
			assert.ErrorIs(t, err, boom)

			a, err := kv.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "1", string(a))

			_, err = kv.Get(ctx, "c")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRedisTxnConflict(t *testing.T) {
	repo, mr := newMiniRedisRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, "products", []byte("v1")))

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()

	err := repo.Txn(ctx, []string{"products"}, func(tx Txn) error {
		if _, err := tx.Get("products"); err != nil {
			return err
		}
		require.NoError(t, other.Set(ctx, "products", "v-other", 0).Err())
		tx.Set("products", []byte("v2"))
		return nil
	})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := repo.Get(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, "v-other", string(got))
}

func TestSQLVersionIncrements(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "k", []byte("1")))
	require.NoError(t, repo.Set(ctx, "k", []byte("2")))
	require.NoError(t, repo.Txn(ctx, []string{"k"}, func(tx Txn) error {
		tx.Set("k", []byte("3"))
		return nil
	}))

	e, err := findEntry(repo.db, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(3), e.Version)
	assert.Equal(t, "3", string(e.Value))
}

func TestSQLCommitRejectsStaleVersion(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "k", []byte("1")))
	require.NoError(t, repo.Set(ctx, "k", []byte("2")))

	notFound := func(string) ([]byte, error) { return nil, ErrNotFound }
	tests := []struct {
		name     string
		versions map[string]int64
		apply    func(ws *writeSet)
	}{
		{
			name:     "update",
			versions: map[string]int64{"k": 1},
			apply:    func(ws *writeSet) { ws.Set("k", []byte("stale")) },
		},
		{
			name:     "delete",
			versions: map[string]int64{"k": 1},
			apply:    func(ws *writeSet) { ws.Del("k") },
		},
		{
			name:     "insert over existing row",
			versions: map[string]int64{},
			apply:    func(ws *writeSet) { ws.Set("k", []byte("fresh")) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newWriteSet(notFound)
			tt.apply(ws)

			err := repo.db.Transaction(func(tx *gorm.DB) error {
				return commitWrites(tx, []string{"k"}, tt.versions, ws, time.Now())
			})
			assert.ErrorIs(t, err, ErrConflict)

			e, err := findEntry(repo.db, "k")
			require.NoError(t, err)
			assert.Equal(t, int64(2), e.Version)
			assert.Equal(t, "2", string(e.Value))
		})
	}
}

func TestSQLCommitRollsBackEarlierWrites(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "a", []byte("a1")))
	require.NoError(t, repo.Set(ctx, "b", []byte("b1")))
	require.NoError(t, repo.Set(ctx, "b", []byte("b2")))

	ws := newWriteSet(func(string) ([]byte, error) { return nil, ErrNotFound })
	ws.Set("a", []byte("a2"))
	ws.Del("b")

	err := repo.db.Transaction(func(tx *gorm.DB) error {
		return commitWrites(tx, []string{"a", "b"}, map[string]int64{"a": 1, "b": 1}, ws, time.Now())
	})
	require.ErrorIs(t, err, ErrConflict)

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a1", string(got))
	got, err = repo.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b2", string(got))
}

func TestMemoryRepositoryCopiesValues(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, repo.Set(ctx, "k", buf))
	buf[0] = 'z'

	got, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
