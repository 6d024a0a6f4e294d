package repository

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("key not found")
	// ErrConflict is returned by Txn when a watched key changed between the
	// transaction's reads and its commit. Nothing was written.
	ErrConflict = errors.New("transaction conflict")
)

// KV is the key-value store behind application state.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
	// Txn runs fn against a consistent view of keys. Writes made through the
	// Txn are buffered and applied together after fn returns nil, and only
	// if none of keys was modified by someone else in the meantime.
	Txn(ctx context.Context, keys []string, fn func(Txn) error) error
	Ping(ctx context.Context) error
	Close() error
}

type Txn interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte)
	Del(key string)
}

// writeSet buffers transactional writes on top of a read function.
type writeSet struct {
	read    func(key string) ([]byte, error)
	writes  map[string][]byte
	deletes map[string]struct{}
}

func newWriteSet(read func(key string) ([]byte, error)) *writeSet {
	return &writeSet{
		read:    read,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (w *writeSet) Get(key string) ([]byte, error) {
	if v, ok := w.writes[key]; ok {
		return clone(v), nil
	}
	if _, ok := w.deletes[key]; ok {
		return nil, ErrNotFound
	}
	return w.read(key)
}

func (w *writeSet) Set(key string, value []byte) {
	delete(w.deletes, key)
	w.writes[key] = clone(value)
}

func (w *writeSet) Del(key string) {
	delete(w.writes, key)
	w.deletes[key] = struct{}{}
}

func (w *writeSet) empty() bool {
	return len(w.writes) == 0 && len(w.deletes) == 0
}

func (w *writeSet) deletedKeys() []string {
	keys := make([]string, 0, len(w.deletes))
	for k := range w.deletes {
		keys = append(keys, k)
	}
	return keys
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
