package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/neomart/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type memorySink struct {
	mu      sync.Mutex
	entries []*repository.AuditLog
	err     error
}

func (s *memorySink) Record(_ context.Context, log *repository.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, log)
	return nil
}

func (s *memorySink) snapshot() []*repository.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*repository.AuditLog(nil), s.entries...)
}

func TestActorRecorderWritesInOrder(t *testing.T) {
	sink := &memorySink{}
	rec, err := NewActorRecorder(actor.NewActorSystem(), sink, "storefront", zap.NewNop())
	require.NoError(t, err)

	rec.Record(ActionProductCreated, "NM001", "owner", map[string]interface{}{"name": "Widget"})
	rec.Record(ActionProductUpdated, "NM001", "owner", nil)
	rec.Record(ActionOrderPlaced, "NM12345678", "Asha", map[string]interface{}{"total": "31.5"})

	require.NoError(t, rec.Flush(time.Second))

	entries := sink.snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, ActionProductCreated, entries[0].Action)
	assert.Equal(t, "Widget", entries[0].Data["name"])
	assert.Equal(t, "storefront", entries[0].Service)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, ActionOrderPlaced, entries[2].Action)
	assert.Equal(t, "Asha", entries[2].Actor)

	require.NoError(t, rec.Close())
}

func TestActorRecorderLogsSinkFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sink := &memorySink{err: errors.New("mongo down")}
	rec, err := NewActorRecorder(actor.NewActorSystem(), sink, "storefront", zap.New(core))
	require.NoError(t, err)

	rec.Record(ActionDataReset, "", "owner", nil)
	require.NoError(t, rec.Flush(time.Second))

	entries := logs.FilterMessage("Failed to write audit log").All()
	require.Len(t, entries, 1)
	assert.Equal(t, ActionDataReset, entries[0].ContextMap()["action"])
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.Record(ActionAdminLogin, "owner", "owner", nil)
}
