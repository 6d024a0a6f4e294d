// Package audit records storefront and admin actions. Entries are handed
// to an actor that writes them to the sink one at a time, so callers never
// wait on the audit store.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/neomart/pkg/repository"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const (
	ActionProductCreated = "product_created"
	ActionProductUpdated = "product_updated"
	ActionProductRemoved = "product_removed"
	ActionOrderPlaced    = "order_placed"
	ActionDataReset      = "data_reset"
	ActionAdminLogin     = "admin_login"
	ActionAdminLogout    = "admin_logout"
)

const writeTimeout = 5 * time.Second

// Recorder is what services depend on.
type Recorder interface {
	Record(action, entityID, actor string, data map[string]interface{})
}

type Sink interface {
	Record(ctx context.Context, log *repository.AuditLog) error
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(string, string, string, map[string]interface{}) {}

type ActorRecorder struct {
	system  *actor.ActorSystem
	pid     *actor.PID
	service string
}

func NewActorRecorder(system *actor.ActorSystem, sink Sink, service string, logger *zap.Logger) (*ActorRecorder, error) {
	props := actor.PropsFromProducer(func() actor.Actor {
		return &writer{sink: sink, logger: logger}
	})
	pid, err := system.Root.SpawnNamed(props, "audit-writer")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn audit actor: %w", err)
	}
	return &ActorRecorder{system: system, pid: pid, service: service}, nil
}

func (r *ActorRecorder) Record(action, entityID, actorName string, data map[string]interface{}) {
	r.system.Root.Send(r.pid, &repository.AuditLog{
		ID:        uuid.NewString(),
		Service:   r.service,
		Action:    action,
		EntityID:  entityID,
		Actor:     actorName,
		Data:      bson.M(data),
		CreatedAt: time.Now(),
	})
}

// Flush waits until every entry sent before the call has been written.
func (r *ActorRecorder) Flush(timeout time.Duration) error {
	_, err := r.system.Root.RequestFuture(r.pid, &flush{}, timeout).Result()
	return err
}

// Close writes pending entries and stops the actor.
func (r *ActorRecorder) Close() error {
	return r.system.Root.PoisonFuture(r.pid).Wait()
}

type flush struct{}

type flushed struct{}

type writer struct {
	sink   Sink
	logger *zap.Logger
}

func (w *writer) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		w.logger.Info("Audit writer started")

	case *repository.AuditLog:
		wctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := w.sink.Record(wctx, msg); err != nil {
			w.logger.Error("Failed to write audit log",
				zap.String("action", msg.Action),
				zap.String("entity_id", msg.EntityID),
				zap.Error(err))
		}

	case *flush:
		ctx.Respond(&flushed{})

	case *actor.Stopped:
		w.logger.Info("Audit writer stopped")
	}
}
