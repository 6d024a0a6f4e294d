package main

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/neomart/gateway"
	"github.com/example/neomart/pkg/audit"
	"github.com/example/neomart/pkg/config"
	"github.com/example/neomart/pkg/repository"
	"github.com/example/neomart/pkg/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func openStore(cfg *config.Config, logger *zap.Logger) (repository.KV, error) {
	switch cfg.Store.Backend {
	case "redis":
		logger.Info("Using redis store", zap.String("addr", cfg.Redis.Addr))
		return repository.NewRedisRepository(&cfg.Redis), nil
	case "mysql":
		logger.Info("Using mysql store",
			zap.String("host", cfg.MySQL.Host),
			zap.String("database", cfg.MySQL.Database))
		return repository.NewMySQLRepository(&cfg.MySQL)
	case "memory":
		logger.Info("Using in-memory store")
		return repository.NewMemoryRepository(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// openAudit returns the recorder services write to, the history reader for
// the admin audit view (nil when mongo is off) and a shutdown func.
func openAudit(cfg *config.Config, system *actor.ActorSystem, logger *zap.Logger) (audit.Recorder, gateway.AuditHistory, func()) {
	if !cfg.MongoDB.Enabled {
		logger.Info("Audit trail disabled")
		return audit.Nop{}, nil, func() {}
	}

	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		logger.Warn("MongoDB connection failed, audit trail disabled", zap.Error(err))
		return audit.Nop{}, nil, func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mongoRepo.Ping(ctx); err != nil {
		logger.Warn("MongoDB ping failed, audit trail disabled", zap.Error(err))
		_ = mongoRepo.Close(ctx)
		return audit.Nop{}, nil, func() {}
	}

	rec, err := audit.NewActorRecorder(system, mongoRepo, cfg.Server.Name, logger)
	if err != nil {
		logger.Warn("Failed to start audit writer", zap.Error(err))
		_ = mongoRepo.Close(ctx)
		return audit.Nop{}, nil, func() {}
	}
	logger.Info("MongoDB connected successfully", zap.String("collection", cfg.MongoDB.Collection))

	return rec, mongoRepo, func() {
		if err := rec.Close(); err != nil {
			logger.Error("Failed to stop audit writer", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoRepo.Close(ctx); err != nil {
			logger.Error("Failed to disconnect MongoDB", zap.Error(err))
		}
	}
}

func adminCredentials(cfg config.AdminConfig) (session.Credentials, error) {
	creds := session.Credentials{LoginID: cfg.LoginID}
	switch {
	case cfg.PasswordHash != "":
		creds.PasswordHash = []byte(cfg.PasswordHash)
	case cfg.Password != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return creds, fmt.Errorf("hash admin password: %w", err)
		}
		creds.PasswordHash = hash
	}
	return creds, nil
}
