package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/neomart/gateway"
	"github.com/example/neomart/pkg/catalog"
	"github.com/example/neomart/pkg/checkout"
	"github.com/example/neomart/pkg/config"
	"github.com/example/neomart/pkg/discovery"
	catalogrpc "github.com/example/neomart/pkg/grpc"
	"github.com/example/neomart/pkg/logging"
	"github.com/example/neomart/pkg/remote"
	"github.com/example/neomart/pkg/sales"
	"github.com/example/neomart/pkg/session"
	"github.com/example/neomart/pkg/shop"
	"github.com/example/neomart/pkg/state"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting storefront",
		zap.String("name", cfg.Server.Name),
		zap.String("store", cfg.Store.Backend),
		zap.String("namespace", cfg.Store.Namespace))

	kv, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer kv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := kv.Ping(pingCtx); err != nil {
		logger.Warn("Store connection failed", zap.Error(err))
	} else {
		logger.Info("Store connected successfully")
	}
	pingCancel()

	st := state.New(kv, cfg.Store.Namespace)

	system := actor.NewActorSystem()
	rec, history, closeAudit := openAudit(cfg, system, logger.Named("audit"))
	defer closeAudit()

	creds, err := adminCredentials(cfg.Admin)
	if err != nil {
		logger.Fatal("Invalid admin credentials", zap.Error(err))
	}

	sess := session.NewService(st, creds, rec, logger.Named("session"))
	catalogSvc := catalog.NewService(st, rec, logger.Named("catalog"))
	salesSvc := sales.NewService(st, rec, logger.Named("sales"))

	services := gateway.Services{
		Catalog:  catalogSvc,
		Shop:     shop.NewService(st, sess, logger.Named("shop")),
		Checkout: checkout.NewService(st, cfg.Checkout, rec, logger.Named("checkout")),
		Sales:    salesSvc,
		Session:  sess,
		Featured: catalogSvc,
		History:  history,
	}
	if rc := remote.NewClient(cfg.Remote); rc.Enabled() {
		logger.Info("Featured products from remote table", zap.String("table", cfg.Remote.Table))
		services.Featured = rc
	}

	gw := gateway.NewGateway(&cfg.Gateway, services, logger.Named("gateway"))

	grpcLogger := logger.Named("grpc")
	grpcSrv, health := catalogrpc.NewServer(catalogrpc.NewCatalogServer(catalogSvc, salesSvc, grpcLogger), grpcLogger)

	serverErr := make(chan error, 2)
	go func() {
		if err := gw.Start(); err != nil {
			serverErr <- fmt.Errorf("gateway: %w", err)
		}
	}()
	go func() {
		if err := catalogrpc.Serve(grpcSrv, cfg.Server.Addr(), grpcLogger); err != nil {
			serverErr <- fmt.Errorf("grpc: %w", err)
		}
	}()

	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	var sd *discovery.ServiceDiscovery
	if cfg.Etcd.Enabled {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger.Named("discovery"))
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else if err := sd.Register(ctx, instance); err != nil {
			logger.Warn("Failed to register service", zap.Error(err))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		logger.Error("Server error", zap.Error(err))
	}

	health.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if sd != nil {
		if err := sd.Deregister(shutdownCtx, instance); err != nil {
			logger.Error("Failed to deregister service", zap.Error(err))
		}
		sd.Close()
	}
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("Gateway shutdown failed", zap.Error(err))
	}
	grpcSrv.GracefulStop()

	logger.Info("Storefront stopped")
}
