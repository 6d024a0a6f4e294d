package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/example/neomart/pkg/config"
	"github.com/example/neomart/pkg/discovery"
	"github.com/example/neomart/pkg/models"
	"github.com/example/neomart/pkg/sales"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Discoverer looks up registered instances of a service.
type Discoverer interface {
	Discover(ctx context.Context, serviceName string) ([]*discovery.ServiceInstance, error)
}

// CatalogClient calls the catalog service over a single connection.
type CatalogClient struct {
	conn   *grpc.ClientConn
	logger *zap.Logger
}

// resolveTarget prefers a discovered instance and falls back to the
// configured server address.
func resolveTarget(cfg *config.ServerConfig, disc Discoverer, logger *zap.Logger) string {
	target := cfg.Addr()
	if disc == nil {
		return target
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	instances, err := disc.Discover(ctx, cfg.Name)
	if err == nil && len(instances) > 0 {
		target = instances[0].Addr()
		logger.Info("Discovered catalog service", zap.String("address", target))
	} else {
		logger.Info("Using default address for catalog service",
			zap.String("address", target),
			zap.Error(err))
	}
	return target
}

func NewCatalogClient(cfg *config.ServerConfig, disc Discoverer, logger *zap.Logger) (*CatalogClient, error) {
	target := resolveTarget(cfg, disc, logger)

	logger.Info("Connecting to catalog service", zap.String("target", target))
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog service: %w", err)
	}
	return NewCatalogClientFromConn(conn, logger), nil
}

func NewCatalogClientFromConn(conn *grpc.ClientConn, logger *zap.Logger) *CatalogClient {
	return &CatalogClient{conn: conn, logger: logger}
}

func (c *CatalogClient) invoke(ctx context.Context, method string, req map[string]interface{}) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogClient) products(ctx context.Context, method string, req map[string]interface{}) ([]models.Product, error) {
	out, err := c.invoke(ctx, method, req)
	if err != nil {
		return nil, err
	}
	var list productList
	if err := fromStruct(out, &list); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	return list.Products, nil
}

func (c *CatalogClient) ListProducts(ctx context.Context, search string) ([]models.Product, error) {
	return c.products(ctx, "ListProducts", map[string]interface{}{"search": search})
}

func (c *CatalogClient) LowStock(ctx context.Context) ([]models.Product, error) {
	return c.products(ctx, "LowStock", nil)
}

func (c *CatalogClient) SalesSummary(ctx context.Context) (sales.Summary, error) {
	var summary sales.Summary
	out, err := c.invoke(ctx, "SalesSummary", nil)
	if err != nil {
		return summary, err
	}
	if err := fromStruct(out, &summary); err != nil {
		return summary, fmt.Errorf("decode SalesSummary response: %w", err)
	}
	return summary, nil
}

func (c *CatalogClient) Close() error {
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("catalog connection close error: %w", err)
	}
	return nil
}
