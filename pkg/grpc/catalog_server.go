package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/example/neomart/pkg/apperr"
	"github.com/example/neomart/pkg/models"
	"github.com/example/neomart/pkg/sales"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "neomart.catalog.v1.Catalog"

// CatalogService is the read-only catalog API. Requests and responses are
// free-form structs so no generated code is needed on either side.
type CatalogService interface {
	ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	LowStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SalesSummary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(CatalogService, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogService), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CatalogService), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var CatalogServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListProducts", Handler: unaryHandler("ListProducts", CatalogService.ListProducts)},
		{MethodName: "LowStock", Handler: unaryHandler("LowStock", CatalogService.LowStock)},
		{MethodName: "SalesSummary", Handler: unaryHandler("SalesSummary", CatalogService.SalesSummary)},
	},
	Streams: []grpc.StreamDesc{},
}

type ProductSource interface {
	Search(ctx context.Context, term string) ([]models.Product, error)
	LowStock(ctx context.Context) ([]models.Product, error)
}

type SalesSource interface {
	Summary(ctx context.Context) (sales.Summary, error)
}

type CatalogServer struct {
	products ProductSource
	sales    SalesSource
	logger   *zap.Logger
}

func NewCatalogServer(products ProductSource, sales SalesSource, logger *zap.Logger) *CatalogServer {
	return &CatalogServer{products: products, sales: sales, logger: logger}
}

// NewServer builds a gRPC server exposing the catalog service together with
// the standard health and reflection services.
func NewServer(catalog *CatalogServer, logger *zap.Logger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	srv.RegisterService(&CatalogServiceDesc, catalog)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv, hs
}

// Serve listens on addr and blocks until srv stops.
func Serve(srv *grpc.Server, addr string, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	logger.Info("Catalog service started", zap.String("address", addr))
	return srv.Serve(lis)
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("gRPC request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)))
		return resp, err
	}
}

func (s *CatalogServer) ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var search string
	if v, ok := req.GetFields()["search"]; ok {
		search = v.GetStringValue()
	}
	products, err := s.products.Search(ctx, search)
	if err != nil {
		return nil, s.toStatus("list products", err)
	}
	return toStruct(productList{Products: nonNilProducts(products)})
}

func (s *CatalogServer) LowStock(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	products, err := s.products.LowStock(ctx)
	if err != nil {
		return nil, s.toStatus("low stock", err)
	}
	return toStruct(productList{Products: nonNilProducts(products)})
}

func (s *CatalogServer) SalesSummary(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	summary, err := s.sales.Summary(ctx)
	if err != nil {
		return nil, s.toStatus("sales summary", err)
	}
	return toStruct(summary)
}

func (s *CatalogServer) toStatus(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, apperr.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case apperr.IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.Error("Catalog request failed", zap.String("op", op), zap.Error(err))
	return status.Errorf(codes.Internal, "%s failed", op)
}

type productList struct {
	Products []models.Product `json:"products"`
}

func nonNilProducts(p []models.Product) []models.Product {
	if p == nil {
		return []models.Product{}
	}
	return p
}

// toStruct goes through JSON so decimals and times keep their string form.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func fromStruct(s *structpb.Struct, dest interface{}) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
