package v2

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Totarae/LinkLauncher/internal/apperr"
	"github.com/Totarae/LinkLauncher/internal/auth"
	"github.com/Totarae/LinkLauncher/internal/handlers"
	"github.com/Totarae/LinkLauncher/internal/model"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type GRPCServer struct {
	Links  handlers.LinkService
	Logger *zap.Logger
}

func NewGRPCServer(links handlers.LinkService, logger *zap.Logger) *GRPCServer {
	return &GRPCServer{Links: links, Logger: logger}
}

// NewServer собирает grpc.Server: сервис ссылок, health и трассировку otelgrpc.
func NewServer(links handlers.LinkService, authn *auth.Auth, logger *zap.Logger) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(logger),
			AuthInterceptor(authn),
		),
	)
	RegisterLinkServiceServer(s, NewGRPCServer(links, logger))

	healthSrv := health.NewServer()
	healthgrpc.RegisterHealthServer(s, healthSrv)
	healthSrv.SetServingStatus(serviceName, healthgrpc.HealthCheckResponse_SERVING)
	return s, healthSrv
}

func (s *GRPCServer) CreateLink(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := auth.RequireUserID(ctx)
	if err != nil {
		return nil, apperr.GRPCStatus(err)
	}
	var req model.CreateLinkRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	link, err := s.Links.Create(ctx, userID, req)
	if err != nil {
		return nil, apperr.GRPCStatus(err)
	}
	return encodeStruct(link)
}

func (s *GRPCServer) GetUserLinks(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := auth.RequireUserID(ctx)
	if err != nil {
		return nil, apperr.GRPCStatus(err)
	}
	links, err := s.Links.List(ctx, userID)
	if err != nil {
		return nil, apperr.GRPCStatus(err)
	}
	return encodeStruct(linksResponse{Links: links})
}

type updateRequest struct {
	ID int64 `json:"id"`
	model.LinkPatch
}

func (s *GRPCServer) UpdateLink(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := auth.RequireUserID(ctx)
	if err != nil {
		return nil, apperr.GRPCStatus(err)
	}
	var req updateRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	if req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	link, err := s.Links.Update(ctx, req.ID, userID, req.LinkPatch)
	if err != nil {
		return nil, apperr.GRPCStatus(err)
	}
	return encodeStruct(link)
}

type deleteRequest struct {
	ID int64 `json:"id"`
}

func (s *GRPCServer) DeleteLink(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := auth.RequireUserID(ctx)
	if err != nil {
		return nil, apperr.GRPCStatus(err)
	}
	var req deleteRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	if req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	resp, err := s.Links.Delete(ctx, req.ID, userID)
	if err != nil {
		return nil, apperr.GRPCStatus(err)
	}
	return encodeStruct(resp)
}

type linksResponse struct {
	Links []model.LinkResponse `json:"links"`
}

func (s *GRPCServer) ReorderLinks(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := auth.RequireUserID(ctx)
	if err != nil {
		return nil, apperr.GRPCStatus(err)
	}
	var req model.ReorderRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	links, err := s.Links.Reorder(ctx, userID, req.LinkOrders)
	if err != nil {
		return nil, apperr.GRPCStatus(err)
	}
	return encodeStruct(linksResponse{Links: links})
}

// AuthInterceptor проверяет токен из метаданных authorization для
// методов сервиса ссылок. Health и reflection проходят без токена.
func AuthInterceptor(authn *auth.Auth) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+serviceName+"/") {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, apperr.GRPCStatus(apperr.ErrUnauthenticated)
		}
		token := strings.TrimSpace(strings.TrimPrefix(values[0], "Bearer "))
		userID, err := authn.Parse(token)
		if err != nil {
			return nil, apperr.GRPCStatus(err)
		}
		return handler(auth.WithUserID(ctx, userID), req)
	}
}

// LoggingInterceptor пишет метод, код ответа и длительность вызова.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
		}
		if code == codes.Internal || code == codes.Unknown {
			logger.Warn("gRPC Request", append(fields, zap.Error(err))...)
		} else {
			logger.Info("gRPC Request", fields...)
		}
		return resp, err
	}
}

func decodeStruct(in *structpb.Struct, v any) error {
	b, err := protojson.Marshal(in)
	if err != nil {
		return status.Error(codes.InvalidArgument, "invalid request")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return status.Error(codes.InvalidArgument, "invalid request")
	}
	return nil
}

func encodeStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}
