package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/theduckverse/refundhunter-backend/internal/common"
)

// RequestIDHeader carries the caller's request id, echoed in logs.
const RequestIDHeader = "x-request-id"

// NewGRPCServer builds a server with the audit service and gRPC health registered.
func NewGRPCServer(srv AuditServiceServer, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryLogging(logger))}, opts...)
	gs := grpc.NewServer(opts...)
	RegisterAuditServiceServer(gs, srv)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(AuditServiceName, healthpb.HealthCheckResponse_SERVING)
	return gs, hs
}

// UnaryLogging assigns a request id, logs each call and maps application errors
// onto status codes.
func UnaryLogging(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		reqID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(RequestIDHeader); len(v) > 0 {
				reqID = v[0]
			}
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, reqID)

		resp, err := handler(ctx, req)
		if err != nil {
			err = common.ToStatus(err)
			logger.Warn("rpc.failed",
				"method", info.FullMethod,
				"req_id", reqID,
				"code", status.Code(err).String(),
				"err", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return nil, err
		}
		logger.Info("rpc.ok", "method", info.FullMethod, "req_id", reqID, "elapsed_ms", time.Since(start).Milliseconds())
		return resp, nil
	}
}
