// auditd serves the audit gRPC API.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/theduckverse/refundhunter-backend/internal/app"
	"github.com/theduckverse/refundhunter-backend/internal/common"
	"github.com/theduckverse/refundhunter-backend/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("failed to load .env", "error", err)
		os.Exit(2)
	}
	cfg := common.LoadConfig()
	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{Persist: true, MaxRows: cfg.Server.MaxRows}, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}

	srv := server.NewAuditServer(a.Auditor, a.Runs, a.Exporter, logger)
	grpcServer, healthServer := server.NewGRPCServer(srv, logger)
	reflection.Register(grpcServer)

	go watchDatabase(ctx, a, healthServer.SetServingStatus, logger)

	logger.Info("auditd listening", "addr", addr,
		"max_rows", a.Auditor.Policy().MaxRows,
		"classifier", cfg.Audit.UseClassifier,
		"rules_version", a.Rules.Version,
	)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	logger.Info("stopped")
}

// watchDatabase flips the health status while the run store is unreachable.
func watchDatabase(ctx context.Context, a *app.App, set func(string, healthpb.HealthCheckResponse_ServingStatus), logger *slog.Logger) {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		ok := a.HealthCheck(ctx) == nil
		if ok == serving {
			continue
		}
		serving = ok
		st := healthpb.HealthCheckResponse_SERVING
		if !ok {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		logger.Warn("health status changed", "status", st.String())
		set("", st)
		set(server.AuditServiceName, st)
	}
}
