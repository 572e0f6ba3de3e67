package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/doc-structurer/internal/app"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	processor "github.com/joseph-ayodele/doc-structurer/internal/pipeline"
	"github.com/joseph-ayodele/doc-structurer/internal/server"
)

func main() {
	logger := app.NewLogger(os.Stdout, slog.LevelInfo)

	common.LoadDotEnv()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	logger.Info("docstructd.config", "llm", cfg.LLM.String(), "http_addr", cfg.Server.HTTPAddr, "grpc_addr", cfg.Server.GRPCAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := app.NewProcessor(cfg, logger)
	front := server.New(server.Config{
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		SessionTTL:     cfg.Server.SessionTTL,
		Defaults: processor.Options{
			Provider:   cfg.LLM.Provider,
			Template:   cfg.LLM.Template,
			ExportName: cfg.Export.Filename,
		},
	}, p, logger)
	defer front.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           front.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	// gRPC carries only the health service so orchestrators can probe the daemon.
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		logger.Info("docstructd grpc health listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()
	go func() {
		logger.Info("docstructd http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("docstructd shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
}
