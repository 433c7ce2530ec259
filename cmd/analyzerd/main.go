package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/order-analyzer/internal/bootstrap"
	"github.com/joseph-ayodele/order-analyzer/internal/common"
	"github.com/joseph-ayodele/order-analyzer/internal/export"
	"github.com/joseph-ayodele/order-analyzer/internal/server"
	"github.com/joseph-ayodele/order-analyzer/internal/uploads"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	logger := bootstrap.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		_, details := common.Describe(err)
		logger.Error("config.invalid", "error", err, "details", details)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("server.failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown.done")
}

// run serves until ctx is cancelled or a listener fails. Every component
// built here is closed before it returns.
func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer func() {
		sctx, cancel := bootstrap.ShutdownContext()
		defer cancel()
		app.Close(sctx)
	}()

	spool, err := uploads.NewSpool(cfg.Server.UploadDir, cfg.Server.MaxUploadBytes, logger)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithExporter(export.NewService(logger)),
		server.WithHealth(app.Health),
	}
	if app.Runs != nil {
		opts = append(opts, server.WithRunLister(app.Runs))
	}
	api := server.New(server.Config{
		CORSOrigin:     cfg.Server.CORSOrigin,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, app.Pipeline, spool, opts...)

	httpLis, err := net.Listen("tcp", cfg.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", cfg.Server.HTTPAddr, err)
	}
	defer httpLis.Close()

	var grpcLis net.Listener
	if cfg.Server.GRPCAddr != "" {
		if grpcLis, err = net.Listen("tcp", cfg.Server.GRPCAddr); err != nil {
			return fmt.Errorf("grpc listen %s: %w", cfg.Server.GRPCAddr, err)
		}
	}

	httpSrv := &http.Server{
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http.listening", "addr", httpLis.Addr().String(), "provider", app.Client.Provider(), "model", app.Client.Model())
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if grpcLis != nil {
		grpcSrv, health := server.NewGRPCServer(app.Health, logger)
		g.Go(func() error {
			health.Run(gctx)
			return nil
		})
		g.Go(func() error {
			logger.Info("grpc.listening", "addr", grpcLis.Addr().String())
			return grpcSrv.Serve(grpcLis)
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcSrv.GracefulStop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown.begin")
		sctx, cancel := bootstrap.ShutdownContext()
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})

	return g.Wait()
}
