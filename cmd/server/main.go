// Server runs the authguard HTTP API and, when GRPC_ADDR is set, the gRPC API.
// Without DATABASE_URL it keeps users, sessions and audit entries in memory.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/health"

	"authguard/internal/config"
	healthhandler "authguard/internal/health/handler"
	"authguard/internal/logging"
	"authguard/internal/server"
)

// ShutdownTimeout bounds graceful shutdown of both listeners.
const ShutdownTimeout = 15 * time.Second

// HealthInterval is how often the gRPC health status is refreshed.
const HealthInterval = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Timestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wire(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup")
	}
	defer app.close()

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(app.httpDeps(cfg)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	hs := health.NewServer()
	checker := healthhandler.NewChecker(app.pinger, app.policyChecker)
	go checker.Watch(ctx, hs, HealthInterval)

	var grpcStop func()
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("grpc listen")
		}
		grpcSrv := server.NewGRPCServer(app.grpcDeps(hs))
		grpcStop = grpcSrv.GracefulStop
		go func() {
			log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc server listening")
			if err := grpcSrv.Serve(lis); err != nil {
				errc <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errc:
		log.Error().Err(err).Msg("server failed, shutting down")
	}

	hs.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if grpcStop != nil {
		grpcStop()
	}
	log.Info().Msg("stopped")
}
