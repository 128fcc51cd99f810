// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"media-job-service/internal/bootstrap"
	"media-job-service/internal/config"
	"media-job-service/internal/logging"
	"media-job-service/internal/service"
	"media-job-service/internal/storage"
	httptransport "media-job-service/internal/transport/http"
)

// @title Media Job Service API
// @version 1.0
// @description Upload job lifecycle: create a job, upload through a presigned URL, poll its status.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ValidateSigning(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsDev(), cfg.ProjectID)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("api stopped")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	authority, err := storage.NewAuthority(cfg.Storage)
	if err != nil {
		return err
	}

	pub, err := bootstrap.NewPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Warn("publisher close failed", zap.Error(err))
		}
	}()

	jobSvc := bootstrap.NewJobService(cfg, store, authority, pub, logger)
	query := service.NewStatusQuery(store, cfg.Jobs.OpTimeout)
	h := httptransport.NewHandler(jobSvc, query, logger)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httptransport.Routes(h),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("store", string(cfg.Store.Backend)),
			zap.String("bucket", authority.Bucket()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info("api shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
