package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	attachmenthandler "disposisi/internal/attachment/handler"
	attachmentservice "disposisi/internal/attachment/service"
	authhandler "disposisi/internal/auth/handler"
	authmetrics "disposisi/internal/auth/metrics"
	authservice "disposisi/internal/auth/service"
	"disposisi/internal/auth/token"
	"disposisi/internal/platform/config"
	"disposisi/internal/platform/httpserver"
	"disposisi/internal/platform/logger"
	"disposisi/internal/platform/metrics"
	httptransport "disposisi/internal/transport/http"
	workflowhandler "disposisi/internal/workflow/handler"
	workflowmetrics "disposisi/internal/workflow/metrics"
	workflowservice "disposisi/internal/workflow/service"
	"disposisi/pkg/platform/middleware/metadata"
)

const (
	shutdownTimeout = 10 * time.Second
	tokenIssuer     = "disposisi"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	res := &resources{log: log, health: map[string]httptransport.HealthCheck{}}
	defer res.close()

	dir, err := buildDirectory(cfg, log)
	if err != nil {
		return err
	}
	auditPublisher, err := res.buildAuditPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	recordStore, recordTx, err := res.buildRecordStore(ctx, cfg)
	if err != nil {
		return err
	}
	redisClient, err := res.openRedis(ctx, cfg)
	if err != nil {
		return err
	}
	blobStore := res.buildAttachmentStore(redisClient)
	locks, err := res.buildLockout(cfg, redisClient, auditPublisher)
	if err != nil {
		return err
	}

	tokens := token.NewJWTService(cfg.JWTSigningKey, tokenIssuer)
	auth := authservice.New(dir, tokens, cfg.TokenTTL,
		authservice.WithLogger(log),
		authservice.WithAuditPublisher(auditPublisher),
		authservice.WithMetrics(authmetrics.New(reg)),
		authservice.WithLockout(locks),
	)

	workflowOpts := []workflowservice.Option{
		workflowservice.WithLogger(log),
		workflowservice.WithAuditPublisher(auditPublisher),
		workflowservice.WithMetrics(workflowmetrics.New(reg)),
	}
	if recordTx != nil {
		workflowOpts = append(workflowOpts, workflowservice.WithTx(recordTx))
	}
	workflow := workflowservice.New(recordStore, dir, workflowOpts...)
	if cfg.SeedSample {
		if _, err := workflow.SeedSample(ctx); err != nil {
			return fmt.Errorf("seed sample record: %w", err)
		}
	}

	attachments := attachmentservice.New(blobStore, cfg.AttachmentMaxBytes,
		attachmentservice.WithLogger(log),
		attachmentservice.WithAuditPublisher(auditPublisher),
	)

	proxies, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Tokens:         tokens,
		Observer:       metrics.New(reg),
		Gatherer:       reg,
		Health:         res.health,
		TrustedProxies: proxies,
		Auth:           authhandler.New(auth, log),
		Workflow:       workflowhandler.New(workflow, log, cfg.PublicRedact),
		Attachments:    attachmenthandler.New(attachments, cfg.AttachmentMaxBytes, log),
	})
	srv := httpserver.New(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting disposisi", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}
