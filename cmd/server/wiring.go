package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	attachmentservice "disposisi/internal/attachment/service"
	attachmentstore "disposisi/internal/attachment/store"
	"disposisi/internal/auth/directory"
	"disposisi/internal/auth/lockout"
	"disposisi/internal/auth/secrets"
	"disposisi/internal/platform/config"
	"disposisi/internal/platform/postgres"
	redisclient "disposisi/internal/platform/redis"
	httptransport "disposisi/internal/transport/http"
	workflowservice "disposisi/internal/workflow/service"
	workflowstore "disposisi/internal/workflow/store"
	auditpublisher "disposisi/pkg/platform/audit/publisher"
	kafkasink "disposisi/pkg/platform/audit/publishers/kafka"
	auditmemory "disposisi/pkg/platform/audit/store/memory"
)

const (
	auditBufferSize       = 1024
	auditTopicPartitions  = 3
	auditTopicReplication = 1
)

// resources collects health checks and closers for everything main opens.
// close runs closers in reverse order.
type resources struct {
	log     *slog.Logger
	health  map[string]httptransport.HealthCheck
	closers []func()
}

func (r *resources) onClose(fn func()) {
	r.closers = append(r.closers, fn)
}

func (r *resources) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// buildDirectory loads the actor directory and, in development, gives every
// user without a credential the same password.
func buildDirectory(cfg config.Server, log *slog.Logger) (*directory.Directory, error) {
	dir := directory.Builtin()
	if cfg.DirectoryFile != "" {
		loaded, err := directory.LoadFile(cfg.DirectoryFile)
		if err != nil {
			return nil, fmt.Errorf("load directory: %w", err)
		}
		dir = loaded
	}
	if cfg.DevSeedPassword == "" {
		return dir, nil
	}

	hash := sync.OnceValues(func() (string, error) {
		return secrets.Hash(cfg.DevSeedPassword)
	})
	n, err := dir.ProvisionMissing(hash)
	if err != nil {
		return nil, fmt.Errorf("provision dev credentials: %w", err)
	}
	log.Warn("DEV_SEED_PASSWORD set: users without credentials share one development password",
		"provisioned_users", n,
	)
	return dir, nil
}

// buildAuditPublisher sends audit events to Kafka when brokers are configured
// and keeps them in memory otherwise.
func (r *resources) buildAuditPublisher(ctx context.Context, cfg config.Server) (*auditpublisher.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		pub := auditpublisher.NewPublisher(auditmemory.NewInMemoryStore(), auditpublisher.WithLogger(r.log))
		return pub, nil
	}

	sink, err := kafkasink.New(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, err
	}
	if err := sink.EnsureTopic(ctx, auditTopicPartitions, auditTopicReplication); err != nil {
		_ = sink.Close(ctx)
		return nil, err
	}
	pub := auditpublisher.NewPublisher(sink,
		auditpublisher.WithAsyncBuffer(auditBufferSize),
		auditpublisher.WithLogger(r.log),
	)
	r.onClose(func() {
		if err := sink.Close(context.Background()); err != nil {
			r.log.Error("close kafka audit sink", "error", err)
		}
	})
	r.onClose(pub.Close)
	r.log.Info("audit events published to kafka", "topic", cfg.KafkaTopic)
	return pub, nil
}

// buildRecordStore opens Postgres when DATABASE_URL is set. A nil tx keeps
// the service's in-process sharded lock.
func (r *resources) buildRecordStore(ctx context.Context, cfg config.Server) (workflowservice.Store, workflowservice.RecordStoreTx, error) {
	if cfg.DatabaseURL == "" {
		r.log.Info("records kept in memory")
		return workflowstore.NewInMemory(), nil, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	r.onClose(func() { _ = db.Close() })
	if err := workflowstore.Migrate(ctx, db); err != nil {
		return nil, nil, err
	}
	r.health["postgres"] = func(ctx context.Context) error { return db.PingContext(ctx) }
	r.log.Info("records kept in postgres")
	return workflowstore.NewPostgres(db), newRecordPostgresTx(db), nil
}

// openRedis connects when REDIS_URL is set and returns nil otherwise.
func (r *resources) openRedis(ctx context.Context, cfg config.Server) (*redisclient.Client, error) {
	client, err := redisclient.New(ctx, cfg.Redis)
	if err != nil || client == nil {
		return nil, err
	}
	r.onClose(func() { _ = client.Close() })
	r.health["redis"] = client.Health
	return client, nil
}

func (r *resources) buildAttachmentStore(client *redisclient.Client) attachmentservice.Store {
	if client == nil {
		return attachmentstore.NewInMemory()
	}
	r.log.Info("attachments kept in redis")
	return attachmentstore.NewRedis(client.Client)
}

// buildLockout shares login failure counters through Redis when available.
func (r *resources) buildLockout(cfg config.Server, client *redisclient.Client, publisher lockout.AuditPublisher) (*lockout.Service, error) {
	var store lockout.Store = lockout.NewInMemoryStore()
	if client != nil {
		store = lockout.NewRedisStore(client.Client)
	}
	return lockout.New(store,
		lockout.WithConfig(lockout.Config{
			AttemptsPerWindow: cfg.LoginAttempts,
			Window:            cfg.LoginWindow,
			LockDuration:      cfg.LoginLockDuration,
		}),
		lockout.WithLogger(r.log),
		lockout.WithAuditPublisher(publisher),
	)
}
