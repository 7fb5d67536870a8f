package service

import (
	"context"
	"sync"
	"time"

	dErrors "disposisi/pkg/domain-errors"
)

// RecordStoreTx provides a transactional boundary for record mutations.
// Implementations may wrap a database transaction or, in-memory, a sharded lock.
type RecordStoreTx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

// numRecordShards spreads per-record locks so unrelated records do not contend.
const numRecordShards = 128

// defaultRecordTxTimeout is the maximum duration for a record transaction.
const defaultRecordTxTimeout = 5 * time.Second

type shardedRecordTx struct {
	shards  [numRecordShards]sync.Mutex
	store   Store
	timeout time.Duration
}

// NewShardedTx serializes mutations of the same record on store.
func NewShardedTx(store Store, timeout time.Duration) RecordStoreTx {
	return &shardedRecordTx{store: store, timeout: timeout}
}

func (t *shardedRecordTx) RunInTx(ctx context.Context, fn func(store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultRecordTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(t.store)
}

// selectShard picks a shard from the tx key in context, or defaults to shard 0.
func (t *shardedRecordTx) selectShard(ctx context.Context) int {
	if key, ok := TxKey(ctx); ok {
		return int(hashRecordKey(key) % numRecordShards)
	}
	return 0
}

// hashRecordKey is FNV-1a.
func hashRecordKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

type txKey struct{}

var txKeyCtx = txKey{}

// WithTxKey names the record a transaction locks.
func WithTxKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, txKeyCtx, key)
}

// TxKey returns the key set by WithTxKey.
func TxKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(txKeyCtx).(string)
	return key, ok && key != ""
}
