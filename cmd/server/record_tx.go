package main

import (
	"context"
	"database/sql"
	"time"

	workflowservice "disposisi/internal/workflow/service"
	workflowstore "disposisi/internal/workflow/store"
	dErrors "disposisi/pkg/domain-errors"
)

const defaultRecordTxTimeout = 5 * time.Second

// recordPostgresTx runs record mutations in a SQL transaction. Row locks
// from FindByID plus the version check in Update keep writers serialized.
type recordPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newRecordPostgresTx(db *sql.DB) *recordPostgresTx {
	return &recordPostgresTx{db: db}
}

func (t *recordPostgresTx) RunInTx(ctx context.Context, fn func(store workflowservice.Store) error) error {
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

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(workflowstore.NewPostgresTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
