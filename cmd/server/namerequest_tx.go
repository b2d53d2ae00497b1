package main

import (
	"context"
	"database/sql"
	"time"

	nrservice "namex/internal/namerequest/service"
	nrpostgres "namex/internal/namerequest/store/postgres"
	dErrors "namex/pkg/domain-errors"
)

const defaultNameRequestTxTimeout = 5 * time.Second

// nameRequestPostgresTx commits every aggregate write of one operation
// together.
type nameRequestPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newNameRequestPostgresTx(db *sql.DB) *nameRequestPostgresTx {
	return &nameRequestPostgresTx{db: db}
}

func (t *nameRequestPostgresTx) RunInTx(ctx context.Context, fn func(store nrservice.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultNameRequestTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(nrpostgres.NewPostgresTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}
