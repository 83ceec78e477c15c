package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrTxContention is returned when a transaction keeps losing to concurrent writers.
var ErrTxContention = errors.New("transaction aborted after repeated contention")

// Tx is a read-modify-write transaction handle.
type Tx struct {
	ctx context.Context
	tx  *sql.Tx
	now string
}

// Get reads ref inside the transaction.
func (t *Tx) Get(ref DocRef) (*Snapshot, error) {
	return getDoc(t.ctx, t.tx, ref)
}

// Set overwrites ref inside the transaction.
func (t *Tx) Set(ref DocRef, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ref.Path(), err)
	}
	return setDoc(t.ctx, t.tx, ref, payload, t.now)
}

// RunTransaction runs fn in a write transaction and commits it. Transactions
// start with an immediate write lock, so conflicting read-modify-writes never
// interleave. When the lock cannot be obtained fn is retried, up to the store's
// attempt limit; fn must therefore be safe to run more than once.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < s.maxTxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 20 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrTxContention, lastErr)
}

func (s *Store) runOnce(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{ctx: ctx, tx: sqlTx, now: nowString()}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
