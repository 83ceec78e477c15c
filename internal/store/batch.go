package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Batch collects document writes that commit atomically.
type Batch struct {
	s   *Store
	ops []batchOp
}

type batchOp struct {
	ref  DocRef
	data any
}

// Batch starts an empty write batch.
func (s *Store) Batch() *Batch {
	return &Batch{s: s}
}

// Set queues a full overwrite of ref.
func (b *Batch) Set(ref DocRef, data any) *Batch {
	b.ops = append(b.ops, batchOp{ref: ref, data: data})
	return b
}

// Len returns the number of queued writes.
func (b *Batch) Len() int { return len(b.ops) }

// Commit applies every queued write in one transaction. Either all writes are
// visible afterwards or none are.
func (b *Batch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	tx, err := b.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	now := nowString()
	for _, op := range b.ops {
		payload, err := json.Marshal(op.data)
		if err != nil {
			return fmt.Errorf("encode %s: %w", op.ref.Path(), err)
		}
		if err := setDoc(ctx, tx, op.ref, payload, now); err != nil {
			return fmt.Errorf("write %s: %w", op.ref.Path(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}
