package store

import (
	"context"
	"fmt"

	"github.com/yangwenmai/reviewer/internal/model"
)

// CountersRef is the document holding a user's counters.
func CountersRef(userID string) DocRef {
	return Collection("users").Doc(userID).Collection("meta").Doc("counters")
}

// UpdateCounters applies fn to the user's counters inside one transaction and
// returns the written value. A missing record starts with every count at zero.
func (s *Store) UpdateCounters(ctx context.Context, userID string, fn func(*model.Counters) error) (model.Counters, error) {
	ref := CountersRef(userID)
	var out model.Counters
	err := s.RunTransaction(ctx, func(tx *Tx) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return fmt.Errorf("read counters: %w", err)
		}
		var c model.Counters
		if snap.Exists() {
			if err := snap.DataTo(&c); err != nil {
				return fmt.Errorf("decode counters: %w", err)
			}
		}
		if err := fn(&c); err != nil {
			return err
		}
		if err := tx.Set(ref, c); err != nil {
			return fmt.Errorf("write counters: %w", err)
		}
		out = c
		return nil
	})
	return out, err
}
