// Package counter hands out per-user, per-feature reviewer identifiers.
package counter

import (
	"context"
	"fmt"

	"github.com/yangwenmai/reviewer/internal/model"
)

// Backend applies an update to a user's counters atomically. Implementations
// must serialize concurrent updates for the same user and may invoke fn more
// than once.
type Backend interface {
	UpdateCounters(ctx context.Context, userID string, fn func(*model.Counters) error) (model.Counters, error)
}

// Allocator produces ReviewerIDs. Values are strictly increasing per
// (user, feature) and are never handed out twice, even when the run that
// received one later fails.
type Allocator struct {
	backend Backend
}

// New creates an Allocator over backend.
func New(backend Backend) *Allocator {
	return &Allocator{backend: backend}
}

// Allocate increments the user's counter for feature and returns the
// resulting identifier.
func (a *Allocator) Allocate(ctx context.Context, userID string, feature model.FeatureType) (model.ReviewerID, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty user id", model.ErrCounterAllocation)
	}
	if !feature.Valid() {
		return "", fmt.Errorf("%w: %w: %q", model.ErrCounterAllocation, model.ErrUnknownFeature, feature)
	}

	var n int64
	_, err := a.backend.UpdateCounters(ctx, userID, func(c *model.Counters) error {
		var err error
		n, err = c.Next(feature)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s/%s: %w", model.ErrCounterAllocation, userID, feature, err)
	}
	return model.NewReviewerID(feature, n), nil
}
