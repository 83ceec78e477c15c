package worker

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/yangwenmai/reviewer/internal/logger"
)

// Janitor removes stale uploads that a request failed to clean up, for
// example after a crash between saving the file and deleting it.
type Janitor struct {
	dir      string
	ttl      time.Duration
	interval time.Duration
	log      *logger.Logger
	now      func() time.Time
}

// NewJanitor creates a Janitor sweeping dir every interval for files older
// than ttl.
func NewJanitor(dir string, ttl, interval time.Duration, log *logger.Logger) *Janitor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Janitor{
		dir:      dir,
		ttl:      ttl,
		interval: interval,
		log:      log.With("component", "janitor"),
		now:      time.Now,
	}
}

// Start sweeps once immediately, then on every tick. It blocks until ctx is
// cancelled.
func (j *Janitor) Start(ctx context.Context) {
	j.log.Info("janitor started", "dir", j.dir, "ttl", j.ttl.String(), "interval", j.interval.String())
	for {
		if n, err := j.Sweep(); err != nil {
			j.log.Error("sweep failed", "error", err)
		} else if n > 0 {
			j.log.Info("removed stale uploads", "count", n)
		}

		select {
		case <-ctx.Done():
			j.log.Info("janitor stopped")
			return
		case <-time.After(j.interval):
		}
	}
}

// Sweep deletes regular files in the upload dir whose modification time is
// older than the TTL and returns how many were removed. A missing dir is not
// an error.
func (j *Janitor) Sweep() (int, error) {
	entries, err := os.ReadDir(j.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := j.now().Add(-j.ttl)
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed concurrently by the request that owned it.
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.dir, e.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
