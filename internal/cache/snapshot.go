package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/rtmetrics/internal/types"
)

// SnapshotCache holds the last published snapshot
type SnapshotCache struct {
	snap  types.Snapshot
	valid bool
	mu    sync.RWMutex
}

// NewSnapshotCache creates an empty cache
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{}
}

// Notify replaces the cached snapshot
func (c *SnapshotCache) Notify(_ context.Context, snap types.Snapshot) error {
	c.Set(snap)
	return nil
}

// Set replaces the cached snapshot
func (c *SnapshotCache) Set(snap types.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap = snap
	c.valid = true
}

// Latest returns the cached snapshot, or false before the first publish.
// The metric slices are shared and must not be modified.
func (c *SnapshotCache) Latest() (types.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap, c.valid
}

// Age returns the time since the cached snapshot was captured
func (c *SnapshotCache) Age(now time.Time) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid {
		return 0, false
	}
	return now.Sub(c.snap.CapturedAt), true
}
