// package cache implements the one-slot "last known good" bootstrap snapshot
// used for offline continuity.
package cache

import (
	"encoding/json"
	"fmt"

	"dojotap/internal/models"
	"dojotap/internal/storage"
)

// Slot is the storage key the snapshot persists under.
const Slot = "bootstrap_snapshot"

// BootstrapCache persists the last successfully fetched snapshot. Restored
// snapshots are not fresh; callers must mark them stale and read-only.
type BootstrapCache struct {
	storage storage.Store
}

// New creates a BootstrapCache over the given storage.
func New(st storage.Store) *BootstrapCache {
	return &BootstrapCache{storage: st}
}

// Save overwrites the single cached snapshot.
func (c *BootstrapCache) Save(snapshot *models.BootstrapSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	if err := c.storage.Set(Slot, string(data)); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}

// Restore returns the cached snapshot if structurally valid, else nil.
// Structural validity requires a task list and a user object.
func (c *BootstrapCache) Restore() *models.BootstrapSnapshot {
	raw, ok, err := c.storage.Get(Slot)
	if err != nil || !ok {
		return nil
	}

	var snapshot models.BootstrapSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil
	}
	if snapshot.Tasks == nil || snapshot.User == (models.UserInfo{}) {
		return nil
	}
	return &snapshot
}

// Clear discards the cached snapshot, used when auth is lost.
func (c *BootstrapCache) Clear() error {
	return c.storage.Remove(Slot)
}
