// Package collision tracks column names during blob encoding and detects
// xxHash64 field ID collisions.
package collision

import (
	"github.com/colpack/colpack/errs"
)

// Tracker tracks column names and detects field ID collisions during
// encoding. The blob index identifies columns only by their 64-bit hash, so
// two distinct names hashing to the same ID cannot both be stored.
type Tracker struct {
	names map[uint64]string // field ID → name mapping for collision detection
	order []string          // names in first-seen order
}

// NewTracker creates a new collision tracker.
func NewTracker() *Tracker {
	return &Tracker{
		names: make(map[uint64]string),
		order: make([]string, 0),
	}
}

// Track records a column name with its field ID.
//
// Returns:
//   - errs.ErrInvalidColumnName if the name is empty
//   - errs.ErrHashCollision if a different name already maps to the same ID
//
// Tracking the same name twice is a no-op; the caller resolves duplicates to
// the existing column.
func (t *Tracker) Track(name string, id uint64) error {
	if name == "" {
		return errs.ErrInvalidColumnName
	}

	if existing, exists := t.names[id]; exists {
		if existing != name {
			return errs.ErrHashCollision
		}

		return nil
	}

	t.names[id] = name
	t.order = append(t.order, name)

	return nil
}

// Names returns the tracked column names in first-seen order.
func (t *Tracker) Names() []string {
	return t.order
}

// Count returns the number of tracked columns.
func (t *Tracker) Count() int {
	return len(t.order)
}

// Reset clears all tracked columns so the tracker can encode a new blob.
func (t *Tracker) Reset() {
	clear(t.names)
	t.order = t.order[:0]
}
