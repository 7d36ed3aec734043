// Package retention holds the pure eviction decision for aged-out entries.
// Retention is strictly time-based: entries are never evicted for count,
// and pinned entries are never evicted at all.
package retention

import (
	"time"

	"go.klb.dev/clipstash/internal/storage"
)

// Policy describes the configured retention window. Days <= 0 means
// infinite retention (nothing is ever evictable).
type Policy struct {
	Days int
}

// Enabled reports whether the policy can evict anything.
func (p Policy) Enabled() bool { return p.Days > 0 }

// Cutoff returns the eviction boundary for the given clock reading.
// Entries with timestamps strictly before the cutoff are candidates.
// Only meaningful when Enabled.
func (p Policy) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.Days)
}

// Evictable reports whether e should be removed under this policy at the
// given time. Pinned entries are exempt regardless of age.
func (p Policy) Evictable(e storage.Entry, now time.Time) bool {
	if !p.Enabled() || e.Pinned {
		return false
	}
	return e.Timestamp.Before(p.Cutoff(now))
}
