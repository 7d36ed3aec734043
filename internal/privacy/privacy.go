// Package privacy implements the capture gate the watcher consults on
// every poll tick: a global pause flag and the ignored-application
// predicate backed by the store's ignored_apps table.
package privacy

import (
	"context"
	"sync"
	"sync/atomic"

	"go.klb.dev/clipstash/internal/storage"
)

// Guard answers "may this capture proceed" questions. The ignored-app set
// is cached in memory and refreshed on every mutation so the per-tick
// lookup never touches the database.
type Guard struct {
	store  storage.Store
	paused atomic.Bool

	mu      sync.RWMutex
	ignored map[string]struct{}
}

// NewGuard loads the ignored-app set from the store.
func NewGuard(ctx context.Context, store storage.Store) (*Guard, error) {
	g := &Guard{store: store, ignored: make(map[string]struct{})}
	if err := g.reload(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Guard) reload(ctx context.Context) error {
	apps, err := g.store.ListIgnoredApps(ctx)
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(apps))
	for _, a := range apps {
		set[a.BundleID] = struct{}{}
	}
	g.mu.Lock()
	g.ignored = set
	g.mu.Unlock()
	return nil
}

// SetPaused toggles monitoring. While paused the watcher still observes
// the change counter but captures nothing.
func (g *Guard) SetPaused(paused bool) { g.paused.Store(paused) }

// Paused reports whether monitoring is paused.
func (g *Guard) Paused() bool { return g.paused.Load() }

// IsAppIgnored reports whether the given bundle identifier is on the
// ignore list. An empty bundle id (frontmost app unresolvable) is never
// ignored; the capture proceeds with SourceApp "Unknown".
func (g *Guard) IsAppIgnored(bundleID string) bool {
	if bundleID == "" {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.ignored[bundleID]
	return ok
}

// AddIgnoredApp persists an ignore record and refreshes the cached set.
func (g *Guard) AddIgnoredApp(ctx context.Context, app storage.IgnoredApp) error {
	if err := g.store.AddIgnoredApp(ctx, app); err != nil {
		return err
	}
	return g.reload(ctx)
}

// RemoveIgnoredApp deletes an ignore record and refreshes the cached set.
func (g *Guard) RemoveIgnoredApp(ctx context.Context, bundleID string) error {
	if err := g.store.RemoveIgnoredApp(ctx, bundleID); err != nil {
		return err
	}
	return g.reload(ctx)
}
