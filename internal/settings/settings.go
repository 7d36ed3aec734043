// Package settings exposes the runtime-tunable configuration the core
// consults. Values are read at the moment of each decision rather than
// cached, so a settings change takes effect on the next relevant operation
// without any invalidation protocol.
package settings

import (
	"time"

	"github.com/spf13/viper"
)

// Provider supplies the tunables the watcher, retention pruning and paste
// queue read. Implementations must be cheap to call on every poll tick.
type Provider interface {
	// RetentionDays returns the retention window in days; <= 0 disables
	// time-based eviction entirely.
	RetentionDays() int

	// PollInterval returns the clipboard poll cadence.
	PollInterval() time.Duration

	// MaxQueueSize bounds the paste queue; captures beyond the bound are
	// silently dropped.
	MaxQueueSize() int

	// AutoClearAfterComplete deactivates the queue once every item has
	// been pasted.
	AutoClearAfterComplete() bool

	// KeepPastedItemsVisible retains queued items for display after the
	// queue deactivates.
	KeepPastedItemsVisible() bool
}

// Viper config keys. These match the daemon's flag names, so BindPFlags
// gives the full defaults/file/env/flag precedence chain for free.
const (
	KeyRetentionDays = "retention-days"
	KeyPollInterval  = "poll-interval"
	KeyMaxQueueSize  = "queue-max-size"
	KeyAutoClear     = "queue-auto-clear"
	KeyKeepPasted    = "queue-keep-pasted"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxQueueSize = 50
)

// ViperProvider reads live values from a viper instance, so config file
// edits and env overrides land without restarting the watcher.
type ViperProvider struct {
	v *viper.Viper
}

// NewViperProvider wires defaults into v and returns a Provider over it.
func NewViperProvider(v *viper.Viper) *ViperProvider {
	v.SetDefault(KeyRetentionDays, 0)
	v.SetDefault(KeyPollInterval, DefaultPollInterval)
	v.SetDefault(KeyMaxQueueSize, DefaultMaxQueueSize)
	v.SetDefault(KeyAutoClear, false)
	v.SetDefault(KeyKeepPasted, true)
	return &ViperProvider{v: v}
}

func (p *ViperProvider) RetentionDays() int { return p.v.GetInt(KeyRetentionDays) }

func (p *ViperProvider) PollInterval() time.Duration {
	d := p.v.GetDuration(KeyPollInterval)
	if d <= 0 {
		return DefaultPollInterval
	}
	return d
}

func (p *ViperProvider) MaxQueueSize() int {
	n := p.v.GetInt(KeyMaxQueueSize)
	if n <= 0 {
		return DefaultMaxQueueSize
	}
	return n
}

func (p *ViperProvider) AutoClearAfterComplete() bool { return p.v.GetBool(KeyAutoClear) }
func (p *ViperProvider) KeepPastedItemsVisible() bool { return p.v.GetBool(KeyKeepPasted) }

// Static is a fixed-value Provider used by tests and embedding callers.
type Static struct {
	Retention  int
	Poll       time.Duration
	QueueMax   int
	AutoClear  bool
	KeepPasted bool
}

func (s Static) RetentionDays() int           { return s.Retention }
func (s Static) PollInterval() time.Duration  { return s.Poll }
func (s Static) MaxQueueSize() int            { return s.QueueMax }
func (s Static) AutoClearAfterComplete() bool { return s.AutoClear }
func (s Static) KeepPastedItemsVisible() bool { return s.KeepPasted }
