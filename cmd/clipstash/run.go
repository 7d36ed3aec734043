package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/pastequeue"
	"go.klb.dev/clipstash/internal/privacy"
	"go.klb.dev/clipstash/internal/settings"
	"go.klb.dev/clipstash/internal/storage"
	"go.klb.dev/clipstash/internal/watcher"
)

func newRunCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the clipboard history daemon",
		Long: `Starts the clipstash daemon: polls the system clipboard, captures and
classifies new content, and maintains the durable history database.

Config file search order:
  /etc/clipstash/clipstash.toml
  $HOME/.config/clipstash/clipstash.toml
  path supplied via --config

Precedence (lowest to highest): defaults, config file, CLIPSTASH_* env vars, flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runDaemon(v) },
	}

	f := cmd.Flags()
	f.String("data-dir", defaultDataDir(), "directory for the history database and image blobs")
	f.Int("retention-days", 0, "evict unpinned entries older than this many days (0 = keep forever)")
	f.Duration("poll-interval", settings.DefaultPollInterval, "clipboard poll cadence")
	f.Int("queue-max-size", settings.DefaultMaxQueueSize, "paste queue capacity; captures beyond it are dropped")
	f.Bool("queue-auto-clear", false, "deactivate the paste queue once every item has been pasted")
	f.Bool("queue-keep-pasted", true, "keep queued items visible after the queue deactivates")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDaemon(v *viper.Viper) error {
	setupLogging(v)

	dataDir := v.GetString("data-dir")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// One daemon per data directory; a second instance would fight the
	// first over the change counter baseline.
	lock := flock.New(filepath.Join(dataDir, "clipstash.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another clipstash instance is already running against %s", dataDir)
	}
	defer lock.Unlock() //nolint:errcheck

	// Flag names double as config keys, so bindViper already gave every
	// tunable the full precedence chain.
	cfg := settings.NewViperProvider(v)

	slog.Info("clipstash starting",
		"version", Version,
		"data_dir", dataDir,
		"retention_days", cfg.RetentionDays(),
		"poll_interval", cfg.PollInterval(),
	)

	// A migration failure is fatal: never operate on an unknown schema.
	store, err := storage.Open(
		filepath.Join(dataDir, "clipstash.db"),
		filepath.Join(dataDir, "blobs"),
	)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One-time flat-file import from pre-SQLite builds. An unreadable
	// export is logged and skipped; the daemon starts regardless.
	legacyPath := filepath.Join(dataDir, "history.json")
	if err := store.ImportLegacy(ctx, legacyPath); err != nil {
		slog.Warn("legacy history import failed, continuing without it",
			"path", legacyPath, "err", err)
	}

	guard, err := privacy.NewGuard(ctx, store)
	if err != nil {
		return fmt.Errorf("load ignored apps: %w", err)
	}

	backend := clip.New()
	defer backend.Close()

	model := history.New()
	queue := pastequeue.New(cfg, nil) // writer is bound by the manager
	mgr := watcher.New(store, model, queue, backend, guard, cfg)

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	<-ctx.Done()
	slog.Info("shutting down")
	mgr.Stop()
	return nil
}
