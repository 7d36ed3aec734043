// clipstash: clipboard history daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "clipstash",
		Short: "Clipboard history daemon",
		Long: `clipstash watches the system clipboard and keeps a durable, searchable
history: every copy is classified (text, link, image, file list), deduplicated
and written to a local SQLite database. Pinned entries survive time-based
retention; a paste-queue mode collects copies for ordered pasting.

Run "clipstash run" to start the daemon.

Config file search order (first found wins):
  /etc/clipstash/clipstash.toml
  $HOME/.config/clipstash/clipstash.toml
  path supplied via --config

All flags can be set via CLIPSTASH_<FLAG> env vars or config-file keys.
See "clipstash run --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRunCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clipstash %s\n", Version)
		},
	}
}
