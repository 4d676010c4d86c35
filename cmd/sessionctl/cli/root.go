// Package cli implements the sessionctl command tree: a debugging and ops
// surface over the session persistence engine's storage area.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/diego-gutierrez10/swipephoto-sub001/logging"
	"github.com/diego-gutierrez10/swipephoto-sub001/settings"
	"github.com/diego-gutierrez10/swipephoto-sub001/store"
)

// addStorageFlags registers the flags shared by every subcommand that opens
// the storage area.
func addStorageFlags(fs *pflag.FlagSet) {
	fs.String("dir", ".", "storage area root directory")
	fs.String("log-level", "", "log level (debug, info, warn, error); overrides settings.json")
}

// NewRootCmd builds the sessionctl command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Inspect and manage persisted session state",
		Long:          "sessionctl inspects the session persistence engine's storage area: saved session metadata, storage occupancy, backup slots, and raw state export.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addStorageFlags(cmd.PersistentFlags())

	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newExportCmd())

	return cmd
}

// openStore builds a read-side store over the storage area named by the
// command's flags. The caller must invoke the returned cleanup.
func openStore(cmd *cobra.Command) (*store.Store, func(), error) {
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := settings.Load(dir)
	if err != nil {
		return nil, nil, err
	}

	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.LogLevel
	}
	logging.Init(os.Stderr, parseLevel(level))

	backend, err := store.NewFileBackend(filepath.Join(dir, "session"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage area: %w", err)
	}
	st := store.New(cmd.Context(), backend, cfg.StoreConfig(), nil)
	return st, func() { _ = backend.Close() }, nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn
	}
	return level
}
