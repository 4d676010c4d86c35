package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/diego-gutierrez10/swipephoto-sub001/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved session's metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, cleanup, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			meta, err := st.ReadMetadata(cmd.Context())
			if errors.Is(err, store.ErrRecordNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved session.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading session metadata: %w", err)
			}

			out := cmd.OutOrStdout()
			label := color.New(color.Bold)
			fmt.Fprintf(out, "%s %s\n", label.Sprint("Session:"), meta.SessionID)
			fmt.Fprintf(out, "%s %s\n", label.Sprint("Schema: "), meta.SchemaVersion)
			fmt.Fprintf(out, "%s %s (%s ago)\n", label.Sprint("Saved:  "),
				meta.LastSavedAt.Local().Format(time.RFC1123),
				time.Since(meta.LastSavedAt).Round(time.Second))
			fmt.Fprintf(out, "%s compressed=%v encrypted=%v\n", label.Sprint("Blob:   "),
				meta.Compressed, meta.Encrypted)

			if st.SessionAvailable(cmd.Context()) {
				color.New(color.FgGreen).Fprintln(out, "Session is available for recovery.")
			} else {
				color.New(color.FgYellow).Fprintln(out, "Session is stale and will not be offered for recovery.")
			}
			return nil
		},
	}
}
