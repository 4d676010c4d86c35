package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/diego-gutierrez10/swipephoto-sub001/store"
)

func newClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the saved session, its metadata, and all backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, cleanup, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			meta, err := st.ReadMetadata(cmd.Context())
			if errors.Is(err, store.ErrRecordNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to clear.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading session metadata: %w", err)
			}

			if !force {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return errors.New("refusing to clear without confirmation; re-run with --force")
				}
				var confirmed bool
				prompt := huh.NewConfirm().
					Title(fmt.Sprintf("Delete session %s and all backups?", meta.SessionID)).
					Affirmative("Delete").
					Negative("Keep").
					Value(&confirmed)
				if err := prompt.Run(); err != nil {
					return fmt.Errorf("confirmation prompt: %w", err)
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			if err := st.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clearing storage: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session storage cleared.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")
	return cmd
}
