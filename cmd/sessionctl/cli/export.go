package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diego-gutierrez10/swipephoto-sub001/jsonutil"
	"github.com/diego-gutierrez10/swipephoto-sub001/migrate"
)

func newExportCmd() *cobra.Command {
	var output string
	var raw bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the saved session state as JSON",
		Long:  "Export decodes the saved session blob and prints it as indented JSON. By default the state is migrated to the current schema first; --raw exports the stored payload at its stored schema version.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, cleanup, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			snap, err := st.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading session: %w", err)
			}
			if snap == nil {
				return fmt.Errorf("no saved session")
			}

			var doc any
			if raw {
				doc = map[string]any{
					"schema_version": snap.Version,
					"state":          snap.Payload,
				}
			} else {
				doc = migrate.New(nil).Migrate(cmd.Context(), snap.Payload, snap.Version)
			}

			data, err := jsonutil.MarshalIndentWithNewline(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding state: %w", err)
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&raw, "raw", false, "export the stored payload without migrating")
	return cmd
}
