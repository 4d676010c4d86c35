package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show storage occupancy and backup slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, cleanup, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading storage stats: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Capacity:  %s\n", formatBytes(stats.TotalCapacity))
			fmt.Fprintf(out, "Used:      %s (%.1f%%)\n", formatBytes(stats.UsedBytes),
				100*float64(stats.UsedBytes)/float64(stats.TotalCapacity))
			fmt.Fprintf(out, "Available: %s\n", formatBytes(stats.AvailableBytes))

			fmt.Fprint(out, "Backups:   ")
			for i, occupied := range st.BackupSlots(cmd.Context()) {
				if i > 0 {
					fmt.Fprint(out, " ")
				}
				if occupied {
					color.New(color.FgGreen).Fprintf(out, "[%d]", i)
				} else {
					color.New(color.Faint).Fprintf(out, "[-]")
				}
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
