package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/clipr/internal/output"
	"github.com/tanq16/clipr/internal/preview"
	"github.com/tanq16/clipr/internal/utils"
)

func newCleanCmd() *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove preview workspaces left behind by earlier runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := preview.CleanOrphans("", maxAge)
			if err != nil {
				return err
			}
			output.PrintSuccess(fmt.Sprintf("Removed %d preview workspaces", removed))
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", utils.OrphanMaxAge, "Only remove workspaces older than this")
	return cmd
}
