package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tanq16/clipr/internal/output"
	"github.com/tanq16/clipr/internal/utils"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	var clear bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or clear previous uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			defer a.close()
			store, err := a.history()
			if err != nil {
				return err
			}
			if clear {
				n, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				output.PrintSuccess(fmt.Sprintf("Removed %d entries", n))
				return nil
			}
			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				output.PrintInfo("No uploads recorded")
				return nil
			}
			for _, r := range entries {
				output.PrintHeader(r.URL)
				output.PrintKV("File", r.File)
				output.PrintKV("Target", r.Target)
				output.PrintKV("Size", utils.FormatBytes(uint64(r.Size)))
				output.PrintKV("Uploaded", r.Created.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Number of entries to show (0 for all)")
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete every recorded upload")
	return cmd
}
