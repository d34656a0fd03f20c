package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/clipr/internal/output"
	"github.com/tanq16/clipr/internal/session"
)

func newUploadCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "upload [FILE...]",
		Short: "Upload files and print their share links",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := newApp()
			defer a.close()
			u, err := a.uploader(ctx, target)
			if err != nil {
				return err
			}
			deps := session.Deps{Uploader: u}
			if store, err := a.history(); err != nil {
				log.Warn().Str("op", "cmd/upload").Err(err).Msg("upload history unavailable")
			} else {
				deps.History = store
			}

			manager, stopDisplay := startDisplay()
			s, view := a.newSession(manager, "Upload to "+u.Target(), deps)
			for _, path := range args {
				if err := s.RequestUpload(path); err != nil {
					stopDisplay()
					return err
				}
			}
			err = s.Run(ctx)
			view.Done(fmt.Sprintf("%d of %d files uploaded", len(s.State().Uploads), len(args)))
			stopDisplay()
			if err != nil {
				return err
			}
			st := s.State()
			for _, r := range st.Uploads {
				output.PrintArrow(r.File, r.URL)
			}
			if failed := len(args) - len(st.Uploads); failed > 0 {
				return fmt.Errorf("%d of %d uploads failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "Upload target (catbox or s3, default from config)")
	return cmd
}
