package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/clipr/internal/lifecycle"
	"github.com/tanq16/clipr/internal/output"
	"github.com/tanq16/clipr/internal/request"
	"github.com/tanq16/clipr/internal/session"
	"github.com/tanq16/clipr/internal/upload"
)

var uploadTargets = []string{upload.TargetCatbox, upload.TargetS3}

func addDownloadFlags(cmd *cobra.Command, f *downloadFlags) {
	cmd.Flags().StringVarP(&f.quality, "quality", "q", "1080", "Video height (1440, 1080, 720, 480, 360, 240) or audio")
	cmd.Flags().StringVarP(&f.start, "start", "s", "", "Trim start (SS, MM:SS or HH:MM:SS)")
	cmd.Flags().StringVarP(&f.end, "end", "e", "", "Trim end (SS, MM:SS or HH:MM:SS)")
	cmd.Flags().Float64Var(&f.volume, "volume", request.DefaultVolume, "Volume multiplier (0 < v <= 2.0)")
	cmd.Flags().Float64VarP(&f.limitRate, "limit-rate", "r", 0, "Download speed cap in MB/s (0 for none)")
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Output file name without extension")
	cmd.Flags().StringVarP(&f.outputDir, "output", "o", "", "Output directory (default from config)")
	cmd.Flags().BoolVar(&f.upload, "upload", false, "Upload the finished file")
	cmd.Flags().StringVar(&f.target, "target", "", fmt.Sprintf("Upload target (%s, default from config)", strings.Join(uploadTargets, " or ")))
}

func newDownloadCmd() *cobra.Command {
	var flags downloadFlags
	cmd := &cobra.Command{
		Use:     "download [URL|FILE] [OPTIONS]",
		Short:   "Download a video, audio track or playlist, or process a local file",
		Aliases: []string{"dl"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.volumeSet = cmd.Flags().Changed("volume")
			req, err := flags.request(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := newApp()
			defer a.close()
			manager, stopDisplay := startDisplay()
			out, err := runDownload(ctx, a, manager, req, flags)
			stopDisplay()
			if err != nil {
				return err
			}
			if out.State != lifecycle.Completed {
				return fmt.Errorf("%s", out.Reason)
			}
			return nil
		},
	}
	addDownloadFlags(cmd, &flags)
	return cmd
}

// runDownload drives one request through a session to completion. An
// interrupt on ctx stops the download.
func runDownload(ctx context.Context, a *app, m *output.Manager, req request.DownloadRequest, flags downloadFlags) (lifecycle.Outcome, error) {
	deps := session.Deps{Downloader: a.controller()}
	if flags.upload {
		u, err := a.uploader(ctx, flags.target)
		if err != nil {
			return lifecycle.Outcome{}, err
		}
		deps.Uploader = u
		if store, err := a.history(); err != nil {
			log.Warn().Str("op", "cmd/download").Err(err).Msg("upload history unavailable")
		} else {
			deps.History = store
		}
	}
	return runSession(ctx, a, m, req, deps, flags.upload)
}

func runSession(ctx context.Context, a *app, m *output.Manager, req request.DownloadRequest, deps session.Deps, uploadAfter bool) (lifecycle.Outcome, error) {
	s, _ := a.newSession(m, req.Source(), deps)
	log.Debug().Str("op", "cmd/download").Msgf("starting %s download of %s", req.Quality(), req.Source())
	if err := s.StartDownload(ctx, req, uploadAfter); err != nil {
		return lifecycle.Outcome{}, err
	}
	if err := s.Run(ctx); err != nil && ctx.Err() == nil {
		return lifecycle.Outcome{}, err
	}
	st := s.State()
	if uploadAfter && st.Outcome.State == lifecycle.Completed && len(st.Uploads) == 0 && !req.Playlist() {
		return st.Outcome, fmt.Errorf("download finished but the upload failed")
	}
	return st.Outcome, nil
}
