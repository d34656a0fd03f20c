package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/tanq16/clipr/internal/output"
	"github.com/tanq16/clipr/internal/preview"
	"github.com/tanq16/clipr/internal/session"
	"github.com/tanq16/clipr/internal/tools"
	"github.com/tanq16/clipr/internal/utils"
)

func newPreviewCmd() *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "preview [URL|FILE] [TIMESTAMP...]",
		Short: "Extract still frames at the given timestamps",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			timestamps := make([]int, 0, len(args)-1)
			for _, arg := range args[1:] {
				ts, err := utils.ParseHMS(arg)
				if err != nil {
					return fmt.Errorf("invalid timestamp %q: %w", arg, err)
				}
				timestamps = append(timestamps, ts)
			}
			a := newApp()
			defer a.close()
			if err := a.paths.Require(tools.FFmpeg); err != nil {
				return err
			}
			ws, err := preview.NewWorkspace()
			if err != nil {
				return err
			}
			previewer := newPreviewer(ws, a.prober, tools.ExecRunner{}, a.paths.FFmpeg, len(timestamps))
			defer previewer.Close()

			manager, stopDisplay := startDisplay()
			s, view := a.newSession(manager, "Preview "+args[0], session.Deps{Framer: previewer})
			if err := s.RequestPreviews(args[0], timestamps); err != nil {
				stopDisplay()
				return err
			}
			err = s.Run(cmd.Context())
			view.Done(fmt.Sprintf("%d of %d frames extracted", len(s.State().Previews), len(timestamps)))
			stopDisplay()
			if err != nil {
				return err
			}
			return saveFrames(s.State().Previews, outputDir)
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Directory the frames are written to")
	return cmd
}

// newPreviewer sizes the cache to hold every requested frame until it is
// saved.
func newPreviewer(ws *preview.Workspace, resolver preview.StreamResolver, runner tools.Runner, ffmpeg string, requested int) *preview.Previewer {
	cache := preview.NewCache(max(cfg.PreviewCache, requested))
	return preview.NewPreviewer(cache, ws, resolver, runner, ffmpeg, cfg.Retry)
}

// saveFrames copies extracted frames out of the temporary workspace.
func saveFrames(frames map[int]string, dir string) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames could be extracted")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory: %v", err)
	}
	keys := make([]int, 0, len(frames))
	for ts := range frames {
		keys = append(keys, ts)
	}
	sort.Ints(keys)
	for _, ts := range keys {
		dst := filepath.Join(dir, filepath.Base(frames[ts]))
		if err := copyFile(frames[ts], dst); err != nil {
			output.PrintWarning(fmt.Sprintf("frame at %s not saved: %v", utils.SecondsToHMS(ts), err))
			continue
		}
		output.PrintArrow(utils.SecondsToHMS(ts), dst)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
