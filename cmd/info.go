package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tanq16/clipr/internal/lifecycle"
	"github.com/tanq16/clipr/internal/output"
	"github.com/tanq16/clipr/internal/probe"
	"github.com/tanq16/clipr/internal/request"
	"github.com/tanq16/clipr/internal/scheduler"
	"github.com/tanq16/clipr/internal/session"
	"github.com/tanq16/clipr/internal/upload"
	"github.com/tanq16/clipr/internal/utils"
)

func newInfoCmd() *cobra.Command {
	var flags downloadFlags
	cmd := &cobra.Command{
		Use:   "info [URL|FILE]",
		Short: "Show title, duration, estimated size or playlist entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args[0])
			if err != nil {
				return err
			}
			a := newApp()
			defer a.close()
			view := &infoView{}
			s := session.New(session.Deps{Dispatcher: a.dispatcher, Prober: a.prober, View: view})
			if err := s.RequestInfo(req); err != nil {
				return err
			}
			if err := s.Run(cmd.Context()); err != nil {
				return err
			}
			printInfo(req, s.State(), view.failures)
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.quality, "quality", "q", "1080", "Quality used for the size estimate")
	cmd.Flags().StringVarP(&flags.start, "start", "s", "", "Trim start, scales the size estimate")
	cmd.Flags().StringVarP(&flags.end, "end", "e", "", "Trim end, scales the size estimate")
	return cmd
}

// infoView collects failures; results are printed from the final state.
type infoView struct {
	failures []string
}

func (v *infoView) Progress(lifecycle.Update)      {}
func (v *infoView) Finished(lifecycle.Outcome)     {}
func (v *infoView) Title(string)                   {}
func (v *infoView) Duration(int)                   {}
func (v *infoView) Size(int64, bool)               {}
func (v *infoView) Playlist([]probe.PlaylistEntry) {}
func (v *infoView) Preview(int, string, bool)      {}
func (v *infoView) Uploaded(upload.Result)         {}
func (v *infoView) Warn(string)                    {}
func (v *infoView) TaskFailed(kind scheduler.Kind, err error) {
	v.failures = append(v.failures, fmt.Sprintf("%s unavailable: %v", kind, err))
}

func printInfo(req request.DownloadRequest, st session.State, failures []string) {
	output.PrintHeader(req.Source())
	output.PrintKV("Type", req.Kind().String())
	if st.Title != "" {
		output.PrintKV("Title", st.Title)
	}
	if st.Duration > 0 {
		output.PrintKV("Duration", utils.SecondsToHMS(st.Duration))
	}
	if st.SizeKnown {
		_, trimmed := req.Trim()
		label := "Estimated size"
		if trimmed {
			label = "Estimated size (trimmed)"
		}
		output.PrintKV(label, utils.FormatMB(st.Size))
	}
	if req.Playlist() {
		output.PrintKV("Videos", fmt.Sprint(len(st.Playlist)))
		for _, e := range st.Playlist {
			output.PrintBullet(fmt.Sprintf("%02d %s", e.Index, e.Title))
		}
		output.PrintWarning(request.PlaylistWarning)
	}
	for _, f := range failures {
		output.PrintWarning(f)
	}
}
