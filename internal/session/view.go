package session

import (
	"fmt"

	"github.com/tanq16/clipr/internal/lifecycle"
	"github.com/tanq16/clipr/internal/output"
	"github.com/tanq16/clipr/internal/probe"
	"github.com/tanq16/clipr/internal/scheduler"
	"github.com/tanq16/clipr/internal/upload"
	"github.com/tanq16/clipr/internal/utils"
)

// View receives everything the session learns. All calls come from Run.
type View interface {
	Progress(u lifecycle.Update)
	Finished(out lifecycle.Outcome)
	Title(title string)
	Duration(seconds int)
	Size(bytes int64, trimmed bool)
	Playlist(entries []probe.PlaylistEntry)
	Preview(ts int, path string, ok bool)
	Uploaded(r upload.Result)
	Warn(msg string)
	TaskFailed(kind scheduler.Kind, err error)
}

// ManagerView renders a session onto a live output.Manager: one entry for
// the download and one per upload.
type ManagerView struct {
	m  *output.Manager
	id int
}

func NewManagerView(m *output.Manager, label string) *ManagerView {
	return &ManagerView{m: m, id: m.Register(label)}
}

func (v *ManagerView) Progress(u lifecycle.Update) {
	switch {
	case u.State == lifecycle.Running && u.Status == "" && u.Line != "":
		v.m.AddStreamLine(v.id, u.Line)
	case u.State == lifecycle.Running && u.Status != "":
		v.m.SetMessage(v.id, u.Status)
		if u.Percent > 0 {
			v.m.SetProgress(v.id, u.Percent, u.Speed, u.ETA)
		}
	case u.State == lifecycle.Starting:
		v.m.SetStatus(v.id, output.StatusActive)
		v.m.SetMessage(v.id, u.Status)
	}
}

func (v *ManagerView) Finished(out lifecycle.Outcome) {
	switch out.State {
	case lifecycle.Completed:
		msg := out.Reason
		if out.Output != "" {
			msg = fmt.Sprintf("%s %s", out.Reason, out.Output)
		}
		v.m.Complete(v.id, msg)
	case lifecycle.Stopped:
		v.m.Finish(v.id, output.StatusWarning, out.Reason)
	default:
		v.m.SetMessage(v.id, out.Reason)
		err := out.Err
		if err == nil {
			err = fmt.Errorf("%s", out.Reason)
		}
		v.m.ReportError(v.id, err)
	}
}

// Done closes the session's own entry for runs without a download.
func (v *ManagerView) Done(msg string) {
	v.m.Complete(v.id, msg)
}

func (v *ManagerView) Title(title string) {
	v.m.AddDetail(v.id, "Title: "+title)
}

func (v *ManagerView) Duration(seconds int) {
	v.m.AddDetail(v.id, "Duration: "+utils.SecondsToHMS(seconds))
}

func (v *ManagerView) Size(bytes int64, trimmed bool) {
	v.m.AddDetail(v.id, SizeLabel(bytes, trimmed))
}

func (v *ManagerView) Playlist(entries []probe.PlaylistEntry) {
	v.m.AddDetail(v.id, fmt.Sprintf("Playlist with %d videos", len(entries)))
}

func (v *ManagerView) Preview(ts int, path string, ok bool) {
	if !ok {
		v.m.AddDetail(v.id, fmt.Sprintf("%s: no preview available", utils.SecondsToHMS(ts)))
		return
	}
	v.m.AddDetail(v.id, fmt.Sprintf("%s: %s", utils.SecondsToHMS(ts), path))
}

func (v *ManagerView) Uploaded(r upload.Result) {
	id := v.m.Register("upload " + r.File)
	v.m.Complete(id, fmt.Sprintf("Uploaded to %s", r.URL))
}

func (v *ManagerView) Warn(msg string) {
	v.m.AddDetail(v.id, msg)
}

func (v *ManagerView) TaskFailed(kind scheduler.Kind, err error) {
	if kind == scheduler.KindUpload {
		id := v.m.Register("upload")
		v.m.ReportError(id, err)
		return
	}
	v.m.AddStreamLine(v.id, fmt.Sprintf("%s unavailable: %v", kind, err))
}

// SizeLabel formats a size estimate the way the download view shows it.
func SizeLabel(bytes int64, trimmed bool) string {
	if trimmed {
		return "Estimated size (trimmed): " + utils.FormatMB(bytes)
	}
	return "Estimated size: " + utils.FormatMB(bytes)
}
