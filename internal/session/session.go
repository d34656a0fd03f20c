// Package session ties a download controller, the background dispatcher and
// a view together. Run is the only goroutine that touches session state or
// the view; everything else reports over channels.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/clipr/internal/lifecycle"
	"github.com/tanq16/clipr/internal/probe"
	"github.com/tanq16/clipr/internal/request"
	"github.com/tanq16/clipr/internal/scheduler"
	"github.com/tanq16/clipr/internal/upload"
)

const historyTimeout = 5 * time.Second

// Downloader is the part of lifecycle.Controller a session drives.
type Downloader interface {
	Start(ctx context.Context, req request.DownloadRequest) error
	Stop() error
	Wait() lifecycle.Outcome
	Updates() <-chan lifecycle.Update
}

type Prober interface {
	Title(ctx context.Context, src string) (string, error)
	Duration(ctx context.Context, src string) (int, error)
	SizeEstimate(ctx context.Context, req request.DownloadRequest) (int64, bool, error)
	Playlist(ctx context.Context, url string) ([]probe.PlaylistEntry, error)
}

type Framer interface {
	SetSource(src string)
	Frame(ctx context.Context, src string, ts int) (string, bool)
}

// Recorder persists finished uploads.
type Recorder interface {
	Add(ctx context.Context, r upload.Result) error
}

// Deps are the collaborators of a Session. Only Dispatcher and View are
// required; operations needing a missing collaborator fail with ErrUnavailable.
type Deps struct {
	Downloader Downloader
	Dispatcher *scheduler.Dispatcher
	Prober     Prober
	Framer     Framer
	Uploader   upload.Uploader
	History    Recorder
	View       View
}

var ErrUnavailable = errors.New("not configured for this session")

// State is what the session has learned so far. Read it only after Run
// returns.
type State struct {
	Percent   float64
	Status    string
	Title     string
	Duration  int
	Size      int64
	SizeKnown bool
	Playlist  []probe.PlaylistEntry
	Previews  map[int]string
	Uploads   []upload.Result
	Outcome   lifecycle.Outcome
	Failures  []error
}

type sizeEstimate struct {
	bytes   int64
	known   bool
	trimmed bool
}

type frameResult struct {
	src  string
	ts   int
	path string
	ok   bool
}

type Session struct {
	deps     Deps
	outcomes chan lifecycle.Outcome

	state       State
	pending     map[string]scheduler.Kind
	previewSrc  string
	downloading bool
	uploadAfter bool
}

func New(deps Deps) *Session {
	return &Session{
		deps:     deps,
		outcomes: make(chan lifecycle.Outcome, 1),
		state:    State{Previews: make(map[int]string)},
		pending:  make(map[string]scheduler.Kind),
	}
}

func (s *Session) State() State {
	return s.state
}

// StartDownload launches req on the downloader and queues the title, duration
// and size probes that accompany it. With uploadAfter set, a completed file
// is uploaded before Run returns. Playlists are never uploaded.
func (s *Session) StartDownload(ctx context.Context, req request.DownloadRequest, uploadAfter bool) error {
	if s.deps.Downloader == nil {
		return ErrUnavailable
	}
	for _, w := range req.Warnings() {
		s.deps.View.Warn(w)
	}
	if err := s.deps.Downloader.Start(ctx, req); err != nil {
		return err
	}
	s.downloading = true
	s.uploadAfter = uploadAfter && !req.Playlist() && s.deps.Uploader != nil
	go func() {
		s.outcomes <- s.deps.Downloader.Wait()
	}()
	if s.deps.Prober != nil && req.Kind().Remote() && !req.Playlist() {
		s.queueInfo(req)
	}
	return nil
}

// RequestInfo queues every probe that applies to req's source.
func (s *Session) RequestInfo(req request.DownloadRequest) error {
	if s.deps.Prober == nil {
		return ErrUnavailable
	}
	if req.Playlist() {
		src := req.Source()
		s.submit(scheduler.KindPlaylist, func(ctx context.Context) (any, error) {
			return s.deps.Prober.Playlist(ctx, src)
		})
		return nil
	}
	s.queueInfo(req)
	return nil
}

func (s *Session) queueInfo(req request.DownloadRequest) {
	src := req.Source()
	s.submit(scheduler.KindTitle, func(ctx context.Context) (any, error) {
		return s.deps.Prober.Title(ctx, src)
	})
	s.submit(scheduler.KindDuration, func(ctx context.Context) (any, error) {
		return s.deps.Prober.Duration(ctx, src)
	})
	if req.Kind().Remote() {
		_, trimmed := req.Trim()
		s.submit(scheduler.KindSize, func(ctx context.Context) (any, error) {
			size, known, err := s.deps.Prober.SizeEstimate(ctx, req)
			return sizeEstimate{bytes: size, known: known, trimmed: trimmed}, err
		})
	}
}

// RequestPreviews points the framer at src and queues one extraction per
// timestamp.
func (s *Session) RequestPreviews(src string, timestamps []int) error {
	if s.deps.Framer == nil {
		return ErrUnavailable
	}
	if src != s.previewSrc {
		s.previewSrc = src
		clear(s.state.Previews)
	}
	s.deps.Framer.SetSource(src)
	for _, ts := range timestamps {
		s.submit(scheduler.KindPreview, func(ctx context.Context) (any, error) {
			path, ok := s.deps.Framer.Frame(ctx, src, ts)
			return frameResult{src: src, ts: ts, path: path, ok: ok}, nil
		})
	}
	return nil
}

func (s *Session) RequestUpload(path string) error {
	if s.deps.Uploader == nil {
		return ErrUnavailable
	}
	s.submit(scheduler.KindUpload, func(ctx context.Context) (any, error) {
		return s.deps.Uploader.Upload(ctx, path)
	})
	return nil
}

func (s *Session) submit(kind scheduler.Kind, run func(ctx context.Context) (any, error)) {
	task := scheduler.NewTask(kind, run)
	if err := s.deps.Dispatcher.Submit(task); err != nil {
		s.fail(kind, err)
		return
	}
	s.pending[task.ID] = kind
}

func (s *Session) fail(kind scheduler.Kind, err error) {
	s.state.Failures = append(s.state.Failures, err)
	s.deps.View.TaskFailed(kind, err)
}

// Run drains updates and results until the download (if any) has finished
// and every queued task has reported. Cancelling ctx stops the download and
// abandons pending tasks.
func (s *Session) Run(ctx context.Context) error {
	var updates <-chan lifecycle.Update
	if s.deps.Downloader != nil {
		updates = s.deps.Downloader.Updates()
	}
	done := ctx.Done()
	for s.downloading || len(s.pending) > 0 {
		select {
		case <-done:
			done = nil
			if s.downloading {
				log.Info().Str("op", "session/run").Msg("interrupted, stopping download")
				if err := s.deps.Downloader.Stop(); err != nil && !errors.Is(err, lifecycle.ErrNotRunning) {
					log.Warn().Str("op", "session/run").Err(err).Msg("stop failed")
				}
			}
			if len(s.pending) > 0 {
				log.Debug().Str("op", "session/run").Msgf("abandoning %d pending tasks", len(s.pending))
				clear(s.pending)
			}
		case u := <-updates:
			s.applyUpdate(u)
		case out := <-s.outcomes:
			s.drainUpdates(updates)
			s.finishDownload(ctx, out)
		case res := <-s.deps.Dispatcher.Results():
			if _, ok := s.pending[res.TaskID]; !ok {
				continue
			}
			delete(s.pending, res.TaskID)
			s.applyResult(ctx, res)
		}
	}
	return ctx.Err()
}

func (s *Session) drainUpdates(updates <-chan lifecycle.Update) {
	for {
		select {
		case u := <-updates:
			s.applyUpdate(u)
		default:
			return
		}
	}
}

func (s *Session) applyUpdate(u lifecycle.Update) {
	if u.Status != "" || u.State != lifecycle.Running {
		s.state.Percent = u.Percent
		s.state.Status = u.Status
	}
	s.deps.View.Progress(u)
}

func (s *Session) finishDownload(ctx context.Context, out lifecycle.Outcome) {
	s.downloading = false
	s.state.Outcome = out
	if out.State == lifecycle.Stopped || out.State == lifecycle.TimedOut {
		s.state.Percent = 0
	}
	s.deps.View.Finished(out)
	if out.State != lifecycle.Completed || !s.uploadAfter || ctx.Err() != nil {
		return
	}
	if out.Output == "" {
		s.fail(scheduler.KindUpload, errors.New("could not determine the downloaded file"))
		return
	}
	s.RequestUpload(out.Output)
}

func (s *Session) applyResult(ctx context.Context, res scheduler.Result) {
	if res.Err != nil {
		s.fail(res.Kind, res.Err)
		return
	}
	switch v := res.Value.(type) {
	case string:
		s.state.Title = v
		s.deps.View.Title(v)
	case int:
		s.state.Duration = v
		s.deps.View.Duration(v)
	case sizeEstimate:
		if v.known {
			s.state.Size = v.bytes
			s.state.SizeKnown = true
			s.deps.View.Size(v.bytes, v.trimmed)
		}
	case []probe.PlaylistEntry:
		s.state.Playlist = v
		s.deps.View.Playlist(v)
	case frameResult:
		if v.src != s.previewSrc {
			log.Debug().Str("op", "session/run").Msgf("dropping frame at %ds of replaced source %s", v.ts, v.src)
			return
		}
		if v.ok {
			s.state.Previews[v.ts] = v.path
		}
		s.deps.View.Preview(v.ts, v.path, v.ok)
	case upload.Result:
		s.state.Uploads = append(s.state.Uploads, v)
		if s.deps.History != nil {
			hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
			if err := s.deps.History.Add(hctx, v); err != nil {
				log.Warn().Str("op", "session/history").Err(err).Msg("could not record upload")
			}
			cancel()
		}
		s.deps.View.Uploaded(v)
	default:
		log.Debug().Str("op", "session/run").Msgf("ignoring %s result of type %T", res.Kind, res.Value)
	}
}
