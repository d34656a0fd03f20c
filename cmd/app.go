package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/clipr/internal/errs"
	"github.com/tanq16/clipr/internal/history"
	"github.com/tanq16/clipr/internal/lifecycle"
	"github.com/tanq16/clipr/internal/output"
	"github.com/tanq16/clipr/internal/probe"
	"github.com/tanq16/clipr/internal/request"
	"github.com/tanq16/clipr/internal/scheduler"
	"github.com/tanq16/clipr/internal/session"
	"github.com/tanq16/clipr/internal/source"
	"github.com/tanq16/clipr/internal/tools"
	"github.com/tanq16/clipr/internal/upload"
	"github.com/tanq16/clipr/internal/utils"
)

// app holds the per-invocation collaborators built from cfg.
type app struct {
	paths      tools.Paths
	prober     *probe.Prober
	dispatcher *scheduler.Dispatcher
	store      *history.Store
	closers    []func() error
}

func newApp() *app {
	paths, err := tools.Resolve(cfg.Tools)
	if err != nil {
		// commands report missing tools when they actually need them
		log.Debug().Str("op", "cmd/app").Err(err).Msg("tool resolution incomplete")
	}
	return &app{
		paths:      paths,
		prober:     probe.New(paths, cfg.Retry),
		dispatcher: scheduler.New(cfg.Workers, scheduler.DefaultQueue),
	}
}

func (a *app) controller() *lifecycle.Controller {
	return lifecycle.New(a.paths, cfg.Timeouts, a.prober)
}

func (a *app) uploader(ctx context.Context, target string) (upload.Uploader, error) {
	settings := cfg.Upload
	if target != "" {
		settings.Target = target
	}
	return upload.New(ctx, settings)
}

// history opens the upload store once per invocation.
func (a *app) history() (*history.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	return store, nil
}

func (a *app) close() {
	a.dispatcher.Shutdown()
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Debug().Str("op", "cmd/app").Err(err).Msg("close failed")
		}
	}
}

// startDisplay starts a manager on stdout. While it redraws in place, log
// lines are held back and written to stderr by the returned stop func.
func startDisplay() (*output.Manager, func()) {
	m := output.NewManager()
	var held bytes.Buffer
	live := output.IsTerminal()
	if live {
		utils.SetLogOutput(&held)
	}
	m.StartDisplay()
	return m, func() {
		m.StopDisplay()
		if live {
			utils.SetLogOutput(os.Stderr)
			os.Stderr.Write(held.Bytes())
		}
	}
}

// newSession wires a live display entry named label to a session.
func (a *app) newSession(m *output.Manager, label string, deps session.Deps) (*session.Session, *session.ManagerView) {
	deps.Dispatcher = a.dispatcher
	if deps.Prober == nil {
		deps.Prober = a.prober
	}
	view := session.NewManagerView(m, label)
	deps.View = view
	return session.New(deps), view
}

// downloadFlags are shared by download and batch entries.
type downloadFlags struct {
	quality   string
	start     string
	end       string
	volume    float64
	volumeSet bool
	limitRate float64
	name      string
	outputDir string
	upload    bool
	target    string
}

func (f downloadFlags) request(src string) (request.DownloadRequest, error) {
	quality, err := request.ParseQuality(f.quality)
	if err != nil {
		return request.DownloadRequest{}, err
	}
	// request.New reads a zero volume as unset
	if f.volumeSet && f.volume == 0 {
		return request.DownloadRequest{}, errs.Errorf(errs.InvalidInput, "cmd/flags", "volume must be greater than 0")
	}
	opts := request.Options{
		Source:              src,
		Quality:             quality,
		Volume:              f.volume,
		SpeedLimitMBps:      f.limitRate,
		FileName:            f.name,
		OutputDir:           f.outputDir,
		DropTrimForPlaylist: true,
	}
	// local files are written next to the source unless told otherwise
	if opts.OutputDir == "" && source.Classify(src).Remote() {
		opts.OutputDir = cfg.DownloadDir
	}
	if f.start != "" || f.end != "" {
		trim, err := parseTrim(f.start, f.end)
		if err != nil {
			return request.DownloadRequest{}, err
		}
		opts.Trim = &trim
	}
	return request.New(opts)
}

func parseTrim(start, end string) (request.TrimRange, error) {
	if end == "" {
		return request.TrimRange{}, fmt.Errorf("--end is required when trimming")
	}
	s := 0
	if start != "" {
		v, err := utils.ParseHMS(start)
		if err != nil {
			return request.TrimRange{}, fmt.Errorf("invalid --start: %w", err)
		}
		s = v
	}
	e, err := utils.ParseHMS(end)
	if err != nil {
		return request.TrimRange{}, fmt.Errorf("invalid --end: %w", err)
	}
	return request.TrimRange{Start: s, End: e}, nil
}
