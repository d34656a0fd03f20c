package preview

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/clipr/internal/command"
	"github.com/tanq16/clipr/internal/errs"
	"github.com/tanq16/clipr/internal/tools"
)

const frameTimeout = 30 * time.Second

// StreamResolver turns a source into an input ffmpeg can seek in.
type StreamResolver interface {
	ResolveStream(ctx context.Context, src string) (string, error)
}

// Previewer serves frames for one source at a time. Calls are serialized.
type Previewer struct {
	mu        sync.Mutex
	cache     *Cache
	workspace *Workspace
	resolver  StreamResolver
	runner    tools.Runner
	ffmpeg    string
	retry     tools.RetryPolicy

	source string
	stream string
}

func NewPreviewer(cache *Cache, ws *Workspace, resolver StreamResolver, runner tools.Runner, ffmpeg string, retry tools.RetryPolicy) *Previewer {
	return &Previewer{
		cache:     cache,
		workspace: ws,
		resolver:  resolver,
		runner:    runner,
		ffmpeg:    ffmpeg,
		retry:     retry,
	}
}

// SetSource switches to src, dropping every cached frame of the previous
// source.
func (p *Previewer) SetSource(src string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if src == p.source {
		return
	}
	p.cache.Clear()
	p.source = src
	p.stream = ""
}

// Frame returns the path of the frame of src at ts seconds. ok is false when
// no frame could be produced or src is no longer the current source; the
// cache is then left as it was.
func (p *Previewer) Frame(ctx context.Context, src string, ts int) (string, bool) {
	path, err := p.frame(ctx, src, ts)
	if err != nil {
		log.Debug().Str("op", "preview/frame").Err(err).Msgf("no preview at %ds", ts)
		return "", false
	}
	return path, true
}

func (p *Previewer) frame(ctx context.Context, src string, ts int) (string, error) {
	const op = "preview/frame"
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source == "" {
		return "", errs.Errorf(errs.InvalidInput, op, "no source set")
	}
	if src != p.source {
		return "", errs.Errorf(errs.InvalidInput, op, "source changed to %s", p.source)
	}
	if ts < 0 {
		return "", errs.Errorf(errs.InvalidInput, op, "negative timestamp %d", ts)
	}
	if path, ok := p.cache.Get(ts); ok {
		return path, nil
	}
	if p.ffmpeg == "" {
		return "", errs.Errorf(errs.DependencyMissing, op, "ffmpeg not found")
	}
	if p.stream == "" {
		stream, err := p.resolver.ResolveStream(ctx, p.source)
		if err != nil {
			return "", err
		}
		p.stream = stream
	}
	out := p.workspace.FramePath(ts)
	_, err := tools.Retry(ctx, p.retry, op, func(ctx context.Context) (struct{}, error) {
		ctx, cancel := context.WithTimeout(ctx, frameTimeout)
		defer cancel()
		if _, err := p.runner.Output(ctx, p.ffmpeg, command.Frame(p.stream, ts, out)...); err != nil {
			return struct{}{}, errs.E(errs.KindOf(err), op, err)
		}
		return struct{}{}, nil
	})
	if err != nil {
		os.Remove(out)
		return "", err
	}
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		os.Remove(out)
		return "", errs.Errorf(errs.TransientToolFailure, op, "ffmpeg produced no frame at %ds", ts)
	}
	p.cache.Put(ts, out)
	return out, nil
}

// Close drops all frames and removes the workspace.
func (p *Previewer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Clear()
	if err := p.workspace.Close(); err != nil {
		return fmt.Errorf("error removing preview workspace: %v", err)
	}
	return nil
}
