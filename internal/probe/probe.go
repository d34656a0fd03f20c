// Package probe answers short questions about a source: its duration, title,
// playable stream URL, format list and playlist entries.
package probe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/clipr/internal/command"
	"github.com/tanq16/clipr/internal/errs"
	"github.com/tanq16/clipr/internal/source"
	"github.com/tanq16/clipr/internal/tools"
	"github.com/tanq16/clipr/internal/utils"
	"github.com/wader/goutubedl"
)

const DefaultTimeout = 30 * time.Second

// Prober runs yt-dlp and ffprobe through a Runner. Every call is bounded by
// Timeout and retried on transient failures.
type Prober struct {
	Paths   tools.Paths
	Runner  tools.Runner
	Retry   tools.RetryPolicy
	Timeout time.Duration
}

// New also points goutubedl at the resolved yt-dlp binary, so it must run
// before any Metadata call.
func New(paths tools.Paths, retry tools.RetryPolicy) *Prober {
	if paths.Ytdlp != "" {
		goutubedl.Path = paths.Ytdlp
	}
	return &Prober{Paths: paths, Runner: tools.ExecRunner{}, Retry: retry, Timeout: DefaultTimeout}
}

func (p *Prober) run(ctx context.Context, op, tool string, args []string) (string, error) {
	return tools.Retry(ctx, p.Retry, op, func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, p.timeout())
		defer cancel()
		out, err := p.Runner.Output(ctx, tool, args...)
		if err != nil {
			return "", errs.E(errs.KindOf(err), op, err)
		}
		return strings.TrimSpace(string(out)), nil
	})
}

// LocalDuration reads a media file's duration with ffprobe.
func (p *Prober) LocalDuration(ctx context.Context, path string) (time.Duration, error) {
	const op = "probe/local-duration"
	if err := p.Paths.Require(tools.FFprobe); err != nil {
		return 0, err
	}
	out, err := p.run(ctx, op, p.Paths.FFprobe, command.ProbeDuration(path))
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(firstLine(out), 64)
	if err != nil || seconds < 0 {
		return 0, errs.Errorf(errs.UnexpectedFailure, op, "unexpected ffprobe output %q", out)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// RemoteDuration asks yt-dlp for a video's duration in whole seconds.
func (p *Prober) RemoteDuration(ctx context.Context, url string) (int, error) {
	const op = "probe/remote-duration"
	if err := p.Paths.Require(tools.Ytdlp); err != nil {
		return 0, err
	}
	out, err := p.run(ctx, op, p.Paths.Ytdlp, command.Duration(url))
	if err != nil {
		return 0, err
	}
	seconds, err := utils.ParseHMS(firstLine(out))
	if err != nil {
		return 0, errs.E(errs.UnexpectedFailure, op, fmt.Errorf("unexpected duration %q: %w", out, err))
	}
	return seconds, nil
}

// Duration dispatches on the source kind. Playlists have no single duration.
func (p *Prober) Duration(ctx context.Context, src string) (int, error) {
	switch source.Classify(src) {
	case source.LocalFile:
		d, err := p.LocalDuration(ctx, source.LocalPath(src))
		return int(d / time.Second), err
	case source.Video:
		return p.RemoteDuration(ctx, src)
	case source.Playlist:
		return 0, errs.Errorf(errs.InvalidInput, "probe/duration", "playlists have no single duration")
	}
	return 0, errs.Errorf(errs.InvalidInput, "probe/duration", "unrecognized source %q", src)
}

// Title returns the video title, or the file name for local sources.
func (p *Prober) Title(ctx context.Context, src string) (string, error) {
	const op = "probe/title"
	if source.Classify(src) == source.LocalFile {
		return filepath.Base(source.LocalPath(src)), nil
	}
	if err := p.Paths.Require(tools.Ytdlp); err != nil {
		return "", err
	}
	out, err := p.run(ctx, op, p.Paths.Ytdlp, command.Title(src))
	if err != nil {
		return "", err
	}
	return firstLine(out), nil
}

// ResolveStream returns something ffmpeg can seek in: the path itself for
// local files, a direct media URL for remote ones.
func (p *Prober) ResolveStream(ctx context.Context, src string) (string, error) {
	const op = "probe/resolve-stream"
	if source.Classify(src) == source.LocalFile {
		return source.LocalPath(src), nil
	}
	if err := p.Paths.Require(tools.Ytdlp); err != nil {
		return "", err
	}
	out, err := p.run(ctx, op, p.Paths.Ytdlp, command.ResolveStream(src))
	if err != nil {
		return "", err
	}
	stream := firstLine(out)
	if stream == "" {
		return "", errs.E(errs.TransientToolFailure, op, errors.New("yt-dlp returned no stream url"))
	}
	log.Debug().Str("op", op).Msgf("resolved stream for %s", src)
	return stream, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
