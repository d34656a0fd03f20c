package probe

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/clipr/internal/errs"
	"github.com/tanq16/clipr/internal/request"
	"github.com/tanq16/clipr/internal/tools"
	"github.com/wader/goutubedl"
)

type Format struct {
	ID       string
	Ext      string
	Height   int
	VCodec   string
	ACodec   string
	Filesize int64
	FPS      float64
}

func (f Format) hasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

func (f Format) hasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

type Metadata struct {
	ID       string
	Title    string
	Duration int
	Formats  []Format
}

// Metadata loads the title, duration and format list of a single video.
func (p *Prober) Metadata(ctx context.Context, url string) (Metadata, error) {
	const op = "probe/metadata"
	if err := p.Paths.Require(tools.Ytdlp); err != nil {
		return Metadata{}, err
	}
	return tools.Retry(ctx, p.Retry, op, func(ctx context.Context) (Metadata, error) {
		ctx, cancel := context.WithTimeout(ctx, p.timeout())
		defer cancel()
		result, err := goutubedl.New(ctx, url, goutubedl.Options{Type: goutubedl.TypeSingle})
		if err != nil {
			kind := errs.KindOf(err)
			if ctx.Err() != nil {
				kind = errs.TransientToolFailure
			}
			return Metadata{}, errs.E(kind, op, fmt.Errorf("failed to fetch metadata: %w", err))
		}
		return fromInfo(result.Info), nil
	})
}

func fromInfo(info goutubedl.Info) Metadata {
	meta := Metadata{ID: info.ID, Title: info.Title, Duration: int(info.Duration)}
	for _, f := range info.Formats {
		meta.Formats = append(meta.Formats, Format{
			ID:       f.FormatID,
			Ext:      f.Ext,
			Height:   int(f.Height),
			VCodec:   f.VCodec,
			ACodec:   f.ACodec,
			Filesize: int64(f.Filesize),
			FPS:      f.FPS,
		})
	}
	log.Debug().Str("op", "probe/metadata").Msgf("%s: %d formats, %ds", meta.ID, len(meta.Formats), meta.Duration)
	return meta
}

// EstimateSize sums the largest video format not taller than the requested
// quality and the largest audio-only format. Audio requests count audio only.
// A trim scales the total linearly. ok is false when no size is known.
func EstimateSize(meta Metadata, quality request.Quality, trim *request.TrimRange) (int64, bool) {
	var bestVideo, bestAudio Format
	for _, f := range meta.Formats {
		if f.Filesize <= 0 {
			continue
		}
		switch {
		case f.hasAudio() && !f.hasVideo():
			if f.Filesize > bestAudio.Filesize {
				bestAudio = f
			}
		case f.hasVideo() && !quality.AudioOnly() && f.Height <= int(quality):
			if f.Height > bestVideo.Height || (f.Height == bestVideo.Height && f.Filesize > bestVideo.Filesize) {
				bestVideo = f
			}
		}
	}
	size := bestAudio.Filesize
	if !quality.AudioOnly() {
		if bestVideo.Filesize == 0 {
			return 0, false
		}
		size += bestVideo.Filesize
	}
	if size <= 0 {
		return 0, false
	}
	if trim != nil && meta.Duration > 0 {
		fraction := float64(trim.Duration()) / float64(meta.Duration)
		size = int64(float64(size) * min(fraction, 1))
	}
	return size, true
}

// SizeEstimate fetches metadata and estimates the download size for req.
func (p *Prober) SizeEstimate(ctx context.Context, req request.DownloadRequest) (int64, bool, error) {
	meta, err := p.Metadata(ctx, req.Source())
	if err != nil {
		return 0, false, err
	}
	var trim *request.TrimRange
	if t, ok := req.Trim(); ok {
		trim = &t
	}
	size, ok := EstimateSize(meta, req.Quality(), trim)
	return size, ok, nil
}
