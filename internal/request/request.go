// Package request holds the validated, immutable description of one download.
package request

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tanq16/clipr/internal/errs"
	"github.com/tanq16/clipr/internal/source"
)

type Quality int

const QualityAudio Quality = 0

var supportedHeights = []Quality{1440, 1080, 720, 480, 360, 240}

const (
	MinVolume     = 0.0
	MaxVolume     = 2.0
	DefaultVolume = 1.0
	MinTrimGap    = 1
)

const (
	PlaylistWarning       = "Playlist detected - Trimming and upload disabled for playlists"
	PlaylistVolumeWarning = "Volume adjustment disabled for playlists, keeping original volume"
)

var (
	ErrTrimWithPlaylist   = errors.New("trimming is not available for playlists")
	ErrVolumeWithPlaylist = errors.New("volume adjustment is not available for playlists")
	ErrInvalidTrim        = errors.New("trim start must be before trim end")
	ErrNoQuality          = errors.New("please select a video quality")
)

// ParseQuality accepts "720", "720p", "audio" or "mp3".
func ParseQuality(value string) (Quality, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "audio", "audio-only", "m4a", "mp3":
		return QualityAudio, nil
	case "", "none":
		return 0, errs.E(errs.InvalidInput, "request/quality", ErrNoQuality)
	}
	n, err := strconv.Atoi(strings.TrimSuffix(v, "p"))
	if err != nil {
		return 0, errs.Errorf(errs.InvalidInput, "request/quality", "unknown quality %q", value)
	}
	q := Quality(n)
	if !q.Valid() {
		return 0, errs.Errorf(errs.InvalidInput, "request/quality", "unsupported quality %q", value)
	}
	return q, nil
}

func (q Quality) Valid() bool {
	if q == QualityAudio {
		return true
	}
	for _, h := range supportedHeights {
		if q == h {
			return true
		}
	}
	return false
}

func (q Quality) AudioOnly() bool {
	return q == QualityAudio
}

func (q Quality) String() string {
	if q == QualityAudio {
		return "audio"
	}
	return fmt.Sprintf("%dp", int(q))
}

type TrimRange struct {
	Start int
	End   int
}

func (t TrimRange) Duration() int {
	return t.End - t.Start
}

// Options is the loose user input a DownloadRequest is built from.
type Options struct {
	Source         string
	Quality        Quality
	Trim           *TrimRange
	Volume         float64
	SpeedLimitMBps float64
	FileName       string
	OutputDir      string
	// DropTrimForPlaylist clears a trim and resets the volume instead of
	// failing when the source turns out to be a playlist.
	DropTrimForPlaylist bool
}

// DownloadRequest is never mutated after New returns it.
type DownloadRequest struct {
	source         string
	kind           source.Kind
	quality        Quality
	trim           *TrimRange
	volume         float64
	speedLimitMBps float64
	fileName       string
	outputDir      string
	warnings       []string
}

func New(opts Options) (DownloadRequest, error) {
	const op = "request/new"
	src := source.Normalize(opts.Source)
	kind := source.Classify(src)
	if kind == source.Unknown {
		return DownloadRequest{}, errs.Errorf(errs.InvalidInput, op, "unrecognized source %q", opts.Source)
	}
	if kind == source.LocalFile {
		src = source.LocalPath(src)
	}
	if !opts.Quality.Valid() {
		return DownloadRequest{}, errs.Errorf(errs.InvalidInput, op, "unsupported quality %d", int(opts.Quality))
	}
	volume := opts.Volume
	if volume == 0 {
		volume = DefaultVolume
	}
	if volume <= MinVolume || volume > MaxVolume {
		return DownloadRequest{}, errs.Errorf(errs.InvalidInput, op, "volume %.2f out of range (0, %.1f]", volume, MaxVolume)
	}
	if opts.SpeedLimitMBps < 0 {
		return DownloadRequest{}, errs.Errorf(errs.InvalidInput, op, "speed limit must not be negative")
	}
	if strings.ContainsAny(opts.FileName, `/\`) {
		return DownloadRequest{}, errs.Errorf(errs.InvalidInput, op, "file name %q must not contain path separators", opts.FileName)
	}
	req := DownloadRequest{
		source:         src,
		kind:           kind,
		quality:        opts.Quality,
		volume:         volume,
		speedLimitMBps: opts.SpeedLimitMBps,
		fileName:       strings.TrimSpace(opts.FileName),
		outputDir:      opts.OutputDir,
	}
	if kind == source.Playlist {
		req.warnings = append(req.warnings, PlaylistWarning)
		if opts.Trim != nil {
			if !opts.DropTrimForPlaylist {
				return DownloadRequest{}, errs.E(errs.InvalidInput, op, ErrTrimWithPlaylist)
			}
			opts.Trim = nil
		}
		if req.VolumeChanged() {
			if !opts.DropTrimForPlaylist {
				return DownloadRequest{}, errs.E(errs.InvalidInput, op, ErrVolumeWithPlaylist)
			}
			req.volume = DefaultVolume
			req.warnings = append(req.warnings, PlaylistVolumeWarning)
		}
	}
	if opts.Trim != nil {
		if opts.Trim.Start < 0 || opts.Trim.Start >= opts.Trim.End {
			return DownloadRequest{}, errs.E(errs.InvalidInput, op, ErrInvalidTrim)
		}
		trim := *opts.Trim
		req.trim = &trim
	}
	return req, nil
}

func (r DownloadRequest) Source() string          { return r.source }
func (r DownloadRequest) Kind() source.Kind       { return r.kind }
func (r DownloadRequest) Quality() Quality        { return r.quality }
func (r DownloadRequest) Volume() float64         { return r.volume }
func (r DownloadRequest) SpeedLimitMBps() float64 { return r.speedLimitMBps }
func (r DownloadRequest) FileName() string        { return r.fileName }
func (r DownloadRequest) OutputDir() string       { return r.outputDir }
func (r DownloadRequest) Playlist() bool          { return r.kind == source.Playlist }

// Trim returns a copy of the trim range, if any.
func (r DownloadRequest) Trim() (TrimRange, bool) {
	if r.trim == nil {
		return TrimRange{}, false
	}
	return *r.trim, true
}

func (r DownloadRequest) VolumeChanged() bool {
	return r.volume != DefaultVolume
}

// NeedsProcessing is false when the output would be a straight stream copy.
// Playlists never need it.
func (r DownloadRequest) NeedsProcessing() bool {
	if r.Playlist() {
		return false
	}
	return r.trim != nil || r.VolumeChanged()
}

func (r DownloadRequest) Warnings() []string {
	return append([]string(nil), r.warnings...)
}

// ClampTrim keeps start < end with at least MinTrimGap seconds between them
// inside [0, duration]. The bound that was not moved is nudged.
func ClampTrim(start, end, duration int, movedStart bool) TrimRange {
	if duration < MinTrimGap {
		duration = MinTrimGap
	}
	start = max(0, min(start, duration))
	end = max(0, min(end, duration))
	if end-start < MinTrimGap {
		if movedStart {
			end = min(start+MinTrimGap, duration)
			start = end - MinTrimGap
		} else {
			start = max(end-MinTrimGap, 0)
			end = start + MinTrimGap
		}
	}
	return TrimRange{Start: start, End: end}
}
