// Package command turns a request into argument lists for yt-dlp and ffmpeg.
// Nothing here spawns processes.
package command

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tanq16/clipr/internal/request"
	"github.com/tanq16/clipr/internal/tools"
	"github.com/tanq16/clipr/internal/utils"
)

// yt-dlp output templates
const (
	TitleTemplate         = "%(title)s.%(ext)s"
	PlaylistTemplate      = "%(playlist_index)s-%(title)s.%(ext)s"
	PlaylistIndexTemplate = "%(playlist_index)s"
	ExtTemplate           = "%(ext)s"
)

// Throughput knobs, passed on every download
const (
	ConcurrentFragments = "5"
	BufferSize          = "16K"
	HTTPChunkSize       = "10M"
)

// Audio extraction
const (
	AudioFormat  = "m4a"
	AudioQuality = "128K"
)

// Re-encode parameters shared by yt-dlp post-processing and local ffmpeg runs
const (
	MergeFormat  = "mp4"
	VideoCodec   = "libx264"
	VideoCRF     = "23"
	VideoPreset  = "faster"
	AudioCodec   = "aac"
	AudioBitrate = "128k"
)

const postprocessorPrefix = "ffmpeg:"

// Download builds the yt-dlp arguments for req. The executable itself is not
// part of the result.
func Download(req request.DownloadRequest, paths tools.Paths) []string {
	args := []string{
		"--newline",
		"--progress",
		"--no-warnings",
		"--concurrent-fragments", ConcurrentFragments,
		"--buffer-size", BufferSize,
		"--http-chunk-size", HTTPChunkSize,
	}
	if paths.FFmpeg != "" {
		args = append(args, "--ffmpeg-location", paths.FFmpeg)
	}
	if limit := req.SpeedLimitMBps(); limit > 0 {
		args = append(args, "--limit-rate", formatNumber(limit)+"M")
	}
	if req.Quality().AudioOnly() {
		args = append(args, audioArgs(req)...)
	} else {
		args = append(args, videoArgs(req)...)
	}
	if req.Playlist() {
		args = append(args, "--yes-playlist")
	} else {
		args = append(args, "--no-playlist")
	}
	return append(args, "-o", OutputTemplate(req), req.Source())
}

func audioArgs(req request.DownloadRequest) []string {
	args := []string{
		"-f", "bestaudio",
		"--extract-audio",
		"--audio-format", AudioFormat,
		"--audio-quality", AudioQuality,
	}
	if req.Playlist() {
		return args
	}
	var filters []string
	if trim, ok := req.Trim(); ok {
		filters = append(filters, "-ss", utils.SecondsToHMS(trim.Start), "-to", utils.SecondsToHMS(trim.End))
	}
	if req.VolumeChanged() {
		filters = append(filters, "-af", volumeFilter(req.Volume()))
	}
	if len(filters) > 0 {
		args = append(args, "--postprocessor-args", postprocessorPrefix+strings.Join(filters, " "))
	}
	return args
}

func videoArgs(req request.DownloadRequest) []string {
	height := int(req.Quality())
	args := []string{
		"-f", fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", height, height),
		"--merge-output-format", MergeFormat,
	}
	if req.Playlist() {
		return args
	}
	if trim, ok := req.Trim(); ok {
		args = append(args,
			"--download-sections", fmt.Sprintf("*%s-%s", utils.SecondsToHMS(trim.Start), utils.SecondsToHMS(trim.End)),
			"--force-keyframes-at-cuts",
		)
	}
	// no trim and no volume change: the merge is a plain stream copy
	if !req.NeedsProcessing() {
		return args
	}
	encode := reencodeArgs()
	if req.VolumeChanged() {
		encode = append(encode, "-af", volumeFilter(req.Volume()))
	}
	return append(args, "--postprocessor-args", postprocessorPrefix+strings.Join(encode, " "))
}

// OutputTemplate is the -o value: the custom name replaces the title token.
func OutputTemplate(req request.DownloadRequest) string {
	name := escapeTemplate(req.FileName())
	var tmpl string
	switch {
	case req.Playlist() && name != "":
		tmpl = name + "-" + PlaylistIndexTemplate + "." + ExtTemplate
	case req.Playlist():
		tmpl = PlaylistTemplate
	case name != "":
		tmpl = name + "." + ExtTemplate
	default:
		tmpl = TitleTemplate
	}
	if req.OutputDir() == "" {
		return tmpl
	}
	return filepath.Join(req.OutputDir(), tmpl)
}

func reencodeArgs() []string {
	return []string{
		"-c:v", VideoCodec,
		"-crf", VideoCRF,
		"-preset", VideoPreset,
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
	}
}

func volumeFilter(volume float64) string {
	return "volume=" + formatNumber(volume)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// escapeTemplate keeps a literal % in a user file name from being read as a
// yt-dlp template field.
func escapeTemplate(name string) string {
	return strings.ReplaceAll(name, "%", "%%")
}
