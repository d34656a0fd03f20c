package command

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tanq16/clipr/internal/request"
	"github.com/tanq16/clipr/internal/utils"
)

const (
	ProgressTarget  = "pipe:1"
	TrimmedSuffix   = "_trimmed"
	ProcessedSuffix = "_processed"
)

// containers whose audio track is normally AAC and can be copied into m4a
var aacContainers = map[string]bool{
	".m4a": true,
	".mp4": true,
	".m4v": true,
	".mov": true,
	".aac": true,
}

// Local builds ffmpeg arguments that apply req to a local file and write out.
func Local(req request.DownloadRequest, out string) []string {
	args := []string{"-y", "-hide_banner", "-nostats", "-progress", ProgressTarget}
	if trim, ok := req.Trim(); ok {
		args = append(args, "-ss", utils.SecondsToHMS(trim.Start), "-to", utils.SecondsToHMS(trim.End))
	}
	args = append(args, "-i", req.Source())
	switch {
	case req.Quality().AudioOnly() && !req.NeedsProcessing() && aacContainers[strings.ToLower(filepath.Ext(req.Source()))]:
		args = append(args, "-vn", "-c:a", "copy")
	case req.Quality().AudioOnly():
		args = append(args, "-vn", "-c:a", AudioCodec, "-b:a", AudioBitrate)
		if req.VolumeChanged() {
			args = append(args, "-af", volumeFilter(req.Volume()))
		}
	case !req.NeedsProcessing():
		args = append(args, "-c", "copy")
	default:
		args = append(args, reencodeArgs()...)
		if req.VolumeChanged() {
			args = append(args, "-af", volumeFilter(req.Volume()))
		}
	}
	return append(args, out)
}

// LocalOutputPath picks where a processed local file is written. It never
// returns the source path or an existing file.
func LocalOutputPath(req request.DownloadRequest) string {
	src := req.Source()
	dir := req.OutputDir()
	if dir == "" {
		dir = filepath.Dir(src)
	}
	ext := filepath.Ext(src)
	stem := strings.TrimSuffix(filepath.Base(src), ext)
	switch {
	case req.Quality().AudioOnly():
		ext = "." + AudioFormat
	case req.NeedsProcessing():
		ext = "." + MergeFormat
	}
	name := req.FileName()
	if name == "" {
		suffix := ProcessedSuffix
		if _, ok := req.Trim(); ok {
			suffix = TrimmedSuffix
		}
		name = stem + suffix
	}
	out := filepath.Join(dir, name+ext)
	if _, err := os.Stat(out); err == nil || out == src {
		out = utils.RenewOutputPath(out)
	}
	return out
}
