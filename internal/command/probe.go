package command

import (
	"fmt"

	"github.com/tanq16/clipr/internal/utils"
)

// PreviewHeight caps the stream resolved for frame extraction.
const PreviewHeight = 480

func ResolveStream(url string) []string {
	return []string{"-g", "-f", fmt.Sprintf("best[height<=%d]", PreviewHeight), "--no-playlist", url}
}

func Frame(input string, timestamp int, out string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", utils.SecondsToHMS(timestamp),
		"-i", input,
		"-frames:v", "1",
		"-q:v", "2",
		out,
	}
}

func Duration(url string) []string {
	return []string{"--get-duration", "--no-playlist", url}
}

func Title(url string) []string {
	return []string{"--get-title", "--no-playlist", url}
}

func ProbeDuration(path string) []string {
	return []string{"-v", "error", "-show_entries", "format=duration", "-of", "csv=p=0", path}
}
