package progress

import (
	"regexp"
	"strings"
)

var destinationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[Merger\]\s+Merging formats into "(.+)"`),
	regexp.MustCompile(`\[(?:download|ExtractAudio|VideoConvertor|VideoRemuxer)\]\s+Destination:\s+(.+)$`),
	regexp.MustCompile(`\[download\]\s+(.+)\s+has already been downloaded`),
}

// Destination extracts the file path yt-dlp announces it is writing. The
// last announcement of a run is the final output.
func Destination(line string) (string, bool) {
	line = strings.TrimSpace(line)
	for _, re := range destinationPatterns {
		if m := re.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}
