package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// RenewOutputPath returns the first "name-(N).ext" sibling that does not exist yet.
func RenewOutputPath(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	index := 1
	for {
		outputPath = filepath.Join(dir, fmt.Sprintf("%s-(%d)%s", name, index, ext))
		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			return outputPath
		}
		index++
	}
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatMB renders a byte count the way size estimates are shown to users.
func FormatMB(bytes int64) string {
	return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
}

// SecondsToHMS formats whole seconds as HH:MM:SS. Negative input is treated as zero.
func SecondsToHMS(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / secondsPerHour
	m := (seconds % secondsPerHour) / secondsPerMinute
	s := seconds % secondsPerMinute
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseHMS parses "SS", "MM:SS" or "HH:MM:SS" (fractional seconds are
// truncated) into whole seconds.
func ParseHMS(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty time value")
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid time value %q", value)
	}
	total := 0
	for i, part := range parts {
		var n int
		if i == len(parts)-1 {
			f, err := strconv.ParseFloat(part, 64)
			if err != nil || f < 0 {
				return 0, fmt.Errorf("invalid time value %q", value)
			}
			n = int(f)
		} else {
			v, err := strconv.Atoi(part)
			if err != nil || v < 0 {
				return 0, fmt.Errorf("invalid time value %q", value)
			}
			n = v
		}
		if i > 0 && n >= secondsPerMinute {
			return 0, fmt.Errorf("invalid time value %q", value)
		}
		total = total*secondsPerMinute + n
	}
	return total, nil
}
