package output

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

const progressWidth = 30

// ProgressBar renders percent (0 to 100) as a fixed-width bar.
func ProgressBar(percent float64, width int) string {
	if width <= 0 {
		width = progressWidth
	}
	percent = max(0, min(percent, 100))
	filled := max(0, min(int(percent/100*float64(width)), width))
	bar := symbolBullet
	bar += strings.Repeat(symbolHLine, filled)
	bar += strings.Repeat(" ", width-filled)
	bar += symbolBullet
	return debugStyle.Render(fmt.Sprintf("%s %.1f%% %s ", bar, percent, symbolBullet))
}

// IsTerminal reports whether stdout can be redrawn in place.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func terminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 || height <= 0 {
		return 80, 24
	}
	return width, height
}

func wrapText(text string, indent int) []string {
	termWidth, _ := terminalSize()
	maxWidth := termWidth - indent - 2
	if maxWidth <= 10 {
		maxWidth = 80
	}
	if utf8.RuneCountInString(text) <= maxWidth {
		return []string{text}
	}
	var lines []string
	var current strings.Builder
	width := 0
	for _, r := range text {
		if width+1 > maxWidth {
			lines = append(lines, current.String())
			current.Reset()
			width = 0
		}
		current.WriteRune(r)
		width++
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
