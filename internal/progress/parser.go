package progress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Phase int

const (
	Unknown Phase = iota
	Starting
	Downloading
	Merging
	ExtractingAudio
	Processing
	PostProcessing
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Downloading:
		return "downloading"
	case Merging:
		return "merging"
	case ExtractingAudio:
		return "extracting_audio"
	case Processing:
		return "processing"
	case PostProcessing:
		return "post_processing"
	default:
		return "unknown"
	}
}

// Event is what a single output line says about the running tool.
type Event struct {
	Phase   Phase
	Percent *float64
	Speed   string
	ETA     string
}

func (e Event) HasPercent() bool {
	return e.Percent != nil
}

// Status renders the line shown to the user for this event.
func (e Event) Status() string {
	switch e.Phase {
	case Starting:
		return "Preparing download..."
	case Merging:
		return "Merging video and audio..."
	case ExtractingAudio:
		return "Extracting audio..."
	case Processing:
		if e.Percent != nil {
			return fmt.Sprintf("Processing with ffmpeg... %.1f%%", *e.Percent)
		}
		return "Processing with ffmpeg..."
	case PostProcessing:
		return "Post-processing..."
	case Downloading:
		if e.Percent != nil {
			return fmt.Sprintf("Downloading... %.1f%%", *e.Percent)
		}
		return "Downloading..."
	}
	return ""
}

var (
	percentRe = regexp.MustCompile(`(\d+\.?\d*)%`)
	speedRe   = regexp.MustCompile(`at\s+(~?\s*\d+(?:\.\d+)?\s*[KMGT]?i?B/s)`)
	etaRe     = regexp.MustCompile(`ETA\s+(\d{1,2}:\d{2}(?::\d{2})?)`)
)

// phase keywords, checked in order; later post-processing steps win over
// the generic download marker that yt-dlp prints on most lines
var phaseKeywords = []struct {
	phase    Phase
	keywords []string
}{
	{Merging, []string{"[Merger]", "Merging"}},
	{ExtractingAudio, []string{"[ExtractAudio]"}},
	{PostProcessing, []string{"Post-processing", "[VideoConvertor]", "[VideoRemuxer]"}},
	{Processing, []string{"[ffmpeg]", "[FixupM3u8]", "[FixupM4a]"}},
	{Downloading, []string{"[download]", "Downloading"}},
}

// ParseLine classifies one line of yt-dlp output. ok is false for lines that
// carry no progress signal.
func ParseLine(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}
	ev := Event{Phase: phaseOf(line)}
	if m := percentRe.FindStringSubmatch(line); m != nil {
		if p, err := strconv.ParseFloat(m[1], 64); err == nil && p <= 100 {
			ev.Percent = &p
			if ev.Phase == Unknown {
				ev.Phase = Downloading
			}
		}
	}
	if ev.Percent != nil {
		if m := speedRe.FindStringSubmatch(line); m != nil {
			ev.Speed = strings.ReplaceAll(m[1], " ", "")
		}
		if m := etaRe.FindStringSubmatch(line); m != nil {
			ev.ETA = m[1]
		}
	}
	if ev.Phase == Unknown {
		return Event{}, false
	}
	return ev, true
}

func phaseOf(line string) Phase {
	for _, pk := range phaseKeywords {
		for _, kw := range pk.keywords {
			if strings.Contains(line, kw) {
				return pk.phase
			}
		}
	}
	return Unknown
}

// Parser wraps ParseLine with knowledge of the expected media duration, which
// is needed to turn ffmpeg -progress output into a percentage.
type Parser struct {
	Duration time.Duration
}

func (p Parser) Parse(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if p.Duration > 0 {
		if ev, ok := p.parseFFmpegProgress(line); ok {
			return ev, true
		}
	}
	return ParseLine(line)
}

func (p Parser) parseFFmpegProgress(line string) (Event, bool) {
	key, value, found := strings.Cut(line, "=")
	if !found || strings.ContainsAny(key, " []") {
		return Event{}, false
	}
	var elapsed time.Duration
	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports microseconds under both keys
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return Event{}, false
		}
		elapsed = time.Duration(us) * time.Microsecond
	case "out_time":
		d, ok := parseClock(value)
		if !ok {
			return Event{}, false
		}
		elapsed = d
	case "progress":
		if value != "end" {
			return Event{}, false
		}
		elapsed = p.Duration
	default:
		return Event{}, false
	}
	pct := min(100, float64(elapsed)/float64(p.Duration)*100)
	return Event{Phase: Processing, Percent: &pct}, true
}

func parseClock(value string) (time.Duration, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	s, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || h < 0 || m < 0 || s < 0 {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s*float64(time.Second)), true
}
