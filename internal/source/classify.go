package source

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type Kind int

const (
	Unknown Kind = iota
	Video
	Playlist
	LocalFile
)

func (k Kind) String() string {
	switch k {
	case Video:
		return "video"
	case Playlist:
		return "playlist"
	case LocalFile:
		return "local"
	default:
		return "unknown"
	}
}

func (k Kind) Remote() bool {
	return k == Video || k == Playlist
}

var youtubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
}

var mediaExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".webm": true, ".mov": true, ".avi": true,
	".flv": true, ".m4v": true, ".wmv": true, ".ts": true,
	".m4a": true, ".mp3": true, ".wav": true, ".aac": true, ".opus": true,
	".ogg": true, ".flac": true,
}

var audioExtensions = map[string]bool{
	".m4a": true, ".mp3": true, ".wav": true, ".aac": true, ".opus": true,
	".ogg": true, ".flac": true,
}

// Classify decides what kind of source the user handed us. Any http(s) URL
// outside YouTube is assumed to be a single video for yt-dlp to resolve.
func Classify(input string) Kind {
	input = Normalize(input)
	if input == "" {
		return Unknown
	}
	if strings.HasPrefix(input, "file://") {
		return classifyPath(strings.TrimPrefix(input, "file://"))
	}
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return classifyURL(input)
	}
	if youtubeHosts[hostOf(input)] {
		return classifyURL("https://" + input)
	}
	return classifyPath(input)
}

// Normalize trims whitespace and the quotes shells and file managers add
// around dropped paths.
func Normalize(input string) string {
	input = strings.TrimSpace(input)
	input = strings.Trim(input, `"'`)
	return input
}

// LocalPath returns the filesystem path for a local source.
func LocalPath(input string) string {
	return strings.TrimPrefix(Normalize(input), "file://")
}

func classifyURL(raw string) Kind {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Unknown
	}
	host := strings.ToLower(u.Hostname())
	if !youtubeHosts[host] {
		return Video
	}
	if strings.Contains(u.Path, "/playlist") || u.Query().Get("list") != "" {
		return Playlist
	}
	if host == "youtu.be" {
		if strings.Trim(u.Path, "/") != "" {
			return Video
		}
		return Unknown
	}
	switch {
	case u.Path == "/watch" && u.Query().Get("v") != "":
		return Video
	case strings.HasPrefix(u.Path, "/shorts/"),
		strings.HasPrefix(u.Path, "/embed/"),
		strings.HasPrefix(u.Path, "/live/"):
		return Video
	}
	return Unknown
}

func classifyPath(path string) Kind {
	if path == "" {
		return Unknown
	}
	if mediaExtensions[strings.ToLower(filepath.Ext(path))] {
		return LocalFile
	}
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return LocalFile
	}
	return Unknown
}

func hostOf(input string) string {
	host, _, _ := strings.Cut(input, "/")
	return strings.ToLower(host)
}

// PlaylistID extracts the list= parameter from a playlist URL.
func PlaylistID(raw string) string {
	u, err := url.Parse(Normalize(raw))
	if err != nil {
		return ""
	}
	return u.Query().Get("list")
}

func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}
