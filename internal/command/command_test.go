package command

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/tanq16/clipr/internal/request"
	"github.com/tanq16/clipr/internal/tools"
)

const videoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func mustRequest(t *testing.T, opts request.Options) request.DownloadRequest {
	t.Helper()
	req, err := request.New(opts)
	if err != nil {
		t.Fatalf("request.New(%+v) error: %v", opts, err)
	}
	return req
}

func valueAfter(args []string, flag string) (string, bool) {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return "", false
	}
	return args[i+1], true
}

func TestDownloadCommonFlags(t *testing.T) {
	req := mustRequest(t, request.Options{Source: videoURL, Quality: 720})
	args := Download(req, tools.Paths{FFmpeg: "/usr/bin/ffmpeg"})
	for flag, expected := range map[string]string{
		"--concurrent-fragments": "5",
		"--buffer-size":          "16K",
		"--http-chunk-size":      "10M",
		"--ffmpeg-location":      "/usr/bin/ffmpeg",
		"-o":                     TitleTemplate,
	} {
		if got, ok := valueAfter(args, flag); !ok || got != expected {
			t.Errorf("%s = %q, expected %q", flag, got, expected)
		}
	}
	for _, flag := range []string{"--newline", "--progress", "--no-playlist"} {
		if !slices.Contains(args, flag) {
			t.Errorf("missing %s in %v", flag, args)
		}
	}
	if slices.Contains(args, "--limit-rate") {
		t.Error("no speed cap requested, --limit-rate should be absent")
	}
	if args[len(args)-1] != videoURL {
		t.Errorf("source must be last, got %v", args)
	}
}

func TestDownloadVideoTrim(t *testing.T) {
	req := mustRequest(t, request.Options{Source: videoURL, Quality: 720, Trim: &request.TrimRange{Start: 15, End: 90}})
	args := Download(req, tools.Paths{})
	if got, _ := valueAfter(args, "--download-sections"); got != "*00:00:15-00:01:30" {
		t.Errorf("--download-sections = %q", got)
	}
	if !slices.Contains(args, "--force-keyframes-at-cuts") {
		t.Error("missing --force-keyframes-at-cuts")
	}
	if got, _ := valueAfter(args, "-f"); got != "bestvideo[height<=720]+bestaudio/best[height<=720]" {
		t.Errorf("-f = %q", got)
	}
	pp, ok := valueAfter(args, "--postprocessor-args")
	if !ok || !strings.Contains(pp, "-c:v libx264") || !strings.Contains(pp, "-crf 23") {
		t.Errorf("trimmed video must re-encode, got %q", pp)
	}
}

func TestDownloadVideoFastPath(t *testing.T) {
	req := mustRequest(t, request.Options{Source: videoURL, Quality: 1080})
	args := Download(req, tools.Paths{})
	if slices.Contains(args, "--postprocessor-args") {
		t.Errorf("unprocessed video should stream copy, got %v", args)
	}
	if got, _ := valueAfter(args, "--merge-output-format"); got != "mp4" {
		t.Errorf("--merge-output-format = %q", got)
	}
}

func TestDownloadVideoVolume(t *testing.T) {
	req := mustRequest(t, request.Options{Source: videoURL, Quality: 480, Volume: 0.5})
	pp, ok := valueAfter(Download(req, tools.Paths{}), "--postprocessor-args")
	if !ok || !strings.HasSuffix(pp, "-af volume=0.5") || !strings.HasPrefix(pp, "ffmpeg:") {
		t.Errorf("--postprocessor-args = %q", pp)
	}
}

func TestDownloadAudio(t *testing.T) {
	tests := []struct {
		name     string
		opts     request.Options
		expected string
	}{
		{"plain", request.Options{Source: videoURL, Quality: request.QualityAudio}, ""},
		{"explicit unity volume", request.Options{Source: videoURL, Quality: request.QualityAudio, Volume: 1.0}, ""},
		{"louder", request.Options{Source: videoURL, Quality: request.QualityAudio, Volume: 1.5}, "ffmpeg:-af volume=1.5"},
		{"trim", request.Options{Source: videoURL, Quality: request.QualityAudio, Trim: &request.TrimRange{Start: 5, End: 65}}, "ffmpeg:-ss 00:00:05 -to 00:01:05"},
		{"trim and volume", request.Options{Source: videoURL, Quality: request.QualityAudio, Volume: 1.25, Trim: &request.TrimRange{Start: 0, End: 10}}, "ffmpeg:-ss 00:00:00 -to 00:00:10 -af volume=1.25"},
	}
	for _, tt := range tests {
		args := Download(mustRequest(t, tt.opts), tools.Paths{})
		for _, flag := range []string{"--extract-audio", "--audio-format", "--audio-quality"} {
			if !slices.Contains(args, flag) {
				t.Errorf("%s: missing %s", tt.name, flag)
			}
		}
		if slices.Contains(args, "--download-sections") {
			t.Errorf("%s: audio trims through ffmpeg, not --download-sections", tt.name)
		}
		pp, ok := valueAfter(args, "--postprocessor-args")
		if tt.expected == "" {
			if ok {
				t.Errorf("%s: expected no post-processing, got %q", tt.name, pp)
			}
			continue
		}
		if pp != tt.expected {
			t.Errorf("%s: --postprocessor-args = %q, expected %q", tt.name, pp, tt.expected)
		}
	}
}

func TestDownloadSpeedLimit(t *testing.T) {
	req := mustRequest(t, request.Options{Source: videoURL, Quality: 720, SpeedLimitMBps: 2.5})
	if got, _ := valueAfter(Download(req, tools.Paths{}), "--limit-rate"); got != "2.5M" {
		t.Errorf("--limit-rate = %q, expected 2.5M", got)
	}
}

func TestDownloadPlaylistNeverTrims(t *testing.T) {
	tests := []struct {
		name string
		opts request.Options
	}{
		{"trim", request.Options{Quality: 720, Trim: &request.TrimRange{Start: 1, End: 30}}},
		{"volume", request.Options{Quality: 720, Volume: 1.5}},
		{"audio trim and volume", request.Options{Quality: request.QualityAudio, Volume: 0.5, Trim: &request.TrimRange{Start: 1, End: 30}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			opts.Source = "https://www.youtube.com/watch?v=abc&list=PL1"
			opts.DropTrimForPlaylist = true
			args := Download(mustRequest(t, opts), tools.Paths{})
			for _, flag := range []string{"--download-sections", "--force-keyframes-at-cuts", "--postprocessor-args", "--no-playlist"} {
				if slices.Contains(args, flag) {
					t.Errorf("playlist command must not contain %s: %v", flag, args)
				}
			}
			if !slices.Contains(args, "--yes-playlist") {
				t.Error("missing --yes-playlist")
			}
			if got, _ := valueAfter(args, "-o"); got != PlaylistTemplate {
				t.Errorf("-o = %q", got)
			}
		})
	}
}

func TestOutputTemplate(t *testing.T) {
	tests := []struct {
		name     string
		opts     request.Options
		expected string
	}{
		{"title", request.Options{Source: videoURL, Quality: 720}, "%(title)s.%(ext)s"},
		{"custom", request.Options{Source: videoURL, Quality: 720, FileName: "my clip"}, "my clip.%(ext)s"},
		{"percent", request.Options{Source: videoURL, Quality: 720, FileName: "100%"}, "100%%.%(ext)s"},
		{"dir", request.Options{Source: videoURL, Quality: 720, OutputDir: "out"}, filepath.Join("out", "%(title)s.%(ext)s")},
		{"playlist custom", request.Options{Source: "https://www.youtube.com/playlist?list=PL1", Quality: 720, FileName: "set"}, "set-%(playlist_index)s.%(ext)s"},
	}
	for _, tt := range tests {
		if got := OutputTemplate(mustRequest(t, tt.opts)); got != tt.expected {
			t.Errorf("%s: OutputTemplate = %q, expected %q", tt.name, got, tt.expected)
		}
	}
}

func TestLocal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "talk.mkv")

	copyReq := mustRequest(t, request.Options{Source: src, Quality: 720})
	args := Local(copyReq, "out.mkv")
	if got, _ := valueAfter(args, "-c"); got != "copy" {
		t.Errorf("unprocessed local video should stream copy: %v", args)
	}
	if got, _ := valueAfter(args, "-progress"); got != ProgressTarget {
		t.Errorf("-progress = %q", got)
	}

	trimReq := mustRequest(t, request.Options{Source: src, Quality: 720, Volume: 1.5, Trim: &request.TrimRange{Start: 60, End: 120}})
	args = Local(trimReq, "out.mp4")
	if got, _ := valueAfter(args, "-ss"); got != "00:01:00" {
		t.Errorf("-ss = %q", got)
	}
	if got, _ := valueAfter(args, "-to"); got != "00:02:00" {
		t.Errorf("-to = %q", got)
	}
	if slices.Index(args, "-ss") > slices.Index(args, "-i") {
		t.Error("-ss must be an input option")
	}
	if got, _ := valueAfter(args, "-af"); got != "volume=1.5" {
		t.Errorf("-af = %q", got)
	}
	if got, _ := valueAfter(args, "-c:v"); got != VideoCodec {
		t.Errorf("-c:v = %q", got)
	}

	audioTests := []struct {
		name   string
		source string
		volume float64
		codec  string
	}{
		{"aac source copies", filepath.Join(dir, "talk.mp4"), 0, "copy"},
		{"m4a source copies", filepath.Join(dir, "talk.M4A"), 0, "copy"},
		{"volume re-encodes", filepath.Join(dir, "talk.mp4"), 1.5, AudioCodec},
		{"other container re-encodes", src, 0, AudioCodec},
	}
	for _, tt := range audioTests {
		t.Run(tt.name, func(t *testing.T) {
			req := mustRequest(t, request.Options{Source: tt.source, Quality: request.QualityAudio, Volume: tt.volume})
			args := Local(req, "out.m4a")
			if !slices.Contains(args, "-vn") || args[len(args)-1] != "out.m4a" {
				t.Errorf("audio args = %v", args)
			}
			if got, _ := valueAfter(args, "-c:a"); got != tt.codec {
				t.Errorf("-c:a = %q, expected %q", got, tt.codec)
			}
			if tt.codec == "copy" && slices.Contains(args, "-b:a") {
				t.Errorf("stream copy must not set a bitrate: %v", args)
			}
		})
	}
}

func TestLocalOutputPath(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "talk.mkv")
	if err := os.WriteFile(src, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	trimmed := mustRequest(t, request.Options{Source: src, Quality: 720, Trim: &request.TrimRange{Start: 1, End: 2}})
	if got := LocalOutputPath(trimmed); got != filepath.Join(dir, "talk_trimmed.mp4") {
		t.Errorf("LocalOutputPath = %s", got)
	}
	audio := mustRequest(t, request.Options{Source: src, Quality: request.QualityAudio, FileName: "voice"})
	if got := LocalOutputPath(audio); got != filepath.Join(dir, "voice.m4a") {
		t.Errorf("LocalOutputPath = %s", got)
	}
	if err := os.WriteFile(filepath.Join(dir, "voice.m4a"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := LocalOutputPath(audio); got != filepath.Join(dir, "voice-(1).m4a") {
		t.Errorf("existing output should be renewed, got %s", got)
	}
}

func TestProbeBuilders(t *testing.T) {
	if got := strings.Join(ResolveStream(videoURL), " "); got != "-g -f best[height<=480] --no-playlist "+videoURL {
		t.Errorf("ResolveStream = %q", got)
	}
	args := Frame("http://stream", 75, "/tmp/frame_75.jpg")
	if got, _ := valueAfter(args, "-ss"); got != "00:01:15" {
		t.Errorf("Frame -ss = %q", got)
	}
	if got, _ := valueAfter(args, "-frames:v"); got != "1" {
		t.Errorf("Frame -frames:v = %q", got)
	}
	if got := strings.Join(ProbeDuration("a.mp4"), " "); got != "-v error -show_entries format=duration -of csv=p=0 a.mp4" {
		t.Errorf("ProbeDuration = %q", got)
	}
}
