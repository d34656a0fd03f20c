package tools

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/clipr/internal/errs"
)

const (
	Ytdlp   = "yt-dlp"
	FFmpeg  = "ffmpeg"
	FFprobe = "ffprobe"
)

const versionTimeout = 10 * time.Second

// Paths holds resolved executable locations. Empty fields are tools that
// could not be found.
type Paths struct {
	Ytdlp   string `yaml:"yt-dlp"`
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
}

func (p Paths) get(name string) string {
	switch name {
	case Ytdlp:
		return p.Ytdlp
	case FFmpeg:
		return p.FFmpeg
	case FFprobe:
		return p.FFprobe
	}
	return ""
}

// Require reports a DependencyMissing error naming every tool without a path.
func (p Paths) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if p.get(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errs.Errorf(errs.DependencyMissing, "tools/require", "%s not found, please install and retry", strings.Join(missing, ", "))
	}
	return nil
}

// Find looks for a tool at the configured path, then next to the running
// executable, then in PATH.
func Find(name, configured string) (string, error) {
	if configured != "" {
		path, err := exec.LookPath(configured)
		if err != nil {
			return "", errs.Errorf(errs.DependencyMissing, "tools/find", "%s not found at %s", name, configured)
		}
		return path, nil
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), binaryName(name))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(name)
	if err == nil {
		return path, nil
	}
	if errors.Is(err, exec.ErrDot) {
		return filepath.Abs(path)
	}
	return "", errs.Errorf(errs.DependencyMissing, "tools/find", "%s not found in PATH, please install manually", name)
}

// Resolve finds every tool it can. The returned Paths is always usable for
// the tools that were found; err lists the ones that were not.
func Resolve(configured Paths) (Paths, error) {
	var resolved Paths
	var missing []string
	for _, name := range []string{Ytdlp, FFmpeg, FFprobe} {
		path, err := Find(name, configured.get(name))
		if err != nil {
			log.Debug().Str("op", "tools/resolve").Err(err).Msgf("could not resolve %s", name)
			missing = append(missing, name)
			continue
		}
		switch name {
		case Ytdlp:
			resolved.Ytdlp = path
		case FFmpeg:
			resolved.FFmpeg = path
		case FFprobe:
			resolved.FFprobe = path
		}
	}
	if len(missing) > 0 {
		return resolved, errs.Errorf(errs.DependencyMissing, "tools/resolve", "%s not found", strings.Join(missing, ", "))
	}
	return resolved, nil
}

type Version struct {
	Tool    string
	Path    string
	Version string
	Err     error
}

// Check runs the version probe of every tool. A tool that is missing or
// whose probe fails carries a DependencyMissing error.
func Check(ctx context.Context, paths Paths, runner Runner) []Version {
	probes := []struct {
		name string
		flag string
	}{
		{Ytdlp, "--version"},
		{FFmpeg, "-version"},
		{FFprobe, "-version"},
	}
	results := make([]Version, 0, len(probes))
	for _, probe := range probes {
		v := Version{Tool: probe.name, Path: paths.get(probe.name)}
		if v.Path == "" {
			v.Err = errs.Errorf(errs.DependencyMissing, "tools/check", "%s not found", probe.name)
			results = append(results, v)
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, versionTimeout)
		out, err := runner.Output(probeCtx, v.Path, probe.flag)
		cancel()
		if err != nil {
			v.Err = errs.E(errs.DependencyMissing, "tools/check", err)
		} else {
			v.Version = firstLine(string(out))
		}
		results = append(results, v)
	}
	return results
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}

func binaryName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}
