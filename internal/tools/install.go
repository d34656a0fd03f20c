package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/clipr/internal/utils"
)

const ytdlpReleaseURL = "https://github.com/yt-dlp/yt-dlp/releases/latest/download/%s"

func ytdlpAsset(goos, goarch string) (string, error) {
	switch {
	case goos == "windows" && goarch == "amd64":
		return "yt-dlp.exe", nil
	case goos == "windows" && goarch == "arm64":
		return "yt-dlp_arm64.exe", nil
	case goos == "linux" && goarch == "amd64":
		return "yt-dlp_linux", nil
	case goos == "linux" && goarch == "arm64":
		return "yt-dlp_linux_aarch64", nil
	case goos == "darwin":
		return "yt-dlp_macos", nil
	}
	return "", fmt.Errorf("unsupported OS/arch: %s/%s", goos, goarch)
}

// InstallYtdlp downloads the latest yt-dlp release binary into dir.
func InstallYtdlp(ctx context.Context, dir string, client utils.HTTPDoer) (string, error) {
	asset, err := ytdlpAsset(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating directory: %v", err)
	}
	target := filepath.Join(dir, binaryName(Ytdlp))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(ytdlpReleaseURL, asset), nil)
	if err != nil {
		return "", err
	}
	log.Info().Str("op", "tools/install").Msgf("downloading %s to %s", asset, target)
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error downloading yt-dlp: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}
	tmp := target + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("error writing yt-dlp: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmp, 0755); err != nil {
			return "", fmt.Errorf("error setting permissions: %v", err)
		}
	}
	return target, os.Rename(tmp, target)
}
