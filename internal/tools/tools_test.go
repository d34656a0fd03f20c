package tools

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/tanq16/clipr/internal/errs"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes are not supported on windows")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFindConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	fake := writeScript(t, dir, "my-ytdlp", "echo 2025.01.01")
	got, err := Find(Ytdlp, fake)
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if got != fake {
		t.Errorf("Find = %s, expected %s", got, fake)
	}
	_, err = Find(Ytdlp, filepath.Join(dir, "missing"))
	if !errs.Is(err, errs.DependencyMissing) {
		t.Errorf("expected DependencyMissing, got %v", err)
	}
}

func TestFindFromPath(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "ffprobe", "exit 0")
	t.Setenv("PATH", dir)
	got, err := Find(FFprobe, "")
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if got != filepath.Join(dir, "ffprobe") {
		t.Errorf("Find = %s", got)
	}
	if _, err := Find("definitely-not-a-tool", ""); !errs.Is(err, errs.DependencyMissing) {
		t.Errorf("expected DependencyMissing, got %v", err)
	}
}

func TestRequire(t *testing.T) {
	p := Paths{Ytdlp: "/bin/yt-dlp"}
	if err := p.Require(Ytdlp); err != nil {
		t.Errorf("Require(yt-dlp) = %v", err)
	}
	err := p.Require(Ytdlp, FFmpeg, FFprobe)
	if !errs.Is(err, errs.DependencyMissing) {
		t.Fatalf("expected DependencyMissing, got %v", err)
	}
	if !strings.Contains(err.Error(), "ffmpeg, ffprobe") {
		t.Errorf("error should name missing tools: %v", err)
	}
}

func TestCheck(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		switch filepath.Base(name) {
		case "yt-dlp":
			return []byte("2025.06.30\n"), nil
		case "ffmpeg":
			return []byte("ffmpeg version 7.1 Copyright\nbuilt with gcc\n"), nil
		}
		return nil, &exec.ExitError{}
	})
	results := Check(context.Background(), Paths{Ytdlp: "/x/yt-dlp", FFmpeg: "/x/ffmpeg"}, runner)
	if len(results) != 3 {
		t.Fatalf("Check returned %d results", len(results))
	}
	if results[0].Version != "2025.06.30" || results[0].Err != nil {
		t.Errorf("yt-dlp result = %+v", results[0])
	}
	if results[1].Version != "ffmpeg version 7.1 Copyright" {
		t.Errorf("ffmpeg version = %q", results[1].Version)
	}
	if !errs.Is(results[2].Err, errs.DependencyMissing) {
		t.Errorf("ffprobe should be missing, got %+v", results[2])
	}
}

func TestExecRunner(t *testing.T) {
	dir := t.TempDir()
	ok := writeScript(t, dir, "ok", "echo hello; echo noise >&2")
	fail := writeScript(t, dir, "fail", "echo 'ERROR: video unavailable' >&2; exit 3")
	slow := writeScript(t, dir, "slow", "exec sleep 5")

	out, err := ExecRunner{}.Output(context.Background(), ok)
	if err != nil || strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("Output = %q, %v", out, err)
	}

	_, err = ExecRunner{}.Output(context.Background(), fail)
	if !errs.Is(err, errs.TransientToolFailure) {
		t.Errorf("non-zero exit should be transient, got %v", err)
	}
	if !strings.Contains(err.Error(), "video unavailable") {
		t.Errorf("error should carry stderr: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = ExecRunner{}.Output(ctx, slow)
	if !errs.Is(err, errs.TransientToolFailure) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("timeout should be transient deadline error, got %v", err)
	}
}

func TestRetry(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

	calls := 0
	v, err := Retry(context.Background(), policy, "test", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errs.E(errs.TransientToolFailure, "test", errors.New("flaky"))
		}
		return "done", nil
	})
	if err != nil || v != "done" || calls != 3 {
		t.Errorf("Retry = %q, %v after %d calls", v, err, calls)
	}

	calls = 0
	_, err = Retry(context.Background(), policy, "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("unexpected")
	})
	if calls != 1 || errs.Is(err, errs.TransientToolFailure) {
		t.Errorf("unexpected errors must not be retried: calls=%d err=%v", calls, err)
	}

	calls = 0
	_, err = Retry(context.Background(), policy, "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, context.DeadlineExceeded
	})
	if calls != 3 || !errs.Is(err, errs.TransientToolFailure) {
		t.Errorf("exhausted retries: calls=%d err=%v", calls, err)
	}
}

func TestRetryBackoffIsLinear(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, Backoff: 20 * time.Millisecond}
	start := time.Now()
	Retry(context.Background(), policy, "test", func(ctx context.Context) (int, error) {
		return 0, context.DeadlineExceeded
	})
	// 1*20ms + 2*20ms between the three attempts
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("expected at least 60ms of backoff, got %s", elapsed)
	}
}

type fakeDoer struct {
	status int
	body   string
}

func (f fakeDoer) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: f.status,
		Status:     http.StatusText(f.status),
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func TestInstallYtdlp(t *testing.T) {
	if _, err := ytdlpAsset(runtime.GOOS, runtime.GOARCH); err != nil {
		t.Skip(err)
	}
	dir := t.TempDir()
	path, err := InstallYtdlp(context.Background(), dir, fakeDoer{status: http.StatusOK, body: "binary"})
	if err != nil {
		t.Fatalf("InstallYtdlp error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "binary" {
		t.Errorf("installed file = %q, %v", data, err)
	}
	if _, err := InstallYtdlp(context.Background(), dir, fakeDoer{status: http.StatusNotFound}); err == nil {
		t.Error("expected error on bad status")
	}
}
