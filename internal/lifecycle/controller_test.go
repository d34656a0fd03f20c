package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/tanq16/clipr/internal/errs"
	"github.com/tanq16/clipr/internal/request"
	"github.com/tanq16/clipr/internal/tools"
)

var testPolicy = Policy{
	Absolute:     time.Minute,
	Stall:        time.Minute,
	PollInterval: 50 * time.Millisecond,
	Grace:        200 * time.Millisecond,
}

func fakeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func remoteRequest(t *testing.T) request.DownloadRequest {
	t.Helper()
	req, err := request.New(request.Options{
		Source:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Quality:   request.Quality(720),
		OutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func drain(c *Controller) []Update {
	var got []Update
	for {
		select {
		case u := <-c.Updates():
			got = append(got, u)
		default:
			return got
		}
	}
}

type stubProber time.Duration

func (s stubProber) LocalDuration(context.Context, string) (time.Duration, error) {
	return time.Duration(s), nil
}

func TestControllerCompletes(t *testing.T) {
	ytdlp := fakeTool(t, `echo '[download] Destination: /tmp/out/Song.f137.mp4'
echo '[download]  42.5% of 10.00MiB at 1.50MiB/s ETA 00:05'
echo '[Merger] Merging formats into "/tmp/out/Song.mp4"'
exit 0`)
	c := New(tools.Paths{Ytdlp: ytdlp, FFmpeg: "/usr/bin/ffmpeg"}, testPolicy, nil)
	if err := c.Start(context.Background(), remoteRequest(t)); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	out := c.Wait()
	if out.State != Completed {
		t.Fatalf("state = %s, expected completed (err %v)", out.State, out.Err)
	}
	if out.Output != "/tmp/out/Song.mp4" {
		t.Errorf("output = %q", out.Output)
	}
	if out.Reason != StatusComplete {
		t.Errorf("reason = %q", out.Reason)
	}
	snap := c.Snapshot()
	if snap.State != Idle || snap.Percent != 100 {
		t.Errorf("snapshot = %+v, expected idle at 100%%", snap)
	}

	var sawProgress, sawMerge, sawCompleted bool
	for _, u := range drain(c) {
		switch {
		case u.State == Running && strings.Contains(u.Line, "42.5%"):
			sawProgress = true
			if u.Percent != 42.5 || u.Speed != "1.50MiB/s" || u.ETA != "00:05" {
				t.Errorf("progress update = %+v", u)
			}
		case u.State == Running && strings.HasPrefix(u.Line, "[Merger]"):
			// phase-only lines keep the last known percent
			sawMerge = true
			if u.Percent != 42.5 || u.Speed != "" {
				t.Errorf("merge update = %+v", u)
			}
		case u.State == Completed:
			sawCompleted = true
		}
	}
	if !sawProgress || !sawMerge || !sawCompleted {
		t.Errorf("missing updates: progress=%v merge=%v completed=%v", sawProgress, sawMerge, sawCompleted)
	}
}

func TestControllerFailure(t *testing.T) {
	ytdlp := fakeTool(t, `echo 'ERROR: [youtube] dQw4w9WgXcQ: Video unavailable'
exit 1`)
	c := New(tools.Paths{Ytdlp: ytdlp, FFmpeg: "/usr/bin/ffmpeg"}, testPolicy, nil)
	if err := c.Start(context.Background(), remoteRequest(t)); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	out := c.Wait()
	if out.State != Failed {
		t.Fatalf("state = %s, expected failed", out.State)
	}
	if !errs.Is(out.Err, errs.TransientToolFailure) {
		t.Errorf("expected TransientToolFailure, got %v", out.Err)
	}
	if c.State() != Idle {
		t.Errorf("controller did not return to idle")
	}
}

func TestControllerStall(t *testing.T) {
	ytdlp := fakeTool(t, `echo '[youtube] Extracting URL'
exec sleep 30`)
	policy := testPolicy
	policy.Stall = 300 * time.Millisecond
	c := New(tools.Paths{Ytdlp: ytdlp, FFmpeg: "/usr/bin/ffmpeg"}, policy, nil)
	if err := c.Start(context.Background(), remoteRequest(t)); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	out := c.Wait()
	if out.State != TimedOut {
		t.Fatalf("state = %s, expected timed out", out.State)
	}
	if out.Reason != policy.StallReason() {
		t.Errorf("reason = %q", out.Reason)
	}
	if !errs.Is(out.Err, errs.ProcessStalled) {
		t.Errorf("expected ProcessStalled, got %v", out.Err)
	}
	if out.Duration > 5*time.Second {
		t.Errorf("stall detection took %s", out.Duration)
	}
	if snap := c.Snapshot(); snap.Percent != 0 {
		t.Errorf("percent = %v after timeout, expected 0", snap.Percent)
	}
}

func TestControllerAbsoluteTimeout(t *testing.T) {
	ytdlp := fakeTool(t, `while true; do
  echo '[download]  10.0% of 1.00MiB at 1.00MiB/s ETA 00:01'
  sleep 0.05
done`)
	policy := testPolicy
	policy.Absolute = 400 * time.Millisecond
	c := New(tools.Paths{Ytdlp: ytdlp, FFmpeg: "/usr/bin/ffmpeg"}, policy, nil)
	if err := c.Start(context.Background(), remoteRequest(t)); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	out := c.Wait()
	if out.State != TimedOut {
		t.Fatalf("state = %s, expected timed out", out.State)
	}
	if !errs.Is(out.Err, errs.ProcessTimeout) {
		t.Errorf("expected ProcessTimeout, got %v", out.Err)
	}
	if out.Reason != policy.AbsoluteReason() {
		t.Errorf("reason = %q", out.Reason)
	}
}

func TestControllerStopEscalates(t *testing.T) {
	ytdlp := fakeTool(t, `trap '' TERM
echo '[download]   5.0% of 1.00MiB'
exec sleep 30`)
	c := New(tools.Paths{Ytdlp: ytdlp, FFmpeg: "/usr/bin/ffmpeg"}, testPolicy, nil)
	if err := c.Start(context.Background(), remoteRequest(t)); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	began := time.Now()
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if elapsed := time.Since(began); elapsed > testPolicy.Grace+2*time.Second {
		t.Errorf("Stop took %s", elapsed)
	}
	out := c.Wait()
	if out.State != Stopped || out.Reason != StatusStopped {
		t.Errorf("outcome = %s %q", out.State, out.Reason)
	}
	snap := c.Snapshot()
	if snap.State != Idle || snap.Percent != 0 {
		t.Errorf("snapshot = %+v, expected idle at 0%%", snap)
	}
	if err := c.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second Stop = %v, expected ErrNotRunning", err)
	}
}

func TestControllerRejectsSecondStart(t *testing.T) {
	ytdlp := fakeTool(t, "exec sleep 30")
	c := New(tools.Paths{Ytdlp: ytdlp, FFmpeg: "/usr/bin/ffmpeg"}, testPolicy, nil)
	req := remoteRequest(t)
	if err := c.Start(context.Background(), req); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer c.Stop()
	if err := c.Start(context.Background(), req); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, expected ErrAlreadyRunning", err)
	}
}

func TestControllerMissingTool(t *testing.T) {
	c := New(tools.Paths{FFmpeg: "/usr/bin/ffmpeg"}, testPolicy, nil)
	err := c.Start(context.Background(), remoteRequest(t))
	if !errs.Is(err, errs.DependencyMissing) {
		t.Fatalf("expected DependencyMissing, got %v", err)
	}
	if c.State() != Idle {
		t.Errorf("state = %s after rejected start", c.State())
	}
	if out := c.Wait(); out.State != Failed {
		t.Errorf("last outcome = %s, expected failed", out.State)
	}
}

func TestControllerLocalProgress(t *testing.T) {
	ffmpeg := fakeTool(t, `echo 'out_time_us=5000000'
echo 'progress=continue'
echo 'progress=end'`)
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(src, []byte("not really video"), 0644); err != nil {
		t.Fatal(err)
	}
	req, err := request.New(request.Options{Source: src, Quality: request.Quality(720), Volume: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	c := New(tools.Paths{FFmpeg: ffmpeg}, testPolicy, stubProber(10*time.Second))
	if err := c.Start(context.Background(), req); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	out := c.Wait()
	if out.State != Completed {
		t.Fatalf("state = %s (err %v)", out.State, out.Err)
	}
	if filepath.Dir(out.Output) != dir || out.Output == src {
		t.Errorf("output = %q", out.Output)
	}
	var sawHalf bool
	for _, u := range drain(c) {
		if u.State == Running && u.Percent == 50 {
			sawHalf = true
		}
	}
	if !sawHalf {
		t.Errorf("expected a 50%% progress update")
	}
}
