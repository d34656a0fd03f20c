package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tanq16/clipr/internal/preview"
	"github.com/tanq16/clipr/internal/tools"
)

type streamStub struct{}

func (streamStub) ResolveStream(ctx context.Context, src string) (string, error) {
	return "https://media.example/" + src, nil
}

func TestPreviewKeepsEveryRequestedFrame(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })
	cfg.PreviewCache = 2

	ws, err := preview.NewWorkspace()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ws.Close() })
	runner := tools.RunnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, os.WriteFile(args[len(args)-1], []byte("jpeg"), 0644)
	})

	timestamps := []int{1, 2, 3, 4, 5}
	p := newPreviewer(ws, streamStub{}, runner, "ffmpeg", len(timestamps))
	p.SetSource("clip")
	frames := map[int]string{}
	for _, ts := range timestamps {
		path, ok := p.Frame(context.Background(), "clip", ts)
		if !ok {
			t.Fatalf("no frame at %d", ts)
		}
		frames[ts] = path
	}

	dir := t.TempDir()
	if err := saveFrames(frames, dir); err != nil {
		t.Fatal(err)
	}
	for _, ts := range timestamps {
		if _, err := os.Stat(filepath.Join(dir, filepath.Base(frames[ts]))); err != nil {
			t.Errorf("frame at %d was not saved: %v", ts, err)
		}
	}
}
