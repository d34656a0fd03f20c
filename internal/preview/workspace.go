package preview

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/clipr/internal/utils"
)

// Workspace is the temp directory frames are extracted into.
type Workspace struct {
	Dir string
}

func NewWorkspace() (*Workspace, error) {
	dir, err := os.MkdirTemp("", utils.PreviewDirPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("error creating preview workspace: %v", err)
	}
	log.Debug().Str("op", "preview/workspace").Msgf("created %s", dir)
	return &Workspace{Dir: dir}, nil
}

func (w *Workspace) FramePath(ts int) string {
	return filepath.Join(w.Dir, fmt.Sprintf("frame_%d.jpg", ts))
}

func (w *Workspace) Close() error {
	return os.RemoveAll(w.Dir)
}

// CleanOrphans removes preview workspaces under root older than maxAge left
// behind by sessions that did not exit cleanly. It returns how many were
// removed.
func CleanOrphans(root string, maxAge time.Duration) (int, error) {
	if root == "" {
		root = os.TempDir()
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("error reading %s: %v", root, err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), utils.PreviewDirPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Warn().Str("op", "preview/workspace").Err(err).Msgf("could not remove %s", path)
			continue
		}
		log.Debug().Str("op", "preview/workspace").Msgf("removed orphaned workspace %s", path)
		removed++
	}
	return removed, nil
}
