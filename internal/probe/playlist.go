package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/tanq16/clipr/internal/errs"
	"github.com/tanq16/clipr/internal/source"
	"github.com/ytget/ytdlp/v2"
)

const videoURLTemplate = "https://www.youtube.com/watch?v=%s"

type PlaylistEntry struct {
	Index int
	ID    string
	Title string
	URL   string
}

// Playlist lists the entries of a playlist URL.
func (p *Prober) Playlist(ctx context.Context, url string) ([]PlaylistEntry, error) {
	const op = "probe/playlist"
	id := source.PlaylistID(url)
	if id == "" {
		return nil, errs.Errorf(errs.InvalidInput, op, "could not extract playlist id from %s", url)
	}
	ctx, cancel := context.WithTimeout(ctx, 4*p.timeout())
	defer cancel()
	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, id, 0)
	if err != nil {
		kind := errs.UnexpectedFailure
		if ctx.Err() != nil {
			kind = errs.TransientToolFailure
		}
		return nil, errs.E(kind, op, fmt.Errorf("failed to get playlist items: %w", err))
	}
	entries := make([]PlaylistEntry, 0, len(items))
	for i, it := range items {
		entries = append(entries, PlaylistEntry{
			Index: i + 1,
			ID:    it.VideoID,
			Title: it.Title,
			URL:   fmt.Sprintf(videoURLTemplate, it.VideoID),
		})
	}
	return entries, nil
}

func (p *Prober) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}
