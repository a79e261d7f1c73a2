package source

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ivlev/reelsmith/internal/subtitle"
	"github.com/ivlev/reelsmith/internal/system"
)

// OpenSubtitles writes the cues to a temporary SRT, or ASS when key terms
// are given. Closing the clip removes the file.
func (o *FileOpener) OpenSubtitles(ctx context.Context, req SubtitleRequest) (Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Segments) == 0 {
		return nil, fmt.Errorf("open subtitles: no cues")
	}

	fontSize := req.FontSize
	if fontSize <= 0 {
		fontSize = 24
	}

	var path string
	var err error
	if len(req.KeyTerms) > 0 {
		path = filepath.Join(o.TempDir, "captions_"+uuid.NewString()+".ass")
		err = subtitle.WriteASSFile(path, req.Segments, subtitle.DefaultStyle(req.Width, req.Height, fontSize), req.KeyTerms)
	} else {
		path = filepath.Join(o.TempDir, "captions_"+uuid.NewString()+".srt")
		err = subtitle.WriteFile(path, req.Segments)
	}
	if err != nil {
		removeFile(path)()
		return nil, fmt.Errorf("write subtitles: %w", err)
	}

	last := req.Segments[len(req.Segments)-1]
	return &fileClip{
		path:    path,
		kind:    KindSubtitle,
		info:    system.MediaInfo{Path: path, Duration: last.End},
		cleanup: removeFile(path),
	}, nil
}
