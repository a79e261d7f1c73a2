package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ivlev/reelsmith/internal/system"
	"github.com/ivlev/reelsmith/internal/timeline"
)

// MediaKind tells the opener what a reference must contain
type MediaKind string

const (
	KindVideo    MediaKind = "video"
	KindAudio    MediaKind = "audio"
	KindImage    MediaKind = "image"
	KindSubtitle MediaKind = "subtitle"
)

// Clip is an opened media handle. Close releases whatever the opener
// created for it and is safe to call more than once.
type Clip interface {
	Path() string
	Kind() MediaKind
	Info() system.MediaInfo
	Close() error
}

// Opener turns references into clips.
type Opener interface {
	Open(ctx context.Context, ref string, kind MediaKind) (Clip, error)
	OpenSubtitles(ctx context.Context, req SubtitleRequest) (Clip, error)
}

type fileClip struct {
	path    string
	kind    MediaKind
	info    system.MediaInfo
	cleanup func() error

	once sync.Once
	err  error
}

func (c *fileClip) Path() string           { return c.path }
func (c *fileClip) Kind() MediaKind        { return c.kind }
func (c *fileClip) Info() system.MediaInfo { return c.info }

func (c *fileClip) Close() error {
	c.once.Do(func() {
		if c.cleanup != nil {
			c.err = c.cleanup()
		}
	})
	return c.err
}

// removeFile deletes a temporary file created for a clip.
func removeFile(path string) func() error {
	return func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
}

// FileOpener opens media from the local filesystem. PDF page references
// ("deck.pdf#page=3") are rasterized into temporary images.
type FileOpener struct {
	TempDir string
	DPI     int
	Probe   func(ctx context.Context, path string) (system.MediaInfo, error)

	log zerolog.Logger
}

// NewFileOpener creates an opener that keeps its temporary files in tempDir.
func NewFileOpener(tempDir string, log zerolog.Logger) *FileOpener {
	return &FileOpener{
		TempDir: tempDir,
		DPI:     150,
		Probe:   system.Probe,
		log:     log,
	}
}

func (o *FileOpener) Open(ctx context.Context, ref string, kind MediaKind) (Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch kind {
	case KindImage:
		if pdf, page, ok := ParsePageRef(ref); ok {
			return o.openPDFPage(pdf, page)
		}
		return openImage(ref)
	case KindVideo, KindAudio:
		info, err := o.Probe(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("open %s %s: %w", kind, ref, err)
		}
		if kind == KindVideo && !info.HasVideo {
			return nil, fmt.Errorf("open %s: no video stream", ref)
		}
		if kind == KindAudio && !info.HasAudio {
			return nil, fmt.Errorf("open %s: no audio stream", ref)
		}
		return &fileClip{path: ref, kind: kind, info: info}, nil
	default:
		return nil, fmt.Errorf("open %s: unsupported media kind %q", ref, kind)
	}
}

func (o *FileOpener) openPDFPage(path string, page int) (Clip, error) {
	deck, err := NewPDFDeck(path)
	if err != nil {
		return nil, fmt.Errorf("open deck %s: %w", path, err)
	}
	defer deck.Close()

	png, err := deck.ExportPage(page-1, o.DPI, o.TempDir)
	if err != nil {
		return nil, err
	}
	info, err := imageInfo(png)
	if err != nil {
		os.Remove(png)
		return nil, err
	}
	o.log.Debug().Str("deck", path).Int("page", page).Str("image", png).Msg("slide rasterized")
	return &fileClip{path: png, kind: KindImage, info: info, cleanup: removeFile(png)}, nil
}

// ParsePageRef splits "deck.pdf#page=N" into the file and a 1-based page.
func ParsePageRef(ref string) (string, int, bool) {
	path, frag, ok := strings.Cut(ref, "#page=")
	if !ok || !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "", 0, false
	}
	var page int
	if _, err := fmt.Sscanf(frag, "%d", &page); err != nil || page < 1 {
		return "", 0, false
	}
	return path, page, true
}

// SubtitleRequest describes a caption file to materialize for burning.
// Key terms switch the output to ASS so they can be coloured.
type SubtitleRequest struct {
	Segments []timeline.SubtitleSegment
	KeyTerms []string
	Width    int
	Height   int
	FontSize int
}
