package library

import (
	"context"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"

	"github.com/ivlev/reelsmith/internal/analyzer"
	"github.com/ivlev/reelsmith/internal/system"
)

// Folder picks files from a directory by name. A file whose name contains
// one of the wanted words wins; otherwise the choice rotates by the words,
// so the same request always gets the same file.
type Folder struct {
	Dir  string
	Exts []string
}

func (f Folder) Pick(want string) (string, error) {
	files, err := system.FindFiles(f.Dir, f.Exts)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no files in %s", f.Dir)
	}

	keys := words(want)
	for _, file := range files {
		name := strings.ToLower(strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)))
		for _, k := range keys {
			if len(k) > 2 && strings.Contains(name, k) {
				return file, nil
			}
		}
	}

	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(want)))
	return files[int(h.Sum32()%uint32(len(files)))], nil
}

// BrollLibrary serves stock clips from a local folder.
type BrollLibrary struct {
	Folder
}

func NewBrollLibrary(dir string) BrollLibrary {
	return BrollLibrary{Folder{Dir: dir, Exts: system.VideoExtensions}}
}

// FetchBroll returns the library clip for the keyword. Library files are
// used in place, dir is not written.
func (b BrollLibrary) FetchBroll(_ context.Context, s analyzer.Suggestion, _ string) (string, error) {
	return b.Pick(s.Keyword)
}

// MusicLibrary serves background tracks.
type MusicLibrary struct {
	Folder
}

func NewMusicLibrary(dir string) MusicLibrary {
	return MusicLibrary{Folder{Dir: dir, Exts: system.AudioExtensions}}
}

func (m MusicLibrary) PickMusic(_ context.Context, topic string) (string, error) {
	return m.Pick(topic)
}

// SoundLibrary serves short accents for highlighted terms.
type SoundLibrary struct {
	Folder
}

func NewSoundLibrary(dir string) SoundLibrary {
	return SoundLibrary{Folder{Dir: dir, Exts: system.AudioExtensions}}
}

func (s SoundLibrary) PickSound(_ context.Context, term string) (string, error) {
	return s.Pick(term)
}
