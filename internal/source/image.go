package source

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/webp"

	"github.com/ivlev/reelsmith/internal/system"
)

func openImage(path string) (Clip, error) {
	info, err := imageInfo(path)
	if err != nil {
		return nil, err
	}
	return &fileClip{path: path, kind: KindImage, info: info}, nil
}

// imageInfo reads only the header of an image file.
func imageInfo(path string) (system.MediaInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return system.MediaInfo{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return system.MediaInfo{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return system.MediaInfo{Path: path, Width: cfg.Width, Height: cfg.Height, HasVideo: true}, nil
}

// DecodeImage loads a JPEG, PNG or WebP file.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
