package library

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// QRCard renders a QR code linking to the channel or course page.
type QRCard struct {
	URL  string
	Size int // pixels per side, default 512
}

func (q QRCard) EndCard(ctx context.Context, dir string) (string, error) {
	if q.URL == "" {
		return "", errors.New("no end card URL")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	size := q.Size
	if size <= 0 {
		size = 512
	}
	path := filepath.Join(dir, fmt.Sprintf("qr_%s.png", uuid.NewString()))
	if err := qrcode.WriteFile(q.URL, qrcode.Medium, size, path); err != nil {
		return "", fmt.Errorf("qr code: %w", err)
	}
	return path, nil
}
