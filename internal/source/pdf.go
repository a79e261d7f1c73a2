package source

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
)

// PDFDeck is a slide deck rendered page by page with MuPDF.
type PDFDeck struct {
	doc  *fitz.Document
	path string
}

func NewPDFDeck(path string) (*PDFDeck, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return &PDFDeck{doc: doc, path: path}, nil
}

func (d *PDFDeck) PageCount() int {
	return d.doc.NumPage()
}

func (d *PDFDeck) PageSize(index int) (float64, float64, error) {
	rect, err := d.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	return float64(rect.Dx()), float64(rect.Dy()), nil
}

// RenderPage rasterizes a 0-based page.
func (d *PDFDeck) RenderPage(index int, dpi int) (image.Image, error) {
	if index < 0 || index >= d.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (deck has %d)", index+1, d.doc.NumPage())
	}
	return d.doc.ImageDPI(index, float64(dpi))
}

// ExportPage renders a page into a uniquely named PNG under dir.
func (d *PDFDeck) ExportPage(index, dpi int, dir string) (string, error) {
	img, err := d.RenderPage(index, dpi)
	if err != nil {
		return "", err
	}

	out := filepath.Join(dir, fmt.Sprintf("slide_%d_%s.png", index+1, uuid.NewString()))
	f, err := os.Create(out)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(out)
		return "", fmt.Errorf("encode slide %d: %w", index+1, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(out)
		return "", err
	}
	return out, nil
}

func (d *PDFDeck) Close() error {
	return d.doc.Close()
}
