package library

import (
	"context"
	"fmt"
	"sync"

	"github.com/ivlev/reelsmith/internal/analyzer"
	"github.com/ivlev/reelsmith/internal/source"
)

// SlideImages illustrates a lecture with the pages of its slide deck, one
// page per request in deck order.
type SlideImages struct {
	Deck string
	DPI  int

	mu   sync.Mutex // fitz documents are not safe for concurrent use
	next int
}

func NewSlideImages(deck string) *SlideImages {
	return &SlideImages{Deck: deck, DPI: 150}
}

func (s *SlideImages) GenerateImage(ctx context.Context, _ analyzer.Suggestion, _, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	deck, err := source.NewPDFDeck(s.Deck)
	if err != nil {
		return "", err
	}
	defer deck.Close()

	count := deck.PageCount()
	if count == 0 {
		return "", fmt.Errorf("%s has no pages", s.Deck)
	}
	page := s.next % count
	s.next++
	return deck.ExportPage(page, s.DPI, dir)
}
