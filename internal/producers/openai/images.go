package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	gogpt "github.com/sashabaranov/go-openai"

	"github.com/ivlev/reelsmith/internal/analyzer"
)

// GenerateImage draws an illustration for a suggestion and stores it as PNG in dir.
func (c *Client) GenerateImage(ctx context.Context, s analyzer.Suggestion, topic, dir string) (string, error) {
	resp, err := c.api.CreateImage(ctx, gogpt.ImageRequest{
		Prompt:         imagePrompt(s, topic),
		Model:          c.cfg.ImageModel,
		N:              1,
		Size:           gogpt.CreateImageSize1792x1024,
		Quality:        gogpt.CreateImageQualityStandard,
		ResponseFormat: gogpt.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", fmt.Errorf("image generation: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", errors.New("image generation returned no data")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("image_%s.png", uuid.NewString()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	c.log.Debug().Str("keyword", s.Keyword).Str("path", path).Msg("image generated")
	return path, nil
}

func imagePrompt(s analyzer.Suggestion, topic string) string {
	subject := s.Prompt
	if subject == "" {
		subject = s.Keyword
	}
	return fmt.Sprintf("Clean educational %s illustration: %s. Flat colours, white background, no text or labels.", topic, subject)
}
