package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	gogpt "github.com/sashabaranov/go-openai"

	"github.com/ivlev/reelsmith/internal/subtitle"
	"github.com/ivlev/reelsmith/internal/timeline"
)

// Transcribe uploads the speech track to Whisper and parses the SRT reply.
func (c *Client) Transcribe(ctx context.Context, videoPath string) ([]timeline.SubtitleSegment, error) {
	if c.audio == nil {
		return nil, errors.New("no audio extractor")
	}
	audioPath := filepath.Join(c.tempDir, fmt.Sprintf("speech_%s.mp3", uuid.NewString()))
	if err := c.audio.ExtractAudio(ctx, videoPath, audioPath); err != nil {
		return nil, fmt.Errorf("extract speech: %w", err)
	}
	defer os.Remove(audioPath)

	resp, err := c.api.CreateTranscription(ctx, gogpt.AudioRequest{
		Model:    c.cfg.WhisperModel,
		FilePath: audioPath,
		Format:   gogpt.AudioResponseFormatSRT,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription error: %w", err)
	}

	segs, err := subtitle.Parse(strings.NewReader(resp.Text))
	if err != nil {
		return nil, fmt.Errorf("transcription reply: %w", err)
	}
	c.log.Info().Int("cues", len(segs)).Str("model", c.cfg.WhisperModel).Msg("transcribed")
	return segs, nil
}
