// Package openai adapts the OpenAI API to the pipeline's producer interfaces.
package openai

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	gogpt "github.com/sashabaranov/go-openai"

	"github.com/ivlev/reelsmith/internal/config"
)

// ErrNoAPIKey is returned by New when no key is configured.
var ErrNoAPIKey = errors.New("OPENAI_API_KEY is not set")

// api is the part of the go-openai client the producers call.
type api interface {
	CreateTranscription(ctx context.Context, req gogpt.AudioRequest) (gogpt.AudioResponse, error)
	CreateChatCompletion(ctx context.Context, req gogpt.ChatCompletionRequest) (gogpt.ChatCompletionResponse, error)
	CreateImage(ctx context.Context, req gogpt.ImageRequest) (gogpt.ImageResponse, error)
}

// AudioExtractor pulls the speech track out of a video for upload.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, path, out string) error
}

// Client implements the transcriber, corrector, key term, suggestion and
// image producers on top of one API client.
type Client struct {
	api     api
	cfg     config.AI
	audio   AudioExtractor
	tempDir string
	log     zerolog.Logger
}

func New(cfg config.AI, audio AudioExtractor, tempDir string, log zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	return &Client{
		api:     gogpt.NewClient(cfg.APIKey),
		cfg:     cfg,
		audio:   audio,
		tempDir: tempDir,
		log:     log.With().Str("component", "openai").Logger(),
	}, nil
}
