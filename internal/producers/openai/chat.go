package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	gogpt "github.com/sashabaranov/go-openai"

	"github.com/ivlev/reelsmith/internal/analyzer"
	"github.com/ivlev/reelsmith/internal/subtitle"
	"github.com/ivlev/reelsmith/internal/timeline"
)

const (
	correctionBatch = 50
	maxKeyTerms     = 12
	defaultOverlay  = 4.0
)

// chatJSON sends one system and one user message and decodes the JSON reply into out.
func (c *Client) chatJSON(ctx context.Context, system, user string, out any) error {
	resp, err := c.api.CreateChatCompletion(ctx, gogpt.ChatCompletionRequest{
		Model: c.cfg.ChatModel,
		Messages: []gogpt.ChatCompletionMessage{
			{Role: gogpt.ChatMessageRoleSystem, Content: system},
			{Role: gogpt.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &gogpt.ChatCompletionResponseFormat{Type: gogpt.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
	})
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errors.New("chat completion returned no choices")
	}
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

type correctionReply struct {
	Lines []struct {
		Index int    `json:"index"`
		Text  string `json:"text"`
	} `json:"lines"`
}

// Correct fixes terminology and transcription errors line by line. Timing
// is copied from the input, never from the reply.
func (c *Client) Correct(ctx context.Context, segments []timeline.SubtitleSegment, topic string) ([]timeline.SubtitleSegment, error) {
	system := "You correct speech-to-text transcripts of " + topic + " lectures. " +
		"Fix misheard medical terms, spelling and punctuation. Keep the meaning and the line count. " +
		`Reply with JSON: {"lines":[{"index":N,"text":"..."}]}.`
	if c.cfg.CorrectionHint != "" {
		system += " " + c.cfg.CorrectionHint
	}

	out := append([]timeline.SubtitleSegment(nil), segments...)
	for start := 0; start < len(segments); start += correctionBatch {
		end := min(start+correctionBatch, len(segments))

		var b strings.Builder
		for i := start; i < end; i++ {
			fmt.Fprintf(&b, "%d|%s\n", i+1, strings.ReplaceAll(segments[i].Text, "\n", " "))
		}

		var reply correctionReply
		if err := c.chatJSON(ctx, system, b.String(), &reply); err != nil {
			return nil, fmt.Errorf("correct lines %d-%d: %w", start+1, end, err)
		}
		applyCorrections(out, reply)
	}
	return out, nil
}

// applyCorrections replaces text of the lines the reply names, by 1-based position.
func applyCorrections(segments []timeline.SubtitleSegment, reply correctionReply) {
	for _, l := range reply.Lines {
		i := l.Index - 1
		text := strings.TrimSpace(l.Text)
		if i < 0 || i >= len(segments) || text == "" {
			continue
		}
		segments[i].Text = text
	}
}

type termsReply struct {
	Terms []string `json:"terms"`
}

// KeyTerms asks for the medical terms worth highlighting.
func (c *Client) KeyTerms(ctx context.Context, segments []timeline.SubtitleSegment, topic string) ([]string, error) {
	system := fmt.Sprintf("You pick the key %s terms a student must notice in a lecture. "+
		`Return at most %d short terms exactly as spoken. Reply with JSON: {"terms":["..."]}.`, topic, maxKeyTerms)

	var reply termsReply
	if err := c.chatJSON(ctx, system, subtitle.PlainText(segments), &reply); err != nil {
		return nil, err
	}
	return cleanTerms(reply.Terms), nil
}

// cleanTerms trims, drops phrases over four words and case-insensitive
// duplicates, and caps the list.
func cleanTerms(terms []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range terms {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] || len(strings.Fields(t)) > 4 {
			continue
		}
		seen[key] = true
		out = append(out, t)
		if len(out) == maxKeyTerms {
			break
		}
	}
	return out
}

type suggestionReply struct {
	Suggestions []struct {
		Start    float64 `json:"start"`
		Duration float64 `json:"duration"`
		Keyword  string  `json:"keyword"`
		Prompt   string  `json:"prompt"`
		Kind     string  `json:"kind"`
	} `json:"suggestions"`
}

// Suggest asks for timed B-roll and illustration ideas.
func (c *Client) Suggest(ctx context.Context, transcript []timeline.SubtitleSegment, topic string, counts analyzer.MediaCounts) ([]analyzer.Suggestion, error) {
	if len(transcript) == 0 {
		return nil, errors.New("empty transcript")
	}
	system := fmt.Sprintf("You plan visuals for a %s video. Suggest %d stock B-roll clips (kind \"broll\", a short search keyword) "+
		"and %d illustrations (kind \"image\", a detailed image prompt with no text in the picture). "+
		"Place each at the second where its subject is spoken, lasting 3 to 6 seconds. "+
		`Reply with JSON: {"suggestions":[{"start":S,"duration":D,"keyword":"...","prompt":"...","kind":"broll|image"}]}.`,
		topic, counts.Broll, counts.Images)

	var b strings.Builder
	for _, s := range transcript {
		fmt.Fprintf(&b, "[%.1f-%.1f] %s\n", s.Start, s.End, s.Text)
	}

	var reply suggestionReply
	if err := c.chatJSON(ctx, system, b.String(), &reply); err != nil {
		return nil, err
	}
	return toSuggestions(reply, counts, transcript[len(transcript)-1].End), nil
}

// toSuggestions keeps well-formed items inside the spoken range, up to the
// requested count of each kind, in start order.
func toSuggestions(reply suggestionReply, counts analyzer.MediaCounts, end float64) []analyzer.Suggestion {
	var out []analyzer.Suggestion
	taken := map[string]int{}
	limit := map[string]int{timeline.KindBroll: counts.Broll, timeline.KindImage: counts.Images}

	for _, s := range reply.Suggestions {
		kind := strings.ToLower(strings.TrimSpace(s.Kind))
		if _, ok := limit[kind]; !ok || taken[kind] >= limit[kind] {
			continue
		}
		if s.Start < 0 || s.Start >= end || strings.TrimSpace(s.Keyword) == "" {
			continue
		}
		dur := s.Duration
		if dur <= 0 {
			dur = defaultOverlay
		}
		prompt := strings.TrimSpace(s.Prompt)
		if prompt == "" {
			prompt = s.Keyword
		}
		taken[kind]++
		out = append(out, analyzer.Suggestion{
			Start:    s.Start,
			Duration: dur,
			Keyword:  strings.TrimSpace(s.Keyword),
			Prompt:   prompt,
			Kind:     kind,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
