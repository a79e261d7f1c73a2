package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ivlev/reelsmith/internal/config"
)

// ErrNoTranscript blocks every stage that needs speech timing.
var ErrNoTranscript = errors.New("no transcript available")

// Stage names double as the step field of progress events.
type Stage string

const (
	StageSilence       Stage = "Silence Removal"
	StageEnhance       Stage = "Audio Enhancement"
	StageTranscription Stage = "Transcription"
	StageCorrection    Stage = "GPT Correction"
	StageHighlights    Stage = "AI Highlights"
	StageSubtitles     Stage = "Subtitle Burning"
	StageZoom          Stage = "Dynamic Zoom"
	StageMultimedia    Stage = "Multimedia Integration"
	StageTopicCard     Stage = "Topic Card"
	StageMusic         Stage = "Background Music"
	StageSoundEffects  Stage = "Sound Effects"
	StageOutro         Stage = "Outro"
	StageRender        Stage = "Rendering"
)

// needsTranscript lists stages that cannot run without speech timing.
var needsTranscript = map[Stage]bool{
	StageCorrection:   true,
	StageHighlights:   true,
	StageSubtitles:    true,
	StageMultimedia:   true,
	StageSoundEffects: true,
}

// PlannedStages returns the stages a run will report, in execution order.
// Transcript dependents are dropped together with transcription.
func PlannedStages(s config.Stages) []Stage {
	toggles := []struct {
		stage Stage
		on    bool
	}{
		{StageSilence, s.SilenceRemoval},
		{StageEnhance, s.AudioEnhance},
		{StageTranscription, s.Transcription},
		{StageCorrection, s.Correction},
		{StageHighlights, s.Highlights},
		{StageSubtitles, s.Subtitles},
		{StageZoom, s.Zoom},
		{StageMultimedia, s.Multimedia},
		{StageTopicCard, s.TopicCard},
		{StageMusic, s.Music},
		{StageSoundEffects, s.SoundEffects},
		{StageOutro, s.Outro},
	}

	var stages []Stage
	for _, t := range toggles {
		if !t.on {
			continue
		}
		if needsTranscript[t.stage] && !s.Transcription {
			continue
		}
		stages = append(stages, t.stage)
	}
	return append(stages, StageRender)
}

// StageError records which stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one stage. A skipped stage never ran; a failed
// stage leaves the previous artifact in place.
type Result[T any] struct {
	Value   T
	Err     error
	Skipped bool
}

// OK reports whether the stage ran and produced a value.
func (r Result[T]) OK() bool {
	return r.Err == nil && !r.Skipped
}

// runStage reports progress for stage, runs fn and converts its failure
// into a degraded result. Disabled stages are not reported at all.
func runStage[T any](ctx context.Context, v *videoRun, stage Stage, fn func(context.Context) (T, error)) Result[T] {
	if !v.planned[stage] {
		return Result[T]{Skipped: true}
	}
	if needsTranscript[stage] && len(v.transcript) == 0 {
		v.report.Next(stage, "skipped: "+ErrNoTranscript.Error())
		v.log.Warn().Str("stage", string(stage)).Msg("stage skipped, transcription unavailable")
		return Result[T]{Skipped: true, Err: &StageError{Stage: stage, Err: ErrNoTranscript}}
	}

	v.report.Next(stage, stageMessages[stage])
	val, err := fn(ctx)
	if err != nil {
		v.degraded = append(v.degraded, stage)
		v.log.Warn().Err(err).Str("stage", string(stage)).Msg("stage failed, continuing with previous result")
		return Result[T]{Err: &StageError{Stage: stage, Err: err}}
	}
	v.log.Info().Str("stage", string(stage)).Msg("stage done")
	return Result[T]{Value: val}
}

var stageMessages = map[Stage]string{
	StageSilence:       "Cutting silent segments...",
	StageEnhance:       "Enhancing speech audio...",
	StageTranscription: "Transcribing speech...",
	StageCorrection:    "Correcting transcript...",
	StageHighlights:    "Extracting key terms...",
	StageSubtitles:     "Preparing captions...",
	StageZoom:          "Analyzing frames for zoom...",
	StageMultimedia:    "Placing B-roll and images...",
	StageTopicCard:     "Adding topic card...",
	StageMusic:         "Choosing background music...",
	StageSoundEffects:  "Placing sound effects...",
	StageOutro:         "Appending outro...",
	StageRender:        "Rendering final video...",
}
