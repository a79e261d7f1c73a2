package director

import (
	"fmt"

	"github.com/ivlev/reelsmith/internal/composite"
	"github.com/ivlev/reelsmith/internal/timeline"
)

// Apply feeds every recorded edit into the builder
func (p *Plan) Apply(b *composite.Builder) *composite.Builder {
	b.AddSilenceCuts(p.Cuts).
		AddZoomKeyframes(p.Zoom).
		AddMediaOverlays(p.Overlays).
		AddIntro(p.Intros...).
		AddOutro(p.Outros...).
		AddSoundEffects(p.SoundEffects).
		WithAudioEnhance(p.AudioEnhance)

	if len(p.Subtitles) > 0 {
		b.AddSubtitles(p.Subtitles, p.KeyTerms...)
	}
	if p.Music != nil {
		b.AddMusic(*p.Music)
	}
	if p.TopicCard != nil {
		b.AddTopicCard(*p.TopicCard)
	}
	return b
}

// Validate checks the plan before a re-render
func (p *Plan) Validate(sourceDuration float64) error {
	if p.Source == "" {
		return fmt.Errorf("plan has no source video")
	}
	if p.Version != PlanVersion {
		return fmt.Errorf("unsupported plan version %q", p.Version)
	}
	if len(p.Cuts) > 0 {
		if err := timeline.ValidateCuts(p.Cuts, sourceDuration); err != nil {
			return err
		}
	}

	final := sourceDuration
	if len(p.Cuts) > 0 {
		final = timeline.KeptDuration(p.Cuts)
	}
	for i, o := range p.Overlays {
		if o.StartTime < 0 || o.End() > final+1e-3 {
			return fmt.Errorf("overlay %d (%s) at %.2f-%.2fs outside %.2fs of content", i+1, o.MediaPath, o.StartTime, o.End(), final)
		}
	}
	for i := 1; i < len(p.Zoom); i++ {
		if p.Zoom[i].Time < p.Zoom[i-1].Time {
			return fmt.Errorf("zoom keyframes out of order at %.2fs", p.Zoom[i].Time)
		}
	}
	return nil
}
