package speech

import (
	"context"

	"voice-clone-studio/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.SpeechSynthesizer = (*limitedSpeech)(nil)

type limitedSpeech struct {
	inner adapter.SpeechSynthesizer
	sem   chan struct{}
}

// NewLimited caps concurrent paid calls (uploads and synthesis). Status
// probes are not limited.
func NewLimited(inner adapter.SpeechSynthesizer, maxConcurrent int) adapter.SpeechSynthesizer {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedSpeech{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedSpeech) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedSpeech) UploadVoice(ctx context.Context, up adapter.VoiceUpload) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer func() { <-l.sem }()
	return l.inner.UploadVoice(ctx, up)
}

func (l *limitedSpeech) Synthesize(ctx context.Context, req adapter.SpeechRequest) (*adapter.SpeechAudio, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer func() { <-l.sem }()
	return l.inner.Synthesize(ctx, req)
}

func (l *limitedSpeech) Status(ctx context.Context) (adapter.ServiceStatus, error) {
	return l.inner.Status(ctx)
}
