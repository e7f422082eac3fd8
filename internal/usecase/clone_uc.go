package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"voice-clone-studio/internal/domain"
	"voice-clone-studio/internal/domain/model"
	"voice-clone-studio/internal/domain/ports/adapter"
	"voice-clone-studio/internal/domain/ports/repository"
	"voice-clone-studio/internal/infra/logging"
)

const (
	DefaultMaxReferenceBytes = 10 << 20
	maxCustomNameRunes       = 60
	maxSampleTextRunes       = 200
	emotionVectorSize        = 8
)

// SupportedFormats are the response formats the speech model can return.
var SupportedFormats = map[string]bool{"mp3": true, "wav": true, "ogg": true, "flac": true}

type EmotionMode string

const (
	EmotionSame   EmotionMode = "same"
	EmotionAudio  EmotionMode = "audio"
	EmotionVector EmotionMode = "vector"
	EmotionText   EmotionMode = "text"
)

// ParseEmotionMode maps unknown or empty input to EmotionSame.
func ParseEmotionMode(s string) EmotionMode {
	switch m := EmotionMode(strings.ToLower(strings.TrimSpace(s))); m {
	case EmotionAudio, EmotionVector, EmotionText:
		return m
	}
	return EmotionSame
}

type AudioFile struct {
	FileName string
	MimeType string
	Data     []byte
}

type CloneRequest struct {
	Code          string
	Text          string
	UseSavedVoice bool
	SavedVoiceURI string
	CustomName    string
	Reference     *AudioFile
	Params        adapter.SpeechParams

	EmotionMode   EmotionMode
	EmotionAudio  *AudioFile
	EmotionVector []float64 // happy, angry, sad, fear, disgust, melancholic, surprise, calm
	EmotionText   string
}

type CloneResult struct {
	Audio        []byte
	Format       string
	VoiceURI     string
	CreatedVoice bool
	Characters   int
	Info         *model.ActivationInfo
	// Warning is set when synthesis succeeded but the usage could not be recorded.
	Warning string
}

// QuotaDeniedError carries the decision that refused a clone request.
type QuotaDeniedError struct {
	Decision model.QuotaDecision
}

func (e *QuotaDeniedError) Error() string {
	return "quota denied: " + string(e.Decision.Reason)
}

// Compile-time check
var _ CloneUseCase = (*cloneUC)(nil)

type CloneUseCase interface {
	Clone(ctx context.Context, req CloneRequest) (*CloneResult, error)
}

type cloneUC struct {
	codes    repository.ActivationCodeRepository
	quota    QuotaUseCase
	speech   adapter.SpeechSynthesizer
	maxBytes int64
	dev      bool
	log      *zerolog.Logger
}

func NewCloneUseCase(codes repository.ActivationCodeRepository, quota QuotaUseCase, speech adapter.SpeechSynthesizer, maxReferenceBytes int64, dev bool, logger *zerolog.Logger) *cloneUC {
	if maxReferenceBytes <= 0 {
		maxReferenceBytes = DefaultMaxReferenceBytes
	}
	l := logger.With().Str("component", "CloneUC").Logger()
	return &cloneUC{codes: codes, quota: quota, speech: speech, maxBytes: maxReferenceBytes, dev: dev, log: &l}
}

func (c *cloneUC) Clone(ctx context.Context, req CloneRequest) (*CloneResult, error) {
	ctx = logging.WithCode(ctx, logging.Redact(model.CanonicalCode(req.Code), c.dev))
	log := logging.With(ctx, c.log)
	defer logging.TraceDuration(log, "CloneUC.Clone")()

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, domain.ErrEmptyText
	}
	if _, err := c.codes.Get(ctx, req.Code); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, err
	}

	savedURI := strings.TrimSpace(req.SavedVoiceURI)
	needsNewVoice := !(req.UseSavedVoice && savedURI != "")
	characters := utf8.RuneCountInString(text)

	decision, err := c.quota.EnsureQuota(ctx, req.Code, characters, needsNewVoice)
	if err != nil {
		return nil, err
	}
	if !decision.Authorized {
		return nil, &QuotaDeniedError{Decision: decision}
	}

	if needsNewVoice {
		if req.Reference == nil || len(req.Reference.Data) == 0 {
			return nil, domain.ErrReferenceAudio
		}
		if int64(len(req.Reference.Data)) > c.maxBytes {
			return nil, fmt.Errorf("%w: %d bytes", domain.ErrReferenceTooLarge, len(req.Reference.Data))
		}
	}

	params := req.Params
	params.ResponseFormat = strings.ToLower(strings.TrimSpace(params.ResponseFormat))
	if params.ResponseFormat == "" {
		params.ResponseFormat = "mp3"
	}
	if !SupportedFormats[params.ResponseFormat] {
		return nil, fmt.Errorf("%w: response format %q", domain.ErrInvalidArgument, params.ResponseFormat)
	}

	speechReq := adapter.SpeechRequest{Input: text, Params: params}
	if err := c.applyEmotion(&speechReq, req); err != nil {
		return nil, err
	}

	voiceURI := savedURI
	created := false
	if needsNewVoice {
		voiceURI, err = c.speech.UploadVoice(ctx, adapter.VoiceUpload{
			FileName:   req.Reference.FileName,
			MimeType:   req.Reference.MimeType,
			Audio:      req.Reference.Data,
			CustomName: BuildCustomName(req.CustomName),
			SampleText: truncateRunes(text, maxSampleTextRunes),
		})
		if err != nil {
			return nil, err
		}
		created = true
		log.Info().Str("voice_uri", voiceURI).Msg("reference voice uploaded")
	}
	speechReq.Voice = voiceURI

	audio, err := c.speech.Synthesize(ctx, speechReq)
	if err != nil {
		return nil, err
	}

	res := &CloneResult{
		Audio:        audio.Audio,
		Format:       audio.Format,
		VoiceURI:     voiceURI,
		CreatedVoice: created,
		Characters:   characters,
		Info:         decision.Info,
	}
	info, err := c.quota.RecordUsage(ctx, req.Code, characters, created)
	if err != nil {
		log.Error().Err(err).Int("characters", characters).Bool("created_voice", created).Msg("usage record failed after synthesis")
		res.Warning = err.Error()
		return res, nil
	}
	res.Info = info
	log.Info().Int("characters", characters).Bool("created_voice", created).Int("audio_bytes", len(audio.Audio)).Msg("voice clone succeeded")
	return res, nil
}

func (c *cloneUC) applyEmotion(dst *adapter.SpeechRequest, req CloneRequest) error {
	switch ParseEmotionMode(string(req.EmotionMode)) {
	case EmotionAudio:
		if req.EmotionAudio == nil || len(req.EmotionAudio.Data) == 0 {
			return fmt.Errorf("%w: emotion reference audio required", domain.ErrInvalidEmotion)
		}
		if int64(len(req.EmotionAudio.Data)) > c.maxBytes {
			return fmt.Errorf("%w: emotion audio %d bytes", domain.ErrReferenceTooLarge, len(req.EmotionAudio.Data))
		}
		dst.EmotionAudio = base64.StdEncoding.EncodeToString(req.EmotionAudio.Data)
	case EmotionVector:
		v, err := NormalizeEmotionVector(req.EmotionVector)
		if err != nil {
			return err
		}
		dst.EmotionVector = v
	case EmotionText:
		t := strings.TrimSpace(req.EmotionText)
		if t == "" {
			return fmt.Errorf("%w: emotion description required", domain.ErrInvalidEmotion)
		}
		dst.EmotionText = t
	}
	return nil
}

// NormalizeEmotionVector checks the eight emotion weights and rounds them to
// four decimal places. At least one weight must be positive.
func NormalizeEmotionVector(v []float64) ([]float64, error) {
	if len(v) != emotionVectorSize {
		return nil, fmt.Errorf("%w: emotion vector needs %d values, got %d", domain.ErrInvalidEmotion, emotionVectorSize, len(v))
	}
	out := make([]float64, len(v))
	peak := 0.0
	for i, w := range v {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, fmt.Errorf("%w: emotion weight %d is %v", domain.ErrInvalidEmotion, i, w)
		}
		out[i] = math.Round(w*1e4) / 1e4
		peak = math.Max(peak, w)
	}
	if peak <= 0 {
		return nil, fmt.Errorf("%w: at least one emotion weight must be positive", domain.ErrInvalidEmotion)
	}
	return out, nil
}

// BuildCustomName keeps letters, digits, '-' and '_', turns anything else into
// '-', collapses dash runs and cuts the result to 60 runes. An empty result
// falls back to clone-<ULID>.
func BuildCustomName(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	parts := strings.FieldsFunc(b.String(), func(r rune) bool { return r == '-' })
	if s := strings.Join(parts, "-"); s != "" {
		return truncateRunes(s, maxCustomNameRunes)
	}
	return "clone-" + ulid.Make().String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
