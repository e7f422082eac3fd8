//go:build !integration

package usecase_test

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"voice-clone-studio/internal/domain"
	"voice-clone-studio/internal/domain/model"
	"voice-clone-studio/internal/domain/ports/adapter"
	"voice-clone-studio/internal/usecase"
)

func newCloneUC(repo *MockActivationCodeRepo, speech *MockSpeech) usecase.CloneUseCase {
	quota := usecase.NewQuotaUseCase(repo, newTestLogger())
	return usecase.NewCloneUseCase(repo, quota, speech, 1024, false, newTestLogger())
}

func reference() *usecase.AudioFile {
	return &usecase.AudioFile{FileName: "ref.wav", MimeType: "audio/wav", Data: []byte("RIFFdata")}
}

func TestCloneUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("should upload, synthesize and record usage", func(t *testing.T) {
		repo := NewMockActivationCodeRepo(model.ActivationRecord{Code: "CLONE", MaxVoices: 2, MaxCharacters: 100})
		speech := &MockSpeech{}
		uc := newCloneUC(repo, speech)

		res, err := uc.Clone(ctx, usecase.CloneRequest{
			Code:       "clone",
			Text:       "  你好，世界  ",
			CustomName: "my voice!",
			Reference:  reference(),
			Params:     adapter.DefaultSpeechParams(),
		})
		if err != nil {
			t.Fatalf("Clone: %v", err)
		}
		if !res.CreatedVoice || res.VoiceURI != "speech:voice:uploaded" || res.Warning != "" {
			t.Errorf("unexpected result: %+v", res)
		}
		if res.Characters != 5 || res.Info.UsedCharacters != 5 || res.Info.UsedVoices != 1 {
			t.Errorf("usage not recorded by rune count: %+v", res.Info)
		}
		if len(speech.Uploads) != 1 || speech.Uploads[0].CustomName != "my-voice" || speech.Uploads[0].SampleText != "你好，世界" {
			t.Errorf("unexpected upload: %+v", speech.Uploads)
		}
		if speech.Requests[0].Voice != "speech:voice:uploaded" || speech.Requests[0].Params.ResponseFormat != "mp3" {
			t.Errorf("unexpected speech request: %+v", speech.Requests[0])
		}
	})

	t.Run("should reuse a saved voice without uploading", func(t *testing.T) {
		repo := NewMockActivationCodeRepo(model.ActivationRecord{Code: "SAVED", MaxVoices: 1, UsedVoices: 1})
		speech := &MockSpeech{}
		uc := newCloneUC(repo, speech)

		res, err := uc.Clone(ctx, usecase.CloneRequest{
			Code: "SAVED", Text: "hello", UseSavedVoice: true, SavedVoiceURI: " speech:voice:old ",
		})
		if err != nil {
			t.Fatalf("Clone: %v", err)
		}
		if res.CreatedVoice || res.VoiceURI != "speech:voice:old" || len(speech.Uploads) != 0 {
			t.Errorf("unexpected result: %+v uploads=%d", res, len(speech.Uploads))
		}
		if res.Info.UsedVoices != 1 || res.Info.UsedCharacters != 5 {
			t.Errorf("unexpected usage: %+v", res.Info)
		}
	})

	t.Run("should reject before any paid call", func(t *testing.T) {
		repo := NewMockActivationCodeRepo(
			model.ActivationRecord{Code: "FULL", MaxVoices: 1, UsedVoices: 1},
			model.ActivationRecord{Code: "OK"},
		)
		speech := &MockSpeech{}
		uc := newCloneUC(repo, speech)

		cases := []struct {
			name string
			req  usecase.CloneRequest
			want error
		}{
			{"empty text", usecase.CloneRequest{Code: "OK", Text: "   "}, domain.ErrEmptyText},
			{"unknown code", usecase.CloneRequest{Code: "NONE", Text: "x"}, domain.ErrCodeNotFound},
			{"missing reference", usecase.CloneRequest{Code: "OK", Text: "x"}, domain.ErrReferenceAudio},
			{"saved flag without uri", usecase.CloneRequest{Code: "OK", Text: "x", UseSavedVoice: true}, domain.ErrReferenceAudio},
			{"reference too large", usecase.CloneRequest{Code: "OK", Text: "x", Reference: &usecase.AudioFile{Data: make([]byte, 2048)}}, domain.ErrReferenceTooLarge},
			{"bad format", usecase.CloneRequest{Code: "OK", Text: "x", Reference: reference(), Params: adapter.SpeechParams{ResponseFormat: "aac"}}, domain.ErrInvalidArgument},
			{"zero emotion vector", usecase.CloneRequest{Code: "OK", Text: "x", Reference: reference(), EmotionMode: usecase.EmotionVector, EmotionVector: make([]float64, 8)}, domain.ErrInvalidEmotion},
			{"empty emotion text", usecase.CloneRequest{Code: "OK", Text: "x", Reference: reference(), EmotionMode: usecase.EmotionText, EmotionText: " "}, domain.ErrInvalidEmotion},
			{"missing emotion audio", usecase.CloneRequest{Code: "OK", Text: "x", Reference: reference(), EmotionMode: usecase.EmotionAudio}, domain.ErrInvalidEmotion},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if _, err := uc.Clone(ctx, tc.req); !errors.Is(err, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
			})
		}

		_, err := uc.Clone(ctx, usecase.CloneRequest{Code: "FULL", Text: "x", Reference: reference()})
		var denied *usecase.QuotaDeniedError
		if !errors.As(err, &denied) || denied.Decision.Reason != model.ReasonVoiceQuota {
			t.Fatalf("expected voice quota denial, got %v", err)
		}

		if len(speech.Uploads) != 0 || len(speech.Requests) != 0 {
			t.Errorf("no paid call expected, got %d uploads and %d requests", len(speech.Uploads), len(speech.Requests))
		}
		if repo.RecordUsageCalls != 0 {
			t.Errorf("usage must not be recorded, got %d calls", repo.RecordUsageCalls)
		}
	})

	t.Run("should not record usage when synthesis fails", func(t *testing.T) {
		repo := NewMockActivationCodeRepo(model.ActivationRecord{Code: "FAIL"})
		speech := &MockSpeech{
			SynthesizeFunc: func(ctx context.Context, req adapter.SpeechRequest) (*adapter.SpeechAudio, error) {
				return nil, domain.ErrSpeechUpstream
			},
		}
		uc := newCloneUC(repo, speech)

		if _, err := uc.Clone(ctx, usecase.CloneRequest{Code: "FAIL", Text: "x", Reference: reference()}); !errors.Is(err, domain.ErrSpeechUpstream) {
			t.Fatalf("expected ErrSpeechUpstream, got %v", err)
		}
		if repo.RecordUsageCalls != 0 {
			t.Errorf("usage recorded on failure")
		}
	})

	t.Run("should return audio with a warning when recording fails", func(t *testing.T) {
		repo := NewMockActivationCodeRepo(model.ActivationRecord{Code: "WARN"})
		repo.RecordUsageFunc = func(ctx context.Context, code string, characters int, createdVoice bool) (*model.ActivationInfo, error) {
			return nil, domain.ErrStorageUnavailable
		}
		uc := newCloneUC(repo, &MockSpeech{})

		res, err := uc.Clone(ctx, usecase.CloneRequest{Code: "WARN", Text: "x", Reference: reference()})
		if err != nil {
			t.Fatalf("Clone: %v", err)
		}
		if len(res.Audio) == 0 || res.Warning == "" || res.Info == nil {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("should forward emotion settings", func(t *testing.T) {
		repo := NewMockActivationCodeRepo(model.ActivationRecord{Code: "EMO"})
		speech := &MockSpeech{}
		uc := newCloneUC(repo, speech)

		_, err := uc.Clone(ctx, usecase.CloneRequest{
			Code: "EMO", Text: "x", Reference: reference(),
			EmotionMode:   usecase.EmotionVector,
			EmotionVector: []float64{0.123456, 0, 0, 0, 0, 0, 0, 0.5},
		})
		if err != nil {
			t.Fatalf("Clone: %v", err)
		}
		if v := speech.Requests[0].EmotionVector; len(v) != 8 || v[0] != 0.1235 || v[7] != 0.5 {
			t.Errorf("unexpected vector: %v", v)
		}

		_, err = uc.Clone(ctx, usecase.CloneRequest{
			Code: "EMO", Text: "x", Reference: reference(),
			EmotionMode:  usecase.EmotionAudio,
			EmotionAudio: &usecase.AudioFile{Data: []byte("emo")},
		})
		if err != nil {
			t.Fatalf("Clone: %v", err)
		}
		if speech.Requests[1].EmotionAudio != base64.StdEncoding.EncodeToString([]byte("emo")) {
			t.Errorf("emotion audio not encoded: %q", speech.Requests[1].EmotionAudio)
		}
	})
}

func TestBuildCustomName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"my voice", "my-voice"},
		{"--a  b--", "a-b"},
		{"声音_01", "声音_01"},
		{"a/b\\c", "a-b-c"},
		{strings.Repeat("x", 70), strings.Repeat("x", 60)},
	}
	for _, tc := range tests {
		if got := usecase.BuildCustomName(tc.in); got != tc.want {
			t.Errorf("BuildCustomName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	for _, blank := range []string{"", "   ", "!!!"} {
		got := usecase.BuildCustomName(blank)
		if !strings.HasPrefix(got, "clone-") || utf8.RuneCountInString(got) != len("clone-")+26 {
			t.Errorf("fallback name for %q = %q", blank, got)
		}
	}
}

func TestParseEmotionMode(t *testing.T) {
	if usecase.ParseEmotionMode(" Vector ") != usecase.EmotionVector {
		t.Error("mode should be case-insensitive")
	}
	if usecase.ParseEmotionMode("surprise me") != usecase.EmotionSame {
		t.Error("unknown mode should fall back to same")
	}
}
