//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"voice-clone-studio/internal/domain"
	"voice-clone-studio/internal/domain/model"
	"voice-clone-studio/internal/domain/ports/adapter"
	"voice-clone-studio/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func intp(v int) *int { return &v }

// ---- MockActivationCodeRepo ----

// MockActivationCodeRepo keeps records in memory. Any Func field that is set
// replaces the default behavior.
type MockActivationCodeRepo struct {
	mu      sync.Mutex
	records map[string]model.ActivationRecord
	today   model.Date

	GetFunc         func(ctx context.Context, code string) (*model.ActivationInfo, error)
	CreateFunc      func(ctx context.Context, params model.NewCode) (*model.ActivationInfo, error)
	RecordUsageFunc func(ctx context.Context, code string, characters int, createdVoice bool) (*model.ActivationInfo, error)
	ImportFunc      func(ctx context.Context, rec model.ActivationRecord) (bool, error)

	RecordUsageCalls int
}

var _ repository.ActivationCodeRepository = (*MockActivationCodeRepo)(nil)

func NewMockActivationCodeRepo(recs ...model.ActivationRecord) *MockActivationCodeRepo {
	m := &MockActivationCodeRepo{
		records: map[string]model.ActivationRecord{},
		today:   model.NewDate(2025, 1, 15),
	}
	for _, r := range recs {
		r.Normalize()
		m.records[r.Code] = r
	}
	return m
}

func (m *MockActivationCodeRepo) Get(ctx context.Context, code string) (*model.ActivationInfo, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[model.CanonicalCode(code)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.Info(m.today), nil
}

func (m *MockActivationCodeRepo) List(ctx context.Context) ([]*model.ActivationInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.ActivationInfo, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Info(m.today))
	}
	model.SortNewestFirst(out)
	return out, nil
}

func (m *MockActivationCodeRepo) Create(ctx context.Context, params model.NewCode) (*model.ActivationInfo, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := model.NewActivationRecord("GENERATED0000001", params, m.today.Time())
	m.records[rec.Code] = rec
	return rec.Info(m.today), nil
}

func (m *MockActivationCodeRepo) Update(ctx context.Context, code string, patch model.CodePatch) (*model.ActivationInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[model.CanonicalCode(code)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	patch.Apply(&r)
	m.records[r.Code] = r
	return r.Info(m.today), nil
}

func (m *MockActivationCodeRepo) RecordUsage(ctx context.Context, code string, characters int, createdVoice bool) (*model.ActivationInfo, error) {
	m.mu.Lock()
	m.RecordUsageCalls++
	m.mu.Unlock()
	if m.RecordUsageFunc != nil {
		return m.RecordUsageFunc(ctx, code, characters, createdVoice)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[model.CanonicalCode(code)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	r.AddUsage(characters, createdVoice, m.today.Time())
	m.records[r.Code] = r
	return r.Info(m.today), nil
}

func (m *MockActivationCodeRepo) Import(ctx context.Context, rec model.ActivationRecord) (bool, error) {
	if m.ImportFunc != nil {
		return m.ImportFunc(ctx, rec)
	}
	rec.Normalize()
	if err := model.ValidateImportCode(rec.Code); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.Code]; ok {
		return false, nil
	}
	m.records[rec.Code] = rec
	return true, nil
}

func (m *MockActivationCodeRepo) Backend() string { return "mock" }
func (m *MockActivationCodeRepo) Close() error    { return nil }

// ---- MockSpeech ----

type MockSpeech struct {
	mu       sync.Mutex
	Uploads  []adapter.VoiceUpload
	Requests []adapter.SpeechRequest

	UploadVoiceFunc func(ctx context.Context, up adapter.VoiceUpload) (string, error)
	SynthesizeFunc  func(ctx context.Context, req adapter.SpeechRequest) (*adapter.SpeechAudio, error)
}

var _ adapter.SpeechSynthesizer = (*MockSpeech)(nil)

func (m *MockSpeech) UploadVoice(ctx context.Context, up adapter.VoiceUpload) (string, error) {
	m.mu.Lock()
	m.Uploads = append(m.Uploads, up)
	m.mu.Unlock()
	if m.UploadVoiceFunc != nil {
		return m.UploadVoiceFunc(ctx, up)
	}
	return "speech:voice:uploaded", nil
}

func (m *MockSpeech) Synthesize(ctx context.Context, req adapter.SpeechRequest) (*adapter.SpeechAudio, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, req)
	}
	return &adapter.SpeechAudio{Format: req.Params.ResponseFormat, Audio: []byte("ID3audio")}, nil
}

func (m *MockSpeech) Status(ctx context.Context) (adapter.ServiceStatus, error) {
	return adapter.ServiceStatus{KeyLoaded: true, Model: "test-model", ModelAvailable: true}, nil
}
