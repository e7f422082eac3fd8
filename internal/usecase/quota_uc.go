package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"voice-clone-studio/internal/domain"
	"voice-clone-studio/internal/domain/model"
	"voice-clone-studio/internal/domain/ports/repository"
	"voice-clone-studio/internal/infra/metrics"
)

// Compile-time check
var _ QuotaUseCase = (*quotaUC)(nil)

// QuotaUseCase gates paid speech operations on an activation code. The check
// and the recording are separate calls; the speech request runs in between.
type QuotaUseCase interface {
	EnsureQuota(ctx context.Context, code string, requiredCharacters int, needsNewVoice bool) (model.QuotaDecision, error)
	RecordUsage(ctx context.Context, code string, characters int, createdVoice bool) (*model.ActivationInfo, error)
}

type quotaUC struct {
	codes repository.ActivationCodeRepository
	log   *zerolog.Logger
}

func NewQuotaUseCase(codes repository.ActivationCodeRepository, logger *zerolog.Logger) *quotaUC {
	l := logger.With().Str("component", "QuotaUC").Logger()
	return &quotaUC{codes: codes, log: &l}
}

func (q *quotaUC) EnsureQuota(ctx context.Context, code string, requiredCharacters int, needsNewVoice bool) (model.QuotaDecision, error) {
	info, err := q.codes.Get(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return q.decide(model.Deny(model.ReasonCodeNotFound, nil)), nil
	}
	if err != nil {
		return model.QuotaDecision{}, fmt.Errorf("ensure quota: %w", err)
	}
	return q.decide(Evaluate(info, requiredCharacters, needsNewVoice)), nil
}

func (q *quotaUC) decide(d model.QuotaDecision) model.QuotaDecision {
	metrics.IncQuotaDecision(d.Authorized, string(d.Reason))
	if !d.Authorized {
		q.log.Debug().Str("reason", string(d.Reason)).Msg("quota denied")
	}
	return d
}

// Evaluate applies the quota rules to a snapshot: disabled, then expired, then
// voice quota, then character quota. The first failing rule wins.
func Evaluate(info *model.ActivationInfo, requiredCharacters int, needsNewVoice bool) model.QuotaDecision {
	switch {
	case info == nil:
		return model.Deny(model.ReasonCodeNotFound, nil)
	case info.Disabled:
		return model.Deny(model.ReasonDisabled, info)
	case info.Expired:
		return model.Deny(model.ReasonExpired, info)
	case needsNewVoice && info.AvailableVoices != nil && *info.AvailableVoices <= 0:
		return model.Deny(model.ReasonVoiceQuota, info)
	case requiredCharacters > 0 && info.RemainingCharacters != nil && *info.RemainingCharacters < requiredCharacters:
		return model.Deny(model.ReasonCharacterQuota, info)
	}
	return model.Allow(info)
}

func (q *quotaUC) RecordUsage(ctx context.Context, code string, characters int, createdVoice bool) (*model.ActivationInfo, error) {
	info, err := q.codes.RecordUsage(ctx, code, characters, createdVoice)
	if err != nil {
		return nil, err
	}
	metrics.AddUsage(characters, createdVoice)
	return info, nil
}
