package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"voice-clone-studio/internal/domain"
	"voice-clone-studio/internal/domain/model"
	"voice-clone-studio/internal/domain/ports/repository"
	"voice-clone-studio/internal/infra/db/jsonfile"
	"voice-clone-studio/internal/infra/metrics"
)

// Compile-time check
var _ AdminUseCase = (*adminUC)(nil)

type AdminUseCase interface {
	Generate(ctx context.Context, maxVoices, maxCharacters int, expiresAt, note string) (*model.ActivationInfo, error)
	Update(ctx context.Context, code string, patch model.CodePatch) (*model.ActivationInfo, error)
	SetDisabled(ctx context.Context, code string, disabled bool) (*model.ActivationInfo, error)
	List(ctx context.Context) ([]*model.ActivationInfo, error)
	Get(ctx context.Context, code string) (*model.ActivationInfo, error)
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, recs []model.ActivationRecord) (ImportReport, error)
}

// ImportReport summarizes a bulk import. Codes already in the ledger are
// skipped unchanged; invalid codes are listed with their error.
type ImportReport struct {
	Inserted []string          `json:"inserted"`
	Skipped  []string          `json:"skipped"`
	Invalid  map[string]string `json:"invalid,omitempty"`
}

type adminUC struct {
	codes repository.ActivationCodeRepository
	log   *zerolog.Logger
}

func NewAdminUseCase(codes repository.ActivationCodeRepository, logger *zerolog.Logger) *adminUC {
	l := logger.With().Str("component", "AdminUC").Logger()
	return &adminUC{codes: codes, log: &l}
}

func (a *adminUC) Generate(ctx context.Context, maxVoices, maxCharacters int, expiresAt, note string) (*model.ActivationInfo, error) {
	if maxVoices < 0 || maxCharacters < 0 {
		metrics.IncAdminCommand("generate", "invalid")
		return nil, fmt.Errorf("%w: limits must not be negative", domain.ErrInvalidArgument)
	}
	// an unparseable expiry means no expiry, as it does in Update
	info, err := a.codes.Create(ctx, model.NewCode{
		MaxVoices:     maxVoices,
		MaxCharacters: maxCharacters,
		ExpiresAt:     model.ParseDate(expiresAt),
		Note:          note,
	})
	if err != nil {
		metrics.IncAdminCommand("generate", "error")
		return nil, err
	}
	metrics.IncAdminCommand("generate", "ok")
	a.log.Info().Int("max_voices", info.MaxVoices).Int("max_characters", info.MaxCharacters).Msg("activation code generated")
	return info, nil
}

func (a *adminUC) Update(ctx context.Context, code string, patch model.CodePatch) (*model.ActivationInfo, error) {
	if (patch.MaxVoices != nil && *patch.MaxVoices < 0) || (patch.MaxCharacters != nil && *patch.MaxCharacters < 0) {
		metrics.IncAdminCommand("update", "invalid")
		return nil, fmt.Errorf("%w: limits must not be negative", domain.ErrInvalidArgument)
	}
	info, err := a.codes.Update(ctx, code, patch)
	a.count("update", err)
	return info, err
}

func (a *adminUC) SetDisabled(ctx context.Context, code string, disabled bool) (*model.ActivationInfo, error) {
	cmd := "enable"
	if disabled {
		cmd = "disable"
	}
	info, err := a.codes.Update(ctx, code, model.CodePatch{Disabled: &disabled})
	a.count(cmd, err)
	return info, err
}

func (a *adminUC) List(ctx context.Context) ([]*model.ActivationInfo, error) {
	return a.codes.List(ctx)
}

func (a *adminUC) Get(ctx context.Context, code string) (*model.ActivationInfo, error) {
	return a.codes.Get(ctx, code)
}

// Export renders every code as a compact {"codes": {...}} document suitable
// for DEFAULT_ACTIVATION_CODES.
func (a *adminUC) Export(ctx context.Context) ([]byte, error) {
	list, err := a.codes.List(ctx)
	if err != nil {
		a.count("export", err)
		return nil, err
	}
	out, err := jsonfile.ExportDocument(list)
	a.count("export", err)
	return out, err
}

func (a *adminUC) Import(ctx context.Context, recs []model.ActivationRecord) (ImportReport, error) {
	report := ImportReport{Inserted: []string{}, Skipped: []string{}}
	for _, rec := range recs {
		inserted, err := a.codes.Import(ctx, rec)
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			if report.Invalid == nil {
				report.Invalid = map[string]string{}
			}
			report.Invalid[rec.Code] = err.Error()
		case err != nil:
			a.count("import", err)
			return report, err
		case inserted:
			report.Inserted = append(report.Inserted, model.CanonicalCode(rec.Code))
		default:
			report.Skipped = append(report.Skipped, model.CanonicalCode(rec.Code))
		}
	}
	a.count("import", nil)
	a.log.Info().
		Int("inserted", len(report.Inserted)).
		Int("skipped", len(report.Skipped)).
		Int("invalid", len(report.Invalid)).
		Msg("activation codes imported")
	return report, nil
}

func (a *adminUC) count(cmd string, err error) {
	switch {
	case err == nil:
		metrics.IncAdminCommand(cmd, "ok")
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncAdminCommand(cmd, "not_found")
	default:
		metrics.IncAdminCommand(cmd, "error")
	}
}
