//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"voice-clone-studio/internal/domain"
	"voice-clone-studio/internal/domain/model"
	"voice-clone-studio/internal/usecase"
)

func TestAdminUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("Generate should pass limits and parsed expiry", func(t *testing.T) {
		repo := NewMockActivationCodeRepo()
		var got model.NewCode
		repo.CreateFunc = func(ctx context.Context, params model.NewCode) (*model.ActivationInfo, error) {
			got = params
			rec := model.NewActivationRecord("NEWCODE", params, model.NewDate(2025, 1, 1).Time())
			return rec.Info(model.NewDate(2025, 1, 1)), nil
		}
		uc := usecase.NewAdminUseCase(repo, newTestLogger())

		info, err := uc.Generate(ctx, 3, 5000, "2025-06-30", " vip ")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if got.MaxVoices != 3 || got.MaxCharacters != 5000 || got.ExpiresAt == nil || got.ExpiresAt.String() != "2025-06-30" {
			t.Errorf("unexpected params: %+v", got)
		}
		if info.Note != "vip" {
			t.Errorf("note = %q", info.Note)
		}
	})

	t.Run("Generate should reject bad input before touching the store", func(t *testing.T) {
		repo := NewMockActivationCodeRepo()
		repo.CreateFunc = func(ctx context.Context, params model.NewCode) (*model.ActivationInfo, error) {
			t.Fatal("Create must not be called")
			return nil, nil
		}
		uc := usecase.NewAdminUseCase(repo, newTestLogger())
		if _, err := uc.Generate(ctx, -1, 0, "", ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("negative voices: %v", err)
		}
	})

	t.Run("Generate should treat a malformed expiry as no expiry", func(t *testing.T) {
		repo := NewMockActivationCodeRepo()
		var got model.NewCode
		repo.CreateFunc = func(ctx context.Context, params model.NewCode) (*model.ActivationInfo, error) {
			got = params
			return &model.ActivationInfo{Code: "GENERATED0000001"}, nil
		}
		uc := usecase.NewAdminUseCase(repo, newTestLogger())
		if _, err := uc.Generate(ctx, 0, 0, "next tuesday", ""); err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if got.ExpiresAt != nil {
			t.Errorf("expected no expiry, got %v", got.ExpiresAt)
		}
		if _, err := uc.Generate(ctx, 0, 0, " 2099-01-01 ", ""); err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if got.ExpiresAt == nil || got.ExpiresAt.String() != "2099-01-01" {
			t.Errorf("expected 2099-01-01, got %v", got.ExpiresAt)
		}
	})

	t.Run("SetDisabled should toggle the flag", func(t *testing.T) {
		repo := NewMockActivationCodeRepo(model.ActivationRecord{Code: "TOGGLE"})
		uc := usecase.NewAdminUseCase(repo, newTestLogger())

		info, err := uc.SetDisabled(ctx, "toggle", true)
		if err != nil || !info.Disabled {
			t.Fatalf("disable: %+v %v", info, err)
		}
		info, err = uc.SetDisabled(ctx, "TOGGLE", false)
		if err != nil || info.Disabled {
			t.Fatalf("enable: %+v %v", info, err)
		}
		if _, err := uc.SetDisabled(ctx, "GONE", true); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Update should reject negative caps", func(t *testing.T) {
		repo := NewMockActivationCodeRepo(model.ActivationRecord{Code: "CAP"})
		uc := usecase.NewAdminUseCase(repo, newTestLogger())
		if _, err := uc.Update(ctx, "CAP", model.CodePatch{MaxCharacters: intp(-5)}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		info, err := uc.Update(ctx, "CAP", model.CodePatch{MaxCharacters: intp(10)})
		if err != nil || info.MaxCharacters != 10 {
			t.Errorf("update: %+v %v", info, err)
		}
	})

	t.Run("Import should report inserted, skipped and invalid codes", func(t *testing.T) {
		repo := NewMockActivationCodeRepo(model.ActivationRecord{Code: "EXISTING"})
		uc := usecase.NewAdminUseCase(repo, newTestLogger())

		report, err := uc.Import(ctx, []model.ActivationRecord{
			{Code: "fresh", MaxVoices: 2},
			{Code: "existing", MaxVoices: 9},
			{Code: "   "},
		})
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		if len(report.Inserted) != 1 || report.Inserted[0] != "FRESH" {
			t.Errorf("inserted = %v", report.Inserted)
		}
		if len(report.Skipped) != 1 || report.Skipped[0] != "EXISTING" {
			t.Errorf("skipped = %v", report.Skipped)
		}
		if len(report.Invalid) != 1 {
			t.Errorf("invalid = %v", report.Invalid)
		}
		existing, _ := repo.Get(ctx, "EXISTING")
		if existing.MaxVoices != 0 {
			t.Error("existing code must not be overwritten")
		}
	})

	t.Run("Import should stop on storage failure", func(t *testing.T) {
		repo := NewMockActivationCodeRepo()
		repo.ImportFunc = func(ctx context.Context, rec model.ActivationRecord) (bool, error) {
			return false, domain.ErrStorageUnavailable
		}
		uc := usecase.NewAdminUseCase(repo, newTestLogger())
		if _, err := uc.Import(ctx, []model.ActivationRecord{{Code: "A"}}); !errors.Is(err, domain.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
	})

	t.Run("Export should emit a compact codes document", func(t *testing.T) {
		repo := NewMockActivationCodeRepo(
			model.ActivationRecord{Code: "ONE", MaxVoices: 1, Note: "中文"},
			model.ActivationRecord{Code: "TWO"},
		)
		uc := usecase.NewAdminUseCase(repo, newTestLogger())

		out, err := uc.Export(ctx)
		if err != nil {
			t.Fatalf("Export: %v", err)
		}
		var doc struct {
			Codes map[string]map[string]any `json:"codes"`
		}
		if err := json.Unmarshal(out, &doc); err != nil {
			t.Fatalf("export is not JSON: %v", err)
		}
		if len(doc.Codes) != 2 || doc.Codes["ONE"]["note"] != "中文" {
			t.Errorf("unexpected document: %s", out)
		}
		decoded, err := model.DecodeDocument(out)
		if err != nil || decoded["ONE"].MaxVoices != 1 {
			t.Errorf("export must round-trip through DecodeDocument: %v %+v", err, decoded)
		}
	})
}
