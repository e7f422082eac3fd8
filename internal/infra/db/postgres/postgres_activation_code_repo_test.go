//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voice-clone-studio/internal/domain"
	"voice-clone-studio/internal/domain/model"
)

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }
func boolp(v bool) *bool    { return &v }

func TestActivationCodeRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewActivationCodeRepo(testPool, nil)

	t.Run("should create and read back a code", func(t *testing.T) {
		cleanup(t)

		created, err := repo.Create(ctx, model.NewCode{MaxVoices: 5, MaxCharacters: 1000, ExpiresAt: model.ParseDate("2099-01-01"), Note: "t"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if len(created.Code) != model.CodeLength {
			t.Fatalf("unexpected code %q", created.Code)
		}

		got, err := repo.Get(ctx, created.Code)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.AvailableVoices == nil || *got.AvailableVoices != 5 {
			t.Errorf("available voices = %v, want 5", got.AvailableVoices)
		}
		if got.RemainingCharacters == nil || *got.RemainingCharacters != 1000 {
			t.Errorf("remaining characters = %v, want 1000", got.RemainingCharacters)
		}
		if got.ExpiresAt == nil || got.ExpiresAt.String() != "2099-01-01" {
			t.Errorf("expires_at = %v", got.ExpiresAt)
		}
		if got.Expired || got.Disabled || got.Note != "t" || got.LastUsedAt != nil {
			t.Errorf("unexpected snapshot: %+v", got)
		}
	})

	t.Run("should regenerate on collision", func(t *testing.T) {
		cleanup(t)
		candidates := []string{"COLLIDECOLLIDE01", "COLLIDECOLLIDE01", "FRESHFRESHFRESH1"}
		var i int
		r := NewActivationCodeRepo(testPool, nil, WithGenerator(func() (string, error) {
			c := candidates[i%len(candidates)]
			i++
			return c, nil
		}))
		if _, err := r.Create(ctx, model.NewCode{}); err != nil {
			t.Fatalf("first create: %v", err)
		}
		second, err := r.Create(ctx, model.NewCode{})
		if err != nil {
			t.Fatalf("second create: %v", err)
		}
		if second.Code != "FRESHFRESHFRESH1" {
			t.Errorf("got %s", second.Code)
		}
	})

	t.Run("should patch sparsely and re-clamp", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.Import(ctx, model.ActivationRecord{Code: "PATCHME", MaxVoices: 5, UsedVoices: 4, MaxCharacters: 1000, UsedCharacters: 900, ExpiresAt: model.ParseDate("2099-01-01")}); err != nil {
			t.Fatalf("Import: %v", err)
		}

		info, err := repo.Update(ctx, "patchme", model.CodePatch{MaxVoices: intp(2), MaxCharacters: intp(500)})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if info.UsedVoices != 2 || info.UsedCharacters != 500 {
			t.Errorf("usage not clamped: %+v", info)
		}
		if info.ExpiresAt == nil {
			t.Error("omitted expiry must be kept")
		}

		info, err = repo.Update(ctx, "PATCHME", model.CodePatch{ExpiresAt: strp(""), Note: strp("  vip "), Disabled: boolp(true)})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if info.ExpiresAt != nil || info.Note != "vip" || !info.Disabled {
			t.Errorf("unexpected snapshot: %+v", info)
		}

		info, err = repo.Update(ctx, "PATCHME", model.CodePatch{MaxVoices: intp(0)})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if info.AvailableVoices != nil || info.UsedVoices != 2 {
			t.Errorf("unlimited cap should keep usage: %+v", info)
		}

		same, err := repo.Update(ctx, "PATCHME", model.CodePatch{})
		if err != nil || same.UsedVoices != 2 {
			t.Errorf("empty patch: %+v, %v", same, err)
		}

		if _, err := repo.Update(ctx, "MISSING", model.CodePatch{Note: strp("x")}); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should record usage atomically", func(t *testing.T) {
		cleanup(t)
		created, err := repo.Create(ctx, model.NewCode{MaxVoices: 1, MaxCharacters: 100})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := repo.RecordUsage(ctx, created.Code, 40, true); err != nil {
			t.Fatalf("RecordUsage: %v", err)
		}
		info, err := repo.RecordUsage(ctx, created.Code, 70, false)
		if err != nil {
			t.Fatalf("RecordUsage: %v", err)
		}
		if info.UsedCharacters != 100 || info.UsedVoices != 1 || info.LastUsedAt == nil {
			t.Errorf("unexpected snapshot: %+v", info)
		}

		if _, err := repo.RecordUsage(ctx, "NOPE", 1, false); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should not lose concurrent usage", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.Import(ctx, model.ActivationRecord{Code: "PARALLEL"}); err != nil {
			t.Fatalf("Import: %v", err)
		}
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.RecordUsage(ctx, "PARALLEL", 3, true); err != nil {
					t.Errorf("RecordUsage: %v", err)
				}
			}()
		}
		wg.Wait()
		info, err := repo.Get(ctx, "PARALLEL")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if info.UsedCharacters != 60 || info.UsedVoices != 20 {
			t.Errorf("lost updates: %+v", info)
		}
	})

	t.Run("should import once and list newest first", func(t *testing.T) {
		cleanup(t)
		older := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		newer := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		ok, err := repo.Import(ctx, model.ActivationRecord{Code: "OLDER", CreatedAt: older})
		if err != nil || !ok {
			t.Fatalf("Import: %v %v", ok, err)
		}
		if _, err := repo.Import(ctx, model.ActivationRecord{Code: "NEWER", CreatedAt: newer}); err != nil {
			t.Fatalf("Import: %v", err)
		}
		ok, err = repo.Import(ctx, model.ActivationRecord{Code: "older", MaxVoices: 9})
		if err != nil || ok {
			t.Fatalf("duplicate import should be skipped: %v %v", ok, err)
		}

		list, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 2 || list[0].Code != "NEWER" || list[1].Code != "OLDER" {
			t.Fatalf("unexpected order: %+v", list)
		}
		if list[1].MaxVoices != 0 {
			t.Error("duplicate import must not overwrite")
		}
	})

	t.Run("should tolerate legacy NULL columns", func(t *testing.T) {
		cleanup(t)
		if _, err := testPool.Exec(ctx, `INSERT INTO activation_codes (code, max_voices, used_voices, disabled, note, created_at)
VALUES ('LEGACY', NULL, NULL, NULL, NULL, NULL)`); err != nil {
			t.Fatalf("insert legacy row: %v", err)
		}
		info, err := repo.Get(ctx, "legacy")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if info.MaxVoices != 0 || info.Disabled || info.Note != "" || !info.CreatedAt.IsZero() {
			t.Errorf("unexpected snapshot: %+v", info)
		}
	})
}
