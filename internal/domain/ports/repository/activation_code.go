package repository

import (
	"context"

	"voice-clone-studio/internal/domain/model"
)

// ActivationCodeRepository is the port for the activation-code ledger.
// File and Postgres backends implement it with identical semantics; codes are
// looked up in canonical (trimmed, uppercased) form.
type ActivationCodeRepository interface {
	// Get returns the snapshot for code, or domain.ErrNotFound.
	Get(ctx context.Context, code string) (*model.ActivationInfo, error)
	// List returns every code, newest first.
	List(ctx context.Context) ([]*model.ActivationInfo, error)
	// Create generates a fresh unique code carrying the given limits.
	Create(ctx context.Context, params model.NewCode) (*model.ActivationInfo, error)
	// Update applies a sparse patch. An empty patch returns the current snapshot.
	Update(ctx context.Context, code string, patch model.CodePatch) (*model.ActivationInfo, error)
	// RecordUsage adds consumed characters and, when createdVoice, one voice,
	// re-clamps both to their caps and stamps last_used_at in one atomic step.
	RecordUsage(ctx context.Context, code string, characters int, createdVoice bool) (*model.ActivationInfo, error)
	// Import inserts a record with an operator-supplied code. It reports false
	// without error when the code already exists.
	Import(ctx context.Context, rec model.ActivationRecord) (bool, error)

	Backend() string
	Close() error
}
