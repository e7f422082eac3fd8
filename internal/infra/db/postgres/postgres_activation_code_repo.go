package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"voice-clone-studio/internal/domain"
	"voice-clone-studio/internal/domain/model"
	"voice-clone-studio/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.ActivationCodeRepository = (*activationCodeRepo)(nil)

const maxCreateAttempts = 64

// Columns are coalesced so rows written by older tools with NULLs still load.
const selectColumns = `
  code,
  COALESCE(max_voices, 0),
  COALESCE(used_voices, 0),
  COALESCE(max_characters, 0),
  COALESCE(used_characters, 0),
  expires_at,
  COALESCE(disabled, FALSE),
  COALESCE(note, ''),
  COALESCE(created_at, 'epoch'::timestamptz),
  last_used_at`

type activationCodeRepo struct {
	pool *pgxpool.Pool
	gen  model.CodeGenerator
	now  func() time.Time
	log  *zerolog.Logger
}

type Option func(*activationCodeRepo)

func WithGenerator(gen model.CodeGenerator) Option {
	return func(r *activationCodeRepo) { r.gen = gen }
}

func WithClock(now func() time.Time) Option {
	return func(r *activationCodeRepo) { r.now = now }
}

// NewActivationCodeRepo returns the Postgres-backed ledger. Every mutation is
// a single statement, so concurrent writers are serialized by row locks.
func NewActivationCodeRepo(pool *pgxpool.Pool, logger *zerolog.Logger, opts ...Option) repository.ActivationCodeRepository {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "PostgresActivationCodeRepo").Logger()
	r := &activationCodeRepo{
		pool: pool,
		gen:  model.GenerateActivationCode,
		now:  time.Now,
		log:  &l,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *activationCodeRepo) Backend() string { return "postgres" }

func (r *activationCodeRepo) Close() error {
	r.pool.Close()
	return nil
}

// PoolStats reports total, idle and acquired connections.
func (r *activationCodeRepo) PoolStats() (total, idle, inUse int32) {
	st := r.pool.Stat()
	return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
}

func (r *activationCodeRepo) today() model.Date { return model.DateOf(r.now()) }

func (r *activationCodeRepo) Get(ctx context.Context, code string) (*model.ActivationInfo, error) {
	code = model.CanonicalCode(code)
	if code == "" {
		return nil, domain.ErrNotFound
	}
	q := `SELECT` + selectColumns + `
  FROM activation_codes
 WHERE code = $1;`
	rec, err := scanRecord(r.pool.QueryRow(ctx, q, code))
	if err != nil {
		return nil, mapErr("get activation code", err)
	}
	return rec.Info(r.today()), nil
}

func (r *activationCodeRepo) List(ctx context.Context) ([]*model.ActivationInfo, error) {
	q := `SELECT` + selectColumns + `
  FROM activation_codes
 ORDER BY created_at DESC NULLS LAST, code;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, mapErr("list activation codes", err)
	}
	defer rows.Close()

	today := r.today()
	var out []*model.ActivationInfo
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, mapErr("scan activation code", err)
		}
		out = append(out, rec.Info(today))
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list activation codes", err)
	}
	// zero created_at sorts last, as in the file backend
	model.SortNewestFirst(out)
	return out, nil
}

// Create inserts with ON CONFLICT DO NOTHING; an empty RETURNING means the
// candidate collided and another one is drawn.
func (r *activationCodeRepo) Create(ctx context.Context, params model.NewCode) (*model.ActivationInfo, error) {
	const q = `
INSERT INTO activation_codes
  (code, max_voices, used_voices, max_characters, used_characters, expires_at, disabled, note, created_at, last_used_at)
VALUES ($1, $2, 0, $3, 0, $4, FALSE, $5, $6, NULL)
ON CONFLICT (code) DO NOTHING
RETURNING` + selectColumns + `;`

	for i := 0; i < maxCreateAttempts; i++ {
		c, err := r.gen()
		if err != nil {
			return nil, fmt.Errorf("generate activation code: %w", err)
		}
		rec := model.NewActivationRecord(c, params, r.now())
		if rec.Code == "" {
			continue
		}
		saved, err := scanRecord(r.pool.QueryRow(ctx, q,
			rec.Code, rec.MaxVoices, rec.MaxCharacters, dateArg(rec.ExpiresAt), rec.Note, rec.CreatedAt,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			r.log.Debug().Int("attempt", i+1).Msg("activation code collision, regenerating")
			continue
		}
		if err != nil {
			return nil, mapErr("create activation code", err)
		}
		return saved.Info(r.today()), nil
	}
	return nil, domain.ErrCodeSpaceExhausted
}

// Update builds a SET list from the non-nil patch fields. Lowering a cap
// re-clamps the matching counter in the same statement.
func (r *activationCodeRepo) Update(ctx context.Context, code string, patch model.CodePatch) (*model.ActivationInfo, error) {
	code = model.CanonicalCode(code)
	if code == "" {
		return nil, domain.ErrNotFound
	}
	if patch.IsEmpty() {
		return r.Get(ctx, code)
	}

	args := []interface{}{code}
	var sets []string
	next := func(v interface{}) int {
		args = append(args, v)
		return len(args)
	}
	if patch.MaxVoices != nil {
		n := next(nonNegative(*patch.MaxVoices))
		sets = append(sets,
			fmt.Sprintf("max_voices = $%d", n),
			fmt.Sprintf("used_voices = %s", clampExpr("used_voices", n)),
		)
	}
	if patch.MaxCharacters != nil {
		n := next(nonNegative(*patch.MaxCharacters))
		sets = append(sets,
			fmt.Sprintf("max_characters = $%d", n),
			fmt.Sprintf("used_characters = %s", clampExpr("used_characters", n)),
		)
	}
	if patch.ExpiresAt != nil {
		n := next(dateArg(model.ParseDate(*patch.ExpiresAt)))
		sets = append(sets, fmt.Sprintf("expires_at = $%d::date", n))
	}
	if patch.Note != nil {
		n := next(strings.TrimSpace(*patch.Note))
		sets = append(sets, fmt.Sprintf("note = $%d", n))
	}
	if patch.Disabled != nil {
		n := next(*patch.Disabled)
		sets = append(sets, fmt.Sprintf("disabled = $%d", n))
	}

	q := `UPDATE activation_codes SET ` + strings.Join(sets, ", ") + `
 WHERE code = $1
RETURNING` + selectColumns + `;`
	rec, err := scanRecord(r.pool.QueryRow(ctx, q, args...))
	if err != nil {
		return nil, mapErr("update activation code", err)
	}
	return rec.Info(r.today()), nil
}

// RecordUsage is one UPDATE, so concurrent recordings against the same code
// serialize on the row lock and none is lost.
func (r *activationCodeRepo) RecordUsage(ctx context.Context, code string, characters int, createdVoice bool) (*model.ActivationInfo, error) {
	code = model.CanonicalCode(code)
	if code == "" {
		return nil, domain.ErrNotFound
	}
	voices := 0
	if createdVoice {
		voices = 1
	}
	const q = `
UPDATE activation_codes SET
  used_characters = CASE
    WHEN COALESCE(max_characters, 0) > 0
      THEN LEAST(GREATEST(COALESCE(used_characters, 0), 0)::bigint + $2, max_characters)
    ELSE LEAST(GREATEST(COALESCE(used_characters, 0), 0)::bigint + $2, 2147483647)
  END,
  used_voices = CASE
    WHEN COALESCE(max_voices, 0) > 0
      THEN LEAST(GREATEST(COALESCE(used_voices, 0), 0)::bigint + $3, max_voices)
    ELSE LEAST(GREATEST(COALESCE(used_voices, 0), 0)::bigint + $3, 2147483647)
  END,
  last_used_at = $4
 WHERE code = $1
RETURNING` + selectColumns + `;`

	rec, err := scanRecord(r.pool.QueryRow(ctx, q, code, int64(nonNegative(characters)), int64(voices), r.now().UTC()))
	if err != nil {
		return nil, mapErr("record usage", err)
	}
	return rec.Info(r.today()), nil
}

func (r *activationCodeRepo) Import(ctx context.Context, rec model.ActivationRecord) (bool, error) {
	rec.Normalize()
	if err := model.ValidateImportCode(rec.Code); err != nil {
		return false, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	const q = `
INSERT INTO activation_codes
  (code, max_voices, used_voices, max_characters, used_characters, expires_at, disabled, note, created_at, last_used_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (code) DO NOTHING;`
	tag, err := r.pool.Exec(ctx, q,
		rec.Code, rec.MaxVoices, rec.UsedVoices, rec.MaxCharacters, rec.UsedCharacters,
		dateArg(rec.ExpiresAt), rec.Disabled, rec.Note, rec.CreatedAt, rec.LastUsedAt,
	)
	if err != nil {
		return false, mapErr("import activation code", err)
	}
	return tag.RowsAffected() == 1, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (model.ActivationRecord, error) {
	var (
		rec     model.ActivationRecord
		expires *time.Time
		created time.Time
		last    *time.Time
	)
	err := row.Scan(
		&rec.Code, &rec.MaxVoices, &rec.UsedVoices, &rec.MaxCharacters, &rec.UsedCharacters,
		&expires, &rec.Disabled, &rec.Note, &created, &last,
	)
	if err != nil {
		return model.ActivationRecord{}, err
	}
	if expires != nil {
		d := model.DateOf(*expires)
		rec.ExpiresAt = &d
	}
	if created.Unix() != 0 {
		rec.CreatedAt = created
	}
	rec.LastUsedAt = last
	rec.Normalize()
	return rec, nil
}

// clampExpr is the new value of a counter when its cap changes to $n.
func clampExpr(col string, n int) string {
	return fmt.Sprintf("CASE WHEN $%[2]d > 0 THEN LEAST(GREATEST(COALESCE(%[1]s, 0), 0), $%[2]d) ELSE GREATEST(COALESCE(%[1]s, 0), 0) END", col, n)
}

func dateArg(d *model.Date) interface{} {
	if d == nil {
		return nil
	}
	return d.Time()
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// mapErr turns driver errors into domain errors. Data exceptions (class 22)
// and integrity violations (class 23) are the caller's fault; anything else
// means the ledger is unreachable or broken.
func mapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")) {
		return fmt.Errorf("%s: %w: %s", op, domain.ErrInvalidArgument, pgErr.Message)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStorageUnavailable, err)
}
