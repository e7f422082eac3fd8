package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"voice-clone-studio/internal/domain"
	"voice-clone-studio/internal/domain/model"
	"voice-clone-studio/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Ensure implementation satisfies the interface.
var _ repository.ActivationCodeRepository = (*Store)(nil)

const maxCreateAttempts = 64

// Store keeps every activation code in one JSON document. Each operation
// loads and, when mutating, rewrites the whole file while holding a
// process-wide mutex. Separate processes sharing the file can lose updates.
type Store struct {
	mu   sync.Mutex
	path string
	gen  model.CodeGenerator
	now  func() time.Time
	log  *zerolog.Logger
}

type Option func(*Store)

func WithGenerator(gen model.CodeGenerator) Option {
	return func(s *Store) { s.gen = gen }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens the store at path. When the file does not exist it is created,
// seeded from seedJSON (a {"codes": {...}} document) if one is given.
func New(path, seedJSON string, logger *zerolog.Logger, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: store path is empty", domain.ErrInvalidArgument)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "JSONFileStore").Str("path", path).Logger()
	s := &Store{
		path: path,
		gen:  model.GenerateActivationCode,
		now:  time.Now,
		log:  &l,
	}
	for _, o := range opts {
		o(s)
	}

	if st, err := os.Stat(path); err == nil && st.IsDir() {
		return nil, fmt.Errorf("%w: store path %s is a directory", domain.ErrInvalidArgument, path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, wrapStorage("create store dir", err)
		}
	}
	if err := s.ensureFile(seedJSON); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Backend() string { return "file" }
func (s *Store) Close() error    { return nil }

func (s *Store) ensureFile(seedJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return wrapStorage("stat store", err)
	}

	codes := map[string]model.ActivationRecord{}
	if seed := strings.TrimSpace(seedJSON); seed != "" {
		parsed, err := model.DecodeDocument([]byte(seed))
		if err != nil {
			s.log.Warn().Err(err).Msg("default activation codes are malformed, starting empty")
		} else {
			codes = parsed
			s.log.Info().Int("count", len(codes)).Msg("seeded activation codes from defaults")
		}
	}
	return s.save(codes)
}

// load reads the document. A missing file reads as empty; a document that
// cannot be parsed reads as empty and is reported via corrupt.
func (s *Store) load() (codes map[string]model.ActivationRecord, corrupt bool, err error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]model.ActivationRecord{}, false, nil
		}
		return nil, false, wrapStorage("read store", err)
	}
	codes, err = model.DecodeDocument(b)
	if err != nil {
		s.log.Warn().Err(err).Msg("store document is malformed, treating as empty")
		return codes, true, nil
	}
	return codes, false, nil
}

// loadForWrite is load for mutating operations: a corrupt document is moved
// aside before it gets overwritten.
func (s *Store) loadForWrite() (map[string]model.ActivationRecord, error) {
	codes, corrupt, err := s.load()
	if err != nil {
		return nil, err
	}
	if corrupt {
		backup := corruptBackupName(s.path, s.now())
		if err := os.Rename(s.path, backup); err != nil {
			return nil, wrapStorage("move corrupt store aside", err)
		}
		s.log.Warn().Str("backup", backup).Msg("corrupt store moved aside")
	}
	return codes, nil
}

// save writes the document to a temp file in the same directory and renames
// it over the target.
func (s *Store) save(codes map[string]model.ActivationRecord) error {
	b, err := encodeDocument(codes)
	if err != nil {
		return wrapStorage("encode store", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return wrapStorage("create temp file", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		cleanup()
		return wrapStorage("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return wrapStorage("sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return wrapStorage("close temp file", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return wrapStorage("chmod temp file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return wrapStorage("replace store", err)
	}
	return nil
}

func (s *Store) today() model.Date { return model.DateOf(s.now()) }

func (s *Store) Get(ctx context.Context, code string) (*model.ActivationInfo, error) {
	code = model.CanonicalCode(code)
	if code == "" {
		return nil, domain.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	codes, _, err := s.load()
	if err != nil {
		return nil, err
	}
	rec, ok := codes[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec.Info(s.today()), nil
}

func (s *Store) List(ctx context.Context) ([]*model.ActivationInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes, _, err := s.load()
	if err != nil {
		return nil, err
	}
	today := s.today()
	out := make([]*model.ActivationInfo, 0, len(codes))
	for _, rec := range codes {
		out = append(out, rec.Info(today))
	}
	model.SortNewestFirst(out)
	return out, nil
}

func (s *Store) Create(ctx context.Context, params model.NewCode) (*model.ActivationInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes, err := s.loadForWrite()
	if err != nil {
		return nil, err
	}
	code, err := s.uniqueCode(codes)
	if err != nil {
		return nil, err
	}
	rec := model.NewActivationRecord(code, params, s.now())
	codes[rec.Code] = rec
	if err := s.save(codes); err != nil {
		return nil, err
	}
	return rec.Info(s.today()), nil
}

func (s *Store) uniqueCode(codes map[string]model.ActivationRecord) (string, error) {
	for i := 0; i < maxCreateAttempts; i++ {
		c, err := s.gen()
		if err != nil {
			return "", fmt.Errorf("generate activation code: %w", err)
		}
		c = model.CanonicalCode(c)
		if _, taken := codes[c]; !taken && c != "" {
			return c, nil
		}
	}
	return "", domain.ErrCodeSpaceExhausted
}

func (s *Store) Update(ctx context.Context, code string, patch model.CodePatch) (*model.ActivationInfo, error) {
	code = model.CanonicalCode(code)
	if code == "" {
		return nil, domain.ErrNotFound
	}
	if patch.IsEmpty() {
		return s.Get(ctx, code)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	codes, err := s.loadForWrite()
	if err != nil {
		return nil, err
	}
	rec, ok := codes[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	patch.Apply(&rec)
	codes[code] = rec
	if err := s.save(codes); err != nil {
		return nil, err
	}
	return rec.Info(s.today()), nil
}

func (s *Store) RecordUsage(ctx context.Context, code string, characters int, createdVoice bool) (*model.ActivationInfo, error) {
	code = model.CanonicalCode(code)
	if code == "" {
		return nil, domain.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	codes, err := s.loadForWrite()
	if err != nil {
		return nil, err
	}
	rec, ok := codes[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec.AddUsage(characters, createdVoice, s.now())
	codes[code] = rec
	if err := s.save(codes); err != nil {
		return nil, err
	}
	return rec.Info(s.today()), nil
}

func (s *Store) Import(ctx context.Context, rec model.ActivationRecord) (bool, error) {
	rec.Normalize()
	if err := model.ValidateImportCode(rec.Code); err != nil {
		return false, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	codes, err := s.loadForWrite()
	if err != nil {
		return false, err
	}
	if _, exists := codes[rec.Code]; exists {
		return false, nil
	}
	codes[rec.Code] = rec
	if err := s.save(codes); err != nil {
		return false, err
	}
	return true, nil
}

func wrapStorage(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStorageUnavailable, err)
}
