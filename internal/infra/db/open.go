// Package db selects and opens the activation-code ledger backend.
package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"voice-clone-studio/internal/config"
	"voice-clone-studio/internal/domain/model"
	"voice-clone-studio/internal/domain/ports/repository"
	"voice-clone-studio/internal/infra/db/jsonfile"
	"voice-clone-studio/internal/infra/db/postgres"
)

// Open returns the Postgres ledger when a database URL is configured and the
// JSON file ledger otherwise. The result is wrapped with ledger metrics.
func Open(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (repository.ActivationCodeRepository, error) {
	if cfg.Database.URL != "" {
		pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().Int32("max_conns", cfg.Database.MaxConns).Msg("activation ledger: postgres")
		repo := postgres.NewActivationCodeRepo(pool, logger)
		if cfg.Store.File.SeedJSON != "" {
			seedPostgres(ctx, repo, cfg.Store.File.SeedJSON, logger)
		}
		return NewInstrumented(repo), nil
	}

	store, err := jsonfile.New(cfg.Store.File.Path, cfg.Store.File.SeedJSON, logger)
	if err != nil {
		return nil, fmt.Errorf("open activation store: %w", err)
	}
	logger.Info().Str("path", cfg.Store.File.Path).Msg("activation ledger: file")
	return NewInstrumented(store), nil
}

// seedPostgres imports the default codes; codes already present are kept.
func seedPostgres(ctx context.Context, repo repository.ActivationCodeRepository, seedJSON string, logger *zerolog.Logger) {
	codes, err := model.DecodeDocument([]byte(seedJSON))
	if err != nil {
		logger.Warn().Err(err).Msg("default activation codes are malformed, skipping seed")
		return
	}
	var inserted int
	for _, rec := range codes {
		ok, err := repo.Import(ctx, rec)
		if err != nil {
			logger.Warn().Err(err).Msg("seed activation code")
			continue
		}
		if ok {
			inserted++
		}
	}
	logger.Info().Int("inserted", inserted).Int("total", len(codes)).Msg("seeded activation codes from defaults")
}
