package db

import (
	"context"
	"errors"
	"time"

	"voice-clone-studio/internal/domain"
	"voice-clone-studio/internal/domain/model"
	"voice-clone-studio/internal/domain/ports/repository"
	"voice-clone-studio/internal/infra/metrics"
)

var _ repository.ActivationCodeRepository = (*instrumentedRepo)(nil)

// instrumentedRepo records ledger_ops_total and latency for every call.
type instrumentedRepo struct {
	inner   repository.ActivationCodeRepository
	backend string
}

func NewInstrumented(inner repository.ActivationCodeRepository) repository.ActivationCodeRepository {
	return &instrumentedRepo{inner: inner, backend: inner.Backend()}
}

func (d *instrumentedRepo) observe(op string, start time.Time, err error) {
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		status = "not_found"
	default:
		status = "error"
	}
	metrics.ObserveLedgerOp(d.backend, op, status, time.Since(start))
}

func (d *instrumentedRepo) Get(ctx context.Context, code string) (info *model.ActivationInfo, err error) {
	defer func(start time.Time) { d.observe("get", start, err) }(time.Now())
	return d.inner.Get(ctx, code)
}

func (d *instrumentedRepo) List(ctx context.Context) (list []*model.ActivationInfo, err error) {
	defer func(start time.Time) { d.observe("list", start, err) }(time.Now())
	return d.inner.List(ctx)
}

func (d *instrumentedRepo) Create(ctx context.Context, params model.NewCode) (info *model.ActivationInfo, err error) {
	defer func(start time.Time) { d.observe("create", start, err) }(time.Now())
	return d.inner.Create(ctx, params)
}

func (d *instrumentedRepo) Update(ctx context.Context, code string, patch model.CodePatch) (info *model.ActivationInfo, err error) {
	defer func(start time.Time) { d.observe("update", start, err) }(time.Now())
	return d.inner.Update(ctx, code, patch)
}

func (d *instrumentedRepo) RecordUsage(ctx context.Context, code string, characters int, createdVoice bool) (info *model.ActivationInfo, err error) {
	defer func(start time.Time) { d.observe("record_usage", start, err) }(time.Now())
	return d.inner.RecordUsage(ctx, code, characters, createdVoice)
}

func (d *instrumentedRepo) Import(ctx context.Context, rec model.ActivationRecord) (inserted bool, err error) {
	defer func(start time.Time) { d.observe("import", start, err) }(time.Now())
	return d.inner.Import(ctx, rec)
}

func (d *instrumentedRepo) Backend() string { return d.backend }
func (d *instrumentedRepo) Close() error    { return d.inner.Close() }

// PoolStats forwards to the wrapped backend when it has a connection pool.
func (d *instrumentedRepo) PoolStats() (total, idle, inUse int32, ok bool) {
	p, isPool := d.inner.(interface {
		PoolStats() (total, idle, inUse int32)
	})
	if !isPool {
		return 0, 0, 0, false
	}
	total, idle, inUse = p.PoolStats()
	return total, idle, inUse, true
}
