//go:build !integration

package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-clone-studio/internal/domain/model"
	"voice-clone-studio/internal/domain/ports/repository"
	"voice-clone-studio/internal/infra/metrics"
)

func intp(v int) *int { return &v }

type listRepo struct {
	repository.ActivationCodeRepository
	list  []*model.ActivationInfo
	err   error
	calls int
}

func (r *listRepo) List(context.Context) ([]*model.ActivationInfo, error) {
	r.calls++
	return r.list, r.err
}

type pooledRepo struct {
	*listRepo
}

func (pooledRepo) PoolStats() (total, idle, inUse int32, ok bool) { return 7, 5, 2, true }

func TestCount(t *testing.T) {
	list := []*model.ActivationInfo{
		{Code: "A"},
		{Code: "B", RemainingCharacters: intp(10), AvailableVoices: intp(0)},
		{Code: "C", Disabled: true, Expired: true},
		{Code: "D", Expired: true},
		{Code: "E", RemainingCharacters: intp(0)},
	}
	assert.Equal(t, CodeCounts{Active: 2, Disabled: 1, Expired: 1, Exhausted: 1}, Count(list))
	assert.Equal(t, CodeCounts{}, Count(nil))
}

func TestStatsWorker_Sweep(t *testing.T) {
	logger := zerolog.Nop()
	repo := pooledRepo{&listRepo{list: []*model.ActivationInfo{
		{Code: "A"},
		{Code: "B", Disabled: true},
	}}}
	w := NewStatsWorker(time.Minute, repo, &logger)
	w.sweep(context.Background())

	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActivationCodesGauge("active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActivationCodesGauge("disabled")))
	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.DBPoolGauge("total")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DBPoolGauge("in_use")))
}

func TestStatsWorker_RunStopsOnCancel(t *testing.T) {
	logger := zerolog.Nop()
	repo := &listRepo{err: errors.New("boom")}
	w := NewStatsWorker(10*time.Millisecond, repo, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
