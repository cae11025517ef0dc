package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "hireguard.io/atssync/internal/pkg/errors"
	"hireguard.io/atssync/internal/usecase"
)

type fakeBackfiller struct {
	err  error
	opts []usecase.BackfillOptions
}

func (f *fakeBackfiller) Backfill(_ context.Context, integrationID string, opts usecase.BackfillOptions) (*usecase.BackfillReport, error) {
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.BackfillReport{IntegrationID: integrationID, Candidates: 2, Applications: 1}, nil
}

func backfillJob(since *time.Time) *river.Job[BackfillArgs] {
	return &river.Job[BackfillArgs]{
		JobRow: &rivertype.JobRow{ID: 42, Attempt: 1},
		Args:   BackfillArgs{IntegrationID: "integ-1", Since: since},
	}
}

func TestBackfillArgs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "integration_backfill", BackfillArgs{}.Kind())
	opts := BackfillArgs{}.InsertOpts()
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.True(t, opts.UniqueOpts.ByArgs)
	assert.Equal(t, 10*time.Minute, opts.UniqueOpts.ByPeriod)
}

func TestBackfillWorker_PassesOptions(t *testing.T) {
	t.Parallel()

	since := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	fb := &fakeBackfiller{}
	w := NewBackfillWorker(fb, 4, 0)

	require.NoError(t, w.Work(context.Background(), backfillJob(&since)))
	require.Len(t, fb.opts, 1)
	assert.Equal(t, 4, fb.opts[0].PoolSize)
	assert.Equal(t, &since, fb.opts[0].Since)
	assert.Equal(t, DefaultBackfillTimeout, w.Timeout(backfillJob(nil)))
}

func TestBackfillWorker_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"integration missing", fmt.Errorf("get integration: %w", apperrors.ErrNotFound)},
		{"disconnected", apperrors.BadRequest(apperrors.CodeIntegrationInactive, "integration is disconnected")},
		{"upstream walk failed", errors.New("walk candidates: 502")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewBackfillWorker(&fakeBackfiller{err: tt.err}, 1, time.Minute)
			err := w.Work(context.Background(), backfillJob(nil))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), "integ-1")
		})
	}
}
