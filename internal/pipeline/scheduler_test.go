package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CarlosDiazData/news-analysis-pipeline/internal/logger"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/analyze"
)

// scriptedRunner は呼び出しごとに決められたエラーを返す Runner です。
type scriptedRunner struct {
	errs  []error
	calls int
}

func (r *scriptedRunner) Run(ctx context.Context) (Report, error) {
	i := r.calls
	r.calls++
	if i < len(r.errs) {
		return Report{RunID: "failed"}, r.errs[i]
	}
	return Report{RunID: "ok"}, nil
}

func TestRunWithRetry(t *testing.T) {
	transient := &StageError{Stage: StageEnrich, Err: errors.New("temporary")}

	tests := []struct {
		name      string
		errs      []error
		retries   int
		wantCalls int
		wantErr   bool
	}{
		{"succeeds_first_time", nil, 2, 1, false},
		{"succeeds_after_retry", []error{transient}, 2, 2, false},
		{"exhausts_retries", []error{transient, transient, transient, transient}, 2, 3, true},
		{"no_retries", []error{transient}, 0, 1, true},
		{"permanent_error_is_not_retried", []error{&StageError{Stage: StageAnalyze, Err: analyze.ErrModelUnavailable}}, 2, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &scriptedRunner{errs: tt.errs}
			report, err := RunWithRetry(context.Background(), r, RetryPolicy{Retries: tt.retries, Delay: time.Millisecond}, logger.NewNop())

			assert.Equal(t, tt.wantCalls, r.calls)
			if tt.wantErr {
				require.Error(t, err)
				_, ok := FailedStage(err)
				assert.True(t, ok, "ステージ名はエラーチェーンに残る")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", report.RunID)
		})
	}
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	_, err := NewScheduler("not a cron spec", func(context.Context) {}, logger.NewNop())
	assert.Error(t, err)

	_, err = NewScheduler("@daily", nil, logger.NewNop())
	assert.Error(t, err)
}

func TestScheduler_RunsJobUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs int32
	var sawRunContext int32
	s, err := NewScheduler("@every 1s", func(jobCtx context.Context) {
		if jobCtx == ctx {
			atomic.StoreInt32(&sawRunContext, 1)
		}
		atomic.AddInt32(&runs, 1)
		cancel()
	}, logger.NewNop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("スケジューラーが停止しませんでした")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
	assert.Equal(t, int32(1), atomic.LoadInt32(&sawRunContext))
}
