package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"

	"github.com/CarlosDiazData/news-analysis-pipeline/internal/logger"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/analyze"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/newsapi"
)

// Runner は1回分のパイプライン実行を表します。*Pipeline はこのインターフェースを満たします。
type Runner interface {
	Run(ctx context.Context) (Report, error)
}

// RetryPolicy は実行レベルの再試行設定です。
type RetryPolicy struct {
	Retries int
	Delay   time.Duration
}

// isPermanent は再実行しても結果が変わらない設定系のエラーかを判定します。
func isPermanent(err error) bool {
	return errors.Is(err, analyze.ErrModelUnavailable) || errors.Is(err, newsapi.ErrMissingAPIKey)
}

// RunWithRetry は失敗した実行を一定間隔で再試行します。
// 設定系のエラーは再試行しません。最後の実行のレポートとエラーを返します。
func RunWithRetry(ctx context.Context, r Runner, policy RetryPolicy, log logger.Logger) (Report, error) {
	var (
		report  Report
		attempt int
	)

	retries := policy.Retries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.Delay), uint64(retries)), ctx)

	op := func() error {
		attempt++
		var err error
		report, err = r.Run(ctx)
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		stage, _ := FailedStage(err)
		log.Warn("パイプラインの実行に失敗しました。再試行します",
			logger.Int("attempt", attempt),
			logger.String("stage", string(stage)),
			logger.Duration("retry_in", wait),
			logger.Error(err))
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return report, fmt.Errorf("パイプラインの実行に失敗しました (試行回数: %d): %w", attempt, err)
	}
	return report, nil
}

// Scheduler は cron 式に従って実行を起動します。実行中の回が終わっていない場合、次の回はスキップされます。
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	job    func(ctx context.Context)
	ctx    context.Context
	logger logger.Logger
}

// NewScheduler は spec の間隔で job を実行する Scheduler を構築します。
func NewScheduler(spec string, job func(ctx context.Context), log logger.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("pipeline.NewScheduler: job cannot be nil")
	}
	cl := cronLogger{log}
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		spec:   spec,
		job:    job,
		ctx:    context.Background(),
		logger: log,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.job(s.ctx) }); err != nil {
		return nil, fmt.Errorf("スケジュール %q の解析に失敗しました: %w", spec, err)
	}
	return s, nil
}

// Run はコンテキストが終了するまでスケジューラーを動かし、実行中のジョブの完了を待って戻ります。
// ジョブには ctx が渡されます。Run は1つの Scheduler につき1回だけ呼び出せます。
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.logger.Info("スケジューラーを開始します", logger.String("schedule", s.spec))
	s.cron.Start()

	<-ctx.Done()

	s.logger.Info("スケジューラーを停止します。実行中のジョブの完了を待機します")
	<-s.cron.Stop().Done()
	return nil
}

// cronLogger は cron.Logger を Logger に適合させます。
type cronLogger struct {
	logger logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(keysAndValues []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields = append(fields, logger.Any(key, keysAndValues[i+1]))
	}
	return fields
}
