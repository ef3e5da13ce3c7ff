package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CarlosDiazData/news-analysis-pipeline/internal/config"
	"github.com/CarlosDiazData/news-analysis-pipeline/internal/logger"
	"github.com/CarlosDiazData/news-analysis-pipeline/internal/pipeline"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "cron 式に従ってパイプラインを定期実行します",
	Long:  `--schedule (SCHEDULE, 既定は @daily) の間隔でパイプラインを実行します。失敗した回は --run-retries 回まで --run-retry-delay 間隔で再試行し、前の回が実行中の場合は次の回をスキップします。SIGINT/SIGTERM で実行中の回の完了を待って停止します。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, cleanup, err := pipeline.Build(ctx, cfg, appLogger)
		if err != nil {
			return fmt.Errorf("パイプラインの初期化に失敗しました: %w", err)
		}
		defer func() { _ = cleanup() }()

		policy := pipeline.RetryPolicy{Retries: cfg.RunRetries, Delay: cfg.RunRetryDelay}
		job := func(jobCtx context.Context) {
			report, err := pipeline.RunWithRetry(jobCtx, p, policy, appLogger)
			if err != nil {
				appLogger.Error("スケジュール実行が失敗しました", logger.Error(err))
				return
			}
			appLogger.Info("スケジュール実行が完了しました",
				logger.String("run_id", report.RunID), logger.Int64("rows_affected", report.RowsAffected))
		}

		scheduler, err := pipeline.NewScheduler(cfg.Schedule, job, appLogger)
		if err != nil {
			return err
		}
		return scheduler.Run(ctx)
	},
}

func init() {
	f := scheduleCmd.Flags()
	f.String("schedule", config.DefaultSchedule, "cron 式または @daily などの記述子 (SCHEDULE)")
	f.Int("run-retries", config.DefaultRunRetries, "失敗した回の再試行回数 (RUN_RETRIES)")
	f.Duration("run-retry-delay", config.DefaultRunRetryDelay, "再試行までの待機時間 (RUN_RETRY_DELAY)")
}
