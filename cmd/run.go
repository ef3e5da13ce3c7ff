package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CarlosDiazData/news-analysis-pipeline/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "取得・補完・解析・保存のパイプラインを1回実行します",
	Long:  `ニュースAPI (または --feeds のフィード) からヘッドラインを取得し、記事ページから本文を補完、感情スコアと固有表現を付与して、URLをキーにデータベースへアップサートします。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, cleanup, err := pipeline.Build(ctx, GetConfig(), appLogger)
		if err != nil {
			return fmt.Errorf("パイプラインの初期化に失敗しました: %w", err)
		}
		defer func() { _ = cleanup() }()

		report, err := p.Run(ctx)
		if err != nil {
			return err
		}

		printReport(cmd, report)
		return nil
	},
}

// printReport は実行結果の集計を標準出力に表示します。
func printReport(cmd *cobra.Command, r pipeline.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "--- パイプライン実行結果 ---")
	fmt.Fprintf(out, "実行ID: %s\n", r.RunID)
	fmt.Fprintf(out, "取得: %d 件\n", r.Fetched)
	fmt.Fprintf(out, "本文補完: 置換 %d 件, 変更なし %d 件, 失敗 %d 件, URLなし %d 件\n",
		r.Enrich.Enriched, r.Enrich.Unchanged, r.Enrich.Failed, r.Enrich.Skipped)
	fmt.Fprintf(out, "解析: 成功 %d 件, 本文なし %d 件, 失敗 %d 件\n",
		r.Analyze.Analyzed, r.Analyze.Skipped, r.Analyze.Failed)
	fmt.Fprintf(out, "保存: %d 行\n", r.RowsAffected)
	fmt.Fprintf(out, "所要時間: %s\n", r.Duration)
	fmt.Fprintln(out, "---------------------------")
}
