package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CarlosDiazData/news-analysis-pipeline/internal/pipeline"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/feed"
)

var linksOnly bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "ヘッドラインを取得し、タイトルと記事URLを一覧表示します",
	Long:  `パイプラインの取得ステージのみを実行します。保存は行いません。--links-only を指定するとURLのみを1行ずつ出力するため、enrich コマンドの標準入力に渡せます。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := pipeline.NewSource(GetConfig())
		if err != nil {
			return fmt.Errorf("取得元の初期化に失敗しました: %w", err)
		}

		out := cmd.OutOrStdout()
		if linksOnly {
			links, err := listLinks(cmd.Context(), source)
			if err != nil {
				return fmt.Errorf("記事URLの取得に失敗しました: %w", err)
			}
			for _, link := range links {
				fmt.Fprintln(out, link)
			}
			return nil
		}

		batch, err := source.FetchHeadlines(cmd.Context())
		if err != nil {
			return fmt.Errorf("ヘッドラインの取得に失敗しました: %w", err)
		}

		fmt.Fprintf(out, "--- ヘッドライン取得結果 ---\n")
		fmt.Fprintf(out, "合計記事数: %d\n", len(batch))
		fmt.Fprintln(out, "-----------------------")
		for i, a := range batch {
			fmt.Fprintf(out, "[%d] %s\n", i+1, a.TitleText())
			fmt.Fprintf(out, "    URL: %s\n", a.URL)
			if a.SourceName != nil {
				fmt.Fprintf(out, "    配信元: %s\n", *a.SourceName)
			}
			if a.PublishedAt != "" {
				fmt.Fprintf(out, "    公開日: %s\n", a.PublishedAt)
			}
			fmt.Fprintf(out, "    本文: %d 文字\n", a.ContentLength())
		}
		fmt.Fprintln(out)
		return nil
	},
}

// listLinks は取得元の記事URLを返します。フィードはパース結果から直接、
// NewsAPI はヘッドラインのバッチから抽出します。
func listLinks(ctx context.Context, source pipeline.HeadlineSource) ([]string, error) {
	if fs, ok := source.(*feed.Source); ok {
		return fs.Links(ctx)
	}
	batch, err := source.FetchHeadlines(ctx)
	if err != nil {
		return nil, err
	}
	return feed.GetAllLinks(feed.BatchLinks(batch)), nil
}

func init() {
	fetchCmd.Flags().BoolVar(&linksOnly, "links-only", false, "記事URLのみを出力します")
}
