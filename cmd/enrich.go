package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CarlosDiazData/news-analysis-pipeline/internal/pipeline"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/types"
)

var inputURLs string

// readURLs はカンマ区切りのフラグ値、または r から1行ずつURLを読み込みます。
func readURLs(flagValue string, r io.Reader) ([]string, error) {
	var urls []string
	if flagValue != "" {
		for _, u := range strings.Split(flagValue, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		return urls, nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if u := strings.TrimSpace(scanner.Text()); u != "" {
			urls = append(urls, u)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("標準入力の読み取りエラー: %w", err)
	}
	return urls, nil
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "複数のURLに本文補完ステージを実行し、URLごとの結果を表示します",
	Long:  `--urls フラグでカンマ区切りのURLリストを受け取るか、標準入力からURLを一行ずつ読み込みます。各URLは本文なしの記事として本文補完ステージに渡され、取得できた段落テキストの長さを表示します。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputURLs == "" {
			appLogger.Info("URLが指定されていないため、標準入力からURLを読み込みます (Ctrl+DまたはEOFで終了)")
		}
		urls, err := readURLs(inputURLs, os.Stdin)
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			return fmt.Errorf("処理対象のURLが一つも指定されていません")
		}

		batch := make(types.Batch, 0, len(urls))
		for _, u := range urls {
			processed, err := ensureScheme(u)
			if err != nil {
				return fmt.Errorf("URLスキームの処理エラー: %w", err)
			}
			batch = append(batch, types.Article{URL: processed})
		}

		enricher, err := pipeline.NewEnricher(GetConfig(), appLogger)
		if err != nil {
			return err
		}
		enriched, stats := enricher.Enrich(cmd.Context(), batch)

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "--- 本文補完結果 ---")
		for i, a := range enriched {
			if a.ContentLength() == 0 {
				fmt.Fprintf(out, "❌ [%d] %s\n", i+1, a.URL)
				continue
			}
			fmt.Fprintf(out, "✅ [%d] %s\n", i+1, a.URL)
			fmt.Fprintf(out, "     抽出コンテンツの長さ: %d 文字\n", a.ContentLength())
			preview := []rune(a.ContentText())
			if len(preview) > 100 {
				fmt.Fprintf(out, "     プレビュー: %s...\n", string(preview[:100]))
			} else {
				fmt.Fprintf(out, "     コンテンツ: %s\n", string(preview))
			}
		}
		fmt.Fprintln(out, "-------------------------------")
		fmt.Fprintf(out, "完了: 取得 %d 件, 本文なし %d 件, 失敗 %d 件\n", stats.Enriched, stats.Unchanged, stats.Failed)
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVarP(&inputURLs, "urls", "u", "",
		"対象のカンマ区切りURLリスト (例: url1,url2,url3)")
}
