package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CarlosDiazData/news-analysis-pipeline/internal/pipeline"
)

var rawURL string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "指定されたURLの記事ページから段落テキストを取得します",
	Long:  `本文補完ステージが記事ページから読み取るテキスト (すべての <p> 要素を空白で連結したもの) を表示します。--url を省略した場合は標準入力からURLを1行読み込みます。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		urlToProcess := rawURL
		if urlToProcess == "" {
			appLogger.Info("URLが指定されていないため、標準入力からURLを読み込みます")
			scanner := bufio.NewScanner(os.Stdin)
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("標準入力の読み取りエラー: %w", err)
				}
				return fmt.Errorf("URLが入力されていません")
			}
			urlToProcess = strings.TrimSpace(scanner.Text())
		}

		processedURL, err := ensureScheme(urlToProcess)
		if err != nil {
			return fmt.Errorf("URLスキームの処理エラー: %w", err)
		}

		text, err := pipeline.ExtractURLContent(cmd.Context(), GetConfig(), processedURL)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if text == "" {
			fmt.Fprintln(out, "段落テキストは見つかりませんでした。")
			return nil
		}
		fmt.Fprintln(out, "--- 抽出された段落テキスト ---")
		fmt.Fprintln(out, text)
		fmt.Fprintln(out, "-----------------------")
		fmt.Fprintf(out, "文字数: %d\n", len([]rune(text)))
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&rawURL, "url", "u", "", "抽出対象のURL")
}
