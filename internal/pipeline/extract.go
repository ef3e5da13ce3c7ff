package pipeline

import (
	"context"
	"fmt"

	"github.com/CarlosDiazData/news-analysis-pipeline/internal/config"
)

// ExtractURLContent は、1件のURLから段落テキストを取得します。
// Enricher が記事ページから何を読み取るかを確認するために使います。
func ExtractURLContent(ctx context.Context, cfg *config.Config, rawURL string) (string, error) {
	extractor, err := NewExtractor(cfg)
	if err != nil {
		return "", fmt.Errorf("Extractorの初期化エラー: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ScrapeTimeout*2)
	defer cancel()

	text, err := extractor.FetchParagraphText(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("コンテンツ抽出エラー: %w", err)
	}
	return text, nil
}
