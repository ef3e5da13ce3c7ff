package enrich

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/CarlosDiazData/news-analysis-pipeline/internal/logger"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/types"
)

const (
	// DefaultScrapeTimeout は記事ページ取得1件あたりのタイムアウトです。
	// 取得先サイトはAPIより遅く信頼性も低いため、APIより短く設定します。
	DefaultScrapeTimeout = 15 * time.Second
)

// ContentExtractor は、URLから段落テキストを取得する機能のインターフェースです。
// *extract.Extractor はこのインターフェースを満たします。
type ContentExtractor interface {
	FetchParagraphText(ctx context.Context, url string) (string, error)
}

// Stats は1回の Enrich 呼び出しの集計結果です。
type Stats struct {
	Total     int // 入力件数
	Enriched  int // 本文を置き換えた件数
	Unchanged int // 取得できたが既存の本文より長くなかった件数
	Failed    int // 取得または解析に失敗した件数
	Skipped   int // URLがないため処理しなかった件数
}

// Enricher は記事ページをスクレイピングし、短い本文をより長い本文で置き換えます。
type Enricher struct {
	extractor ContentExtractor
	limiter   *rate.Limiter
	logger    logger.Logger
}

// Option は Enricher の設定を行うための関数型です。
type Option func(*Enricher)

// WithLogger はロガーを設定します。
func WithLogger(l logger.Logger) Option {
	return func(e *Enricher) {
		e.logger = l
	}
}

// WithRateLimit はページ取得の間隔を制限します。r が 0 以下の場合は制限しません。
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(e *Enricher) {
		if r <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(r, burst)
	}
}

// NewEnricher は Enricher を初期化します。
func NewEnricher(extractor ContentExtractor, opts ...Option) (*Enricher, error) {
	if extractor == nil {
		return nil, fmt.Errorf("enrich.NewEnricher: ContentExtractor cannot be nil")
	}
	e := &Enricher{
		extractor: extractor,
		logger:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Enrich はバッチ内の各記事を独立に処理し、同じ件数のバッチを返します。
// 1件の失敗が他の記事に影響することはなく、失敗した記事は元のまま返されます。
func (e *Enricher) Enrich(ctx context.Context, batch types.Batch) (types.Batch, Stats) {
	stats := Stats{Total: len(batch)}
	if len(batch) == 0 {
		e.logger.Warn("スクレイピング対象の記事がありません")
		return types.Batch{}, stats
	}

	enriched := make(types.Batch, 0, len(batch))
	for _, article := range batch {
		if !article.HasURL() {
			stats.Skipped++
			enriched = append(enriched, article)
			continue
		}

		res := e.scrape(ctx, article.URL)
		next, replaced := applyResult(article, res)
		switch {
		case res.Error != nil:
			stats.Failed++
			e.logger.Warn("記事ページの取得に失敗しました。元の本文を保持します",
				logger.String("url", article.URL), logger.Error(res.Error))
		case replaced:
			stats.Enriched++
			e.logger.Info("記事の全文を取得しました",
				logger.String("url", article.URL), logger.Int("content_length", next.ContentLength()))
		default:
			stats.Unchanged++
			e.logger.Warn("既存の本文より長いテキストを取得できませんでした。元の本文を保持します",
				logger.String("url", article.URL))
		}
		enriched = append(enriched, next)
	}

	return enriched, stats
}

// scrape は1件のURLを処理し、結果またはエラーを URLResult として返します。
// 想定外のパニックもエラーとして扱い、呼び出し元のループを中断させません。
func (e *Enricher) scrape(ctx context.Context, url string) (res types.URLResult) {
	res.URL = url
	defer func() {
		if r := recover(); r != nil {
			res.Content = ""
			res.Error = fmt.Errorf("記事処理中に予期しないエラーが発生しました: %v", r)
		}
	}()

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			res.Error = fmt.Errorf("レートリミット待機中に中断されました: %w", err)
			return res
		}
	}

	content, err := e.extractor.FetchParagraphText(ctx, url)
	if err != nil {
		res.Error = fmt.Errorf("コンテンツの抽出に失敗しました: %w", err)
		return res
	}
	res.Content = content
	return res
}

// applyResult は抽出結果を記事に反映します。
// 抽出テキストが空でなく、既存の本文より長い場合のみ置き換えます。
func applyResult(article types.Article, res types.URLResult) (types.Article, bool) {
	if res.Error != nil || res.Content == "" {
		return article, false
	}
	candidate := types.Article{Content: &res.Content}
	if candidate.ContentLength() <= article.ContentLength() {
		return article, false
	}
	content := res.Content
	article.Content = &content
	return article, true
}
