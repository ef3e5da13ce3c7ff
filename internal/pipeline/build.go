package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/CarlosDiazData/news-analysis-pipeline/internal/config"
	"github.com/CarlosDiazData/news-analysis-pipeline/internal/logger"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/analyze"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/enrich"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/extract"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/feed"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/httpclient"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/newsapi"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/store"
)

// NewSource は設定に応じてニュースAPIまたはフィードの取得元を構築します。
// APIキーの検証はここで行われ、ネットワーク呼び出しは発生しません。
func NewSource(cfg *config.Config) (HeadlineSource, error) {
	if err := cfg.ValidateSource(); err != nil {
		return nil, err
	}
	fetcher := httpclient.New(cfg.APITimeout, httpclient.WithMaxRetries(cfg.MaxRetries))

	if cfg.UseFeeds() {
		return feed.NewSource(fetcher, cfg.FeedURLs...)
	}
	return newsapi.NewClient(cfg.NewsAPIKey,
		newsapi.WithEndpoint(cfg.NewsAPIEndpoint),
		newsapi.WithCountry(cfg.NewsCountry),
		newsapi.WithPageSize(cfg.NewsPageSize),
		newsapi.WithHTTPClient(fetcher),
	)
}

// NewExtractor はスクレイピング用のタイムアウトを持つ Extractor を構築します。
func NewExtractor(cfg *config.Config) (*extract.Extractor, error) {
	return extract.NewExtractor(httpclient.New(cfg.ScrapeTimeout, httpclient.WithMaxRetries(cfg.MaxRetries)))
}

// NewEnricher は設定から Enricher を構築します。
func NewEnricher(cfg *config.Config, log logger.Logger) (*enrich.Enricher, error) {
	extractor, err := NewExtractor(cfg)
	if err != nil {
		return nil, fmt.Errorf("Extractorの初期化エラー: %w", err)
	}
	return enrich.NewEnricher(extractor,
		enrich.WithLogger(log),
		enrich.WithRateLimit(rate.Limit(cfg.ScrapeRateLimit), 1),
	)
}

// Build は設定からすべてのステージを組み立てた Pipeline を返します。
// 返されるクリーンアップ関数は、DB接続などのリソースを解放します。
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*Pipeline, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	source, err := NewSource(cfg)
	if err != nil {
		return nil, nil, &StageError{Stage: StageExtract, Err: err}
	}

	enricher, err := NewEnricher(cfg, log)
	if err != nil {
		return nil, nil, &StageError{Stage: StageEnrich, Err: err}
	}

	analyzer, err := analyze.NewDefaultAnalyzer(cfg.LexiconPath, cfg.GazetteerPath, analyze.WithLogger(log))
	if err != nil {
		return nil, nil, &StageError{Stage: StageAnalyze, Err: err}
	}

	db, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, &StageError{Stage: StageLoad, Err: fmt.Errorf("%w: %w", store.ErrPersistence, err)}
	}
	loader := store.NewLoader(db, store.WithLogger(log))

	p, err := New(source, enricher, analyzer, loader, WithLogger(log))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return p, db.Close, nil
}
