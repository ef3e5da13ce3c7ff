// Package pipeline は、取得・補完・解析・保存の4ステージを固定順で実行するオーケストレーションを提供します。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CarlosDiazData/news-analysis-pipeline/internal/logger"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/analyze"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/enrich"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/types"
)

// Stage はパイプラインのステージ名です。
type Stage string

const (
	StageExtract Stage = "extract"
	StageEnrich  Stage = "enrich"
	StageAnalyze Stage = "analyze"
	StageLoad    Stage = "load"
)

// StageError は実行レベルのエラーに、失敗したステージ名を付与します。
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ステージ %s に失敗しました: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage はエラーチェーン中の StageError からステージ名を取り出します。
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// HeadlineSource はヘッドラインのバッチを取得するステージです。
type HeadlineSource interface {
	FetchHeadlines(ctx context.Context) (types.Batch, error)
}

// ContentEnricher は記事本文を補完するステージです。
type ContentEnricher interface {
	Enrich(ctx context.Context, batch types.Batch) (types.Batch, enrich.Stats)
}

// TextAnalyzer は感情スコアと固有表現を付与するステージです。
type TextAnalyzer interface {
	Analyze(ctx context.Context, batch types.Batch) (types.Batch, analyze.Stats)
}

// BatchLoader はバッチを保存するステージです。
type BatchLoader interface {
	Load(ctx context.Context, batch types.Batch) (int64, error)
}

// Report は1回の実行結果の集計です。
type Report struct {
	RunID        string
	StartedAt    time.Time
	Duration     time.Duration
	Fetched      int
	Enrich       enrich.Stats
	Analyze      analyze.Stats
	RowsAffected int64
}

// Pipeline は4つのステージを Fetcher → Enricher → Analyzer → Loader の順に実行します。
// 各ステージは前のステージがバッチ全体を返すまで開始しません。
type Pipeline struct {
	source   HeadlineSource
	enricher ContentEnricher
	analyzer TextAnalyzer
	loader   BatchLoader

	logger   logger.Logger
	newRunID func() string
	now      func() time.Time
}

// Option は Pipeline の設定を行うための関数型です。
type Option func(*Pipeline)

// WithLogger はロガーを設定します。
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithRunIDFunc は実行IDの生成方法を差し替えます。
func WithRunIDFunc(f func() string) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.newRunID = f
		}
	}
}

// New は Pipeline を初期化します。いずれかのステージが nil の場合はエラーを返します。
func New(source HeadlineSource, enricher ContentEnricher, analyzer TextAnalyzer, loader BatchLoader, opts ...Option) (*Pipeline, error) {
	if source == nil || enricher == nil || analyzer == nil || loader == nil {
		return nil, errors.New("pipeline.New: すべてのステージを指定する必要があります")
	}
	p := &Pipeline{
		source:   source,
		enricher: enricher,
		analyzer: analyzer,
		loader:   loader,
		logger:   logger.NewNop(),
		newRunID: uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run はパイプラインを1回実行します。
// 記事単位の失敗は各ステージ内で吸収され、返されるエラーは実行全体の失敗を示す *StageError のみです。
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: p.newRunID(), StartedAt: p.now()}
	log := p.logger.With(logger.String("run_id", report.RunID))
	log.Info("パイプラインの実行を開始します")

	fail := func(stage Stage, err error) (Report, error) {
		report.Duration = p.now().Sub(report.StartedAt)
		log.Error("パイプラインの実行に失敗しました",
			logger.String("stage", string(stage)), logger.Error(err), logger.Duration("duration", report.Duration))
		return report, &StageError{Stage: stage, Err: err}
	}

	batch, err := p.source.FetchHeadlines(ctx)
	if err != nil {
		return fail(StageExtract, err)
	}
	report.Fetched = len(batch)
	log.Info("ヘッドラインを取得しました", logger.Int("articles", report.Fetched))

	if err := ctx.Err(); err != nil {
		return fail(StageEnrich, err)
	}
	batch, report.Enrich = p.enricher.Enrich(ctx, batch)
	log.Info("本文の補完が完了しました",
		logger.Int("enriched", report.Enrich.Enriched),
		logger.Int("unchanged", report.Enrich.Unchanged),
		logger.Int("failed", report.Enrich.Failed),
		logger.Int("skipped", report.Enrich.Skipped))

	if err := ctx.Err(); err != nil {
		return fail(StageAnalyze, err)
	}
	batch, report.Analyze = p.analyzer.Analyze(ctx, batch)
	log.Info("テキスト解析が完了しました",
		logger.Int("analyzed", report.Analyze.Analyzed),
		logger.Int("skipped", report.Analyze.Skipped),
		logger.Int("failed", report.Analyze.Failed))

	if err := ctx.Err(); err != nil {
		return fail(StageLoad, err)
	}
	report.RowsAffected, err = p.loader.Load(ctx, batch)
	if err != nil {
		return fail(StageLoad, err)
	}

	report.Duration = p.now().Sub(report.StartedAt)
	log.Info("パイプラインの実行が完了しました",
		logger.Int("fetched", report.Fetched),
		logger.Int64("rows_affected", report.RowsAffected),
		logger.Duration("duration", report.Duration))
	return report, nil
}
