// Package analyze は、記事本文の感情スコアと固有表現を算出するテキスト解析ステージを提供します。
package analyze

import (
	"context"
	"errors"
	"fmt"

	"github.com/CarlosDiazData/news-analysis-pipeline/internal/logger"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/types"
)

// DefaultMaxEntityRunes は固有表現抽出に渡す本文の最大文字数 (rune数) です。
const DefaultMaxEntityRunes = 100000

// ErrModelUnavailable は解析モデルを読み込めないことを示します。実行全体を中断させる設定エラーです。
var ErrModelUnavailable = errors.New("text analysis model unavailable")

// Stats は1回の Analyze 呼び出しの集計結果です。
type Stats struct {
	Total    int
	Analyzed int
	Skipped  int // 本文がないため解析しなかった件数
	Failed   int
}

// Analyzer は感情モデルと固有表現モデルを記事ごとに適用します。
type Analyzer struct {
	sentiment      SentimentModel
	recognizer     EntityRecognizer
	maxEntityRunes int
	logger         logger.Logger
}

// Option は Analyzer の設定を行うための関数型です。
type Option func(*Analyzer)

// WithLogger はロガーを設定します。
func WithLogger(l logger.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// WithMaxEntityRunes は固有表現抽出に渡す本文の最大文字数を設定します。
func WithMaxEntityRunes(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxEntityRunes = n
		}
	}
}

// NewAnalyzer は Analyzer を初期化します。モデルが nil の場合は ErrModelUnavailable を返します。
func NewAnalyzer(sentiment SentimentModel, recognizer EntityRecognizer, opts ...Option) (*Analyzer, error) {
	if sentiment == nil {
		return nil, fmt.Errorf("%w: 感情モデルが設定されていません", ErrModelUnavailable)
	}
	if recognizer == nil {
		return nil, fmt.Errorf("%w: 固有表現モデルが設定されていません", ErrModelUnavailable)
	}
	a := &Analyzer{
		sentiment:      sentiment,
		recognizer:     recognizer,
		maxEntityRunes: DefaultMaxEntityRunes,
		logger:         logger.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// NewDefaultAnalyzer は辞書ベースの感情モデルと、prose と辞書を組み合わせた固有表現モデルで Analyzer を構築します。
// パスが空の場合は組み込みの辞書を使います。同じ表現は辞書のラベルを優先します。
func NewDefaultAnalyzer(lexiconPath, gazetteerPath string, opts ...Option) (*Analyzer, error) {
	lexicon, err := LoadLexicon(lexiconPath)
	if err != nil {
		return nil, err
	}
	gazetteer, err := LoadGazetteer(gazetteerPath)
	if err != nil {
		return nil, err
	}
	return NewAnalyzer(lexicon, NewComposite(gazetteer, NewProseRecognizer()), opts...)
}

// Analyze はバッチ内の各記事に感情スコアと固有表現を付与し、同じ件数・同じ順序のバッチを返します。
// 本文がない記事と解析に失敗した記事は、3つの解析フィールドがすべて nil のまま返されます。
func (a *Analyzer) Analyze(ctx context.Context, batch types.Batch) (types.Batch, Stats) {
	stats := Stats{Total: len(batch)}
	out := make(types.Batch, 0, len(batch))

	for i, article := range batch {
		if err := ctx.Err(); err != nil {
			remaining := batch[i:]
			stats.Failed += len(remaining)
			a.logger.Error("テキスト解析が中断されました。残りの記事は未解析のまま返します",
				logger.Int("remaining", len(remaining)), logger.Error(err))
			for _, rest := range remaining {
				rest.ClearAnalysis()
				out = append(out, rest)
			}
			break
		}

		if article.ContentText() == "" {
			article.ClearAnalysis()
			stats.Skipped++
			out = append(out, article)
			continue
		}

		analyzed, err := a.analyzeOne(article)
		if err != nil {
			stats.Failed++
			a.logger.Error("記事の解析に失敗しました。解析結果なしで続行します",
				logger.String("url", article.URL), logger.String("title", article.TitleText()), logger.Error(err))
			article.ClearAnalysis()
			out = append(out, article)
			continue
		}
		stats.Analyzed++
		out = append(out, analyzed)
	}
	return out, stats
}

// analyzeOne は1件の記事を解析します。モデル内部のパニックもエラーとして返します。
func (a *Analyzer) analyzeOne(article types.Article) (result types.Article, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("解析中に予期しないエラーが発生しました: %v", r)
		}
	}()

	content := article.ContentText()
	polarity, subjectivity := a.sentiment.Sentiment(content)

	entities, err := a.recognizer.Entities(truncateRunes(content, a.maxEntityRunes))
	if err != nil {
		return article, err
	}

	article.SentimentPolarity = types.Float64Ptr(clamp(polarity, -1, 1))
	article.SentimentSubjectivity = types.Float64Ptr(clamp(subjectivity, 0, 1))
	article.NamedEntities = filterLabels(entities)
	return article, nil
}

// filterLabels は保存対象のラベルを持つ固有表現のみを順序を保って返します。結果は nil になりません。
func filterLabels(entities []types.NamedEntity) []types.NamedEntity {
	out := make([]types.NamedEntity, 0, len(entities))
	for _, e := range entities {
		if e.Label.Valid() {
			out = append(out, e)
		}
	}
	return out
}

// truncateRunes は先頭 n 文字までに切り詰めます。
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
