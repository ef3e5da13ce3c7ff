package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"

	"github.com/CarlosDiazData/news-analysis-pipeline/internal/logger"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/types"
)

// DefaultTable は記事を保存するテーブル名です。
const DefaultTable = "news_articles"

// ErrPersistence は保存処理が失敗し、トランザクションがロールバックされたことを示します。
var ErrPersistence = errors.New("persistence error")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// upsertQuery は url を自然キーとし、更新されうる列を上書きします。
// image_url, published_at, source_name, author は最初に保存した値を保持します。
const upsertQuery = `INSERT INTO %s (
	title, description, url, image_url, published_at, source_name, author,
	content, sentiment_polarity, sentiment_subjectivity, named_entities
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (url) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	content = EXCLUDED.content,
	sentiment_polarity = EXCLUDED.sentiment_polarity,
	sentiment_subjectivity = EXCLUDED.sentiment_subjectivity,
	named_entities = EXCLUDED.named_entities`

// Loader はバッチを1トランザクションでアップサートします。
type Loader struct {
	db     *sqlx.DB
	table  string
	logger logger.Logger
}

// Option は Loader の設定を行うための関数型です。
type Option func(*Loader)

// WithLogger はロガーを設定します。
func WithLogger(l logger.Logger) Option {
	return func(ld *Loader) {
		ld.logger = l
	}
}

// WithTable は保存先のテーブル名を設定します。
func WithTable(table string) Option {
	return func(ld *Loader) {
		if table != "" {
			ld.table = table
		}
	}
}

// NewLoader は Loader を初期化します。
func NewLoader(db *sqlx.DB, opts ...Option) *Loader {
	l := &Loader{
		db:     db,
		table:  DefaultTable,
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load はURLを持つ記事をすべてアップサートし、影響を受けた行数の合計を返します。
// 空のバッチは何もせず (0, nil) を返します。途中で失敗した場合はロールバックし、
// ErrPersistence と原因のエラーをラップして返します。
func (l *Loader) Load(ctx context.Context, batch types.Batch) (affected int64, err error) {
	if len(batch) == 0 {
		l.logger.Warn("保存対象の記事がありません")
		return 0, nil
	}

	rows := batch.WithURL()
	if dropped := len(batch) - len(rows); dropped > 0 {
		l.logger.Warn("URLのない記事を保存対象から除外しました", logger.Int("dropped", dropped))
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if !tableNamePattern.MatchString(l.table) {
		return 0, fmt.Errorf("%w: 不正なテーブル名です: %q", ErrPersistence, l.table)
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: トランザクションの開始に失敗しました: %w", ErrPersistence, err)
	}
	defer func() {
		if err == nil {
			return
		}
		affected = 0
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			l.logger.Error("ロールバックに失敗しました", logger.Error(rbErr))
		}
	}()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(fmt.Sprintf(upsertQuery, l.table)))
	if err != nil {
		return 0, fmt.Errorf("%w: ステートメントの準備に失敗しました: %w", ErrPersistence, err)
	}
	defer stmt.Close()

	for _, article := range rows {
		args, argErr := upsertArgs(article)
		if argErr != nil {
			err = fmt.Errorf("%w: 記事 (URL: %s) の変換に失敗しました: %w", ErrPersistence, article.URL, argErr)
			return 0, err
		}
		res, execErr := stmt.ExecContext(ctx, args...)
		if execErr != nil {
			err = fmt.Errorf("%w: 記事 (URL: %s) の保存に失敗しました: %w", ErrPersistence, article.URL, execErr)
			return 0, err
		}
		n, raErr := res.RowsAffected()
		if raErr != nil {
			err = fmt.Errorf("%w: 影響行数の取得に失敗しました: %w", ErrPersistence, raErr)
			return 0, err
		}
		affected += n
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("%w: コミットに失敗しました: %w", ErrPersistence, err)
		return 0, err
	}

	l.logger.Info("記事を保存しました", logger.Int("articles", len(rows)), logger.Int64("rows_affected", affected))
	return affected, nil
}

// upsertArgs は記事をプレースホルダーの順序に合わせた引数に変換します。
func upsertArgs(a types.Article) ([]any, error) {
	entities, err := entitiesJSON(a.NamedEntities)
	if err != nil {
		return nil, err
	}
	return []any{
		nullString(a.Title),
		nullString(a.Description),
		a.URL,
		nullString(a.ImageURL),
		nullString(types.StringPtr(a.PublishedAt)),
		nullString(a.SourceName),
		nullString(a.Author),
		nullString(a.Content),
		nullFloat(a.SentimentPolarity),
		nullFloat(a.SentimentSubjectivity),
		entities,
	}, nil
}

// entitiesJSON は固有表現を JSON 文字列に変換します。nil は NULL として保存します。
func entitiesJSON(entities []types.NamedEntity) (any, error) {
	if entities == nil {
		return nil, nil
	}
	b, err := json.Marshal(entities)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
