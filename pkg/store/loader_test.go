package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/types"
)

var insertPattern = regexp.QuoteMeta("INSERT INTO news_articles")

func newMockLoader(t *testing.T, opts ...Option) (*Loader, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLoader(sqlx.NewDb(db, "postgres"), opts...), mock
}

func analyzedArticle(url, title string) types.Article {
	return types.Article{
		URL:                   url,
		Title:                 types.StringPtr(title),
		PublishedAt:           "2024-05-01T10:00:00Z",
		Content:               types.StringPtr("body of " + url),
		SentimentPolarity:     types.Float64Ptr(0.5),
		SentimentSubjectivity: types.Float64Ptr(0.25),
		NamedEntities:         []types.NamedEntity{{Text: "Ada", Label: types.LabelPerson}},
	}
}

func TestLoad_EmptyBatch(t *testing.T) {
	loader, mock := newMockLoader(t)

	n, err := loader.Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = loader.Load(context.Background(), types.Batch{{Title: types.StringPtr("no url")}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	assert.NoError(t, mock.ExpectationsWereMet(), "DBに触れてはならない")
}

func TestLoad_CommitsSingleTransaction(t *testing.T) {
	loader, mock := newMockLoader(t)

	unanalyzed := types.Article{URL: "http://example.com/b", Title: types.StringPtr("B")}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(insertPattern)
	prep.ExpectExec().
		WithArgs("A", nil, "http://example.com/a", nil, "2024-05-01T10:00:00Z", nil, nil,
			"body of http://example.com/a", 0.5, 0.25, `[{"text":"Ada","label":"PERSON"}]`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("B", nil, "http://example.com/b", nil, nil, nil, nil, nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := loader.Load(context.Background(), types.Batch{
		analyzedArticle("http://example.com/a", "A"),
		{Title: types.StringPtr("dropped")},
		unanalyzed,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_RollsBackOnError(t *testing.T) {
	cause := errors.New("unique violation on constraint")
	batch := types.Batch{analyzedArticle("http://example.com/a", "A"), analyzedArticle("http://example.com/b", "B")}

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
	}{
		{
			name: "begin_fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(cause)
			},
		},
		{
			name: "prepare_fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectPrepare(insertPattern).WillReturnError(cause)
				mock.ExpectRollback()
			},
		},
		{
			name: "second_exec_fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				prep := mock.ExpectPrepare(insertPattern)
				prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
				prep.ExpectExec().WillReturnError(cause)
				mock.ExpectRollback()
			},
		},
		{
			name: "commit_fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				prep := mock.ExpectPrepare(insertPattern)
				prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
				prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit().WillReturnError(cause)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, mock := newMockLoader(t)
			tt.setupMock(mock)

			n, err := loader.Load(context.Background(), batch)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPersistence)
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, int64(0), n)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLoad_InvalidTableName(t *testing.T) {
	loader, mock := newMockLoader(t, WithTable("articles; DROP TABLE x"))

	_, err := loader.Load(context.Background(), types.Batch{analyzedArticle("http://x", "X")})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_CustomTable(t *testing.T) {
	loader, mock := newMockLoader(t, WithTable("public.articles"))

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO public.articles")).
		ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := loader.Load(context.Background(), types.Batch{analyzedArticle("http://x", "X")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitiesJSON(t *testing.T) {
	v, err := entitiesJSON(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = entitiesJSON([]types.NamedEntity{})
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}
