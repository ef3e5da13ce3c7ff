package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/newsapi"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/types"
)

// staticLinks は固定のリンクを返す LinkSource です。
type staticLinks []string

func (s staticLinks) GetLinks() []string { return s }

func TestGetAllLinks(t *testing.T) {
	tests := []struct {
		name     string
		source   LinkSource
		expected []string
	}{
		{
			name: "feed_items_without_link_are_skipped",
			source: NewFeedAdapter(&gofeed.Feed{Items: []*gofeed.Item{
				{Link: "http://example.com/a"},
				{Link: ""},
				nil,
				{Link: "http://example.com/b"},
			}}),
			expected: []string{"http://example.com/a", "http://example.com/b"},
		},
		{
			name:     "nil_feed",
			source:   NewFeedAdapter(nil),
			expected: []string{},
		},
		{
			name: "batch_articles_without_url_are_skipped",
			source: BatchLinks(types.Batch{
				{URL: "http://example.com/a"},
				{Title: types.StringPtr("no url")},
				{URL: "http://example.com/c"},
			}),
			expected: []string{"http://example.com/a", "http://example.com/c"},
		},
		{
			name:     "any_link_source",
			source:   staticLinks{"x", "y"},
			expected: []string{"x", "y"},
		},
		{
			name:     "nil_source",
			source:   nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetAllLinks(tt.source))
		})
	}
}

func TestSource_Links(t *testing.T) {
	t.Run("collects_links_of_every_feed", func(t *testing.T) {
		var requested []string
		s, err := NewSource(&MockFetcher{FetchBytesFunc: func(ctx context.Context, url string) ([]byte, error) {
			requested = append(requested, url)
			return []byte(validRSS), nil
		}}, "http://example.com/one", "http://example.com/two")
		require.NoError(t, err)

		links, err := s.Links(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"http://example.com/item1", "http://example.com/item1"}, links)
		assert.Equal(t, []string{"http://example.com/one", "http://example.com/two"}, requested)
	})

	t.Run("fetch_failure_is_connectivity_error", func(t *testing.T) {
		s, err := NewSource(&MockFetcher{FetchBytesFunc: func(ctx context.Context, url string) ([]byte, error) {
			return nil, errors.New("dial tcp: connection refused")
		}}, "http://example.com/feed")
		require.NoError(t, err)

		links, err := s.Links(context.Background())
		assert.Nil(t, links)
		assert.ErrorIs(t, err, newsapi.ErrConnectivity)
	})
}
