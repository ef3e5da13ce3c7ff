package feed

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"

	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/newsapi"

	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/types"
)

// LinkSource は、記事URLのリストを提供できる任意の型を表します。
type LinkSource interface {
	GetLinks() []string
}

// FeedAdapter は gofeed.Feed を LinkSource に適合させるためのアダプターです。
type FeedAdapter struct {
	*gofeed.Feed
}

// NewFeedAdapter は gofeed.Feed から新しいアダプターを作成します。
func NewFeedAdapter(feed *gofeed.Feed) *FeedAdapter {
	return &FeedAdapter{Feed: feed}
}

// GetLinks はフィードのアイテムから空でないリンクを順に返します。
func (a *FeedAdapter) GetLinks() []string {
	if a.Feed == nil || len(a.Items) == 0 {
		return []string{}
	}

	urls := make([]string, 0, len(a.Items))
	for _, item := range a.Items {
		if item != nil && item.Link != "" {
			urls = append(urls, item.Link)
		}
	}
	return urls
}

// BatchLinks は記事バッチを LinkSource として扱うためのアダプターです。
// URLのない記事は含みません。
type BatchLinks types.Batch

// GetLinks は LinkSource を満たします。
func (b BatchLinks) GetLinks() []string {
	urls := make([]string, 0, len(b))
	for _, a := range b {
		if a.HasURL() {
			urls = append(urls, a.URL)
		}
	}
	return urls
}

// GetAllLinks は LinkSource からリンクを抽出する汎用関数です。
func GetAllLinks(source LinkSource) []string {
	if source == nil {
		return []string{}
	}
	return source.GetLinks()
}

// Links はフィードを順に取得し、各フィードの記事URLを FeedAdapter 経由で集めます。
// 失敗時は FetchHeadlines と同じく newsapi.ErrConnectivity でラップして返します。
func (s *Source) Links(ctx context.Context) ([]string, error) {
	links := []string{}
	for _, feedURL := range s.feedURLs {
		feed, err := s.FetchAndParse(ctx, feedURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", newsapi.ErrConnectivity, err)
		}
		links = append(links, GetAllLinks(NewFeedAdapter(feed))...)
	}
	return links, nil
}
