// Package feed は、RSS/Atomフィードからヘッドラインのバッチを組み立てる代替の取得元を提供します。
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	textUtils "github.com/shouni/go-utils/text"

	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/newsapi"
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/types"
)

// Fetcher は Source が依存するHTTP取得のインターフェースです。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Source は複数のフィードURLから記事を集める取得元です。
type Source struct {
	fetcher  Fetcher
	feedURLs []string
}

// NewSource は Source を初期化します。
func NewSource(fetcher Fetcher, feedURLs ...string) (*Source, error) {
	if fetcher == nil {
		return nil, errors.New("Fetcher cannot be nil")
	}
	urls := make([]string, 0, len(feedURLs))
	for _, u := range feedURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil, errors.New("フィードURLが1件も指定されていません")
	}
	return &Source{fetcher: fetcher, feedURLs: urls}, nil
}

// FetchAndParse は指定されたURLからフィードを取得し、パースします。
func (s *Source) FetchAndParse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	body, err := s.fetcher.FetchBytes(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得失敗 (URL: %s): %w", feedURL, err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("RSSフィードのパース失敗 (URL: %s): %w", feedURL, err)
	}
	return feed, nil
}

// FetchHeadlines はすべてのフィードを順に取得し、アイテムを記事に変換して1つのバッチにまとめます。
// いずれかのフィードの取得またはパースに失敗した場合は newsapi.ErrConnectivity でラップして返します。
func (s *Source) FetchHeadlines(ctx context.Context) (types.Batch, error) {
	batch := types.Batch{}
	for _, feedURL := range s.feedURLs {
		feed, err := s.FetchAndParse(ctx, feedURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", newsapi.ErrConnectivity, err)
		}
		batch = append(batch, FeedArticles(feed)...)
	}
	return batch, nil
}

// FeedArticles は gofeed.Feed のアイテムを記事に変換します。
func FeedArticles(feed *gofeed.Feed) types.Batch {
	if feed == nil {
		return types.Batch{}
	}
	out := make(types.Batch, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		out = append(out, itemToArticle(feed.Title, item))
	}
	return out
}

func itemToArticle(feedTitle string, item *gofeed.Item) types.Article {
	a := types.Article{
		URL:         strings.TrimSpace(item.Link),
		Title:       types.StringPtr(textUtils.NormalizeText(item.Title)),
		Description: types.StringPtr(plainText(item.Description)),
		Content:     types.StringPtr(plainText(item.Content)),
		SourceName:  types.StringPtr(feedTitle),
		PublishedAt: publishedAt(item),
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		a.Author = types.StringPtr(item.Authors[0].Name)
	}
	if item.Image != nil {
		a.ImageURL = types.StringPtr(item.Image.URL)
	}
	return a
}

// publishedAt はパース済みの日時があれば RFC3339 で、なければ元の文字列を返します。
func publishedAt(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	return item.Published
}

// plainText はフィード内のHTML断片からテキストだけを取り出します。
func plainText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return textUtils.NormalizeText(fragment)
	}
	return textUtils.NormalizeText(doc.Text())
}
