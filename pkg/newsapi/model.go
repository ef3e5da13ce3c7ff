package newsapi

import (
	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/types"
)

// envelope はAPIレスポンスの外枠です。
type envelope struct {
	Status       string       `json:"status"`
	TotalResults int          `json:"totalResults"`
	Code         string       `json:"code"`
	Message      string       `json:"message"`
	Articles     []rawArticle `json:"articles"`
}

func (e envelope) message() string {
	if e.Message == "" {
		return unknownMessage
	}
	return e.Message
}

type rawSource struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

// rawArticle はAPIが返す記事1件で、フィールド名はベンダーの表記に従います。
type rawArticle struct {
	Source      *rawSource `json:"source"`
	Author      *string    `json:"author"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	URL         string     `json:"url"`
	URLToImage  *string    `json:"urlToImage"`
	PublishedAt string     `json:"publishedAt"`
	Content     *string    `json:"content"`
}

// toArticle はベンダー表記の記事をパイプラインの Article に変換します。
func (r rawArticle) toArticle() types.Article {
	a := types.Article{
		URL:         r.URL,
		Title:       r.Title,
		Description: r.Description,
		Author:      r.Author,
		ImageURL:    r.URLToImage,
		PublishedAt: r.PublishedAt,
		Content:     r.Content,
	}
	if r.Source != nil {
		a.SourceName = r.Source.Name
	}
	return a
}
