package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"
	"golang.org/x/net/html/charset"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// Fetcher は、HTMLドキュメントの生バイト配列を取得する機能のインターフェースを定義します。
// *httpclient.Client はこのインターフェースを満たします。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Extractor は、Fetcher を使って段落テキストの抽出プロセスを管理します。
type Extractor struct {
	fetcher Fetcher
}

// NewExtractor は、新しいExtractorのインスタンスを生成します。
func NewExtractor(fetcher Fetcher) (*Extractor, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("extract.NewExtractor: Fetcher cannot be nil")
	}
	return &Extractor{
		fetcher: fetcher,
	}, nil
}

// ----------------------------------------------------------------------
// 定数定義 (解析関連のみ)
// ----------------------------------------------------------------------
const (
	// paragraphSelector は本文として連結する段落ブロックです。
	paragraphSelector = "p"
	// paragraphSeparator は段落同士を連結する区切り文字です。
	paragraphSeparator = " "
)

// FetchParagraphText は指定されたURLからHTMLを取得し、全段落のテキストを連結して返します。
// 段落が一つも見つからない場合は空文字列を返します (エラーではありません)。
func (e *Extractor) FetchParagraphText(ctx context.Context, url string) (string, error) {
	// 1. Fetcherから生のバイト配列を取得 (通信の責務)
	htmlBytes, err := e.fetcher.FetchBytes(ctx, url)
	if err != nil {
		return "", err
	}

	// 2. 段落テキストの抽出 (解析の責務)
	return ExtractParagraphText(bytes.NewReader(htmlBytes))
}

// ExtractParagraphText は HTML を解析し、全 <p> 要素のテキストを出現順に連結します。
// 文字コードは <meta> 宣言またはバイト列から推定し、UTF-8 に変換してから解析します。
func ExtractParagraphText(r io.Reader) (string, error) {
	utf8Reader, err := charset.NewReader(r, "")
	if err != nil {
		return "", fmt.Errorf("文字コードの判定に失敗しました: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return "", fmt.Errorf("HTML解析に失敗しました: %w", err)
	}

	return extractParagraphs(doc), nil
}

// extractParagraphs はドキュメント内の段落テキストを連結します。
func extractParagraphs(doc *goquery.Document) string {
	var parts []string
	doc.Find(paragraphSelector).Each(func(i int, s *goquery.Selection) {
		text := textUtils.NormalizeText(s.Text())
		if text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, paragraphSeparator)
}
