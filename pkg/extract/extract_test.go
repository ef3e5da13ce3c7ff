package extract_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ======================================================================
// モック (Mock) の定義
// ======================================================================

// MockFetcher はテスト用の extract.Fetcher インターフェースの実装です。
type MockFetcher struct {
	htmlContent string
	fetchError  error
	requested   []string
}

// FetchBytes はモックされたHTMLをバイト配列として返すか、エラーを返します。
func (m *MockFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	m.requested = append(m.requested, url)
	if m.fetchError != nil {
		return nil, m.fetchError
	}
	return []byte(m.htmlContent), nil
}

// ======================================================================
// テスト関数
// ======================================================================

func TestNewExtractor(t *testing.T) {
	t.Run("success_with_valid_fetcher", func(t *testing.T) {
		extractor, err := extract.NewExtractor(&MockFetcher{})
		assert.NoError(t, err)
		assert.NotNil(t, extractor)
	})

	t.Run("error_with_nil_fetcher", func(t *testing.T) {
		extractor, err := extract.NewExtractor(nil)
		assert.Error(t, err)
		assert.Nil(t, extractor)
		assert.Contains(t, err.Error(), "Fetcher cannot be nil")
	})
}

func TestFetchParagraphText(t *testing.T) {
	longParagraph := strings.Repeat("a", 500)

	testCases := []struct {
		name          string
		html          string
		fetchErr      error
		expectedText  string
		expectedError bool
	}{
		{
			name:          "fetch_error",
			fetchErr:      errors.New("network timeout"),
			expectedError: true,
		},
		{
			name:         "single_long_paragraph",
			html:         `<html><head><title>T</title></head><body><p>` + longParagraph + `</p></body></html>`,
			expectedText: longParagraph,
		},
		{
			name: "paragraphs_joined_in_document_order",
			html: `<html><body>
				<header><p>First.</p></header>
				<article><h1>Heading is ignored</h1><p>Second.</p><div><p>Third.</p></div></article>
				<footer><p>Fourth.</p></footer>
			</body></html>`,
			expectedText: "First. Second. Third. Fourth.",
		},
		{
			name:         "non_paragraph_text_is_ignored",
			html:         `<html><body><div>Only a div</div><ul><li>item</li></ul><script>var x = 1;</script></body></html>`,
			expectedText: "",
		},
		{
			name:         "empty_paragraphs_are_skipped",
			html:         `<html><body><p></p><p>Body.</p><p>   </p></body></html>`,
			expectedText: "Body.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := &MockFetcher{htmlContent: tc.html, fetchError: tc.fetchErr}
			extractor, err := extract.NewExtractor(fetcher)
			require.NoError(t, err)

			url := "https://example.com/" + tc.name
			text, err := extractor.FetchParagraphText(context.Background(), url)

			assert.Equal(t, []string{url}, fetcher.requested)
			if tc.expectedError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedText, text)
		})
	}
}

func TestExtractParagraphText_Charset(t *testing.T) {
	// ISO-8859-1 で "café" をエンコードしたバイト列
	html := "<html><head><meta charset=\"iso-8859-1\"></head><body><p>caf\xe9</p></body></html>"
	text, err := extract.ExtractParagraphText(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "café", text)
}
