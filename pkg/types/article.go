package types

import "unicode/utf8"

// EntityLabel は、固有表現のカテゴリを表します。
type EntityLabel string

const (
	LabelPerson  EntityLabel = "PERSON"
	LabelOrg     EntityLabel = "ORG"
	LabelGPE     EntityLabel = "GPE"
	LabelProduct EntityLabel = "PRODUCT"
)

// AllowedLabels は、保存対象とする固有表現ラベルの一覧です。
var AllowedLabels = []EntityLabel{LabelPerson, LabelOrg, LabelGPE, LabelProduct}

// Valid は、ラベルが保存対象の集合に含まれるかを判定します。
func (l EntityLabel) Valid() bool {
	switch l {
	case LabelPerson, LabelOrg, LabelGPE, LabelProduct:
		return true
	}
	return false
}

// NamedEntity は、本文から抽出された固有表現の1件です。
type NamedEntity struct {
	Text  string      `json:"text"`
	Label EntityLabel `json:"label"`
}

// Article は、パイプラインの全ステージを流れる記事レコードです。
// ポインタ型のフィールドは nil のとき「値なし」を意味し、DBには NULL として保存されます。
type Article struct {
	URL         string  `json:"url"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Author      *string `json:"author,omitempty"`
	SourceName  *string `json:"source_name,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	PublishedAt string  `json:"published_at"`
	Content     *string `json:"content,omitempty"`

	SentimentPolarity     *float64 `json:"sentiment_polarity,omitempty"`
	SentimentSubjectivity *float64 `json:"sentiment_subjectivity,omitempty"`
	// NamedEntities は nil で「未解析」、空スライスで「解析済み・該当なし」を表します。
	NamedEntities []NamedEntity `json:"named_entities,omitempty"`
}

// HasURL は、記事が自然キーであるURLを持つかを返します。
func (a Article) HasURL() bool {
	return a.URL != ""
}

// ContentText は本文を返します。本文がない場合は空文字列です。
func (a Article) ContentText() string {
	if a.Content == nil {
		return ""
	}
	return *a.Content
}

// ContentLength は本文の文字数 (rune数) を返します。本文がない場合は 0 です。
func (a Article) ContentLength() int {
	return utf8.RuneCountInString(a.ContentText())
}

// HasAnalysis は、感情スコアと固有表現がすべて設定済みかを返します。
func (a Article) HasAnalysis() bool {
	return a.SentimentPolarity != nil && a.SentimentSubjectivity != nil && a.NamedEntities != nil
}

// ClearAnalysis は、解析結果のフィールドをすべて「値なし」に戻します。
func (a *Article) ClearAnalysis() {
	a.SentimentPolarity = nil
	a.SentimentSubjectivity = nil
	a.NamedEntities = nil
}

// TitleText はログ出力用のタイトルを返します。
func (a Article) TitleText() string {
	if a.Title == nil || *a.Title == "" {
		return "No Title"
	}
	return *a.Title
}

// Batch は、1回の実行でステージ間を受け渡される記事の集合です。
// 各ステージは Batch を受け取り、新しい Batch を返します。
type Batch []Article

// WithURL は、URLを持つ記事だけを含む新しい Batch を返します。
func (b Batch) WithURL() Batch {
	out := make(Batch, 0, len(b))
	for _, a := range b {
		if a.HasURL() {
			out = append(out, a)
		}
	}
	return out
}

// StringPtr は文字列のポインタを返します。空文字列は nil として扱います。
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Float64Ptr は float64 のポインタを返します。
func Float64Ptr(f float64) *float64 {
	return &f
}
