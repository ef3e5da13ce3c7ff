package analyze

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"
	"github.com/jdkato/prose/v2"
	"gopkg.in/yaml.v3"

	"github.com/CarlosDiazData/news-analysis-pipeline/pkg/types"
)

//go:embed gazetteer.yaml
var defaultGazetteer []byte

// EntityRecognizer は、テキストから固有表現を出現順に抽出するモデルのインターフェースです。
type EntityRecognizer interface {
	Entities(text string) ([]types.NamedEntity, error)
}

// ----------------------------------------------------------------------
// ProseRecognizer
// ----------------------------------------------------------------------

// ProseRecognizer は prose の統計的な固有表現抽出を利用します。
type ProseRecognizer struct{}

// NewProseRecognizer は ProseRecognizer を返します。
func NewProseRecognizer() *ProseRecognizer {
	return &ProseRecognizer{}
}

// Entities は EntityRecognizer を満たします。ラベルは prose の出力をそのまま使います。
func (p *ProseRecognizer) Entities(text string) ([]types.NamedEntity, error) {
	if strings.TrimSpace(text) == "" {
		return []types.NamedEntity{}, nil
	}
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("固有表現の抽出に失敗しました: %w", err)
	}
	ents := doc.Entities()
	out := make([]types.NamedEntity, 0, len(ents))
	for _, e := range ents {
		out = append(out, types.NamedEntity{Text: e.Text, Label: types.EntityLabel(e.Label)})
	}
	return out, nil
}

// ----------------------------------------------------------------------
// Gazetteer
// ----------------------------------------------------------------------

// Gazetteer は辞書に登録された表記を Aho-Corasick 法で検出します。
// 単語境界で区切られた出現のみを対象とし、重なる場合は長い表記を優先します。
type Gazetteer struct {
	matcher *ahocorasick.Matcher
	terms   []string
	labels  []types.EntityLabel
}

// LoadGazetteer は YAML の辞書を読み込みます。path が空の場合は組み込みの辞書を使います。
func LoadGazetteer(path string) (*Gazetteer, error) {
	data := defaultGazetteer
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: 固有表現辞書 %s の読み込みに失敗しました。GAZETTEER_PATH を確認するか、空にして組み込み辞書を使用してください: %v", ErrModelUnavailable, path, err)
		}
		data = b
	}
	return ParseGazetteer(data)
}

// ParseGazetteer は YAML バイト列から Gazetteer を構築します。
func ParseGazetteer(data []byte) (*Gazetteer, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: 固有表現辞書のパースに失敗しました: %v", ErrModelUnavailable, err)
	}

	// マップの反復順に依存しないよう、ラベル順に登録する
	labels := make([]string, 0, len(raw))
	for label := range raw {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	g := &Gazetteer{}
	seen := make(map[string]bool)
	for _, name := range labels {
		label := types.EntityLabel(strings.ToUpper(name))
		if !label.Valid() {
			return nil, fmt.Errorf("%w: 固有表現辞書に未対応のラベル %q があります", ErrModelUnavailable, name)
		}
		for _, term := range raw[name] {
			term = strings.TrimSpace(term)
			if term == "" || seen[term] {
				continue
			}
			seen[term] = true
			g.terms = append(g.terms, term)
			g.labels = append(g.labels, label)
		}
	}
	if len(g.terms) == 0 {
		return nil, fmt.Errorf("%w: 固有表現辞書に表記が1件もありません", ErrModelUnavailable)
	}
	g.matcher = ahocorasick.NewStringMatcher(g.terms)
	return g, nil
}

// Entities は EntityRecognizer を満たします。
func (g *Gazetteer) Entities(text string) ([]types.NamedEntity, error) {
	hits := g.matcher.MatchThreadSafe([]byte(text))

	var found []span
	for _, idx := range hits {
		term := g.terms[idx]
		for _, start := range occurrences(text, term) {
			found = append(found, span{
				start:  start,
				end:    start + len(term),
				entity: types.NamedEntity{Text: term, Label: g.labels[idx]},
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].start != found[j].start {
			return found[i].start < found[j].start
		}
		return found[i].end > found[j].end
	})

	out := make([]types.NamedEntity, 0, len(found))
	lastEnd := -1
	for _, s := range found {
		if s.start < lastEnd {
			continue
		}
		out = append(out, s.entity)
		lastEnd = s.end
	}
	return out, nil
}

// occurrences は単語境界で区切られた term の出現位置 (バイトオフセット) を返します。
func occurrences(text, term string) []int {
	var positions []int
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], term)
		if i < 0 {
			break
		}
		start := offset + i
		end := start + len(term)
		if isBoundary(text, start, true) && isBoundary(text, end, false) {
			positions = append(positions, start)
		}
		offset = start + 1
	}
	return positions
}

// isBoundary は位置 pos の直前 (before=true) または直後の文字が単語構成文字でないかを判定します。
func isBoundary(text string, pos int, before bool) bool {
	var r rune
	if before {
		if pos == 0 {
			return true
		}
		r, _ = utf8.DecodeLastRuneInString(text[:pos])
	} else {
		if pos >= len(text) {
			return true
		}
		r, _ = utf8.DecodeRuneInString(text[pos:])
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// ----------------------------------------------------------------------
// Composite
// ----------------------------------------------------------------------

type span struct {
	start, end int
	entity     types.NamedEntity
}

// Composite は複数の EntityRecognizer の結果を本文中の位置順にマージします。
// 保存対象外のラベルは重複判定の前に取り除き、同じ位置・同じ長さの表現は
// 先に登録された認識器の結果のみを残します。
type Composite struct {
	recognizers []EntityRecognizer
}

// NewComposite は nil を除いた認識器で Composite を構築します。
func NewComposite(recognizers ...EntityRecognizer) *Composite {
	c := &Composite{}
	for _, r := range recognizers {
		if r != nil {
			c.recognizers = append(c.recognizers, r)
		}
	}
	return c
}

// Entities は EntityRecognizer を満たします。
func (c *Composite) Entities(text string) ([]types.NamedEntity, error) {
	var all []span
	seen := make(map[[2]int]bool)

	for order, r := range c.recognizers {
		ents, err := r.Entities(text)
		if err != nil {
			return nil, fmt.Errorf("認識器 #%d の実行に失敗しました: %w", order, err)
		}
		cursor := 0
		for _, e := range ents {
			start := locate(text, e.Text, cursor)
			end := start + len(e.Text)
			if start < len(text) {
				cursor = end
			}
			if !e.Label.Valid() {
				continue
			}
			key := [2]int{start, end}
			if start < len(text) && seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, span{start: start, end: end, entity: e})
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].start < all[j].start })

	out := make([]types.NamedEntity, 0, len(all))
	for _, s := range all {
		out = append(out, s.entity)
	}
	return out, nil
}

// locate は cursor 以降で表記を探し、見つからなければ先頭から探します。
// どちらでも見つからない場合は本文末尾の位置を返します。
func locate(text, needle string, cursor int) int {
	if needle == "" {
		return len(text)
	}
	if cursor <= len(text) {
		if i := strings.Index(text[cursor:], needle); i >= 0 {
			return cursor + i
		}
	}
	if i := strings.Index(text, needle); i >= 0 {
		return i
	}
	return len(text)
}
