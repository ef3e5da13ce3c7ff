package analyze

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

// negationFactor は否定語の直後の評価語に掛ける係数です。
const negationFactor = -0.5

// negationWindow は否定語が影響を及ぼすトークン数です。
const negationWindow = 3

// SentimentModel は、テキストの極性と主観性を返すモデルのインターフェースです。
type SentimentModel interface {
	// Sentiment は極性 [-1, 1] と主観性 [0, 1] を返します。
	Sentiment(text string) (polarity, subjectivity float64)
}

type wordScore struct {
	Polarity     float64 `yaml:"polarity"`
	Subjectivity float64 `yaml:"subjectivity"`
}

type lexiconFile struct {
	Words        map[string]wordScore `yaml:"words"`
	Intensifiers map[string]float64   `yaml:"intensifiers"`
	Negations    []string             `yaml:"negations"`
}

// Lexicon は辞書ベースのパターン感情モデルです。
// 評価語のスコアを平均し、直前の強調語と否定語でスコアを補正します。
type Lexicon struct {
	words        map[string]wordScore
	intensifiers map[string]float64
	negations    map[string]struct{}
}

// LoadLexicon は YAML の感情辞書を読み込みます。path が空の場合は組み込みの辞書を使います。
// 読み込みに失敗した場合は ErrModelUnavailable でラップしたエラーを返します。
func LoadLexicon(path string) (*Lexicon, error) {
	data := defaultLexicon
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: 感情辞書 %s の読み込みに失敗しました。LEXICON_PATH を確認するか、空にして組み込み辞書を使用してください: %v", ErrModelUnavailable, path, err)
		}
		data = b
	}
	return ParseLexicon(data)
}

// ParseLexicon は YAML バイト列から Lexicon を構築します。
func ParseLexicon(data []byte) (*Lexicon, error) {
	var f lexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: 感情辞書のパースに失敗しました: %v", ErrModelUnavailable, err)
	}
	if len(f.Words) == 0 {
		return nil, fmt.Errorf("%w: 感情辞書に評価語が1件もありません", ErrModelUnavailable)
	}

	l := &Lexicon{
		words:        make(map[string]wordScore, len(f.Words)),
		intensifiers: make(map[string]float64, len(f.Intensifiers)),
		negations:    make(map[string]struct{}, len(f.Negations)),
	}
	for w, s := range f.Words {
		l.words[strings.ToLower(w)] = wordScore{
			Polarity:     clamp(s.Polarity, -1, 1),
			Subjectivity: clamp(s.Subjectivity, 0, 1),
		}
	}
	for w, m := range f.Intensifiers {
		l.intensifiers[strings.ToLower(w)] = m
	}
	for _, w := range f.Negations {
		l.negations[strings.ToLower(w)] = struct{}{}
	}
	return l, nil
}

// Sentiment は SentimentModel を満たします。評価語がない場合は (0, 0) を返します。
func (l *Lexicon) Sentiment(text string) (float64, float64) {
	var (
		sumPolarity, sumSubjectivity float64
		assessments                  int
		intensity                    = 1.0
		negatedFor                   int
	)

	for _, token := range tokenize(text) {
		if l.isNegation(token) {
			negatedFor = negationWindow
			continue
		}
		if m, ok := l.intensifiers[token]; ok {
			intensity *= m
			continue
		}

		score, ok := l.words[token]
		if !ok {
			intensity = 1.0
			if negatedFor > 0 {
				negatedFor--
			}
			continue
		}

		polarity := score.Polarity * intensity
		subjectivity := score.Subjectivity * intensity
		if negatedFor > 0 {
			polarity *= negationFactor
			negatedFor = 0
		}
		sumPolarity += clamp(polarity, -1, 1)
		sumSubjectivity += clamp(subjectivity, 0, 1)
		assessments++
		intensity = 1.0
	}

	if assessments == 0 {
		return 0, 0
	}
	n := float64(assessments)
	return clamp(sumPolarity/n, -1, 1), clamp(sumSubjectivity/n, 0, 1)
}

func (l *Lexicon) isNegation(token string) bool {
	if _, ok := l.negations[token]; ok {
		return true
	}
	_, ok := l.negations["n't"]
	return ok && strings.HasSuffix(token, "n't")
}

// tokenize は小文字化した単語トークンに分割します。アポストロフィは単語の一部として扱います。
func tokenize(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "’", "'")
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	tokens := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "'"); f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
