package analyze

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexicon_Sentiment(t *testing.T) {
	lexicon, err := LoadLexicon("")
	require.NoError(t, err)

	tests := []struct {
		name         string
		text         string
		polarity     float64
		subjectivity float64
	}{
		{"single_positive_word", "This is a good day", 0.7, 0.6},
		{"negation_flips_and_dampens", "This is not good", -0.35, 0.6},
		{"contracted_negation", "It isn't good", -0.35, 0.6},
		{"intensifier_scales", "A very good result", 0.91, 0.78},
		{"intensifier_is_clamped", "An extremely excellent show", 1.0, 1.0},
		{"intensifier_resets_on_other_word", "very much good", 0.7, 0.6},
		{"scores_are_averaged", "Good and bad news", 0.0, 0.635},
		{"case_insensitive", "GOOD", 0.7, 0.6},
		{"no_assessments", "The cat sat on the mat", 0, 0},
		{"empty_text", "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, s := lexicon.Sentiment(tt.text)
			assert.InDelta(t, tt.polarity, p, 1e-9)
			assert.InDelta(t, tt.subjectivity, s, 1e-9)
			assert.GreaterOrEqual(t, p, -1.0)
			assert.LessOrEqual(t, p, 1.0)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		})
	}
}

func TestLoadLexicon(t *testing.T) {
	t.Run("custom_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lexicon.yaml")
		require.NoError(t, os.WriteFile(path, []byte("words:\n  Bullish: {polarity: 2.0, subjectivity: 0.5}\nnegations: [not]\n"), 0o644))

		lexicon, err := LoadLexicon(path)
		require.NoError(t, err)
		p, s := lexicon.Sentiment("bullish outlook")
		assert.InDelta(t, 1.0, p, 1e-9, "辞書の値は範囲内に丸められる")
		assert.InDelta(t, 0.5, s, 1e-9)
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := LoadLexicon(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, ErrModelUnavailable)
		assert.Contains(t, err.Error(), "LEXICON_PATH")
	})

	t.Run("invalid_yaml", func(t *testing.T) {
		_, err := ParseLexicon([]byte("words: [unterminated"))
		assert.ErrorIs(t, err, ErrModelUnavailable)
	})

	t.Run("no_words", func(t *testing.T) {
		_, err := ParseLexicon([]byte("intensifiers:\n  very: 1.3\n"))
		assert.ErrorIs(t, err, ErrModelUnavailable)
	})
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"don't", "stop", "it's", "2024"}, tokenize("Don’t stop, 'it's' 2024!"))
	assert.Empty(t, tokenize("  ... "))
}
