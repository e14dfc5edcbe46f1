package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlphabeticRatio(t *testing.T) {
	t.Run("Empty Input", func(t *testing.T) {
		assert.Equal(t, 0.0, AlphabeticRatio(""))
	})

	t.Run("Whitespace Only", func(t *testing.T) {
		assert.Equal(t, 0.0, AlphabeticRatio("   \n\t  "))
	})

	t.Run("Pure Letters", func(t *testing.T) {
		assert.Equal(t, 1.0, AlphabeticRatio("hello world"))
	})

	t.Run("Half Letters", func(t *testing.T) {
		assert.InDelta(t, 0.5, AlphabeticRatio("ab12"), 0.001)
	})

	t.Run("Diacritics Count As Letters", func(t *testing.T) {
		assert.Equal(t, 1.0, AlphabeticRatio("perché città così"))
	})
}

func TestLooksCorrupted(t *testing.T) {
	t.Run("Short Input Never Corrupted", func(t *testing.T) {
		assert.False(t, LooksCorrupted("###", 100))
	})

	t.Run("Long Symbol Soup Is Corrupted", func(t *testing.T) {
		junk := strings.Repeat("#$% 12 &*( ", 30)
		assert.True(t, LooksCorrupted(junk, 100))
	})

	t.Run("Normal Prose Is Not Corrupted", func(t *testing.T) {
		prose := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 10)
		assert.False(t, LooksCorrupted(prose, 100))
	})
}

func TestHasCharacterLevelSpacing(t *testing.T) {
	t.Run("Spaced Letters Detected", func(t *testing.T) {
		assert.True(t, HasCharacterLevelSpacing("a b c d e f"))
	})

	t.Run("Normal Words Not Flagged", func(t *testing.T) {
		assert.False(t, HasCharacterLevelSpacing("hello world"))
	})

	t.Run("Short Run Not Flagged", func(t *testing.T) {
		assert.False(t, HasCharacterLevelSpacing("a b c then normal text follows here"))
	})

	t.Run("Spacing Inside Longer Text", func(t *testing.T) {
		assert.True(t, HasCharacterLevelSpacing("intro then Q u e s t o documento"))
	})
}
