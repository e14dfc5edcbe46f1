package text

import (
	"regexp"
	"unicode"
)

// charSpacingRe matches a run of at least five single letters each followed by
// exactly one whitespace character, the signature of OCR output that emits a
// trailing space after every glyph.
var charSpacingRe = regexp.MustCompile(`(\p{L}\s){5,}`)

// AlphabeticRatio returns the share of letters among the non-whitespace runes
// of text. Returns 0 for empty or whitespace-only input.
func AlphabeticRatio(text string) float64 {
	letters := 0
	nonSpace := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		nonSpace++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if nonSpace == 0 {
		return 0
	}
	return float64(letters) / float64(nonSpace)
}

// LooksCorrupted reports whether text is long enough to judge and falls below
// the severe alphabetic-ratio threshold. Used to reject an extraction
// strategy's output outright.
func LooksCorrupted(text string, minLength int) bool {
	if len(text) <= minLength {
		return false
	}
	return AlphabeticRatio(text) < 0.3
}

// HasCharacterLevelSpacing detects the known OCR failure mode where every
// character is separated by a single space ("h e l l o").
func HasCharacterLevelSpacing(text string) bool {
	return charSpacingRe.MatchString(text)
}
