package text

import (
	"regexp"
	"strings"
)

// collapseIterationCap bounds the fixed-point loop when collapsing spaced
// characters; real documents converge in two or three passes.
const collapseIterationCap = 10

var (
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)

	// Apostrophe joining must run before the generic letter collapsing below:
	// "d ' accordo" is a subset of the generic letter-space-letter pattern and
	// would be mangled into "d'accord o" style output if collapsed first.
	apostropheRe = regexp.MustCompile(`(\p{L})\s*'\s*(\p{L})`)

	spacedLettersRe     = regexp.MustCompile(`(\p{L}) (\p{L})`)
	spacedDigitsRe      = regexp.MustCompile(`(\d) (\d)`)
	spacedLetterDigitRe = regexp.MustCompile(`(\p{L}) (\d)|(\d) (\p{L})`)

	danglingPunctRe = regexp.MustCompile(`\s+([.,;:!?%)])`)
	openPunctRe     = regexp.MustCompile(`([(])\s+`)
)

// RepairCharacterSpacing undoes OCR character-level spacing ("H e l l o" ->
// "Hello"). The transform is deterministic and order-sensitive: segments are
// isolated on multi-space runs first so true word boundaries survive, and
// apostrophe joining runs before the generic collapsing rules.
func RepairCharacterSpacing(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return trimmed
	}

	// Too damaged to salvage: repairing mostly non-alphabetic data only
	// compounds the corruption.
	if AlphabeticRatio(trimmed) < 0.5 {
		return trimmed
	}

	segments := multiSpaceRe.Split(trimmed, -1)
	repaired := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		repaired = append(repaired, repairSegment(seg))
	}

	out := strings.Join(repaired, " ")
	out = danglingPunctRe.ReplaceAllString(out, "$1")
	out = openPunctRe.ReplaceAllString(out, "$1")
	return out
}

func repairSegment(seg string) string {
	if !mostlySingleRuneTokens(seg) {
		// Normal words inside an otherwise spaced document; collapsing here
		// would glue real words together.
		return seg
	}

	seg = apostropheRe.ReplaceAllString(seg, "$1'$2")

	for i := 0; i < collapseIterationCap; i++ {
		next := spacedLettersRe.ReplaceAllString(seg, "$1$2")
		next = spacedDigitsRe.ReplaceAllString(next, "$1$2")
		next = spacedLetterDigitRe.ReplaceAllString(next, "$1$2$3$4")
		if next == seg {
			break
		}
		seg = next
	}
	return seg
}

// mostlySingleRuneTokens reports whether at least half of a segment's
// whitespace-separated tokens are single characters, the shape of
// character-level spaced output.
func mostlySingleRuneTokens(seg string) bool {
	tokens := strings.Fields(seg)
	if len(tokens) < 2 {
		return len(tokens) == 1 && len([]rune(tokens[0])) == 1
	}
	single := 0
	for _, tok := range tokens {
		if len([]rune(tok)) == 1 {
			single++
		}
	}
	return single*2 >= len(tokens)
}
