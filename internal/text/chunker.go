package text

import (
	"strings"
)

// noiseFloor is the absolute minimum chunk length; anything shorter is
// discarded as noise regardless of policy.
const noiseFloor = 50

// charsPerToken is the approximation used by the token strategy. It does not
// tokenize exactly; one token is roughly four characters for Italian and
// English prose.
const charsPerToken = 4

// Segment is a bounded span of a document's text, the unit of retrieval.
type Segment struct {
	Text           string `json:"chunk"`
	SourceFileName string `json:"fileName"`
	Index          int    `json:"index"`
}

// Chunk splits text into segments per the policy's strategy. Segments preserve
// source order and respect the policy's size bounds except for a possible
// final remainder.
func Chunk(text, fileName string, policy Policy) []Segment {
	var parts []string
	switch policy.Strategy {
	case StrategyTokenApprox:
		parts = chunkBoundary(text, rescaleForTokens(policy))
	case StrategySemantic:
		parts = chunkSemantic(text, policy)
	default:
		parts = chunkBoundary(text, policy)
	}

	segments := make([]Segment, 0, len(parts))
	for _, p := range parts {
		segments = append(segments, Segment{
			Text:           p,
			SourceFileName: fileName,
			Index:          len(segments),
		})
	}
	return segments
}

// chunkBoundary advances a window of ChunkSize characters and prefers cutting
// on the first separator in the preference list whose last occurrence lies
// past 70% of the window, so chunks end on natural breaks when possible.
func chunkBoundary(text string, policy Policy) []string {
	var chunks []string
	start := 0

	for start < len(text) {
		end := start + policy.ChunkSize
		if end > len(text) {
			end = len(text)
		}
		chunk := text[start:end]
		last := end >= len(text)

		if !last {
			cut := end
			for _, sep := range policy.PreferredSeparators {
				idx := strings.LastIndex(chunk, sep)
				if idx > int(float64(len(chunk))*0.7) {
					cut = start + idx + len(sep)
					chunk = text[start:cut]
					break
				}
			}
			start = cut
		} else {
			start = end
		}

		chunk = strings.TrimSpace(chunk)
		if keepChunk(chunk, policy, last) {
			chunks = append(chunks, chunk)
		}

		// Step back so consecutive chunks share trailing context.
		if start < len(text) && policy.Overlap > 0 {
			start -= policy.Overlap
			if start < 0 {
				start = 0
			}
		}
	}

	return chunks
}

// chunkSemantic packs whole sentences greedily up to ChunkSize, then applies
// overlap by prefixing each chunk with the final sentence of its predecessor
// when that sentence is shorter than the overlap budget.
func chunkSemantic(text string, policy Policy) []string {
	sentences := SplitSentences(text)
	var chunks []string
	var current strings.Builder

	flush := func(last bool) {
		c := strings.TrimSpace(current.String())
		if keepChunk(c, policy, last) {
			chunks = append(chunks, c)
		}
		current.Reset()
	}

	for _, s := range sentences {
		add := len(s)
		if current.Len() > 0 {
			add++
		}
		if current.Len()+add > policy.ChunkSize && current.Len() > 0 {
			flush(false)
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		flush(true)
	}

	if policy.Overlap > 0 {
		for i := 1; i < len(chunks); i++ {
			prev := SplitSentences(chunks[i-1])
			if len(prev) == 0 {
				continue
			}
			tail := prev[len(prev)-1]
			if len(tail) < policy.Overlap {
				chunks[i] = tail + " " + chunks[i]
			}
		}
	}

	return chunks
}

func rescaleForTokens(policy Policy) Policy {
	policy.ChunkSize *= charsPerToken
	policy.Overlap *= charsPerToken
	policy.MinChunkSize *= charsPerToken
	policy.MaxChunkSize *= charsPerToken
	return policy
}

// keepChunk applies the noise floor to every chunk and the policy minimum to
// all but the final remainder.
func keepChunk(chunk string, policy Policy, last bool) bool {
	if len(chunk) <= noiseFloor {
		return false
	}
	if !last && len(chunk) < policy.MinChunkSize {
		return false
	}
	return true
}

// SplitSentences splits text on sentence-terminating punctuation followed by
// whitespace. The terminator stays attached to its sentence.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !isSpaceRune(runes[i+1]) {
			continue
		}
		s := strings.TrimSpace(string(runes[start : i+1]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if start < len(runes) {
		s := strings.TrimSpace(string(runes[start:]))
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
