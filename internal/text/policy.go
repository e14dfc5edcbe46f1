package text

import "strings"

type ContentType string

const (
	ContentTypeLegal          ContentType = "legal"
	ContentTypeTechnical      ContentType = "technical"
	ContentTypeConversational ContentType = "conversational"
	ContentTypeGeneral        ContentType = "general"
)

type Strategy string

const (
	StrategyBoundary    Strategy = "boundary"
	StrategyTokenApprox Strategy = "tokenApprox"
	StrategySemantic    Strategy = "semantic"
)

type RetrievalCountRange struct {
	Min     int
	Default int
	Max     int
}

// Policy is the chunking configuration selected per document. Value type; two
// documents classified the same way always get the same policy.
type Policy struct {
	ChunkSize           int
	Overlap             int
	MinChunkSize        int
	MaxChunkSize        int
	Strategy            Strategy
	PreferredSeparators []string
	RetrievalCount      RetrievalCountRange
}

var policies = map[ContentType]Policy{
	// Legal and medical documents need larger context windows.
	ContentTypeLegal: {
		ChunkSize:           1500,
		Overlap:             300,
		MinChunkSize:        800,
		MaxChunkSize:        2000,
		Strategy:            StrategyBoundary,
		PreferredSeparators: []string{"\n\n", ". ", "? ", "! ", "; ", "\n"},
		RetrievalCount:      RetrievalCountRange{Min: 3, Default: 5, Max: 6},
	},
	ContentTypeTechnical: {
		ChunkSize:           1200,
		Overlap:             240,
		MinChunkSize:        600,
		MaxChunkSize:        1800,
		Strategy:            StrategyBoundary,
		PreferredSeparators: []string{"\n\n", "\n", ". ", "? ", "! ", " "},
		RetrievalCount:      RetrievalCountRange{Min: 3, Default: 4, Max: 5},
	},
	ContentTypeConversational: {
		ChunkSize:           800,
		Overlap:             160,
		MinChunkSize:        300,
		MaxChunkSize:        1200,
		Strategy:            StrategyBoundary,
		PreferredSeparators: []string{"\n\n", "\n", ". ", "? ", "! ", " "},
		RetrievalCount:      RetrievalCountRange{Min: 2, Default: 3, Max: 4},
	},
	ContentTypeGeneral: {
		ChunkSize:           1000,
		Overlap:             200,
		MinChunkSize:        500,
		MaxChunkSize:        1500,
		Strategy:            StrategyBoundary,
		PreferredSeparators: []string{"\n\n", "\n", ". ", "? ", "! ", " "},
		RetrievalCount:      RetrievalCountRange{Min: 3, Default: 4, Max: 5},
	},
}

// Classify buckets a document by filename and content cues. Checks run in a
// fixed order so the same input always yields the same tag.
func Classify(content, fileName string) ContentType {
	lowerName := strings.ToLower(fileName)

	if strings.Contains(lowerName, "contratto") ||
		strings.Contains(lowerName, "polizza") ||
		strings.Contains(lowerName, "legal") ||
		(strings.Contains(content, "articolo") && strings.Contains(content, "comma")) {
		return ContentTypeLegal
	}

	if strings.Contains(lowerName, "manual") ||
		strings.Contains(lowerName, "doc") ||
		strings.Contains(lowerName, "guide") ||
		strings.Contains(content, "API") ||
		strings.Contains(content, "configurazione") {
		return ContentTypeTechnical
	}

	if strings.Contains(content, "Domanda:") ||
		strings.Contains(content, "FAQ") ||
		strings.Contains(content, "Q:") ||
		strings.Contains(content, "A:") {
		return ContentTypeConversational
	}

	return ContentTypeGeneral
}

// PolicyFor returns the chunking policy for a content-type tag. Unknown tags
// fall back to the general policy.
func PolicyFor(tag ContentType) Policy {
	if p, ok := policies[tag]; ok {
		return p
	}
	return policies[ContentTypeGeneral]
}

// PolicySelect classifies content and returns the matching policy in one step.
func PolicySelect(content, fileName string) Policy {
	return PolicyFor(Classify(content, fileName))
}
