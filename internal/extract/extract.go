// Package extract turns uploaded documents into plain text through a chain of
// strategies: structured PDF parsing, rasterize-then-OCR, rich-document
// conversion, and plain-text passthrough.
package extract

import "fmt"

// Document is one immutable ingestion input, owned by the caller.
type Document struct {
	Raw      []byte
	MimeKind string
	FileName string
}

// Result is the extracted text plus provenance.
type Result struct {
	Text      string
	Strategy  string
	PageCount int
	// Warning carries the low-confidence note when several consecutive pages
	// failed OCR; empty otherwise.
	Warning string
}

// Progress is emitted at each phase transition and at least once per
// processed page.
type Progress struct {
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
	Status      string `json:"status"`
}

// ProgressFunc receives progress updates. May be nil.
type ProgressFunc func(Progress)

type Kind string

const (
	KindNoReadablePages Kind = "NoReadablePages"
	KindCorrupted       Kind = "Corrupted"
	KindOcrFailed       Kind = "OcrFailed"
	KindCancelled       Kind = "Cancelled"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction failed (%s): %s", e.Kind, e.Message)
}

// Is matches errors of the same kind regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the extraction error kind, or "" for other errors.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}

// Outcome is the tagged result of one extraction strategy: success, a reason
// to fall through to the next strategy, or a terminal failure. Strategies
// never signal fallback through string sentinels.
type Outcome struct {
	result   *Result
	fallback *Error
	err      *Error
}

func Success(r *Result) Outcome {
	return Outcome{result: r}
}

func NeedsFallback(kind Kind, message string) Outcome {
	return Outcome{fallback: &Error{Kind: kind, Message: message}}
}

func Failure(kind Kind, message string) Outcome {
	return Outcome{err: &Error{Kind: kind, Message: message}}
}

func (o Outcome) Succeeded() (*Result, bool) {
	return o.result, o.result != nil
}

func (o Outcome) ShouldFallback() (*Error, bool) {
	return o.fallback, o.fallback != nil
}

func (o Outcome) Failed() (*Error, bool) {
	return o.err, o.err != nil
}
