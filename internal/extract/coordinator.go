package extract

import (
	"context"
	"log/slog"
	"strings"
)

// pdfExtractor and simpleExtractor are the two shapes of strategy the
// coordinator drives: the OCR path needs job identity and progress reporting,
// the cheap paths do not.
type pdfExtractor interface {
	Extract(ctx context.Context, doc Document, jobID string, onProgress ProgressFunc) Outcome
}

type simpleExtractor interface {
	Extract(ctx context.Context, doc Document) Outcome
}

// Coordinator tries extraction strategies in a fixed order, falling through
// from the structured parser to OCR when the cheaper strategy produced no or
// corrupted output.
type Coordinator struct {
	structured simpleExtractor
	ocr        pdfExtractor
	plain      simpleExtractor
	rich       simpleExtractor
	checker    CancelChecker
}

func NewCoordinator(structured simpleExtractor, ocr pdfExtractor, checker CancelChecker) *Coordinator {
	return &Coordinator{
		structured: structured,
		ocr:        ocr,
		plain:      PlainTextExtractor{},
		rich:       RichDocumentExtractor{},
		checker:    checker,
	}
}

// Supported reports whether the mime kind has an extraction strategy.
func Supported(mimeKind string) bool {
	return mimeKind == "application/pdf" ||
		strings.HasPrefix(mimeKind, "text/plain") ||
		mimeKind == "text/markdown" ||
		IsRichDocument(mimeKind)
}

// Extract runs the strategy chain for the document. jobID may be empty for
// short-running extractions; onProgress may be nil. On cancellation the caller
// must discard any partial output.
func (c *Coordinator) Extract(ctx context.Context, doc Document, jobID string, onProgress ProgressFunc) (*Result, error) {
	switch {
	case doc.MimeKind == "application/pdf":
		return c.extractPDF(ctx, doc, jobID, onProgress)
	case IsRichDocument(doc.MimeKind):
		return c.finish(c.rich.Extract(ctx, doc))
	default:
		return c.finish(c.plain.Extract(ctx, doc))
	}
}

func (c *Coordinator) extractPDF(ctx context.Context, doc Document, jobID string, onProgress ProgressFunc) (*Result, error) {
	report := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	report(Progress{Status: "Trying text extraction..."})

	outcome := c.structured.Extract(ctx, doc)
	if res, ok := outcome.Succeeded(); ok {
		report(Progress{CurrentPage: res.PageCount, TotalPages: res.PageCount, Status: "Text extraction completed!"})
		return res, nil
	}
	if e, ok := outcome.Failed(); ok {
		return nil, e
	}

	reason, _ := outcome.ShouldFallback()
	slog.InfoContext(ctx, "structured extraction fell through to OCR",
		"file", doc.FileName, "kind", reason.Kind, "reason", reason.Message)

	if jobID != "" && c.checker != nil && c.checker.IsCancelled(jobID) {
		return nil, &Error{Kind: KindCancelled, Message: "cancelled before OCR"}
	}

	return c.finish(c.ocr.Extract(ctx, doc, jobID, onProgress))
}

func (c *Coordinator) finish(outcome Outcome) (*Result, error) {
	if res, ok := outcome.Succeeded(); ok {
		return res, nil
	}
	if e, ok := outcome.Failed(); ok {
		return nil, e
	}
	// A strategy at the end of its chain has nothing to fall back to.
	reason, _ := outcome.ShouldFallback()
	return nil, reason
}
