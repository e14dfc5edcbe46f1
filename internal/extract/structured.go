package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"docforge/internal/text"
)

// corruptionMinLength is the minimum output length before the alphabetic-ratio
// check is allowed to reject a strategy's output.
const corruptionMinLength = 100

// StructuredExtractor reads the embedded text objects of a PDF. It is the
// cheapest strategy and runs first; scanned documents show up here as pages
// with zero text elements.
type StructuredExtractor struct{}

func NewStructuredExtractor() *StructuredExtractor {
	return &StructuredExtractor{}
}

func (e *StructuredExtractor) Extract(ctx context.Context, doc Document) (out Outcome) {
	// The parser panics on some malformed files; treat those like any other
	// unreadable input and route to OCR.
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("pdf parser panic", "file", doc.FileName, "cause", fmt.Sprint(r))
			out = NeedsFallback(KindCorrupted, "pdf parser failure")
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc.Raw), int64(len(doc.Raw)))
	if err != nil {
		return NeedsFallback(KindCorrupted, err.Error())
	}

	pages := reader.NumPage()
	if pages == 0 {
		return NeedsFallback(KindNoReadablePages, "pdf has no readable pages")
	}

	var b strings.Builder
	totalElements := 0
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		for _, t := range content.Text {
			b.WriteString(t.S)
			b.WriteString(" ")
			totalElements++
		}
		if len(content.Text) > 0 {
			b.WriteString("\n")
		}
	}

	slog.Debug("structured extraction", "file", doc.FileName, "pages", pages, "text_elements", totalElements)

	if totalElements == 0 {
		return NeedsFallback(KindNoReadablePages, "no text elements found, document is likely scanned")
	}

	extracted := strings.TrimSpace(b.String())
	if text.LooksCorrupted(extracted, corruptionMinLength) {
		return NeedsFallback(KindCorrupted, "embedded text failed the quality check")
	}

	return Success(&Result{
		Text:      extracted,
		Strategy:  "structured",
		PageCount: pages,
	})
}
