package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStructured struct {
	outcome Outcome
	calls   int
}

func (s *stubStructured) Extract(_ context.Context, _ Document) Outcome {
	s.calls++
	return s.outcome
}

type stubOCR struct {
	outcome Outcome
	calls   int
}

func (s *stubOCR) Extract(_ context.Context, _ Document, _ string, onProgress ProgressFunc) Outcome {
	s.calls++
	if onProgress != nil {
		onProgress(Progress{CurrentPage: 1, TotalPages: 1, Status: "Processing page 1 of 1..."})
	}
	return s.outcome
}

func pdfDoc() Document {
	return Document{Raw: []byte("%PDF"), MimeKind: "application/pdf", FileName: "doc.pdf"}
}

func TestCoordinatorExtract(t *testing.T) {
	t.Run("Structured Success Skips OCR", func(t *testing.T) {
		structured := &stubStructured{outcome: Success(&Result{Text: "testo incorporato", Strategy: "structured", PageCount: 3})}
		ocr := &stubOCR{}
		c := NewCoordinator(structured, ocr, newFakeChecker())

		res, err := c.Extract(context.Background(), pdfDoc(), "", nil)
		require.NoError(t, err)
		assert.Equal(t, "structured", res.Strategy)
		assert.Equal(t, 3, res.PageCount)
		assert.Equal(t, 0, ocr.calls)
	})

	t.Run("No Readable Pages Routes To OCR", func(t *testing.T) {
		structured := &stubStructured{outcome: NeedsFallback(KindNoReadablePages, "scanned")}
		ocr := &stubOCR{outcome: Success(&Result{Text: "testo riconosciuto", Strategy: "ocr", PageCount: 2})}
		c := NewCoordinator(structured, ocr, newFakeChecker())

		res, err := c.Extract(context.Background(), pdfDoc(), "", nil)
		require.NoError(t, err)
		assert.Equal(t, "ocr", res.Strategy)
		assert.Equal(t, 1, structured.calls)
		assert.Equal(t, 1, ocr.calls)
	})

	t.Run("Corrupted Output Routes To OCR", func(t *testing.T) {
		structured := &stubStructured{outcome: NeedsFallback(KindCorrupted, "garbage text")}
		ocr := &stubOCR{outcome: Success(&Result{Text: "testo riconosciuto", Strategy: "ocr", PageCount: 1})}
		c := NewCoordinator(structured, ocr, newFakeChecker())

		res, err := c.Extract(context.Background(), pdfDoc(), "", nil)
		require.NoError(t, err)
		assert.Equal(t, "ocr", res.Strategy)
	})

	t.Run("OCR Failure Surfaces", func(t *testing.T) {
		structured := &stubStructured{outcome: NeedsFallback(KindNoReadablePages, "scanned")}
		ocr := &stubOCR{outcome: Failure(KindOcrFailed, "all pages failed")}
		c := NewCoordinator(structured, ocr, newFakeChecker())

		_, err := c.Extract(context.Background(), pdfDoc(), "", nil)
		require.Error(t, err)
		assert.Equal(t, KindOcrFailed, KindOf(err))
	})

	t.Run("Cancelled Before OCR Starts", func(t *testing.T) {
		checker := newFakeChecker()
		checker.cancel("job-9")
		structured := &stubStructured{outcome: NeedsFallback(KindNoReadablePages, "scanned")}
		ocr := &stubOCR{}
		c := NewCoordinator(structured, ocr, checker)

		_, err := c.Extract(context.Background(), pdfDoc(), "job-9", nil)
		require.Error(t, err)
		assert.Equal(t, KindCancelled, KindOf(err))
		assert.Equal(t, 0, ocr.calls)
	})

	t.Run("Progress Phase Transitions", func(t *testing.T) {
		structured := &stubStructured{outcome: NeedsFallback(KindNoReadablePages, "scanned")}
		ocr := &stubOCR{outcome: Success(&Result{Text: "ok testo della pagina uno", Strategy: "ocr", PageCount: 1})}
		c := NewCoordinator(structured, ocr, newFakeChecker())

		var events []Progress
		_, err := c.Extract(context.Background(), pdfDoc(), "", func(p Progress) { events = append(events, p) })
		require.NoError(t, err)
		require.NotEmpty(t, events)
		assert.Equal(t, "Trying text extraction...", events[0].Status)
	})

	t.Run("Plain Text Passthrough", func(t *testing.T) {
		c := NewCoordinator(&stubStructured{}, &stubOCR{}, newFakeChecker())
		doc := Document{Raw: []byte("  contenuto semplice  "), MimeKind: "text/plain", FileName: "note.txt"}

		res, err := c.Extract(context.Background(), doc, "", nil)
		require.NoError(t, err)
		assert.Equal(t, "contenuto semplice", res.Text)
		assert.Equal(t, "plain", res.Strategy)
	})

	t.Run("Empty Plain Text Fails", func(t *testing.T) {
		c := NewCoordinator(&stubStructured{}, &stubOCR{}, newFakeChecker())
		doc := Document{Raw: []byte("   "), MimeKind: "text/plain", FileName: "vuoto.txt"}

		_, err := c.Extract(context.Background(), doc, "", nil)
		require.Error(t, err)
		assert.Equal(t, KindNoReadablePages, KindOf(err))
	})
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("application/pdf"))
	assert.True(t, Supported("text/plain"))
	assert.True(t, Supported("text/plain; charset=utf-8"))
	assert.True(t, Supported("text/markdown"))
	assert.True(t, Supported("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	assert.False(t, Supported("image/png"))
	assert.False(t, Supported("application/zip"))
}

func TestStructuredExtractorRejectsGarbage(t *testing.T) {
	e := NewStructuredExtractor()

	t.Run("Not A PDF", func(t *testing.T) {
		out := e.Extract(context.Background(), Document{Raw: []byte("plainly not a pdf"), FileName: "x.pdf"})
		_, fallback := out.ShouldFallback()
		assert.True(t, fallback, "garbage input must route to OCR, not succeed")
	})

	t.Run("Empty Input", func(t *testing.T) {
		out := e.Extract(context.Background(), Document{Raw: nil, FileName: "x.pdf"})
		_, fallback := out.ShouldFallback()
		assert.True(t, fallback)
	})
}

func TestOutcome(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		o := Success(&Result{Text: "ok"})
		res, ok := o.Succeeded()
		require.True(t, ok)
		assert.Equal(t, "ok", res.Text)
		_, fb := o.ShouldFallback()
		assert.False(t, fb)
		_, failed := o.Failed()
		assert.False(t, failed)
	})

	t.Run("Fallback Carries Reason", func(t *testing.T) {
		o := NeedsFallback(KindCorrupted, "low ratio")
		reason, ok := o.ShouldFallback()
		require.True(t, ok)
		assert.Equal(t, KindCorrupted, reason.Kind)
	})

	t.Run("Failure Is An Error", func(t *testing.T) {
		o := Failure(KindOcrFailed, "boom")
		e, ok := o.Failed()
		require.True(t, ok)
		assert.Contains(t, e.Error(), "OcrFailed")
	})
}
