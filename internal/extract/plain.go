package extract

import (
	"bytes"
	"context"
	"strings"

	"code.sajari.com/docconv"
)

// PlainTextExtractor passes text uploads through unchanged.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(_ context.Context, doc Document) Outcome {
	extracted := strings.TrimSpace(string(doc.Raw))
	if extracted == "" {
		return Failure(KindNoReadablePages, "file is empty")
	}
	return Success(&Result{
		Text:      extracted,
		Strategy:  "plain",
		PageCount: 1,
	})
}

// richMimeKinds maps the office and markup formats handled by docconv.
var richMimeKinds = map[string]bool{
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/msword":             true,
	"application/rtf":                true,
	"application/vnd.oasis.opendocument.text": true,
	"text/html":                      true,
}

// IsRichDocument reports whether the mime kind is converted via docconv.
func IsRichDocument(mimeKind string) bool {
	return richMimeKinds[mimeKind]
}

// RichDocumentExtractor converts docx, rtf, odt and html uploads to plain
// text.
type RichDocumentExtractor struct{}

func (RichDocumentExtractor) Extract(_ context.Context, doc Document) Outcome {
	res, err := docconv.Convert(bytes.NewReader(doc.Raw), doc.MimeKind, true)
	if err != nil {
		return Failure(KindCorrupted, err.Error())
	}
	extracted := strings.TrimSpace(res.Body)
	if extracted == "" {
		return Failure(KindNoReadablePages, "conversion produced no text")
	}
	return Success(&Result{
		Text:      extracted,
		Strategy:  "docconv",
		PageCount: 1,
	})
}
