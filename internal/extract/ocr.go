package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"docforge/internal/text"
)

// consecutiveFailureWarning downgrades the job to a low-confidence result
// instead of failing it.
const consecutiveFailureWarning = 3

var errCancelled = errors.New("job cancelled")

// Profile is one tesseract recognition configuration.
type Profile struct {
	Name           string
	Languages      string
	PSM            int
	DictCorrection bool
}

// PrimaryProfile targets the multi-language documents this system usually
// sees. FallbackProfile is deliberately more conservative: fewer languages,
// automatic page segmentation, no dictionary correction, for pages where the
// primary profile produces spaced or corrupted output.
var (
	PrimaryProfile  = Profile{Name: "primary", Languages: "ita+eng+fra+deu+spa", PSM: 6, DictCorrection: true}
	FallbackProfile = Profile{Name: "fallback", Languages: "ita+eng", PSM: 3, DictCorrection: false}
)

// CancelChecker is consulted at bounded intervals during extraction.
type CancelChecker interface {
	IsCancelled(jobID string) bool
}

// Runner executes an external command and returns its stdout. Extracted as an
// interface so tests can run without poppler and tesseract installed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// OCRExtractor rasterizes PDF pages with pdftoppm and recognizes them with
// tesseract.
type OCRExtractor struct {
	DPI     int
	Workers int
	// Stride bounds how often the registry is polled during the page loop; 1
	// checks before every page.
	Stride  int
	checker CancelChecker
	runner  Runner
}

func NewOCRExtractor(dpi, workers, stride int, checker CancelChecker) *OCRExtractor {
	if workers < 1 {
		workers = 1
	}
	if stride < 1 {
		stride = 1
	}
	return &OCRExtractor{DPI: dpi, Workers: workers, Stride: stride, checker: checker, runner: execRunner{}}
}

// SetRunner replaces the command runner; used by tests.
func (e *OCRExtractor) SetRunner(r Runner) { e.runner = r }

func (e *OCRExtractor) cancelled(jobID string) bool {
	return jobID != "" && e.checker != nil && e.checker.IsCancelled(jobID)
}

// Extract runs the full OCR path. Rasterized page images live in a temporary
// directory that is removed on every exit path, cancelled or not.
func (e *OCRExtractor) Extract(ctx context.Context, doc Document, jobID string, onProgress ProgressFunc) Outcome {
	report := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	report(Progress{Status: "Preparing PDF for OCR..."})
	if e.cancelled(jobID) {
		return Failure(KindCancelled, "cancelled before rasterization")
	}

	tempDir, err := os.MkdirTemp("", "pdf-ocr-")
	if err != nil {
		return Failure(KindOcrFailed, fmt.Sprintf("temp dir: %v", err))
	}
	defer func() {
		if rmErr := os.RemoveAll(tempDir); rmErr != nil {
			slog.Warn("failed to clean up OCR artifacts", "error", rmErr, "dir", tempDir)
		}
	}()

	pdfPath := filepath.Join(tempDir, "input.pdf")
	if err := os.WriteFile(pdfPath, doc.Raw, 0o600); err != nil {
		return Failure(KindOcrFailed, fmt.Sprintf("write temp pdf: %v", err))
	}

	report(Progress{Status: "Converting PDF to images..."})
	images, err := e.rasterize(ctx, pdfPath, tempDir)
	if err != nil {
		return Failure(KindOcrFailed, fmt.Sprintf("rasterization: %v", err))
	}
	if len(images) == 0 {
		return Failure(KindNoReadablePages, "rasterization produced no pages")
	}

	total := len(images)
	report(Progress{TotalPages: total, Status: fmt.Sprintf("Starting OCR on %d pages...", total)})

	pages, err := e.recognizeAll(ctx, images, jobID, total, report)
	if err != nil {
		if errors.Is(err, errCancelled) {
			return Failure(KindCancelled, "cancelled during OCR")
		}
		return Failure(KindOcrFailed, err.Error())
	}

	failed := 0
	consecutive := 0
	maxConsecutive := 0
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if p.failed {
			failed++
			consecutive++
			if consecutive > maxConsecutive {
				maxConsecutive = consecutive
			}
			b.WriteString(fmt.Sprintf("[page %d unreadable]", i+1))
			continue
		}
		consecutive = 0
		b.WriteString(p.text)
	}

	// A document where most pages are unreadable is not worth returning; a
	// shorter run of failures completes with a warning instead.
	if failed*2 > total {
		return Failure(KindOcrFailed, fmt.Sprintf("%d of %d pages failed recognition", failed, total))
	}

	result := &Result{
		Text:      strings.TrimSpace(b.String()),
		Strategy:  "ocr",
		PageCount: total,
	}
	if maxConsecutive >= consecutiveFailureWarning {
		result.Warning = fmt.Sprintf("low confidence: %d consecutive pages failed recognition", maxConsecutive)
	}

	report(Progress{CurrentPage: total, TotalPages: total, Status: "OCR completed successfully!"})
	return Success(result)
}

type pageResult struct {
	text   string
	failed bool
}

// recognizeAll runs recognition with a bounded worker pool while preserving
// page order in the returned slice. Progress counts completed pages, so the
// reported page number is monotonic even with workers finishing out of order.
func (e *OCRExtractor) recognizeAll(ctx context.Context, images []string, jobID string, total int, report ProgressFunc) ([]pageResult, error) {
	results := make([]pageResult, total)
	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Workers)

	for i, img := range images {
		if i%e.Stride == 0 && e.cancelled(jobID) {
			_ = g.Wait()
			return nil, errCancelled
		}

		g.Go(func() error {
			if e.cancelled(jobID) {
				return errCancelled
			}

			pageText, err := e.recognizePage(gctx, img)
			if err != nil {
				slog.Warn("page recognition failed", "page", i+1, "error", err)
				results[i] = pageResult{failed: true}
			} else {
				results[i] = pageResult{text: pageText}
			}

			// One more poll after the page completes so a cancel arriving
			// mid-page is observed within a single page's OCR duration.
			if e.cancelled(jobID) {
				return errCancelled
			}

			mu.Lock()
			completed++
			n := completed
			mu.Unlock()
			report(Progress{CurrentPage: n, TotalPages: total, Status: fmt.Sprintf("Processing page %d of %d...", n, total)})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// recognizePage runs the primary profile, re-runs with the fallback profile
// when the output looks corrupted or character-spaced, and applies the repair
// transform when spacing persists after both profiles.
func (e *OCRExtractor) recognizePage(ctx context.Context, image string) (string, error) {
	primary, err := e.recognize(ctx, image, PrimaryProfile)
	if err != nil {
		return "", err
	}
	primary = strings.TrimSpace(primary)

	if !text.LooksCorrupted(primary, corruptionMinLength) && !text.HasCharacterLevelSpacing(primary) {
		return primary, nil
	}

	alt, altErr := e.recognize(ctx, image, FallbackProfile)
	if altErr != nil {
		slog.Warn("fallback profile failed, keeping primary output", "error", altErr)
		if text.HasCharacterLevelSpacing(primary) {
			return text.RepairCharacterSpacing(primary), nil
		}
		return primary, nil
	}
	alt = strings.TrimSpace(alt)

	if !text.LooksCorrupted(alt, corruptionMinLength) && !text.HasCharacterLevelSpacing(alt) {
		return alt, nil
	}

	// Both profiles degraded; repair the better candidate rather than
	// discarding the page.
	best := primary
	if text.AlphabeticRatio(alt) > text.AlphabeticRatio(primary) {
		best = alt
	}
	if text.HasCharacterLevelSpacing(best) {
		return text.RepairCharacterSpacing(best), nil
	}
	return best, nil
}

func (e *OCRExtractor) recognize(ctx context.Context, image string, p Profile) (string, error) {
	dict := "0"
	if p.DictCorrection {
		dict = "1"
	}
	out, err := e.runner.Run(ctx, "tesseract", image, "stdout",
		"-l", p.Languages,
		"--oem", "1",
		"--psm", strconv.Itoa(p.PSM),
		"--dpi", strconv.Itoa(e.DPI),
		"-c", "tessedit_enable_dict_correction="+dict,
		"-c", "preserve_interword_spaces=1",
	)
	if err != nil {
		return "", fmt.Errorf("tesseract (%s): %w", p.Name, err)
	}
	return string(out), nil
}

// rasterize renders each page to a JPEG. 300 DPI balances LSTM recognition
// accuracy against throughput.
func (e *OCRExtractor) rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error) {
	_, err := e.runner.Run(ctx, "pdftoppm",
		"-jpeg",
		"-r", strconv.Itoa(e.DPI),
		"-jpegopt", "quality=95",
		pdfPath,
		filepath.Join(outDir, "page"),
	)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, err
	}
	var images []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "page") && strings.HasSuffix(name, ".jpg") {
			images = append(images, filepath.Join(outDir, name))
		}
	}
	sort.Strings(images)
	return images, nil
}
