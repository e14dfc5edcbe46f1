package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner simulates pdftoppm and tesseract. pdftoppm creates pageCount
// empty jpegs; tesseract returns the configured text for the page, keyed by
// page number and profile language list.
type fakeRunner struct {
	mu             sync.Mutex
	pageCount      int
	primaryOutput  map[int]string
	fallbackOutput map[int]string
	failPages      map[int]bool
	tesseractCalls int
	onTesseract    func(calls int)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	switch name {
	case "pdftoppm":
		prefix := args[len(args)-1]
		for i := 1; i <= f.pageCount; i++ {
			path := fmt.Sprintf("%s-%02d.jpg", prefix, i)
			if err := os.WriteFile(path, []byte("jpg"), 0o600); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case "tesseract":
		f.mu.Lock()
		f.tesseractCalls++
		calls := f.tesseractCalls
		f.mu.Unlock()
		if f.onTesseract != nil {
			f.onTesseract(calls)
		}

		page := pageFromImage(args[0])
		langs := valueAfter(args, "-l")

		if f.failPages[page] {
			return nil, fmt.Errorf("recognition failed")
		}
		if langs == FallbackProfile.Languages {
			if out, ok := f.fallbackOutput[page]; ok {
				return []byte(out), nil
			}
		}
		return []byte(f.primaryOutput[page]), nil
	}
	return nil, fmt.Errorf("unexpected command %s", name)
}

func pageFromImage(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".jpg")
	var page int
	fmt.Sscanf(base, "page-%d", &page)
	return page
}

func valueAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

type fakeChecker struct {
	mu        sync.Mutex
	cancelled map[string]bool
}

func newFakeChecker() *fakeChecker {
	return &fakeChecker{cancelled: make(map[string]bool)}
}

func (c *fakeChecker) IsCancelled(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled[id]
}

func (c *fakeChecker) cancel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled[id] = true
}

func cleanPage(n int) string {
	return fmt.Sprintf("Questa è la pagina numero %d del documento assicurativo in esame.", n)
}

func newTestExtractor(runner Runner, checker CancelChecker) *OCRExtractor {
	e := NewOCRExtractor(300, 1, 1, checker)
	e.SetRunner(runner)
	return e
}

func TestOCRExtract(t *testing.T) {
	doc := Document{Raw: []byte("%PDF"), MimeKind: "application/pdf", FileName: "scan.pdf"}

	t.Run("Pages Joined In Order With Blank Lines", func(t *testing.T) {
		runner := &fakeRunner{pageCount: 3, primaryOutput: map[int]string{
			1: cleanPage(1), 2: cleanPage(2), 3: cleanPage(3),
		}}
		e := newTestExtractor(runner, newFakeChecker())

		out := e.Extract(context.Background(), doc, "", nil)
		res, ok := out.Succeeded()
		require.True(t, ok)
		assert.Equal(t, cleanPage(1)+"\n\n"+cleanPage(2)+"\n\n"+cleanPage(3), res.Text)
		assert.Equal(t, 3, res.PageCount)
		assert.Equal(t, "ocr", res.Strategy)
		assert.Empty(t, res.Warning)
	})

	t.Run("Progress Reported Per Page", func(t *testing.T) {
		runner := &fakeRunner{pageCount: 2, primaryOutput: map[int]string{1: cleanPage(1), 2: cleanPage(2)}}
		e := newTestExtractor(runner, newFakeChecker())

		var events []Progress
		out := e.Extract(context.Background(), doc, "", func(p Progress) { events = append(events, p) })
		_, ok := out.Succeeded()
		require.True(t, ok)

		// Phase transitions plus one event per page, monotonically increasing.
		require.GreaterOrEqual(t, len(events), 4)
		last := 0
		perPage := 0
		for _, ev := range events {
			assert.GreaterOrEqual(t, ev.CurrentPage, last)
			last = ev.CurrentPage
			if strings.HasPrefix(ev.Status, "Processing page") {
				perPage++
			}
		}
		assert.Equal(t, 2, perPage)
	})

	t.Run("Fallback Profile Preferred When Primary Spaced", func(t *testing.T) {
		runner := &fakeRunner{
			pageCount:      1,
			primaryOutput:  map[int]string{1: "Q u e s t a   è   l a   p a g i n a   u n o   d e l   d o c u m e n t o ."},
			fallbackOutput: map[int]string{1: cleanPage(1)},
		}
		e := newTestExtractor(runner, newFakeChecker())

		out := e.Extract(context.Background(), doc, "", nil)
		res, ok := out.Succeeded()
		require.True(t, ok)
		assert.Equal(t, cleanPage(1), res.Text)
		assert.Equal(t, 2, runner.tesseractCalls)
	})

	t.Run("Repair Applied When Spacing Persists", func(t *testing.T) {
		spaced := "H e l l o   w o r l d .   T h i s   i s   a   t e s t ."
		runner := &fakeRunner{
			pageCount:      1,
			primaryOutput:  map[int]string{1: spaced},
			fallbackOutput: map[int]string{1: spaced},
		}
		e := newTestExtractor(runner, newFakeChecker())

		out := e.Extract(context.Background(), doc, "", nil)
		res, ok := out.Succeeded()
		require.True(t, ok)
		assert.Equal(t, "Hello world. This is a test.", res.Text)
	})

	t.Run("Single Page Failure Becomes Placeholder", func(t *testing.T) {
		runner := &fakeRunner{
			pageCount:     3,
			primaryOutput: map[int]string{1: cleanPage(1), 3: cleanPage(3)},
			failPages:     map[int]bool{2: true},
		}
		e := newTestExtractor(runner, newFakeChecker())

		out := e.Extract(context.Background(), doc, "", nil)
		res, ok := out.Succeeded()
		require.True(t, ok)
		assert.Contains(t, res.Text, "[page 2 unreadable]")
		assert.Empty(t, res.Warning)
	})

	t.Run("Consecutive Failures Downgrade To Warning", func(t *testing.T) {
		runner := &fakeRunner{
			pageCount: 7,
			primaryOutput: map[int]string{
				1: cleanPage(1), 5: cleanPage(5), 6: cleanPage(6), 7: cleanPage(7),
			},
			failPages: map[int]bool{2: true, 3: true, 4: true},
		}
		e := newTestExtractor(runner, newFakeChecker())

		out := e.Extract(context.Background(), doc, "", nil)
		res, ok := out.Succeeded()
		require.True(t, ok)
		assert.NotEmpty(t, res.Warning)
	})

	t.Run("Majority Failure Hard Fails", func(t *testing.T) {
		runner := &fakeRunner{
			pageCount:     4,
			primaryOutput: map[int]string{4: cleanPage(4)},
			failPages:     map[int]bool{1: true, 2: true, 3: true},
		}
		e := newTestExtractor(runner, newFakeChecker())

		out := e.Extract(context.Background(), doc, "", nil)
		e2, failed := out.Failed()
		require.True(t, failed)
		assert.Equal(t, KindOcrFailed, e2.Kind)
	})

	t.Run("Cancelled Before Rasterization", func(t *testing.T) {
		checker := newFakeChecker()
		checker.cancel("job-1")
		runner := &fakeRunner{pageCount: 2, primaryOutput: map[int]string{1: cleanPage(1), 2: cleanPage(2)}}
		e := newTestExtractor(runner, checker)

		out := e.Extract(context.Background(), doc, "job-1", nil)
		e2, failed := out.Failed()
		require.True(t, failed)
		assert.Equal(t, KindCancelled, e2.Kind)
		assert.Equal(t, 0, runner.tesseractCalls)
	})

	t.Run("Cancelled After Second Page Stops Remaining Pages", func(t *testing.T) {
		checker := newFakeChecker()
		runner := &fakeRunner{pageCount: 10, primaryOutput: map[int]string{}}
		for i := 1; i <= 10; i++ {
			runner.primaryOutput[i] = cleanPage(i)
		}
		runner.onTesseract = func(calls int) {
			if calls == 2 {
				checker.cancel("job-2")
			}
		}
		e := newTestExtractor(runner, checker)

		out := e.Extract(context.Background(), doc, "job-2", nil)
		e2, failed := out.Failed()
		require.True(t, failed)
		assert.Equal(t, KindCancelled, e2.Kind)
		assert.LessOrEqual(t, runner.tesseractCalls, 2)
	})
}
