package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// errNoPage marks a page slot with no page object behind it.
var errNoPage = errors.New("no page object")

// native reads the text layers in-process. Pages are joined with a blank line.
func (e *Extractor) native(content []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, pages, err = "", 0, fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	pages = r.NumPage()
	text, err = e.joinPages(pages, func(i int) (string, error) {
		page := r.Page(i)
		if page.V.IsNull() {
			return "", errNoPage
		}
		return page.GetPlainText(nil)
	})
	return text, pages, err
}

// joinPages reads pages 1..n in order. A page that fails is skipped, but when
// every page failed the document is reported unreadable rather than empty.
func (e *Extractor) joinPages(n int, read func(i int) (string, error)) (string, error) {
	var (
		b      strings.Builder
		failed int
		tried  int
		last   error
	)
	for i := 1; i <= n; i++ {
		pageText, err := read(i)
		if errors.Is(err, errNoPage) {
			continue
		}
		tried++
		if err != nil {
			failed++
			last = err
			e.logger.Warn("extract.native.page_failed", "page", i, "error", err)
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(pageText)
	}
	if tried > 0 && failed == tried {
		return "", fmt.Errorf("all %d pages failed: %w", failed, last)
	}
	return b.String(), nil
}
