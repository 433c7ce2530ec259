package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

func (e *Extractor) pdfToText(ctx context.Context, content []byte) (text string, pages int, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp(e.cfg.TempDir, "oa-pdf-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("extract.tempdir.remove_failed", "path", path, "error", err)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, content, 0o600); err != nil {
		return "", 0, nil, err
	}

	// pdftotext -layout -enc UTF-8 -eol unix <in.pdf> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", in, "-")
	if err != nil {
		if s := strings.TrimSpace(string(errb)); s != "" {
			warnings = append(warnings, s)
		}
		return "", 0, warnings, err
	}
	text = string(out)
	// pdftotext separates pages with a form feed and ends the last page with one too.
	pages = strings.Count(text, "\f")
	if pages == 0 && strings.TrimSpace(text) != "" {
		pages = 1
	}
	return text, pages, nil, nil
}
