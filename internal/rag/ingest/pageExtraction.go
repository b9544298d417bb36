package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/AskStan/pkg/logger_i"
	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

const pageExtractTimeout = 10 * time.Second

type rawPage struct {
	Number  int    `json:"number"`
	Content string `json:"content"`
}

func extractPDF(path string, log *logger_i.Logger) ([]rawPage, error) {
	log.Debug("extractPDF", "path", path)
	f, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []rawPage
	numPages := f.NumPage()
	log.Debug("extractPDF", "pages", numPages)
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			log.Debug("extractPDF: empty page object", "page", i)
			continue
		}

		content, err := protectExtract(page)
		if err != nil {
			// one broken page should not lose the rest of the document
			log.Warn("Error parsing page content", "page", i, "error", err)
			continue
		}

		pages = append(pages, rawPage{
			Number:  i,
			Content: content,
		})
	}
	return pages, nil
}

// extractDocxTxtRtf reads .odt, .docx, .rtf or plaintext files. Form feeds
// mark page breaks; a file without any is a single page.
func extractDocxTxtRtf(path string) ([]rawPage, error) {
	text, err := cat.File(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract document: %w", err)
	}

	var pages []rawPage
	for i, content := range strings.Split(text, "\f") {
		if strings.TrimSpace(content) == "" {
			continue
		}
		pages = append(pages, rawPage{Number: i + 1, Content: content})
	}
	return pages, nil
}

func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{"", fmt.Errorf("pdf parser panic: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(pageExtractTimeout):
		return "", errors.New("page extraction timed out")
	}
}
