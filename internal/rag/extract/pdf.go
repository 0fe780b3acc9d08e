package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/dslipak/pdf"
)

var errPageTimeout = errors.New("page extraction timed out")

type pdfExtractor struct{}

func (pdfExtractor) Extract(data []byte) (pages []Page, err error) {
	// the parser panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &errorModel.CorruptInputError{Format: "pdf", Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &errorModel.CorruptInputError{Format: "pdf", Err: err}
	}

	numPages := reader.NumPage()
	logger.Debug("extracting pdf", "pages", numPages)
	failed := 0
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := protectExtract(page)
		if err != nil {
			failed++
			logger.Warn("skipping unreadable pdf page", "page", i, "error", err)
			continue
		}
		pages = append(pages, Page{Number: i, Text: strings.TrimSpace(content)})
	}

	if numPages > 0 && failed == numPages {
		return nil, &errorModel.CorruptInputError{Format: "pdf", Err: errors.New("no page could be read")}
	}
	return pages, nil
}

// protectExtract bounds the time spent on one page; a few government PDFs
// send the text decoder into very long loops.
func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{err: fmt.Errorf("page panic: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	timer := time.NewTimer(config.PDFPageTimeout)
	defer timer.Stop()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-timer.C:
		return "", errPageTimeout
	}
}
