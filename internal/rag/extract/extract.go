package extract

import (
	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
)

// Page is the text of one page (PDF), sheet (Excel) or the whole body (Word).
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type Extractor interface {
	Extract(data []byte) ([]Page, error)
}

var logger = logger_i.NewLogger("extract")

// For picks the extractor once per document.
func For(format documentModel.Format) (Extractor, error) {
	switch format {
	case documentModel.PDF:
		return pdfExtractor{}, nil
	case documentModel.XLSX:
		return xlsxExtractor{}, nil
	case documentModel.DOCX:
		return docxExtractor{}, nil
	}
	return nil, &errorModel.UnsupportedFormatError{Format: string(format)}
}
