package extract

import (
	"errors"
	"testing"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/xuri/excelize/v2"
)

func TestFor(t *testing.T) {
	for _, format := range []documentModel.Format{documentModel.PDF, documentModel.XLSX, documentModel.DOCX} {
		if _, err := For(format); err != nil {
			t.Errorf("For(%s) returned %v", format, err)
		}
	}

	_, err := For("pptx")
	var unsupported *errorModel.UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
	if unsupported.Format != "pptx" {
		t.Errorf("format = %q", unsupported.Format)
	}
}

func TestXLSX_OnePagePerSheet(t *testing.T) {
	f := excelize.NewFile()
	if err := f.SetCellValue("Sheet1", "A1", "Insurer"); err != nil {
		t.Fatal(err)
	}
	_ = f.SetCellValue("Sheet1", "B1", "Solvency ratio")
	_ = f.SetCellValue("Sheet1", "A2", "Acme Life")
	_ = f.SetCellValue("Sheet1", "C2", 1.5)

	if _, err := f.NewSheet("Empty"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewSheet("Notes"); err != nil {
		t.Fatal(err)
	}
	_ = f.SetCellValue("Notes", "A1", "Effective from 1 April 2024")

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	pages, err := xlsxExtractor{}.Extract(buf.Bytes())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2 (empty sheet skipped): %+v", len(pages), pages)
	}
	if pages[0].Number != 1 {
		t.Errorf("first page number = %d", pages[0].Number)
	}
	want := "Insurer | Solvency ratio\nAcme Life | 1.5"
	if pages[0].Text != want {
		t.Errorf("sheet text = %q, want %q", pages[0].Text, want)
	}
	if pages[1].Number != 3 || pages[1].Text != "Effective from 1 April 2024" {
		t.Errorf("notes page = %+v", pages[1])
	}
}

func TestCorruptInput(t *testing.T) {
	tests := []struct {
		name      string
		extractor Extractor
	}{
		{"pdf", pdfExtractor{}},
		{"xlsx", xlsxExtractor{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.extractor.Extract([]byte("definitely not a document"))
			var corrupt *errorModel.CorruptInputError
			if !errors.As(err, &corrupt) {
				t.Fatalf("expected CorruptInputError, got %v", err)
			}
			if corrupt.Format != tt.name {
				t.Errorf("format = %q, want %q", corrupt.Format, tt.name)
			}
		})
	}
}
