package extract

import (
	"bytes"
	"strings"

	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/xuri/excelize/v2"
)

type xlsxExtractor struct{}

// Extract turns every sheet into one page, non-empty cells of a row joined
// with " | " and rows separated by newlines.
func (xlsxExtractor) Extract(data []byte) ([]Page, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &errorModel.CorruptInputError{Format: "xlsx", Err: err}
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("closing workbook", "error", err)
		}
	}()

	var pages []Page
	for idx, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, &errorModel.CorruptInputError{Format: "xlsx", Err: err}
		}

		var lines []string
		for _, row := range rows {
			var cells []string
			for _, cell := range row {
				if v := strings.TrimSpace(cell); v != "" {
					cells = append(cells, v)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, " | "))
			}
		}
		if len(lines) == 0 {
			continue
		}
		pages = append(pages, Page{Number: idx + 1, Text: strings.Join(lines, "\n")})
	}
	return pages, nil
}
