package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/lu4p/cat"
)

type docxExtractor struct{}

// Extract returns the whole document as page 1; Word files carry no page
// boundaries until they are rendered.
func (docxExtractor) Extract(data []byte) ([]Page, error) {
	// cat detects the container from the file, so the bytes go through a temp file
	tmp, err := os.CreateTemp("", "extract-*.docx")
	if err != nil {
		return nil, fmt.Errorf("staging docx: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("staging docx: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("staging docx: %w", err)
	}

	text, err := cat.File(tmp.Name())
	if err != nil {
		return nil, &errorModel.CorruptInputError{Format: "docx", Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return []Page{{Number: 1, Text: text}}, nil
}
