package ingestion

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/claimsight/claimsight/chunker"
)

// ExtractPDFPages pulls plain text out of a PDF, one entry per page, so
// downstream chunking never crosses a page boundary.
func ExtractPDFPages(path string) ([]chunker.Page, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	pages := make([]chunker.Page, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract text from page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, chunker.Page{Number: i, Text: text})
	}

	return pages, nil
}
