package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PageMarker returns the boundary marker inserted before the text of page n (1-based).
func PageMarker(n int) string {
	return fmt.Sprintf("--- Page %d ---", n)
}

func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	pages := make([]string, numPages)
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i+1, err)
		}
		pages[i] = text
	}
	return joinPages(pages), nil
}

// joinPages concatenates page texts, each preceded by its page marker.
// Pages without text are skipped but keep their number.
func joinPages(pages []string) string {
	var b strings.Builder
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		b.WriteByte('\n')
		b.WriteString(PageMarker(i + 1))
		b.WriteByte('\n')
		b.WriteString(text)
	}
	return b.String()
}
