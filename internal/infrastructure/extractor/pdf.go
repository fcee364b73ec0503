package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// ocrFallbackThreshold is the minimum printable characters a page must
// yield before the OCR fallback is considered for it.
const ocrFallbackThreshold = 20

func (d *Dispatcher) extractPDF(ctx context.Context, data []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("pdf reader: %w", err)
	}

	pages := reader.NumPage()
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			content = ""
		}
		if countPrintable(content) < ocrFallbackThreshold && d.ocrEnabled && d.ocr != nil {
			if recognized, ocrErr := d.ocr.RecognizePage(ctx, data, i); ocrErr == nil {
				content = recognized
			}
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String(), pages, nil
}

func countPrintable(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsPrint(r) && !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
