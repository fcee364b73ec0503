package extractor

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/richardlehane/mscfb"
)

// oleTextStreams are the compound-file streams that carry document text in
// legacy Word and Excel binaries.
var oleTextStreams = map[string]bool{
	"WordDocument": true,
	"Workbook":     true,
	"Book":         true,
}

const minOLERunLength = 3

// extractOLEText opens a legacy OLE compound file and scans its text
// streams for printable runs. Legacy binary formats interleave formatting
// records with text stored as UTF-16LE or single-byte characters, so this
// is a recovery scan, not a structural parse.
func extractOLEText(data []byte) (string, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("ole container: %w", err)
	}

	var out strings.Builder
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if !oleTextStreams[entry.Name] {
			continue
		}
		raw, readErr := io.ReadAll(doc)
		if readErr != nil {
			continue
		}
		out.WriteString(scanPrintableRuns(raw))
		out.WriteString("\n")
	}

	text := out.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("ole: no text streams recovered")
	}
	return text, nil
}

// scanPrintableRuns walks the stream collecting UTF-16LE pairs (both Latin
// and CJK planes) and plain single-byte printable runs, discarding runs
// shorter than minOLERunLength.
func scanPrintableRuns(b []byte) string {
	var (
		out strings.Builder
		run []rune
	)
	flush := func() {
		if len(run) >= minOLERunLength {
			out.WriteString(strings.TrimSpace(string(run)))
			out.WriteString("\n")
		}
		run = run[:0]
	}

	for i := 0; i < len(b); {
		if i+1 < len(b) {
			u := rune(uint16(b[i]) | uint16(b[i+1])<<8)
			if u == '\r' || u == 0x0007 {
				// Paragraph mark / table cell terminator.
				flush()
				i += 2
				continue
			}
			if b[i+1] != 0 && isRecoverableRune(u) {
				run = append(run, u)
				i += 2
				continue
			}
			if b[i+1] == 0 && isRecoverableRune(rune(b[i])) {
				run = append(run, rune(b[i]))
				i += 2
				continue
			}
		}
		if b[i] == '\r' || b[i] == '\n' {
			flush()
			i++
			continue
		}
		if b[i] >= 0x20 && b[i] < 0x7F {
			run = append(run, rune(b[i]))
			i++
			continue
		}
		flush()
		i++
	}
	flush()
	return out.String()
}

func isRecoverableRune(r rune) bool {
	if r >= 0x20 && r < 0x7F {
		return true
	}
	if unicode.Is(unicode.Han, r) {
		return true
	}
	switch r {
	case '℃', '×', 'Ω', '±', '、', '。', '，', '：', '；', '（', '）':
		return true
	}
	return false
}
