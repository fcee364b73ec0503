package extractor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/electroquote/cpq-backend/internal/core/domain"
	"github.com/electroquote/cpq-backend/internal/core/ports"
)

// Limits are per-family upload ceilings in bytes.
type Limits struct {
	PDFBytes   int64
	WordBytes  int64
	ExcelBytes int64
	TextBytes  int64
}

func DefaultLimits() Limits {
	return Limits{
		PDFBytes:   10 << 20,
		WordBytes:  5 << 20,
		ExcelBytes: 5 << 20,
		TextBytes:  2 << 20,
	}
}

// minExtractedChars is the minimum number of non-whitespace characters a
// document must yield before the pipeline considers it non-empty.
const minExtractedChars = 50

// Dispatcher detects the document format from extension and magic bytes,
// enforces size limits and routes to the per-format extractor. Uploaded
// bytes live only in memory for the duration of the call.
type Dispatcher struct {
	limits     Limits
	ocr        ports.PageOCR
	ocrEnabled bool
}

func NewDispatcher(limits Limits, ocr ports.PageOCR, ocrEnabled bool) *Dispatcher {
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}
	return &Dispatcher{limits: limits, ocr: ocr, ocrEnabled: ocrEnabled}
}

func (d *Dispatcher) Extract(ctx context.Context, filename, contentType string, body io.Reader) (*domain.ExtractedText, *domain.Document, error) {
	format, limit, err := d.resolveFormat(filename)
	if err != nil {
		return nil, nil, err
	}

	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrParse, "read upload", err)
	}
	if int64(len(data)) > limit {
		return nil, nil, domain.WrapError(domain.ErrFileTooLarge, "read upload",
			fmt.Errorf("%s exceeds %d MiB", filename, limit>>20))
	}
	if len(data) == 0 {
		return nil, nil, domain.WrapError(domain.ErrEmptyDocument, "read upload", errors.New("zero-length upload"))
	}

	if err := checkMagic(format, filepath.Ext(filename), data); err != nil {
		return nil, nil, err
	}

	text, pages, err := d.extractText(ctx, format, filepath.Ext(filename), data)
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrParse, "extract "+string(format), err)
	}

	text = normalizeText(text)
	if countNonWhitespace(text) < minExtractedChars {
		return nil, nil, domain.WrapError(domain.ErrEmptyDocument, "extract "+string(format),
			fmt.Errorf("only %d extractable characters", countNonWhitespace(text)))
	}

	digest := sha256.Sum256(data)
	doc := &domain.Document{
		ID:               uuid.NewString(),
		OriginalFilename: filename,
		MimeType:         contentType,
		SizeBytes:        int64(len(data)),
		SHA256:           hex.EncodeToString(digest[:]),
		Format:           format,
	}
	extracted := &domain.ExtractedText{
		Text:         text,
		LengthChars:  utf8.RuneCountInString(text),
		LengthWords:  len(strings.Fields(text)),
		SourceFormat: format,
		Pages:        pages,
	}
	return extracted, doc, nil
}

func (d *Dispatcher) resolveFormat(filename string) (domain.SourceFormat, int64, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return domain.FormatPDF, d.limits.PDFBytes, nil
	case ".doc", ".docx":
		return domain.FormatWord, d.limits.WordBytes, nil
	case ".xls", ".xlsx":
		return domain.FormatExcel, d.limits.ExcelBytes, nil
	case ".txt", ".md":
		return domain.FormatText, d.limits.TextBytes, nil
	default:
		return "", 0, domain.WrapError(domain.ErrUnsupportedFormat, "resolve format",
			fmt.Errorf("extension %q", filepath.Ext(filename)))
	}
}

func (d *Dispatcher) extractText(ctx context.Context, format domain.SourceFormat, ext string, data []byte) (string, int, error) {
	switch format {
	case domain.FormatPDF:
		return d.extractPDF(ctx, data)
	case domain.FormatWord:
		if isOLE(data) {
			text, err := extractOLEText(data)
			return text, 0, err
		}
		text, err := extractDOCX(data)
		return text, 0, err
	case domain.FormatExcel:
		if isOLE(data) {
			text, err := extractOLEText(data)
			return text, 0, err
		}
		text, err := extractXLSX(data)
		return text, 0, err
	case domain.FormatText:
		return decodePlainText(data), 0, nil
	default:
		return "", 0, fmt.Errorf("unreachable format %q", format)
	}
}

// checkMagic cross-checks the extension against the container signature so
// a renamed binary cannot smuggle itself into the wrong parser.
func checkMagic(format domain.SourceFormat, ext string, data []byte) error {
	ext = strings.ToLower(ext)
	var ok bool
	switch format {
	case domain.FormatPDF:
		ok = isPDF(data)
	case domain.FormatWord, domain.FormatExcel:
		ok = isZip(data) || isOLE(data)
	case domain.FormatText:
		ok = !isPDF(data) && !isZip(data) && !isOLE(data)
	}
	if !ok {
		return domain.WrapError(domain.ErrUnsupportedFormat, "verify magic bytes",
			fmt.Errorf("content does not match %s extension %s", format, ext))
	}
	return nil
}

func isPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func isZip(b []byte) bool {
	return len(b) >= 4 && b[0] == 'P' && b[1] == 'K' && b[2] == 3 && b[3] == 4
}

func isOLE(b []byte) bool {
	return len(b) >= 8 && bytes.Equal(b[:8], []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
}

// normalizeText enforces the extracted-text invariant: LF line endings,
// trimmed edges, blank-line runs collapsed to a single newline.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func countNonWhitespace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
