package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// extractDOCX pulls paragraph text in reading order from the main document
// part. Table rows are flattened as "cell | cell | …" lines.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx container: %w", err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			part = f
			break
		}
	}
	if part == nil {
		return "", fmt.Errorf("docx: missing word/document.xml")
	}

	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("docx part: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("docx read: %w", err)
	}
	return walkDocumentXML(raw)
}

// walkDocumentXML streams the WordprocessingML token stream. Paragraphs
// outside tables emit one line each; inside a table, cell paragraphs are
// accumulated and rows are emitted pipe-joined.
func walkDocumentXML(raw []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var (
		out        strings.Builder
		paragraph  strings.Builder
		cell       strings.Builder
		row        []string
		tableDepth int
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("docx xml: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "tbl":
				tableDepth++
			case "t":
				var run string
				if err := dec.DecodeElement(&run, &el); err != nil {
					continue
				}
				if tableDepth > 0 {
					cell.WriteString(run)
				} else {
					paragraph.WriteString(run)
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "p":
				if tableDepth == 0 {
					out.WriteString(paragraph.String())
					out.WriteString("\n")
					paragraph.Reset()
				} else {
					cell.WriteString(" ")
				}
			case "tc":
				row = append(row, strings.TrimSpace(cell.String()))
				cell.Reset()
			case "tr":
				out.WriteString(strings.Join(row, " | "))
				out.WriteString("\n")
				row = nil
			case "tbl":
				tableDepth--
			}
		}
	}
	return out.String(), nil
}
