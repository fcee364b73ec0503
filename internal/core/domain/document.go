package domain

// SourceFormat identifies the datasheet container format after detection.
type SourceFormat string

const (
	FormatPDF   SourceFormat = "pdf"
	FormatWord  SourceFormat = "word"
	FormatExcel SourceFormat = "excel"
	FormatText  SourceFormat = "text"
)

// Document is the transient identity of an uploaded datasheet.
// Raw bytes live only for the duration of a pipeline run.
type Document struct {
	ID               string       `json:"id"`
	OriginalFilename string       `json:"original_filename"`
	MimeType         string       `json:"mime_type"`
	SizeBytes        int64        `json:"size_bytes"`
	SHA256           string       `json:"sha256"`
	Format           SourceFormat `json:"format"`
}

// ExtractedText is the normalized text pulled out of a document.
// Text is UTF-8, CRLF-free, trimmed, with blank-line runs collapsed.
type ExtractedText struct {
	Text         string       `json:"text"`
	LengthChars  int          `json:"length_chars"`
	LengthWords  int          `json:"length_words"`
	SourceFormat SourceFormat `json:"source_format"`
	Pages        int          `json:"pages,omitempty"`
}

// CleaningReport accounts for every line the content cleaner removed.
type CleaningReport struct {
	OriginalLineCount int            `json:"original_line_count"`
	RemovedLineCount  int            `json:"removed_line_count"`
	RemovedCategories map[string]int `json:"removed_categories"`
}

// Noise categories tracked by the cleaner and shared with the validator.
const (
	NoisePageMarker       = "page_marker"
	NoiseHyperlink        = "hyperlink"
	NoiseTableArtifact    = "table_artifact"
	NoiseOCRGarbage       = "ocr_garbage"
	NoiseMeaninglessToken = "meaningless_token"
)
