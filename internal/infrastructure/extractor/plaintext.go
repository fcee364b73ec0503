package extractor

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// decodePlainText accepts UTF-8 directly and falls back to GB18030 for
// Chinese-vendor datasheets, replacing undecodable bytes.
func decodePlainText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := simplifiedchinese.GB18030.NewDecoder().Bytes(data)
	if err == nil && utf8.Valid(decoded) {
		return string(decoded)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}
