package cleaning

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

// Protection patterns. A line matching any of these is kept verbatim and is
// never tested against the rejection patterns.
var (
	unitTokenPattern   = regexp.MustCompile(`\d+(?:\.\d+)?\s*(?:k?[VAW]|m[AVW]|Hz|kHz|MHz|VA|kVA|Ω|ohm)\b|℃|°C|IP\d{2}|RS\d{3}`)
	dimensionPattern   = regexp.MustCompile(`\d+\s*[×xX]\s*\d+`)
	productCodePattern = regexp.MustCompile(`\b[A-Z]{1,4}\d{2,}[A-Z0-9\-]*`)
	digitPattern       = regexp.MustCompile(`\d`)
)

// technicalKeywords marks lines that carry parameter semantics. A line with
// a digit and any of these survives cleaning unconditionally.
var technicalKeywords = []string{
	"电压", "电流", "功率", "频率", "温度", "湿度", "精度", "相位", "阻抗",
	"绝缘", "耐压", "防护", "等级", "容量", "量程", "分辨率", "重量", "尺寸",
	"接口", "通信", "测试", "输出", "输入",
	"voltage", "current", "power", "frequency", "temperature", "humidity",
	"precision", "accuracy", "resolution", "impedance", "insulation",
	"protection", "capacity", "range", "interface", "weight", "dimension",
	"output", "input",
}

// Rejection patterns, tested in category order after protection.
var (
	pageMarkerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(?:PAGE|第)\s*\d+\s*(?:页)?$`),
		regexp.MustCompile(`^\s*-\s*\d+\s*-\s*$`),
	}
	bareURLPattern       = regexp.MustCompile(`^\s*(?:https?://|www\.)\S+\s*$`)
	isolatedCellsPattern = regexp.MustCompile(`^(?:[A-Za-z0-9]\s+){3,}[A-Za-z0-9]$`)
	singleLetterPattern  = regexp.MustCompile(`^[A-Za-zλ]$`)
	lonePunctPattern     = regexp.MustCompile(`^[[:punct:]]+$`)
)

// templateResidueMarkers are prompt-template fragments that occasionally
// leak into OCR output of processed datasheets.
var templateResidueMarkers = []string{"中提取", "/λ", "λspec"}

// IsProtected reports whether a line carries technical content that must
// survive cleaning.
func IsProtected(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if unitTokenPattern.MatchString(trimmed) ||
		dimensionPattern.MatchString(trimmed) ||
		productCodePattern.MatchString(trimmed) {
		return true
	}
	if digitPattern.MatchString(trimmed) && containsTechnicalKeyword(trimmed) {
		return true
	}
	return false
}

// Classify tests a line against the rejection categories. It does not apply
// protection; callers test IsProtected first.
func Classify(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}

	for _, p := range pageMarkerPatterns {
		if p.MatchString(trimmed) {
			return domain.NoisePageMarker, true
		}
	}

	if strings.Contains(trimmed, "HYPERLINK") || bareURLPattern.MatchString(trimmed) {
		return domain.NoiseHyperlink, true
	}

	if isolatedCellsPattern.MatchString(trimmed) || isRepeatedRun(trimmed) {
		return domain.NoiseTableArtifact, true
	}

	if singleLetterPattern.MatchString(trimmed) || lonePunctPattern.MatchString(trimmed) || hasTemplateResidue(trimmed) {
		return domain.NoiseMeaninglessToken, true
	}

	if looksLikeScannerGarbage(trimmed) {
		return domain.NoiseOCRGarbage, true
	}

	return "", false
}

func ContainsTechnicalKeyword(s string) bool {
	return containsTechnicalKeyword(s)
}

func containsTechnicalKeyword(s string) bool {
	lowered := strings.ToLower(s)
	for _, kw := range technicalKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func hasTemplateResidue(s string) bool {
	for _, marker := range templateResidueMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// isRepeatedRun matches lines that are one character repeated five or more
// times, a frequent artifact of ruled table borders.
func isRepeatedRun(s string) bool {
	runes := []rune(s)
	if len(runes) < 5 {
		return false
	}
	for _, r := range runes[1:] {
		if r != runes[0] {
			return false
		}
	}
	return true
}

// looksLikeScannerGarbage flags lines dominated by symbols, or lines made
// of many single-character tokens.
func looksLikeScannerGarbage(s string) bool {
	var total, junk int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if !isAlnumOrCJK(r) {
			junk++
		}
	}
	if total == 0 {
		return false
	}
	if float64(junk)/float64(total) > 0.6 {
		return true
	}

	tokens := strings.Fields(s)
	if len(tokens) >= 4 {
		short := 0
		for _, tok := range tokens {
			if len([]rune(tok)) == 1 {
				short++
			}
		}
		if float64(short)/float64(len(tokens)) > 0.5 {
			return true
		}
	}
	return false
}

func isAlnumOrCJK(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Han, r)
}
