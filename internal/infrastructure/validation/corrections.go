package validation

import (
	"regexp"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

// Deterministic rewrite rules applied before validity admission. Every
// rewrite is recorded so corrections stay auditable and reversible.
var (
	wireRSPattern = regexp.MustCompile(`(?i)WIRE\s*\d*\s*\d?RS(232|485)`)
	bareRSPattern = regexp.MustCompile(`^\d+RS(232|485)$`)

	ocrSwapITPattern   = regexp.MustCompile(`\bI-t\b`)
	ocrZeroAfterDigit  = regexp.MustCompile(`(\d)O`)
	ocrZeroBeforeDigit = regexp.MustCompile(`O(\d)`)
	ocrOneBetweenDigit = regexp.MustCompile(`(\d)l(\d)`)
)

const (
	ruleWireRSInterface = "wire_rs_interface"
	ruleBareRSPrefix    = "bare_rs_prefix"
	ruleOCRSwapIT       = "ocr_swap_i_t"
	ruleOCRZero         = "ocr_zero_for_o"
	ruleOCROne          = "ocr_one_for_l"
)

// correctSpecName rewrites garbled communication-interface names produced
// by OCR of wiring tables.
func correctSpecName(name string) (string, []domain.Correction) {
	var corrections []domain.Correction

	if wireRSPattern.MatchString(name) {
		fixed := wireRSPattern.ReplaceAllString(name, "RS${1}通信接口")
		corrections = append(corrections, domain.Correction{From: name, To: fixed, Rule: ruleWireRSInterface})
		return fixed, corrections
	}
	if bareRSPattern.MatchString(name) {
		fixed := bareRSPattern.ReplaceAllString(name, "RS$1")
		corrections = append(corrections, domain.Correction{From: name, To: fixed, Rule: ruleBareRSPrefix})
		return fixed, corrections
	}
	return name, corrections
}

// correctSpecValue repairs character-level OCR swaps inside value strings.
func correctSpecValue(value string) (string, []domain.Correction) {
	var corrections []domain.Correction
	fixed := value

	if ocrSwapITPattern.MatchString(fixed) {
		next := ocrSwapITPattern.ReplaceAllString(fixed, "A-t")
		corrections = append(corrections, domain.Correction{From: fixed, To: next, Rule: ruleOCRSwapIT})
		fixed = next
	}
	if ocrZeroAfterDigit.MatchString(fixed) || ocrZeroBeforeDigit.MatchString(fixed) {
		next := ocrZeroAfterDigit.ReplaceAllString(fixed, "${1}0")
		next = ocrZeroBeforeDigit.ReplaceAllString(next, "0$1")
		corrections = append(corrections, domain.Correction{From: fixed, To: next, Rule: ruleOCRZero})
		fixed = next
	}
	if ocrOneBetweenDigit.MatchString(fixed) {
		next := ocrOneBetweenDigit.ReplaceAllString(fixed, "${1}1${2}")
		corrections = append(corrections, domain.Correction{From: fixed, To: next, Rule: ruleOCROne})
		fixed = next
	}
	return fixed, corrections
}
