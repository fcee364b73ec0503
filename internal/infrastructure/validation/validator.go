package validation

import (
	"regexp"
	"sort"
	"strings"

	"github.com/electroquote/cpq-backend/internal/core/domain"
	"github.com/electroquote/cpq-backend/internal/infrastructure/cleaning"
)

// Weights control the data-quality score composition: how much surviving
// entries, filtered noise and applied fixes each contribute.
type Weights struct {
	Keep   float64
	Filter float64
	Fix    float64
}

func DefaultWeights() Weights {
	return Weights{Keep: 0.6, Filter: 0.3, Fix: 0.1}
}

// bareSpecNamePatterns are parameter names that are structurally noise no
// matter what the value says: stray column letters, outline numbers, table
// of contents anchors and template residue.
var bareSpecNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z]$`),
	regexp.MustCompile(`^\d+(\.\d+)*\s*[A-Za-z]$`),
	regexp.MustCompile(`^ToC\d+$`),
	regexp.MustCompile(`^/?λ?spec_table`),
}

var valueWithUnitPattern = regexp.MustCompile(`\d+(?:\.\d+)?\s*(?:k?[VAWΩ]|m[AVW]|Hz|kHz|MHz|VA|kVA|℃|°C|%|mm|cm|kg|g\b|s\b|ms|min|级|次|倍)`)

// Validator filters and repairs the specification entries of a draft. All
// other sections pass through untouched.
type Validator struct {
	weights Weights
}

func NewValidator(weights Weights) *Validator {
	if weights.Keep <= 0 && weights.Filter <= 0 && weights.Fix <= 0 {
		weights = DefaultWeights()
	}
	return &Validator{weights: weights}
}

func (v *Validator) Validate(draft *domain.ProductDraft, documentName string) (*domain.ProductDraft, domain.ValidationReport) {
	out := *draft
	out.Specifications = make(map[string]domain.Specification, len(draft.Specifications))

	report := domain.ValidationReport{
		OriginalSpecsCount: len(draft.Specifications),
		RemovedSpecs:       []domain.RemovedSpec{},
		Corrections:        []domain.Correction{},
	}

	for _, name := range sortedSpecNames(draft.Specifications) {
		spec := draft.Specifications[name]

		if v.isNoiseEntry(name, spec) {
			report.NoiseRemovedCount++
			report.RemovedSpecs = append(report.RemovedSpecs, domain.RemovedSpec{Name: name, Reason: domain.RemovalNoisePattern})
			continue
		}

		fixedName, nameCorrections := correctSpecName(name)
		fixedValue, valueCorrections := correctSpecValue(spec.Value)
		spec.Value = fixedValue
		corrected := len(nameCorrections)+len(valueCorrections) > 0
		report.Corrections = append(report.Corrections, nameCorrections...)
		report.Corrections = append(report.Corrections, valueCorrections...)

		if !v.isAdmissible(fixedName, spec, corrected) {
			report.InvalidRemovedCount++
			report.RemovedSpecs = append(report.RemovedSpecs, domain.RemovedSpec{Name: name, Reason: domain.RemovalNoTechnicalContent})
			continue
		}

		// Name rewrites can collide; the first admitted entry wins so the
		// count invariant survives.
		if _, taken := out.Specifications[fixedName]; taken {
			report.InvalidRemovedCount++
			report.RemovedSpecs = append(report.RemovedSpecs, domain.RemovedSpec{Name: name, Reason: domain.RemovalDuplicateName})
			continue
		}
		out.Specifications[fixedName] = spec
	}

	report.FinalSpecsCount = len(out.Specifications)
	report.DataQualityScore = v.qualityScore(report)

	repairBasicInfo(&out.BasicInfo, documentName, sortedSpecNames(out.Specifications))

	return &out, report
}

func (v *Validator) isNoiseEntry(name string, spec domain.Specification) bool {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" && strings.TrimSpace(spec.Value) == "" {
		return true
	}
	for _, p := range bareSpecNamePatterns {
		if p.MatchString(trimmedName) {
			return true
		}
	}
	if cleaning.IsProtected(trimmedName) {
		return false
	}
	_, noisy := cleaning.Classify(trimmedName)
	return noisy
}

// isAdmissible keeps an entry when the value carries a measured quantity,
// the name carries parameter semantics, or a correction rule recognized it.
func (v *Validator) isAdmissible(name string, spec domain.Specification, corrected bool) bool {
	if corrected {
		return true
	}
	if valueWithUnitPattern.MatchString(spec.Value) {
		return true
	}
	if strings.TrimSpace(spec.Unit) != "" && strings.ContainsAny(spec.Value, "0123456789") {
		return true
	}
	return cleaning.ContainsTechnicalKeyword(name)
}

func (v *Validator) qualityScore(report domain.ValidationReport) float64 {
	original := float64(report.OriginalSpecsCount)
	if original == 0 {
		return 0.0
	}
	score := v.weights.Keep*(float64(report.FinalSpecsCount)/original) +
		v.weights.Filter*(float64(report.NoiseRemovedCount)/original) +
		v.weights.Fix*(float64(len(report.Corrections))/original)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func sortedSpecNames(specs map[string]domain.Specification) []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
