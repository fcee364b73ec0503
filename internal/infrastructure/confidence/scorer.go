package confidence

import (
	"math"
	"strings"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

// Weights for the structural overall score. Defaults follow the pipeline's
// calibration; all are configuration-tunable.
type Weights struct {
	Completeness   float64
	Quality        float64
	Format         float64
	BasicInfo      float64
	Specifications float64
}

func DefaultWeights() Weights {
	return Weights{
		Completeness:   0.25,
		Quality:        0.20,
		Format:         0.15,
		BasicInfo:      0.20,
		Specifications: 0.20,
	}
}

// specSaturationCount is the number of admitted technical parameters at
// which the specifications sub-score saturates.
const specSaturationCount = 8

const shortDocumentThreshold = 500

// Scorer combines structural pipeline signals with the model's
// self-reported confidence.
type Scorer struct {
	weights Weights
}

func NewScorer(weights Weights) *Scorer {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Scorer{weights: weights}
}

func (s *Scorer) Score(
	draft *domain.ProductDraft,
	validation domain.ValidationReport,
	cleaning domain.CleaningReport,
	text domain.ExtractedText,
) domain.ConfidenceBreakdown {
	breakdown := domain.ConfidenceBreakdown{
		Completeness:   completenessScore(draft),
		Quality:        clamp01(validation.DataQualityScore),
		Format:         formatScore(cleaning, text),
		BasicInfo:      basicInfoScore(draft.BasicInfo),
		Specifications: math.Min(1, float64(validation.FinalSpecsCount)/specSaturationCount),
		Features:       math.Min(1, float64(len(draft.Features))/4),
	}

	structural := s.weights.Completeness*breakdown.Completeness +
		s.weights.Quality*breakdown.Quality +
		s.weights.Format*breakdown.Format +
		s.weights.BasicInfo*breakdown.BasicInfo +
		s.weights.Specifications*breakdown.Specifications

	// The geometric mean with the model's own estimate damps overconfident
	// models without discarding their signal.
	overall := structural
	if self := clamp01(draft.Confidence.Overall); self > 0 {
		overall = math.Sqrt(structural * self)
	}

	breakdown.Overall = clamp01(overall)
	breakdown.Level = domain.LevelForScore(breakdown.Overall)
	return breakdown
}

// completenessScore averages per-section presence over the draft schema,
// each section weighted equally.
func completenessScore(draft *domain.ProductDraft) float64 {
	sections := []float64{
		basicFieldFraction(draft.BasicInfo),
		presence(len(draft.Specifications) > 0),
		presence(len(draft.Features) > 0),
		presence(len(draft.ApplicationScenarios) > 0),
		presence(len(draft.Accessories) > 0),
		presence(len(draft.Certificates) > 0),
		supportFraction(draft.SupportInfo),
	}
	var sum float64
	for _, s := range sections {
		sum += s
	}
	return sum / float64(len(sections))
}

func basicFieldFraction(info domain.BasicInfo) float64 {
	fields := []bool{
		strings.TrimSpace(info.Name) != "",
		strings.TrimSpace(info.Code) != "",
		strings.TrimSpace(info.Category) != "",
		info.BasePrice > 0,
		strings.TrimSpace(info.Description) != "",
	}
	filled := 0
	for _, ok := range fields {
		if ok {
			filled++
		}
	}
	return float64(filled) / float64(len(fields))
}

func supportFraction(info domain.SupportInfo) float64 {
	fields := []bool{
		strings.TrimSpace(info.Warranty.Period) != "",
		strings.TrimSpace(info.Warranty.Coverage) != "",
		len(info.ServicePromises) > 0,
	}
	filled := 0
	for _, ok := range fields {
		if ok {
			filled++
		}
	}
	return float64(filled) / float64(len(fields))
}

func formatScore(cleaning domain.CleaningReport, text domain.ExtractedText) float64 {
	denominator := cleaning.OriginalLineCount
	if denominator < 1 {
		denominator = 1
	}
	score := 1 - float64(cleaning.RemovedLineCount)/float64(denominator)
	if text.LengthChars < shortDocumentThreshold {
		score -= 0.1
	}
	return clamp01(score)
}

func basicInfoScore(info domain.BasicInfo) float64 {
	present := 0
	for _, field := range []string{info.Name, info.Code, info.Category} {
		if strings.TrimSpace(field) != "" {
			present++
		}
	}
	switch present {
	case 3:
		return 1.0
	case 2:
		return 0.66
	case 1:
		return 0.33
	default:
		return 0
	}
}

func presence(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
