package confidence

import (
	"math"
	"testing"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

func richDraft() *domain.ProductDraft {
	specs := map[string]domain.Specification{}
	for _, name := range []string{
		"额定电压", "额定电流", "额定频率", "准确度等级",
		"工作温度", "相对湿度", "通信接口", "外形尺寸",
	} {
		specs[name] = domain.Specification{Value: "220V", Unit: "V"}
	}
	return &domain.ProductDraft{
		BasicInfo: domain.BasicInfo{
			Name:        "DT3000三相电能表",
			Code:        "DT3000",
			Category:    "测量仪表",
			BasePrice:   12800,
			Description: "0.5S级三相智能电能表",
		},
		Specifications: specs,
		Features: []domain.Feature{
			{Title: "高精度计量"}, {Title: "宽量程"}, {Title: "双向计量"}, {Title: "远程抄表"},
		},
		ApplicationScenarios: []domain.ApplicationScenario{{Name: "变电站"}},
		Accessories:          []domain.Accessory{{Name: "端子盖", Type: domain.AccessoryStandard}},
		Certificates:         []domain.Certificate{{Name: "CMA"}},
		SupportInfo: domain.SupportInfo{
			Warranty:        domain.Warranty{Period: "三年", Coverage: "整机"},
			ServicePromises: []string{"48小时响应"},
		},
		Confidence: domain.DraftConfidence{Overall: 0.92},
	}
}

func cleanReport() domain.CleaningReport {
	return domain.CleaningReport{OriginalLineCount: 100, RemovedLineCount: 5}
}

func longText() domain.ExtractedText {
	return domain.ExtractedText{LengthChars: 4200, LengthWords: 900}
}

func TestScoreRichExtractionIsVeryHigh(t *testing.T) {
	report := domain.ValidationReport{
		OriginalSpecsCount: 9,
		NoiseRemovedCount:  1,
		FinalSpecsCount:    8,
		DataQualityScore:   0.95,
	}

	breakdown := NewScorer(DefaultWeights()).Score(richDraft(), report, cleanReport(), longText())

	if breakdown.Overall < 0.85 {
		t.Fatalf("overall = %v, want >= 0.85", breakdown.Overall)
	}
	if breakdown.Level != domain.LevelVeryHigh {
		t.Fatalf("level = %s", breakdown.Level)
	}
	if breakdown.Specifications != 1 {
		t.Errorf("specifications sub-score = %v, want saturated", breakdown.Specifications)
	}
	if breakdown.BasicInfo != 1 {
		t.Errorf("basic info sub-score = %v", breakdown.BasicInfo)
	}
}

func TestScoreSparseExtractionIsLow(t *testing.T) {
	draft := &domain.ProductDraft{
		BasicInfo:      domain.BasicInfo{Name: "未知设备"},
		Specifications: map[string]domain.Specification{"电压": {Value: "220V"}},
	}
	report := domain.ValidationReport{
		OriginalSpecsCount:  6,
		NoiseRemovedCount:   3,
		InvalidRemovedCount: 2,
		FinalSpecsCount:     1,
		DataQualityScore:    0.25,
	}
	cleaning := domain.CleaningReport{OriginalLineCount: 40, RemovedLineCount: 24}

	breakdown := NewScorer(DefaultWeights()).Score(draft, report, cleaning, domain.ExtractedText{LengthChars: 300})

	if breakdown.Overall >= 0.5 {
		t.Fatalf("overall = %v, want < 0.5", breakdown.Overall)
	}
	if breakdown.Level != domain.LevelLow && breakdown.Level != domain.LevelVeryLow {
		t.Fatalf("level = %s", breakdown.Level)
	}
}

func TestScoreGeometricMeanDampsModelConfidence(t *testing.T) {
	draft := richDraft()
	report := domain.ValidationReport{FinalSpecsCount: 8, DataQualityScore: 0.9, OriginalSpecsCount: 8}

	scorer := NewScorer(DefaultWeights())

	draft.Confidence.Overall = 0
	structuralOnly := scorer.Score(draft, report, cleanReport(), longText())

	draft.Confidence.Overall = 0.25
	damped := scorer.Score(draft, report, cleanReport(), longText())

	want := math.Sqrt(structuralOnly.Overall * 0.25)
	if math.Abs(damped.Overall-want) > 1e-9 {
		t.Fatalf("overall = %v, want geometric mean %v", damped.Overall, want)
	}
	if damped.Overall >= structuralOnly.Overall {
		t.Fatal("low self-report did not damp the structural score")
	}
}

func TestFormatScorePenalizesNoiseAndShortDocuments(t *testing.T) {
	noisy := formatScore(domain.CleaningReport{OriginalLineCount: 10, RemovedLineCount: 7}, longText())
	if math.Abs(noisy-0.3) > 1e-9 {
		t.Errorf("noisy format score = %v, want 0.3", noisy)
	}

	short := formatScore(domain.CleaningReport{OriginalLineCount: 10}, domain.ExtractedText{LengthChars: 120})
	if math.Abs(short-0.9) > 1e-9 {
		t.Errorf("short document score = %v, want 0.9", short)
	}

	if got := formatScore(domain.CleaningReport{}, longText()); got != 1 {
		t.Errorf("pristine document score = %v", got)
	}
}

func TestBasicInfoScoreBands(t *testing.T) {
	cases := []struct {
		info domain.BasicInfo
		want float64
	}{
		{domain.BasicInfo{Name: "表", Code: "DT3000", Category: "测量仪表"}, 1.0},
		{domain.BasicInfo{Name: "表", Code: "DT3000"}, 0.66},
		{domain.BasicInfo{Name: "表"}, 0.33},
		{domain.BasicInfo{}, 0},
	}
	for _, tc := range cases {
		if got := basicInfoScore(tc.info); got != tc.want {
			t.Errorf("basicInfoScore(%+v) = %v, want %v", tc.info, got, tc.want)
		}
	}
}

func TestLevelBands(t *testing.T) {
	cases := []struct {
		score float64
		want  domain.ConfidenceLevel
	}{
		{0.1, domain.LevelVeryLow},
		{0.3, domain.LevelLow},
		{0.5, domain.LevelMedium},
		{0.7, domain.LevelHigh},
		{0.85, domain.LevelVeryHigh},
		{0.99, domain.LevelVeryHigh},
	}
	for _, tc := range cases {
		if got := domain.LevelForScore(tc.score); got != tc.want {
			t.Errorf("LevelForScore(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
