package cleaning

import (
	"strings"
	"testing"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

const noisyDatasheet = "DT3000系列三相电能表技术规格书\n" +
	"第 3 页\n" +
	"www.example.com/datasheet.pdf\n" +
	"──────────\n" +
	"额定电压: 3×220/380V\n" +
	"A\n" +
	"准确度等级: 0.5S级\n" +
	"/λspec_table\n" +
	"适用于变电站与配电自动化系统的计量改造项目\n"

func TestCleanRemovesNoiseByCategory(t *testing.T) {
	cleaned, report := NewCleaner().Clean(noisyDatasheet)

	for _, kept := range []string{
		"额定电压: 3×220/380V",
		"准确度等级: 0.5S级",
		"适用于变电站与配电自动化系统的计量改造项目",
	} {
		if !strings.Contains(cleaned, kept) {
			t.Errorf("cleaned text lost %q", kept)
		}
	}
	for _, removed := range []string{"第 3 页", "www.example.com", "──────────", "λspec_table"} {
		if strings.Contains(cleaned, removed) {
			t.Errorf("cleaned text still contains %q", removed)
		}
	}

	want := map[string]int{
		domain.NoisePageMarker:       1,
		domain.NoiseHyperlink:        1,
		domain.NoiseTableArtifact:    1,
		domain.NoiseMeaninglessToken: 2,
	}
	for category, count := range want {
		if report.RemovedCategories[category] != count {
			t.Errorf("category %s: removed %d, want %d", category, report.RemovedCategories[category], count)
		}
	}
}

func TestCleanCategoryCountsSumToRemovedLines(t *testing.T) {
	_, report := NewCleaner().Clean(noisyDatasheet)

	sum := 0
	for _, count := range report.RemovedCategories {
		sum += count
	}
	if sum != report.RemovedLineCount {
		t.Fatalf("category sum %d != removed line count %d", sum, report.RemovedLineCount)
	}
	if report.RemovedLineCount == 0 {
		t.Fatal("expected noisy fixture to lose lines")
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	cleaner := NewCleaner()
	once, _ := cleaner.Clean(noisyDatasheet)
	twice, report := cleaner.Clean(once)

	if twice != once {
		t.Errorf("second pass changed text:\n%q\nvs\n%q", once, twice)
	}
	if report.RemovedLineCount != 0 {
		t.Errorf("second pass removed %d lines", report.RemovedLineCount)
	}
}

func TestCleanCollapsesBlankRuns(t *testing.T) {
	text := "产品概述\n\n\n\n\n测量精度满足计量认证要求"
	cleaned, _ := NewCleaner().Clean(text)

	if want := "产品概述\n\n测量精度满足计量认证要求"; cleaned != want {
		t.Fatalf("got %q, want %q", cleaned, want)
	}
}

func TestIsProtected(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"额定电流 1.5(6)A", true},
		{"通信接口: RS485", true},
		{"防护等级 IP54", true},
		{"外形尺寸 450×350×200", true},
		{"型号 DT3000", true},
		{"工作频率 50Hz", true},
		{"公司简介", false},
		{"HYPERLINK mailto:sales@example.com", false},
	}
	for _, tc := range cases {
		if got := IsProtected(tc.line); got != tc.want {
			t.Errorf("IsProtected(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}

func TestClassifyScannerGarbage(t *testing.T) {
	category, noisy := Classify("¤ ※ ◇ □ ▲ ¤ ※ ◇")
	if !noisy || category != domain.NoiseOCRGarbage {
		t.Fatalf("got (%q, %v), want ocr_garbage", category, noisy)
	}

	if _, noisy := Classify("测量范围 0.05In~Imax"); noisy {
		t.Fatal("technical range line misclassified as noise")
	}
}
