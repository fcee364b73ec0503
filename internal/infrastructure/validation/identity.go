package validation

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

var leadingCodePattern = regexp.MustCompile(`^[A-Z]{1,4}\d{2,}[A-Z0-9]*`)

// categoryRules map product-name keywords to catalog categories, first
// match wins.
var categoryRules = []struct {
	keyword  string
	category string
}{
	{"测试仪", "测量仪表"},
	{"校验仪", "测量仪表"},
	{"仪表", "测量仪表"},
	{"变压器", "变压器"},
	{"互感器", "变压器"},
	{"断路器", "开关设备"},
	{"开关", "开关设备"},
	{"继电", "继电保护"},
	{"电缆", "电线电缆"},
	{"配电", "配电设备"},
}

// repairBasicInfo fills empty name/code/category from the document filename
// and the surviving specification names. Fields already present are never
// overwritten.
func repairBasicInfo(info *domain.BasicInfo, documentName string, specNames []string) {
	base := strings.TrimSuffix(filepath.Base(documentName), filepath.Ext(documentName))
	primary := firstSegment(base)

	if strings.TrimSpace(info.Code) == "" {
		if code := leadingCodePattern.FindString(primary); code != "" {
			info.Code = code
		}
	}
	if strings.TrimSpace(info.Name) == "" && primary != "" {
		info.Name = primary
	}
	if strings.TrimSpace(info.Category) == "" {
		info.Category = inferCategory(info.Name, specNames)
	}
}

func firstSegment(base string) string {
	segments := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	if len(segments) == 0 {
		return ""
	}
	return strings.TrimSpace(segments[0])
}

func inferCategory(name string, specNames []string) string {
	for _, rule := range categoryRules {
		if strings.Contains(name, rule.keyword) {
			return rule.category
		}
	}
	for _, spec := range specNames {
		for _, rule := range categoryRules {
			if strings.Contains(spec, rule.keyword) {
				return rule.category
			}
		}
	}
	return ""
}

// HasCompleteBasicInfo reports whether the three identity fields survived
// extraction and repair.
func HasCompleteBasicInfo(info domain.BasicInfo) bool {
	return strings.TrimSpace(info.Name) != "" &&
		strings.TrimSpace(info.Code) != "" &&
		strings.TrimSpace(info.Category) != ""
}
