package cleaning

import (
	"strings"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

// Cleaner removes format noise from extracted text line by line. Protected
// lines are kept verbatim; every removal is counted per category. Cleaning
// the same text twice removes nothing new.
type Cleaner struct{}

func NewCleaner() *Cleaner {
	return &Cleaner{}
}

func (c *Cleaner) Clean(text string) (string, domain.CleaningReport) {
	lines := strings.Split(text, "\n")
	report := domain.CleaningReport{
		OriginalLineCount: len(lines),
		RemovedCategories: map[string]int{},
	}

	out := make([]string, 0, len(lines))
	blankRun := 0
	flushBlanks := func() {
		if blankRun == 0 {
			return
		}
		// Runs of three or more blank lines collapse to one.
		if blankRun >= 3 {
			blankRun = 1
		}
		for i := 0; i < blankRun; i++ {
			out = append(out, "")
		}
		blankRun = 0
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blankRun++
			continue
		}
		if IsProtected(line) {
			flushBlanks()
			out = append(out, line)
			continue
		}
		if category, noisy := Classify(line); noisy {
			report.RemovedLineCount++
			report.RemovedCategories[category]++
			continue
		}
		flushBlanks()
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n")), report
}
