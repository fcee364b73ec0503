package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

type LearningRepository struct {
	db *sql.DB

	// HalfLife controls recency decay when ranking hints.
	HalfLife time.Duration
	// TopK caps suggestions per field path.
	TopK int
}

func NewLearningRepository(db *sql.DB) *LearningRepository {
	return &LearningRepository{
		db:       db,
		HalfLife: 30 * 24 * time.Hour,
		TopK:     3,
	}
}

const patternTypeValueCorrection = "value_correction"

const maxUpsertAttempts = 3

// Apply stores the raw feedback event and folds each corrected string value
// into the aggregated pattern table.
func (r *LearningRepository) Apply(ctx context.Context, feedback domain.LearningFeedback) error {
	diffsJSON, err := json.Marshal(feedback.FieldDiffs)
	if err != nil {
		return fmt.Errorf("marshal field diffs: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO learning_feedback (id, analysis_record_id, user_id, document_type, field_diffs, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`,
		feedback.ID, feedback.AnalysisRecordID, feedback.UserID,
		string(feedback.DocumentType), diffsJSON, feedback.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}

	for fieldPath, diff := range feedback.FieldDiffs {
		after, ok := diff.After.(string)
		if !ok {
			continue
		}
		canonical := domain.CanonicalPatternValue(after)
		if canonical == "" {
			continue
		}
		if err := r.upsertPattern(ctx, fieldPath, canonical, after, feedback); err != nil {
			return err
		}
	}
	return nil
}

// upsertPattern bumps an existing pattern's frequency or inserts a new row.
// Insert races with a concurrent writer resolve by retrying the update.
func (r *LearningRepository) upsertPattern(ctx context.Context, fieldPath, canonical, display string, feedback domain.LearningFeedback) error {
	now := time.Now().UTC()
	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		res, err := r.db.ExecContext(ctx, `
UPDATE learning_patterns
SET frequency = frequency + 1, last_seen = $4, display_value = $5
WHERE field_path = $1 AND pattern_value = $2 AND document_type = $3
`, fieldPath, canonical, string(feedback.DocumentType), now, display)
		if err != nil {
			return fmt.Errorf("update pattern: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			return nil
		}

		res, err = r.db.ExecContext(ctx, `
INSERT INTO learning_patterns (field_path, pattern_type, pattern_value, display_value, frequency, last_seen, user_id, document_type)
VALUES ($1,$2,$3,$4,1,$5,$6,$7)
ON CONFLICT (field_path, pattern_value, document_type) DO NOTHING
`, fieldPath, patternTypeValueCorrection, canonical, display, now, feedback.UserID, string(feedback.DocumentType))
		if err != nil {
			return fmt.Errorf("insert pattern: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			return nil
		}
		// Lost the insert race; loop back to the update.
	}
	return domain.WrapError(domain.ErrFeedbackConflict, "upsert pattern",
		fmt.Errorf("field %s contended %d times", fieldPath, maxUpsertAttempts))
}

// HintsFor ranks stored patterns for the document type by frequency with
// exponential recency decay and returns the top suggestions per field.
func (r *LearningRepository) HintsFor(ctx context.Context, documentName string, documentType domain.SourceFormat) (domain.HintSet, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT field_path, display_value, frequency, last_seen
FROM learning_patterns
WHERE document_type = $1 OR document_type = ''
ORDER BY frequency DESC
LIMIT 100
`, string(documentType))
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	type scored struct {
		value string
		score float64
	}
	now := time.Now().UTC()
	byField := make(map[string][]scored)

	for rows.Next() {
		var (
			fieldPath string
			display   string
			frequency int
			lastSeen  time.Time
		)
		if err := rows.Scan(&fieldPath, &display, &frequency, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		age := now.Sub(lastSeen)
		if age < 0 {
			age = 0
		}
		decay := math.Exp(-math.Ln2 * age.Hours() / r.HalfLife.Hours())
		byField[fieldPath] = append(byField[fieldPath], scored{value: display, score: float64(frequency) * decay})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}

	hints := make(domain.HintSet, len(byField))
	for fieldPath, candidates := range byField {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].score > candidates[j].score
		})
		top := r.TopK
		if top <= 0 {
			top = 3
		}
		if len(candidates) < top {
			top = len(candidates)
		}
		values := make([]string, 0, top)
		for _, c := range candidates[:top] {
			values = append(values, c.value)
		}
		hints[fieldPath] = values
	}
	return hints, nil
}
