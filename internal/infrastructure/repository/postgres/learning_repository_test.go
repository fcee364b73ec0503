package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

func feedbackFixture() domain.LearningFeedback {
	return domain.LearningFeedback{
		ID:               "fb-1",
		AnalysisRecordID: "rec-1",
		UserID:           "u1",
		DocumentType:     domain.FormatPDF,
		FieldDiffs: map[string]domain.FieldDiff{
			"basic_info.category": {Before: "其他", After: "测量仪表"},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestApplyInsertsFeedbackAndNewPattern(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewLearningRepository(db)

	mock.ExpectExec("INSERT INTO learning_feedback").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// First sighting: update misses, insert lands.
	mock.ExpectExec("UPDATE learning_patterns").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO learning_patterns").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Apply(context.Background(), feedbackFixture()); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyIncrementsExistingPattern(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewLearningRepository(db)

	mock.ExpectExec("INSERT INTO learning_feedback").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE learning_patterns").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Apply(context.Background(), feedbackFixture()); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyReportsContention(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewLearningRepository(db)

	mock.ExpectExec("INSERT INTO learning_feedback").
		WillReturnResult(sqlmock.NewResult(0, 1))
	for i := 0; i < maxUpsertAttempts; i++ {
		mock.ExpectExec("UPDATE learning_patterns").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO learning_patterns").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	err := repo.Apply(context.Background(), feedbackFixture())
	if !domain.IsKind(err, domain.ErrFeedbackConflict) {
		t.Fatalf("expected ErrFeedbackConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplySkipsNonStringCorrections(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewLearningRepository(db)

	fb := feedbackFixture()
	fb.FieldDiffs = map[string]domain.FieldDiff{
		"basic_info.base_price": {Before: 0.0, After: 12800.0},
	}

	mock.ExpectExec("INSERT INTO learning_feedback").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Apply(context.Background(), fb); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestHintsForRanksByFrequencyAndRecency(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewLearningRepository(db)
	repo.TopK = 2

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"field_path", "display_value", "frequency", "last_seen"}).
		AddRow("basic_info.category", "其他设备", 10, now.Add(-120*24*time.Hour)).
		AddRow("basic_info.category", "测量仪表", 5, now.Add(-time.Hour)).
		AddRow("basic_info.category", "开关设备", 1, now.Add(-time.Hour)).
		AddRow("basic_info.name", "三相继电保护测试仪", 2, now)

	mock.ExpectQuery("SELECT field_path, display_value, frequency, last_seen").
		WithArgs(string(domain.FormatPDF)).
		WillReturnRows(rows)

	hints, err := repo.HintsFor(context.Background(), "A703.pdf", domain.FormatPDF)
	if err != nil {
		t.Fatalf("HintsFor: %v", err)
	}

	category := hints["basic_info.category"]
	if len(category) != 2 {
		t.Fatalf("category hints = %v", category)
	}
	// 10 uses decayed over four months score below 5 recent uses.
	if category[0] != "测量仪表" {
		t.Errorf("top hint = %q, want recency-decayed ranking", category[0])
	}
	if len(hints["basic_info.name"]) != 1 {
		t.Errorf("name hints = %v", hints["basic_info.name"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
