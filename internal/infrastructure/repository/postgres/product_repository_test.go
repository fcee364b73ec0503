package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

func confirmedDraft() *domain.ProductDraft {
	draft := &domain.ProductDraft{
		BasicInfo: domain.BasicInfo{
			Name:     "三相继电保护测试仪",
			Code:     "A703",
			Category: "测量仪表",
		},
		Specifications: map[string]domain.Specification{
			"测试电压": {Value: "0-120", Unit: "V"},
		},
	}
	draft.EnsureDefaults()
	return draft
}

func TestMaterializeCreatesProductAndStampsRecord(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewProductRepository(db)

	record := &domain.AnalysisRecord{ID: "rec-1", UserID: "u1"}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT created_product_id FROM analysis_records").
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_product_id"}).AddRow(nil))
	mock.ExpectExec("INSERT INTO products").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE analysis_records").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	product, err := repo.Materialize(context.Background(), record, confirmedDraft(), nil)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if product.ID == "" {
		t.Error("product id not assigned")
	}
	if product.Code != "A703" || product.AnalysisRecordID != "rec-1" {
		t.Errorf("product = %+v", product)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMaterializeRejectsSecondConfirm(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewProductRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT created_product_id FROM analysis_records").
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_product_id"}).AddRow("prod-9"))
	mock.ExpectRollback()

	_, err := repo.Materialize(context.Background(), &domain.AnalysisRecord{ID: "rec-1"}, confirmedDraft(), nil)
	if !domain.IsKind(err, domain.ErrAlreadyMaterialized) {
		t.Fatalf("expected ErrAlreadyMaterialized, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMaterializeMissingRecord(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewProductRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT created_product_id FROM analysis_records").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Materialize(context.Background(), &domain.AnalysisRecord{ID: "missing"}, confirmedDraft(), nil)
	if !domain.IsKind(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
