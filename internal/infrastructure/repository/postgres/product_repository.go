package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Materialize creates the catalog product for a confirmed analysis and
// stamps the record with the product id in the same transaction. A record
// can be materialized exactly once.
func (r *ProductRepository) Materialize(ctx context.Context, record *domain.AnalysisRecord, finalData *domain.ProductDraft, modifications map[string]domain.FieldDiff) (*domain.Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin materialize tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var existing sql.NullString
	err = tx.QueryRowContext(ctx, `
SELECT created_product_id FROM analysis_records WHERE id = $1 FOR UPDATE
`, record.ID).Scan(&existing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "materialize product", fmt.Errorf("record %s", record.ID))
		}
		return nil, fmt.Errorf("lock analysis record: %w", err)
	}
	if existing.String != "" {
		return nil, domain.WrapError(domain.ErrAlreadyMaterialized, "materialize product", fmt.Errorf("record %s already produced %s", record.ID, existing.String))
	}

	product := &domain.Product{
		ID:               uuid.NewString(),
		Name:             finalData.BasicInfo.Name,
		Code:             finalData.BasicInfo.Code,
		Category:         finalData.BasicInfo.Category,
		BasePrice:        finalData.BasicInfo.BasePrice,
		Description:      finalData.BasicInfo.Description,
		Specifications:   finalData.Specifications,
		AnalysisRecordID: record.ID,
		CreatedAt:        time.Now().UTC(),
	}

	specsJSON, err := json.Marshal(product.Specifications)
	if err != nil {
		return nil, fmt.Errorf("marshal specifications: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO products (id, name, code, category, base_price, description, specifications, analysis_record_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		product.ID, product.Name, product.Code, product.Category, product.BasePrice,
		product.Description, specsJSON, product.AnalysisRecordID, product.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}

	finalJSON, err := json.Marshal(finalData)
	if err != nil {
		return nil, fmt.Errorf("marshal final data: %w", err)
	}
	modificationsJSON, err := marshalNullable(modifications)
	if err != nil {
		return nil, fmt.Errorf("marshal modifications: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
UPDATE analysis_records
SET final_data = $2, user_modifications = $3, created_product_id = $4
WHERE id = $1
`, record.ID, finalJSON, modificationsJSON, product.ID)
	if err != nil {
		return nil, fmt.Errorf("update analysis record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit materialize tx: %w", err)
	}
	return product, nil
}
