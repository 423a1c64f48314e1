package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/database"
)

var (
	// ErrFeeStructureNotFound is returned when the fee structure does not exist.
	ErrFeeStructureNotFound = errors.New("fee structure not found")
	// ErrFeeStructureInactive is returned when an inactive fee is used to price a new assessment.
	ErrFeeStructureInactive = errors.New("fee structure inactive")
	// ErrFeeTypeMismatch is returned when the fee type does not match the bill kind.
	ErrFeeTypeMismatch = errors.New("fee structure type does not match bill kind")
	// ErrDuplicateFeeStructure is returned when (name, type) is already taken.
	ErrDuplicateFeeStructure = errors.New("fee structure already exists")
)

const feeStructureColumns = `id, name, type, amount, currency, description, active, created_at, updated_at`

// FeeStructureRepository manages the fee catalog.
type FeeStructureRepository struct {
	db *sqlx.DB
}

// NewFeeStructureRepository constructs a FeeStructureRepository.
func NewFeeStructureRepository(db *sqlx.DB) *FeeStructureRepository {
	return &FeeStructureRepository{db: db}
}

// FindByID returns a fee structure or ErrFeeStructureNotFound.
func (r *FeeStructureRepository) FindByID(ctx context.Context, id string) (*models.FeeStructure, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_structures WHERE id = $1`, feeStructureColumns)
	var fee models.FeeStructure
	if err := r.db.GetContext(ctx, &fee, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFeeStructureNotFound
		}
		return nil, fmt.Errorf("find fee structure: %w", err)
	}
	return &fee, nil
}

// List returns fee structures matching the filter with the total count.
func (r *FeeStructureRepository) List(ctx context.Context, filter models.FeeStructureFilter) ([]models.FeeStructure, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM fee_structures WHERE %s ORDER BY type ASC, name ASC LIMIT %d OFFSET %d`,
		feeStructureColumns, where, size, (page-1)*size)
	fees := make([]models.FeeStructure, 0)
	if err := r.db.SelectContext(ctx, &fees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fee structures: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf(`SELECT COUNT(*) FROM fee_structures WHERE %s`, where), args...); err != nil {
		return nil, 0, fmt.Errorf("count fee structures: %w", err)
	}
	return fees, total, nil
}

// Create inserts a fee structure.
func (r *FeeStructureRepository) Create(ctx context.Context, fee *models.FeeStructure) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	const query = `INSERT INTO fee_structures (id, name, type, amount, currency, description, active, created_at, updated_at)
VALUES (:id, :name, :type, :amount, :currency, :description, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicateFeeStructure
		}
		return fmt.Errorf("create fee structure: %w", err)
	}
	return nil
}

// Update persists the mutable fields of a fee structure.
func (r *FeeStructureRepository) Update(ctx context.Context, fee *models.FeeStructure) error {
	const query = `UPDATE fee_structures
SET name = :name, amount = :amount, currency = :currency, description = :description, active = :active, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, fee)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicateFeeStructure
		}
		return fmt.Errorf("update fee structure: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update fee structure rows: %w", err)
	}
	if affected == 0 {
		return ErrFeeStructureNotFound
	}
	return nil
}

// getFeeStructureForShare reads the fee inside a billing transaction. The
// share lock keeps its amount stable until the assessment is written.
func getFeeStructureForShare(ctx context.Context, tx *sqlx.Tx, id string) (*models.FeeStructure, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_structures WHERE id = $1 FOR SHARE`, feeStructureColumns)
	var fee models.FeeStructure
	if err := tx.GetContext(ctx, &fee, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFeeStructureNotFound
		}
		return nil, fmt.Errorf("load fee structure: %w", err)
	}
	return &fee, nil
}
