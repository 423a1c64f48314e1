package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DirectoryRepository answers existence questions about records owned by
// the student, exam and certificate subsystems.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository constructs a DirectoryRepository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// StudentExists reports whether the student exists.
func (r *DirectoryRepository) StudentExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`, id, "student")
}

// ExamExists reports whether the exam exists.
func (r *DirectoryRepository) ExamExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM exams WHERE id = $1)`, id, "exam")
}

// CertificateExists reports whether the certificate exists.
func (r *DirectoryRepository) CertificateExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM certificates WHERE id = $1)`, id, "certificate")
}

func (r *DirectoryRepository) exists(ctx context.Context, query, id, entity string) (bool, error) {
	var found bool
	if err := r.db.GetContext(ctx, &found, query, id); err != nil {
		return false, fmt.Errorf("check %s exists: %w", entity, err)
	}
	return found, nil
}
