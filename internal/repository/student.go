package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type StudentRepository struct {
	db *sql.DB
}

func NewStudentRepository(db *sql.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) IsLinked(ctx context.Context, parentID, studentID uuid.UUID) (bool, error) {
	var linked bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM parent_students WHERE parent_id = $1 AND student_id = $2
		)`,
		parentID, studentID,
	).Scan(&linked)
	if err != nil {
		return false, fmt.Errorf("IsLinked: %w", err)
	}
	return linked, nil
}
