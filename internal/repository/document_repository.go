package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tutorium/intake-api/internal/models"
)

// DocumentRepository manages student document metadata.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs a DocumentRepository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO documents (id, org_id, student_id, file_name, content_type, size_bytes, storage_path, uploaded_by, created_at)
        VALUES (:id, :org_id, :student_id, :file_name, :content_type, :size_bytes, :storage_path, :uploaded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// FindByID fetches a document by ID within an organization.
func (r *DocumentRepository) FindByID(ctx context.Context, orgID, id string) (*models.Document, error) {
	const query = `SELECT id, org_id, student_id, file_name, content_type, size_bytes, storage_path, uploaded_by, created_at
        FROM documents WHERE id = $1 AND org_id = $2`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id, orgID); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByStudent returns a student's documents, newest first.
func (r *DocumentRepository) ListByStudent(ctx context.Context, orgID, studentID string) ([]models.Document, error) {
	const query = `SELECT id, org_id, student_id, file_name, content_type, size_bytes, storage_path, uploaded_by, created_at
        FROM documents WHERE org_id = $1 AND student_id = $2 ORDER BY created_at DESC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, orgID, studentID); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document row.
func (r *DocumentRepository) Delete(ctx context.Context, orgID, id string) error {
	const query = `DELETE FROM documents WHERE id = $1 AND org_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, orgID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
