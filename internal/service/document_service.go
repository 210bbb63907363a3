package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutorium/intake-api/internal/models"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
	"github.com/tutorium/intake-api/pkg/storage"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, orgID, id string) (*models.Document, error)
	ListByStudent(ctx context.Context, orgID, studentID string) ([]models.Document, error)
	Delete(ctx context.Context, orgID, id string) error
}

// DocumentUpload carries an incoming file.
type DocumentUpload struct {
	StudentID   string
	FileName    string
	ContentType string
	SizeBytes   int64
	Body        io.Reader
}

// DocumentDownload aggregates resolved download data.
type DocumentDownload struct {
	File        *os.File
	FileName    string
	ContentType string
}

// DocumentServiceConfig limits what uploads are accepted.
type DocumentServiceConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	SignedURLTTL     time.Duration
}

// DocumentService stores files against student records. Bytes live on disk
// under the org's directory; the database row carries metadata only.
type DocumentService struct {
	repo     documentStore
	students candidateReader
	store    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      DocumentServiceConfig
}

// NewDocumentService constructs a DocumentService instance.
func NewDocumentService(repo documentStore, students candidateReader, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 10 << 20
	}
	return &DocumentService{repo: repo, students: students, store: store, signer: signer, logger: logger, cfg: cfg}
}

// Upload validates and stores a file against a student record.
func (s *DocumentService) Upload(ctx context.Context, orgID string, actor Actor, upload DocumentUpload) (*models.Document, error) {
	if !models.Authorize(actor.Role, models.PermDocumentWrite) {
		return nil, appErrors.ErrForbidden
	}
	if upload.FileName == "" || upload.Body == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.SizeBytes > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
	}
	if !s.mimeAllowed(upload.ContentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("content type %q is not accepted", upload.ContentType))
	}

	if _, err := s.students.FindByID(ctx, orgID, upload.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	doc := &models.Document{
		ID:          uuid.NewString(),
		OrgID:       orgID,
		StudentID:   upload.StudentID,
		FileName:    upload.FileName,
		ContentType: upload.ContentType,
		SizeBytes:   upload.SizeBytes,
		UploadedBy:  actor.UserID,
	}
	relPath := filepath.Join(orgID, doc.ID+filepath.Ext(upload.FileName))
	stored, err := s.store.SaveStream(relPath, io.LimitReader(upload.Body, s.cfg.MaxFileSizeBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	doc.StoragePath = stored

	if err := s.repo.Create(ctx, doc); err != nil {
		if removeErr := s.store.Delete(relPath); removeErr != nil {
			s.logger.Warn("failed to remove orphaned file", zap.String("path", relPath), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document record")
	}
	return doc, nil
}

// ListByStudent returns document metadata for a student.
func (s *DocumentService) ListByStudent(ctx context.Context, orgID string, actor Actor, studentID string) ([]models.Document, error) {
	if !models.Authorize(actor.Role, models.PermDocumentRead) {
		return nil, appErrors.ErrForbidden
	}
	docs, err := s.repo.ListByStudent(ctx, orgID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// SignedURL issues a download token for one document.
func (s *DocumentService) SignedURL(ctx context.Context, orgID string, actor Actor, id string) (string, time.Time, error) {
	if !models.Authorize(actor.Role, models.PermDocumentRead) {
		return "", time.Time{}, appErrors.ErrForbidden
	}
	doc, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.StoragePath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return token, expiresAt, nil
}

// Download resolves a signed token to the stored file.
func (s *DocumentService) Download(ctx context.Context, orgID string, token string) (*DocumentDownload, error) {
	docID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	doc, err := s.repo.FindByID(ctx, orgID, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.StoragePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document is not available")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return &DocumentDownload{File: file, FileName: doc.FileName, ContentType: doc.ContentType}, nil
}

// Delete removes a document record and its file.
func (s *DocumentService) Delete(ctx context.Context, orgID string, actor Actor, id string) error {
	if !models.Authorize(actor.Role, models.PermDocumentWrite) || !models.IsElevated(actor.Role) {
		return appErrors.ErrForbidden
	}
	doc, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if err := s.store.Delete(doc.StoragePath); err != nil {
		s.logger.Warn("failed to remove stored file", zap.String("path", doc.StoragePath), zap.Error(err))
	}
	return nil
}

func (s *DocumentService) mimeAllowed(contentType string) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return true
	}
	for _, mime := range s.cfg.AllowedMIMEs {
		if mime == contentType {
			return true
		}
	}
	return false
}
