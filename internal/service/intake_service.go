package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/tutorium/intake-api/internal/dto"
	"github.com/tutorium/intake-api/internal/models"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
)

type intakeStore interface {
	ListPending(ctx context.Context, filter models.IntakeFilter) ([]models.Student, error)
	ListDismissed(ctx context.Context, orgID string) ([]models.Student, error)
	Assign(ctx context.Context, orgID, studentID, instructorID, name, contactName, contactPhone string) (*models.Student, error)
	Approve(ctx context.Context, orgID, studentID string) (*models.Student, error)
	Dismiss(ctx context.Context, orgID, studentID string) (*models.Student, error)
	Restore(ctx context.Context, orgID, studentID string) (*models.Student, error)
	Merge(ctx context.Context, orgID, sourceID, targetID string, payload models.MergePayload) (*models.MergeResult, error)
}

type candidateReader interface {
	FindByID(ctx context.Context, orgID, id string) (*models.Student, error)
}

type instructorResolver interface {
	ExistsInOrg(ctx context.Context, orgID, id string) (bool, error)
	FindByUserID(ctx context.Context, orgID, userID string) (*models.Instructor, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Actor identifies the caller of a reconciliation transition: the user, the
// role their membership carries in the organization, and request metadata
// for the audit trail.
type Actor struct {
	UserID    string
	Role      models.UserRole
	IPAddress string
	UserAgent string
}

// IntakeService is the reconciliation state machine for intake candidates.
// Each candidate is pending, dismissed, or approved; transitions are guarded
// by role, assignment, and explicit consent, and nothing mutates locally
// before the store confirms.
type IntakeService struct {
	repo        intakeStore
	students    candidateReader
	instructors instructorResolver
	audit       auditLogger
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewIntakeService constructs the intake service.
func NewIntakeService(repo intakeStore, students candidateReader, instructors instructorResolver, audit auditLogger, metrics *MetricsService, logger *zap.Logger) *IntakeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeService{repo: repo, students: students, instructors: instructors, audit: audit, metrics: metrics, logger: logger}
}

// ListQueue returns the pending queue scoped by role: admin-tier callers see
// every candidate with an optional instructor filter (including the
// "unassigned" bucket); instructors see only candidates assigned to their own
// identity.
func (s *IntakeService) ListQueue(ctx context.Context, orgID string, actor Actor, query dto.IntakeQueueQuery) ([]models.Student, error) {
	if !models.Authorize(actor.Role, models.PermIntakeView) {
		return nil, appErrors.ErrForbidden
	}

	filter := models.IntakeFilter{OrgID: orgID}
	if models.IsElevated(actor.Role) {
		filter.InstructorID = query.InstructorID
	} else {
		own, err := s.ownInstructorID(ctx, orgID, actor.UserID)
		if err != nil {
			return nil, err
		}
		if own == "" {
			return []models.Student{}, nil
		}
		filter.InstructorID = own
	}

	candidates, err := s.repo.ListPending(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending candidates")
	}
	return candidates, nil
}

// ListDismissed returns the dismissed bucket. Admin-tier only.
func (s *IntakeService) ListDismissed(ctx context.Context, orgID string, actor Actor) ([]models.Student, error) {
	if !models.IsElevated(actor.Role) {
		return nil, appErrors.ErrForbidden
	}
	candidates, err := s.repo.ListDismissed(ctx, orgID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list dismissed candidates")
	}
	return candidates, nil
}

// Assign sets a candidate's instructor, persisting contact-field edits made
// alongside. The instructor must be known to the organization; an existing
// assignment is replaced, never silently cleared.
func (s *IntakeService) Assign(ctx context.Context, orgID string, actor Actor, studentID string, req dto.AssignInstructorRequest) (*models.Student, error) {
	if !models.Authorize(actor.Role, models.PermIntakeAssign) || !models.IsElevated(actor.Role) {
		return nil, appErrors.ErrForbidden
	}
	if req.AssignedInstructorID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assigned_instructor_id is required")
	}
	known, err := s.instructors.ExistsInOrg(ctx, orgID, req.AssignedInstructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify instructor")
	}
	if !known {
		return nil, appErrors.Clone(appErrors.ErrValidation, "instructor is not part of this organization")
	}

	student, err := s.repo.Assign(ctx, orgID, studentID, req.AssignedInstructorID, req.Name, req.ContactName, req.ContactPhone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "candidate is no longer awaiting approval")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign instructor")
	}

	s.emitAudit(ctx, orgID, actor, models.AuditActionIntakeAssign, studentID, map[string]interface{}{
		"assigned_instructor_id": req.AssignedInstructorID,
	})
	return student, nil
}

// Approve moves a pending candidate onto the active roster. It requires a
// non-null assignment and a verified consent agreement; instructors may
// approve only candidates assigned to themselves, while admin-tier callers
// may approve on anyone's behalf.
func (s *IntakeService) Approve(ctx context.Context, orgID string, actor Actor, studentID string, req dto.ApproveIntakeRequest) (*models.Student, error) {
	if !models.Authorize(actor.Role, models.PermIntakeApprove) {
		return nil, appErrors.ErrForbidden
	}
	if !req.Agreement.Verify(models.ApprovalConsentStatement) {
		return nil, appErrors.ErrConsentRequired
	}

	candidate, err := s.students.FindByID(ctx, orgID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	if state := models.IntakeStateOf(candidate); state != models.IntakeStatePending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "candidate is not pending approval")
	}
	if candidate.AssignedInstructorID == nil {
		return nil, appErrors.ErrUnassignedCandidate
	}

	if !models.IsElevated(actor.Role) {
		own, err := s.ownInstructorID(ctx, orgID, actor.UserID)
		if err != nil {
			return nil, err
		}
		if own == "" || own != *candidate.AssignedInstructorID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned instructor may approve this candidate")
		}
	}

	student, err := s.repo.Approve(ctx, orgID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "candidate is not pending approval")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve candidate")
	}

	// The agreement payload is the only client-captured consent trail.
	s.emitAudit(ctx, orgID, actor, models.AuditActionIntakeApprove, studentID, map[string]interface{}{
		"agreement": req.Agreement,
	})
	return student, nil
}

// Dismiss removes a pending candidate from the active queue, recoverably.
func (s *IntakeService) Dismiss(ctx context.Context, orgID string, actor Actor, studentID string) (*models.Student, error) {
	if !models.Authorize(actor.Role, models.PermIntakeDismiss) || !models.IsElevated(actor.Role) {
		return nil, appErrors.ErrForbidden
	}
	student, err := s.repo.Dismiss(ctx, orgID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "candidate is not pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to dismiss candidate")
	}
	s.emitAudit(ctx, orgID, actor, models.AuditActionIntakeDismiss, studentID, nil)
	return student, nil
}

// Restore returns a dismissed candidate to the pending queue with all other
// fields unchanged.
func (s *IntakeService) Restore(ctx context.Context, orgID string, actor Actor, studentID string) (*models.Student, error) {
	if !models.Authorize(actor.Role, models.PermIntakeDismiss) || !models.IsElevated(actor.Role) {
		return nil, appErrors.ErrForbidden
	}
	student, err := s.repo.Restore(ctx, orgID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "candidate is not dismissed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore candidate")
	}
	s.emitAudit(ctx, orgID, actor, models.AuditActionIntakeRestore, studentID, nil)
	return student, nil
}

// Merge folds a pending candidate into an existing student according to the
// field selections. Irreversible: the source record is retired and its
// documents and session reports follow the target.
func (s *IntakeService) Merge(ctx context.Context, orgID string, actor Actor, req dto.MergeStudentsRequest) (*models.MergeResult, error) {
	if !models.Authorize(actor.Role, models.PermIntakeMerge) || !models.IsElevated(actor.Role) {
		return nil, appErrors.ErrForbidden
	}
	if !req.Agreement.Verify(models.MergeConsentStatement) {
		return nil, appErrors.ErrConsentRequired
	}
	if req.SourceStudentID == "" || req.TargetStudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source_student_id and target_student_id are required")
	}
	if req.SourceStudentID == req.TargetStudentID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot merge a record into itself")
	}
	if err := ValidateMergeSelections(req.Fields); err != nil {
		return nil, err
	}

	source, err := s.students.FindByID(ctx, orgID, req.SourceStudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "merge source not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load merge source")
	}
	if state := models.IntakeStateOf(source); state == models.IntakeStateApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "merge source is no longer an intake candidate")
	}
	target, err := s.students.FindByID(ctx, orgID, req.TargetStudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "merge target not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load merge target")
	}

	payload := ResolveMerge(source, target, req.Fields)
	result, err := s.repo.Merge(ctx, orgID, source.ID, target.ID, payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "merge source was modified concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to merge records")
	}

	s.emitAudit(ctx, orgID, actor, models.AuditActionStudentMerge, target.ID, map[string]interface{}{
		"source_student_id": source.ID,
		"payload":           payload,
		"agreement":         req.Agreement,
	})
	return result, nil
}

func (s *IntakeService) ownInstructorID(ctx context.Context, orgID, userID string) (string, error) {
	instructor, err := s.instructors.FindByUserID(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve instructor identity")
	}
	return instructor.ID, nil
}

func (s *IntakeService) emitAudit(ctx context.Context, orgID string, actor Actor, action, resourceID string, values map[string]interface{}) {
	s.metrics.RecordIntakeTransition(action)
	if s.audit == nil {
		return
	}
	var payload []byte
	if values != nil {
		payload, _ = json.Marshal(values)
	}
	log := &models.AuditLog{
		OrgID:      &orgID,
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "intake",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
