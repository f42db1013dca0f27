package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/onboarding-api/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// ApprovalFilter narrows an approval listing. Scope is always applied.
type ApprovalFilter struct {
	Scope  model.ApprovalScope
	Status *model.ApprovalStatus
}

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		// UpdateSystemRole sets the fixed role and, when stage is non-nil, the onboarding stage.
		UpdateSystemRole(ctx context.Context, id uuid.UUID, role model.SystemRole, stage *model.OnboardingStage) error
		UpdateStage(ctx context.Context, id uuid.UUID, stage model.OnboardingStage) error
		AssignRole(ctx context.Context, id uuid.UUID, roleID *uuid.UUID) error
		Delete(ctx context.Context, id uuid.UUID) error
		// ListByRole returns users whose system role matches role case-insensitively.
		ListByRole(ctx context.Context, role model.SystemRole) ([]*model.User, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.Doctor, error)
	}

	ClinicRepository interface {
		Create(ctx context.Context, clinic *model.Clinic) error
		Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Clinic, error)
		Update(ctx context.Context, clinic *model.Clinic) error
	}

	RoleRepository interface {
		// Create inserts role together with its permission grants in one transaction.
		Create(ctx context.Context, role *model.Role, permissionIDs []uuid.UUID) error
		Get(ctx context.Context, id uuid.UUID) (*model.Role, error)
		GetByName(ctx context.Context, name string) (*model.Role, error)
		List(ctx context.Context) ([]*model.Role, error)
		Update(ctx context.Context, role *model.Role) error
		Delete(ctx context.Context, id uuid.UUID) error
		// EnsureSystem inserts the row for a fixed role if no role with that name exists.
		EnsureSystem(ctx context.Context, role *model.Role) error
		SetPermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error
		ListPermissions(ctx context.Context, roleID uuid.UUID) ([]*model.Permission, error)
		HasPermission(ctx context.Context, roleID uuid.UUID, resource, action string) (bool, error)
	}

	PermissionRepository interface {
		// Upsert inserts p unless (resource, action) exists. created reports an insert.
		Upsert(ctx context.Context, p *model.Permission) (created bool, err error)
		Find(ctx context.Context, resource, action string) (*model.Permission, error)
		List(ctx context.Context) ([]*model.Permission, error)
	}

	ApprovalRepository interface {
		// CreateOrRefresh inserts req as PENDING, or overwrites the request_data of the
		// existing PENDING request for the same (user, entity, type, clinic). The user's
		// onboarding stage is set to stage in the same transaction, and so is the doctor
		// or clinic carried in req.Entity when one is set. On refresh req is replaced by
		// the stored row.
		CreateOrRefresh(ctx context.Context, req *model.ApprovalRequest, stage model.OnboardingStage) (refreshed bool, err error)
		Get(ctx context.Context, id uuid.UUID, scope model.ApprovalScope) (*model.ApprovalRequest, error)
		List(ctx context.Context, filter ApprovalFilter) ([]*model.ApprovalRequest, error)
		ListByUser(ctx context.Context, userID uuid.UUID, status *model.ApprovalStatus) ([]*model.ApprovalRequest, error)
		// Decide applies d to a PENDING request visible in d.Scope and moves the user's
		// stage to d.NextStage. ErrNotFound when no such pending request exists.
		Decide(ctx context.Context, d *model.Decision) (*model.ApprovalRequest, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending locks up to limit due events and hides them from other
		// workers until lease elapses.
		ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filter *model.AuditFilter) ([]*model.AuditLog, int64, error)
		Cleanup(ctx context.Context, before time.Time) (int64, error)
	}
)
