package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
)

const approvalColumns = `id, request_type, user_id, entity_id, clinic_id, status, rejection_reason,
	reviewed_by, reviewed_at, renewal_date, request_data, created_at, updated_at`

// createOrRefreshAttempts bounds retries of the pending-request upsert under contention.
const createOrRefreshAttempts = 3

type approvalRepository struct {
	BaseRepository
}

func NewApprovalRepository(base BaseRepository) repository.ApprovalRepository {
	return &approvalRepository{base}
}

// scopeClause renders the tenant filter for scope. next is the first free placeholder index.
func scopeClause(scope model.ApprovalScope, next int) (string, []interface{}) {
	if clinicID, ok := scope.ClinicID(); ok {
		return fmt.Sprintf("clinic_id = $%d AND request_type = '%s'", next, model.RequestTypeDoctor), []interface{}{clinicID}
	}
	return "clinic_id IS NULL", nil
}

// writeEntity stores the profile change carried by entity, if any.
func writeEntity(ctx context.Context, tx *sqlx.Tx, entity model.ApprovalEntity) error {
	switch e := entity.(type) {
	case model.DoctorEntity:
		if e.Doctor != nil {
			return updateDoctor(ctx, tx, e.Doctor)
		}
	case model.ClinicEntity:
		if e.Clinic != nil {
			return updateClinic(ctx, tx, e.Clinic)
		}
	}
	return nil
}

func (r *approvalRepository) CreateOrRefresh(ctx context.Context, req *model.ApprovalRequest, stage model.OnboardingStage) (bool, error) {
	if !req.RequestType.Valid() {
		return false, fmt.Errorf("invalid request type %q", req.RequestType)
	}
	if req.ClinicID != nil && req.RequestType != model.RequestTypeDoctor {
		return false, fmt.Errorf("clinic-scoped approval request must be of type %s", model.RequestTypeDoctor)
	}
	if req.RequestData == nil {
		req.RequestData = model.JSONMap{}
	}

	findQuery := `
		SELECT ` + approvalColumns + `
		FROM approval_requests
		WHERE user_id = $1 AND entity_id = $2 AND request_type = $3
			AND clinic_id IS NOT DISTINCT FROM $4
			AND status = 'PENDING'
		FOR UPDATE
	`
	insertQuery := `
		INSERT INTO approval_requests (
			id, request_type, user_id, entity_id, clinic_id, status,
			request_data, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var (
		stored    model.ApprovalRequest
		refreshed bool
	)
	err := r.WithSerializableTx(ctx, createOrRefreshAttempts, func(tx *sqlx.Tx) error {
		refreshed = false
		now := time.Now().UTC()

		if err := writeEntity(ctx, tx, req.Entity); err != nil {
			return err
		}

		err := tx.GetContext(ctx, &stored, findQuery, req.UserID, req.EntityID, string(req.RequestType), req.ClinicID)
		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE approval_requests SET request_data = $1, updated_at = $2 WHERE id = $3`,
				req.RequestData, now, stored.ID,
			); err != nil {
				return err
			}
			stored.RequestData = req.RequestData
			stored.UpdatedAt = now
			refreshed = true

		case errors.Is(err, sql.ErrNoRows):
			stored = model.ApprovalRequest{
				Base:        model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
				RequestType: req.RequestType,
				UserID:      req.UserID,
				EntityID:    req.EntityID,
				ClinicID:    req.ClinicID,
				Status:      model.ApprovalStatusPending,
				RequestData: req.RequestData,
			}
			if _, err := tx.ExecContext(ctx, insertQuery,
				stored.ID,
				string(stored.RequestType),
				stored.UserID,
				stored.EntityID,
				stored.ClinicID,
				string(stored.Status),
				stored.RequestData,
				stored.CreatedAt,
				stored.UpdatedAt,
			); err != nil {
				return err
			}

		default:
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE users SET onboarding_stage = $1, updated_at = $2 WHERE id = $3`,
			string(stage), now, req.UserID,
		)
		return err
	})
	if err != nil {
		return false, translate("create or refresh approval request", err)
	}

	entity := req.Entity
	*req = stored
	req.Entity = entity
	return refreshed, nil
}

func (r *approvalRepository) Get(ctx context.Context, id uuid.UUID, scope model.ApprovalScope) (*model.ApprovalRequest, error) {
	clause, scopeArgs := scopeClause(scope, 2)
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE id = $1 AND ` + clause

	var req model.ApprovalRequest
	args := append([]interface{}{id}, scopeArgs...)
	if err := r.db.GetContext(ctx, &req, query, args...); err != nil {
		return nil, translate("get approval request", err)
	}
	return &req, nil
}

func (r *approvalRepository) List(ctx context.Context, filter repository.ApprovalFilter) ([]*model.ApprovalRequest, error) {
	clause, args := scopeClause(filter.Scope, 1)
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE ` + clause

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	var reqs []*model.ApprovalRequest
	if err := r.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, translate("list approval requests", err)
	}
	return reqs, nil
}

func (r *approvalRepository) ListByUser(ctx context.Context, userID uuid.UUID, status *model.ApprovalStatus) ([]*model.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE user_id = $1`
	args := []interface{}{userID}

	if status != nil {
		args = append(args, string(*status))
		query += " AND status = $2"
	}
	query += " ORDER BY created_at DESC"

	var reqs []*model.ApprovalRequest
	if err := r.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, translate("list user approval requests", err)
	}
	return reqs, nil
}

// Decide only matches rows still PENDING, so a second decision on the same
// request updates nothing and yields ErrNotFound.
func (r *approvalRepository) Decide(ctx context.Context, d *model.Decision) (*model.ApprovalRequest, error) {
	if d.Status != model.ApprovalStatusApproved && d.Status != model.ApprovalStatusRejected {
		return nil, fmt.Errorf("invalid decision status %q", d.Status)
	}
	if d.ReviewedAt.IsZero() {
		d.ReviewedAt = time.Now().UTC()
	}

	clause, scopeArgs := scopeClause(d.Scope, 7)
	query := `
		UPDATE approval_requests
		SET status = $1,
			rejection_reason = $2,
			reviewed_by = $3,
			reviewed_at = $4,
			renewal_date = COALESCE($5, renewal_date),
			updated_at = $4
		WHERE id = $6 AND status = 'PENDING' AND ` + clause + `
		RETURNING ` + approvalColumns

	args := append([]interface{}{
		string(d.Status),
		d.RejectionReason,
		d.ReviewerID,
		d.ReviewedAt,
		d.RenewalDate,
		d.RequestID,
	}, scopeArgs...)

	var updated model.ApprovalRequest
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &updated, query, args...); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE users SET onboarding_stage = $1, updated_at = $2 WHERE id = $3`,
			string(d.NextStage), d.ReviewedAt, updated.UserID,
		)
		return err
	})
	if err != nil {
		return nil, translate("decide approval request", err)
	}
	return &updated, nil
}
