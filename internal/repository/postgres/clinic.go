package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
)

const clinicColumns = `id, user_id, name, email, phone, address, registration_number, documents, created_at, updated_at`

type clinicRepository struct {
	BaseRepository
}

func NewClinicRepository(base BaseRepository) repository.ClinicRepository {
	return &clinicRepository{base}
}

func (r *clinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	query := `
		INSERT INTO clinics (
			id, user_id, name, email, phone, address,
			registration_number, documents, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`
	if clinic.ID == uuid.Nil {
		clinic.ID = uuid.New()
	}
	if clinic.Documents == nil {
		clinic.Documents = model.JSONMap{}
	}
	now := time.Now().UTC()
	clinic.CreatedAt = now
	clinic.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		clinic.ID,
		clinic.UserID,
		clinic.Name,
		clinic.Email,
		clinic.Phone,
		clinic.Address,
		clinic.RegistrationNumber,
		clinic.Documents,
		clinic.CreatedAt,
		clinic.UpdatedAt,
	)
	return translate("create clinic", err)
}

func (r *clinicRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinics WHERE id = $1`

	var clinic model.Clinic
	if err := r.db.GetContext(ctx, &clinic, query, id); err != nil {
		return nil, translate("get clinic", err)
	}
	return &clinic, nil
}

func (r *clinicRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinics WHERE user_id = $1`

	var clinic model.Clinic
	if err := r.db.GetContext(ctx, &clinic, query, userID); err != nil {
		return nil, translate("get clinic by user", err)
	}
	return &clinic, nil
}

func (r *clinicRepository) Update(ctx context.Context, clinic *model.Clinic) error {
	return updateClinic(ctx, r.db, clinic)
}

func updateClinic(ctx context.Context, ex sqlx.ExecerContext, clinic *model.Clinic) error {
	query := `
		UPDATE clinics
		SET name = $1, email = $2, phone = $3, address = $4,
			registration_number = $5, documents = $6, updated_at = $7
		WHERE id = $8
	`
	clinic.UpdatedAt = time.Now().UTC()

	result, err := ex.ExecContext(ctx, query,
		clinic.Name,
		clinic.Email,
		clinic.Phone,
		clinic.Address,
		clinic.RegistrationNumber,
		clinic.Documents,
		clinic.UpdatedAt,
		clinic.ID,
	)
	if err != nil {
		return translate("update clinic", err)
	}
	return expectOne("update clinic", result)
}
