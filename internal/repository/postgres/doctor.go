package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
)

const doctorColumns = `id, user_id, clinic_id, specialization, license_number, qualification,
	experience_years, bio, documents, created_at, updated_at`

type doctorRepository struct {
	BaseRepository
}

func NewDoctorRepository(base BaseRepository) repository.DoctorRepository {
	return &doctorRepository{base}
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (
			id, user_id, clinic_id, specialization, license_number, qualification,
			experience_years, bio, documents, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	if doctor.Documents == nil {
		doctor.Documents = model.JSONMap{}
	}
	now := time.Now().UTC()
	doctor.CreatedAt = now
	doctor.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		doctor.ID,
		doctor.UserID,
		doctor.ClinicID,
		doctor.Specialization,
		doctor.LicenseNumber,
		doctor.Qualification,
		doctor.ExperienceYears,
		doctor.Bio,
		doctor.Documents,
		doctor.CreatedAt,
		doctor.UpdatedAt,
	)
	return translate("create doctor", err)
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`

	var doctor model.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, id); err != nil {
		return nil, translate("get doctor", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE user_id = $1`

	var doctor model.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, userID); err != nil {
		return nil, translate("get doctor by user", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	return updateDoctor(ctx, r.db, doctor)
}

// updateDoctor writes doctor through ex, which is either the pool or an open transaction.
func updateDoctor(ctx context.Context, ex sqlx.ExecerContext, doctor *model.Doctor) error {
	query := `
		UPDATE doctors
		SET clinic_id = $1, specialization = $2, license_number = $3, qualification = $4,
			experience_years = $5, bio = $6, documents = $7, updated_at = $8
		WHERE id = $9
	`
	doctor.UpdatedAt = time.Now().UTC()

	result, err := ex.ExecContext(ctx, query,
		doctor.ClinicID,
		doctor.Specialization,
		doctor.LicenseNumber,
		doctor.Qualification,
		doctor.ExperienceYears,
		doctor.Bio,
		doctor.Documents,
		doctor.UpdatedAt,
		doctor.ID,
	)
	if err != nil {
		return translate("update doctor", err)
	}
	return expectOne("update doctor", result)
}

func (r *doctorRepository) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE clinic_id = $1 ORDER BY created_at`

	var doctors []*model.Doctor
	if err := r.db.SelectContext(ctx, &doctors, query, clinicID); err != nil {
		return nil, translate("list clinic doctors", err)
	}
	return doctors, nil
}
