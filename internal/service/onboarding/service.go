package onboarding

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
	"github.com/jwalitptl/onboarding-api/internal/service"
	"github.com/jwalitptl/onboarding-api/internal/service/approval"
	"github.com/jwalitptl/onboarding-api/internal/service/audit"
	"github.com/jwalitptl/onboarding-api/internal/service/notification"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
	"github.com/jwalitptl/onboarding-api/pkg/metrics"
)

type Dependencies struct {
	Users     repository.UserRepository
	Doctors   repository.DoctorRepository
	Clinics   repository.ClinicRepository
	Approvals *approval.Service
	Notifier  notification.Notifier
	Auditor   audit.Recorder
	Metrics   *metrics.Metrics
	// Fallback is used when a call does not name a contact fallback policy.
	Fallback model.FallbackPolicy
	Logger   zerolog.Logger
}

// Service moves doctors and clinics through profile submission and review.
type Service struct {
	users     repository.UserRepository
	doctors   repository.DoctorRepository
	clinics   repository.ClinicRepository
	approvals *approval.Service
	notifier  notification.Notifier
	auditor   audit.Recorder
	metrics   *metrics.Metrics
	fallback  model.FallbackPolicy
	logger    zerolog.Logger
}

func NewService(deps Dependencies) *Service {
	fallback := deps.Fallback
	if _, ok := model.ParseFallbackPolicy(string(fallback)); !ok {
		fallback = model.FallbackAdmin
	}
	auditor := deps.Auditor
	if auditor == nil {
		auditor = audit.NopRecorder{}
	}
	return &Service{
		users:     deps.Users,
		doctors:   deps.Doctors,
		clinics:   deps.Clinics,
		approvals: deps.Approvals,
		notifier:  deps.Notifier,
		auditor:   auditor,
		metrics:   deps.Metrics,
		fallback:  fallback,
		logger:    deps.Logger.With().Str("component", "onboarding").Logger(),
	}
}

func (s *Service) resolveFallback(policy model.FallbackPolicy) (model.FallbackPolicy, error) {
	if policy == "" {
		return s.fallback, nil
	}
	p, ok := model.ParseFallbackPolicy(string(policy))
	if !ok {
		return "", apperrors.Validation("invalid fallback policy: " + string(policy))
	}
	return p, nil
}

func (s *Service) getUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, service.StoreError("user", err)
	}
	return user, nil
}

// nextStage validates event against the user's stored stage.
func nextStage(user *model.User, event model.OnboardingEvent) (model.OnboardingStage, error) {
	next, err := model.NextStage(user.OnboardingStage, event)
	if err != nil {
		return "", apperrors.BadRequest("invalid onboarding transition", err)
	}
	return next, nil
}

// adminEmails returns the addresses of every ADMIN user. Lookup failures are logged
// and yield no recipients.
func (s *Service) adminEmails(ctx context.Context) []string {
	admins, err := s.users.ListByRole(ctx, model.RoleAdmin)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to resolve admin recipients")
		return nil
	}
	emails := make([]string, 0, len(admins))
	for _, a := range admins {
		if strings.TrimSpace(a.Email) != "" {
			emails = append(emails, a.Email)
		}
	}
	return emails
}

func (s *Service) notifyAdmins(ctx context.Context, template model.TemplateKey, payload map[string]interface{}) {
	s.notifier.Notify(ctx, model.Notification{
		Target:     model.TargetAdmin,
		Recipients: s.adminEmails(ctx),
		Template:   template,
		Payload:    payload,
	})
}

func (s *Service) notifyOne(ctx context.Context, target model.NotificationTarget, email string, template model.TemplateKey, payload map[string]interface{}) {
	if strings.TrimSpace(email) == "" {
		target = model.TargetNone
	}
	s.notifier.Notify(ctx, model.Notification{
		Target:     target,
		Recipients: []string{email},
		Template:   template,
		Payload:    payload,
	})
}

// loadClinicContact fetches a clinic together with its linked user. A missing clinic
// or user is not an error.
func (s *Service) loadClinicContact(ctx context.Context, clinicID uuid.UUID) *model.Clinic {
	clinic, err := s.clinics.Get(ctx, clinicID)
	if err != nil {
		s.logger.Warn().Err(err).Str("clinic_id", clinicID.String()).Msg("failed to load clinic for notification")
		return nil
	}
	if user, err := s.users.Get(ctx, clinic.UserID); err == nil {
		clinic.User = user
	}
	return clinic
}
