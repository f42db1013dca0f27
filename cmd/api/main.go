package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/onboarding-api/internal/config"
	approvalHandler "github.com/jwalitptl/onboarding-api/internal/handler/approval"
	auditHandler "github.com/jwalitptl/onboarding-api/internal/handler/audit"
	authHandler "github.com/jwalitptl/onboarding-api/internal/handler/auth"
	clinicHandler "github.com/jwalitptl/onboarding-api/internal/handler/clinic"
	doctorHandler "github.com/jwalitptl/onboarding-api/internal/handler/doctor"
	"github.com/jwalitptl/onboarding-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/onboarding-api/internal/handler/patient"
	permissionHandler "github.com/jwalitptl/onboarding-api/internal/handler/permission"
	promHandler "github.com/jwalitptl/onboarding-api/internal/handler/prometheus"
	rbacHandler "github.com/jwalitptl/onboarding-api/internal/handler/rbac"
	userHandler "github.com/jwalitptl/onboarding-api/internal/handler/user"
	"github.com/jwalitptl/onboarding-api/internal/middleware"
	"github.com/jwalitptl/onboarding-api/internal/repository/postgres"
	"github.com/jwalitptl/onboarding-api/internal/router"
	approvalService "github.com/jwalitptl/onboarding-api/internal/service/approval"
	auditService "github.com/jwalitptl/onboarding-api/internal/service/audit"
	authService "github.com/jwalitptl/onboarding-api/internal/service/auth"
	"github.com/jwalitptl/onboarding-api/internal/service/notification"
	"github.com/jwalitptl/onboarding-api/internal/service/onboarding"
	permissionService "github.com/jwalitptl/onboarding-api/internal/service/permission"
	profileService "github.com/jwalitptl/onboarding-api/internal/service/profile"
	rbacService "github.com/jwalitptl/onboarding-api/internal/service/rbac"
	roleService "github.com/jwalitptl/onboarding-api/internal/service/role"
	userService "github.com/jwalitptl/onboarding-api/internal/service/user"
	"github.com/jwalitptl/onboarding-api/pkg/auth"
	"github.com/jwalitptl/onboarding-api/pkg/logger"
	"github.com/jwalitptl/onboarding-api/pkg/metrics"
	"github.com/jwalitptl/onboarding-api/pkg/security"
)

const metricsNamespace = "onboarding"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	zl := logger.New(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
	})
	log.Logger = zl

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(db, zl).Up(ctx); err != nil {
			zl.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(registry, metricsNamespace)

	// Repositories
	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	doctorRepo := postgres.NewDoctorRepository(base)
	clinicRepo := postgres.NewClinicRepository(base)
	roleRepo := postgres.NewRoleRepository(base)
	permRepo := postgres.NewPermissionRepository(base)
	approvalRepo := postgres.NewApprovalRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)
	auditRepo := postgres.NewAuditRepository(base)

	// Services
	permSvc := permissionService.NewService(permRepo, roleRepo, zl)
	if err := permSvc.Seed(ctx); err != nil {
		zl.Fatal().Err(err).Msg("failed to seed permissions")
	}

	auditSvc := auditService.NewService(auditRepo, zl)
	auditor := auditService.NewAuditLogger(auditSvc)
	sealer, err := notification.NewPayloadSealer(cfg.Outbox.PayloadKey)
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to build payload sealer")
	}
	notifier := notification.NewOutboxNotifier(outboxRepo, sealer, appMetrics, zl)
	hasher := security.NewBcryptHasher(0)
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())

	authz := rbacService.NewService(userRepo, roleRepo, cfg.Authz.CacheTTL, appMetrics, zl)
	approvals := approvalService.NewService(approvalRepo, userRepo, doctorRepo, clinicRepo, zl)
	onboardingSvc := onboarding.NewService(onboarding.Dependencies{
		Users:     userRepo,
		Doctors:   doctorRepo,
		Clinics:   clinicRepo,
		Approvals: approvals,
		Notifier:  notifier,
		Auditor:   auditor,
		Metrics:   appMetrics,
		Fallback:  cfg.Onboarding.Fallback(),
		Logger:    zl,
	})
	profiles := profileService.NewService(userRepo, doctorRepo, clinicRepo, hasher, notifier, auditor, zl)
	users := userService.NewService(userRepo, profiles, auditor, zl)
	roles := roleService.NewService(roleRepo, userRepo, permSvc, authz, auditor, zl)
	authenticator := authService.NewService(userRepo, jwtSvc, hasher, cfg.JWT.Expiry(), auditor, zl)

	if err := middleware.RegisterValidators(); err != nil {
		zl.Fatal().Err(err).Msg("failed to register validators")
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(jwtSvc, authz, users),
		health.NewHandler(db),
		promHandler.New(registry, metricsNamespace),
		[]router.PublicHandler{
			authHandler.NewHandler(authenticator),
		},
		[]router.Handler{
			userHandler.NewHandler(users),
			patientHandler.NewHandler(users),
			doctorHandler.NewHandler(onboardingSvc),
			clinicHandler.NewHandler(onboardingSvc, approvals, profiles),
			approvalHandler.NewHandler(approvals, onboardingSvc),
			permissionHandler.NewHandler(permSvc, authz),
			rbacHandler.NewHandler(roles),
			auditHandler.NewHandler(auditSvc),
		},
		router.RouterConfig{
			Mode:         cfg.Server.Mode,
			RateLimit:    rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:    cfg.RateLimit.Burst,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
			CORSConfig:   middleware.DefaultCORSConfig(cfg.Server.CORSOrigins),
		},
	)
	r.Setup()

	if cfg.Outbox.Embedded {
		processor, closeBroker, err := notification.NewOutboxProcessor(cfg, outboxRepo, appMetrics, zl)
		if err != nil {
			zl.Fatal().Err(err).Msg("failed to start outbox processor")
		}
		defer closeBroker()
		go processor.Start(ctx)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zl.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	zl.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error().Err(err).Msg("server forced to shutdown")
	}

	zl.Info().Msg("server exited properly")
}
