// Package repotest provides in-memory repository implementations for tests.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
)

// Store holds every table in memory. The repositories it hands out share it.
type Store struct {
	mu sync.Mutex

	users       map[uuid.UUID]*model.User
	doctors     map[uuid.UUID]*model.Doctor
	clinics     map[uuid.UUID]*model.Clinic
	roles       map[uuid.UUID]*model.Role
	permissions map[uuid.UUID]*model.Permission
	rolePerms   map[uuid.UUID]map[uuid.UUID]bool
	approvals   map[uuid.UUID]*model.ApprovalRequest
	outbox      map[uuid.UUID]*model.OutboxEvent
	audit       []*model.AuditLog

	failures map[string]error
}

func NewStore() *Store {
	return &Store{
		users:       map[uuid.UUID]*model.User{},
		doctors:     map[uuid.UUID]*model.Doctor{},
		clinics:     map[uuid.UUID]*model.Clinic{},
		roles:       map[uuid.UUID]*model.Role{},
		permissions: map[uuid.UUID]*model.Permission{},
		rolePerms:   map[uuid.UUID]map[uuid.UUID]bool{},
		approvals:   map[uuid.UUID]*model.ApprovalRequest{},
		outbox:      map[uuid.UUID]*model.OutboxEvent{},
		failures:    map[string]error{},
	}
}

// FailOn makes the operation named op (e.g. "users.Get") return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

func (s *Store) Users() repository.UserRepository             { return &userRepo{s} }
func (s *Store) Doctors() repository.DoctorRepository         { return &doctorRepo{s} }
func (s *Store) Clinics() repository.ClinicRepository         { return &clinicRepo{s} }
func (s *Store) Roles() repository.RoleRepository             { return &roleRepo{s} }
func (s *Store) Permissions() repository.PermissionRepository { return &permissionRepo{s} }
func (s *Store) Approvals() repository.ApprovalRepository     { return &approvalRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository          { return &outboxRepo{s} }
func (s *Store) Audit() repository.AuditRepository            { return &auditRepo{s} }

// ApprovalRows returns every approval request, oldest first.
func (s *Store) ApprovalRows() []*model.ApprovalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.ApprovalRequest, 0, len(s.approvals))
	for _, a := range s.approvals {
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// PutApproval stores req as is, bypassing the pending-request rule.
func (s *Store) PutApproval(req *model.ApprovalRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
		req.UpdatedAt = req.CreatedAt
	}
	c := *req
	c.Entity = nil
	s.approvals[req.ID] = &c
}

// OutboxEvents returns every outbox row, oldest first.
func (s *Store) OutboxEvents() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.OutboxEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// AuditLogs returns every audit row in insertion order.
func (s *Store) AuditLogs() []*model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
}

func duplicate(op string) error {
	return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
}

func stamp(b *model.Base) {
	now := time.Now().UTC()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = now
	b.UpdatedAt = now
}

// users

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.Create"); err != nil {
		return err
	}
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return duplicate("create user")
		}
	}
	stamp(&user.Base)
	c := *user
	r.s.users[user.ID] = &c
	return nil
}

func (r *userRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.Get"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, notFound("get user")
	}
	c := *u
	return &c, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, notFound("get user by email")
}

func (r *userRepo) UpdateSystemRole(_ context.Context, id uuid.UUID, role model.SystemRole, stage *model.OnboardingStage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.UpdateSystemRole"); err != nil {
		return err
	}
	u, ok := r.s.users[id]
	if !ok {
		return notFound("update user role")
	}
	u.Role = string(role)
	if stage != nil {
		u.OnboardingStage = string(*stage)
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *userRepo) UpdateStage(_ context.Context, id uuid.UUID, stage model.OnboardingStage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return notFound("update onboarding stage")
	}
	u.OnboardingStage = string(stage)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *userRepo) AssignRole(_ context.Context, id uuid.UUID, roleID *uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return notFound("assign role")
	}
	u.RoleID = roleID
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *userRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return notFound("delete user")
	}
	delete(r.s.users, id)
	return nil
}

func (r *userRepo) ListByRole(_ context.Context, role model.SystemRole) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.ListByRole"); err != nil {
		return nil, err
	}
	var out []*model.User
	for _, u := range r.s.users {
		if role.Is(u.Role) {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// doctors

type doctorRepo struct{ s *Store }

func (r *doctorRepo) Create(_ context.Context, doctor *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("doctors.Create"); err != nil {
		return err
	}
	for _, d := range r.s.doctors {
		if d.UserID == doctor.UserID {
			return duplicate("create doctor")
		}
		if doctor.LicenseNumber != nil && d.LicenseNumber != nil && *d.LicenseNumber == *doctor.LicenseNumber {
			return duplicate("create doctor")
		}
	}
	if doctor.Documents == nil {
		doctor.Documents = model.JSONMap{}
	}
	stamp(&doctor.Base)
	c := *doctor
	c.User, c.Clinic = nil, nil
	r.s.doctors[doctor.ID] = &c
	return nil
}

func (r *doctorRepo) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("doctors.Get"); err != nil {
		return nil, err
	}
	d, ok := r.s.doctors[id]
	if !ok {
		return nil, notFound("get doctor")
	}
	c := *d
	return &c, nil
}

func (r *doctorRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("doctors.GetByUserID"); err != nil {
		return nil, err
	}
	for _, d := range r.s.doctors {
		if d.UserID == userID {
			c := *d
			return &c, nil
		}
	}
	return nil, notFound("get doctor by user")
}

func (r *doctorRepo) Update(_ context.Context, doctor *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("doctors.Update"); err != nil {
		return err
	}
	if err := r.s.checkDoctor(doctor); err != nil {
		return err
	}
	r.s.putDoctor(doctor)
	return nil
}

func (s *Store) checkDoctor(doctor *model.Doctor) error {
	if _, ok := s.doctors[doctor.ID]; !ok {
		return notFound("update doctor")
	}
	for id, d := range s.doctors {
		if id != doctor.ID && doctor.LicenseNumber != nil && d.LicenseNumber != nil && *d.LicenseNumber == *doctor.LicenseNumber {
			return duplicate("update doctor")
		}
	}
	return nil
}

func (s *Store) putDoctor(doctor *model.Doctor) {
	doctor.UpdatedAt = time.Now().UTC()
	c := *doctor
	c.User, c.Clinic = nil, nil
	s.doctors[doctor.ID] = &c
}

func (r *doctorRepo) ListByClinic(_ context.Context, clinicID uuid.UUID) ([]*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Doctor
	for _, d := range r.s.doctors {
		if d.ClinicID != nil && *d.ClinicID == clinicID {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// clinics

type clinicRepo struct{ s *Store }

func (r *clinicRepo) Create(_ context.Context, clinic *model.Clinic) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("clinics.Create"); err != nil {
		return err
	}
	for _, c := range r.s.clinics {
		if c.UserID == clinic.UserID {
			return duplicate("create clinic")
		}
	}
	if clinic.Documents == nil {
		clinic.Documents = model.JSONMap{}
	}
	stamp(&clinic.Base)
	c := *clinic
	c.User = nil
	r.s.clinics[clinic.ID] = &c
	return nil
}

func (r *clinicRepo) Get(_ context.Context, id uuid.UUID) (*model.Clinic, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("clinics.Get"); err != nil {
		return nil, err
	}
	c, ok := r.s.clinics[id]
	if !ok {
		return nil, notFound("get clinic")
	}
	cp := *c
	return &cp, nil
}

func (r *clinicRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Clinic, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.clinics {
		if c.UserID == userID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, notFound("get clinic by user")
}

func (r *clinicRepo) Update(_ context.Context, clinic *model.Clinic) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("clinics.Update"); err != nil {
		return err
	}
	if _, ok := r.s.clinics[clinic.ID]; !ok {
		return notFound("update clinic")
	}
	r.s.putClinic(clinic)
	return nil
}

func (s *Store) putClinic(clinic *model.Clinic) {
	clinic.UpdatedAt = time.Now().UTC()
	c := *clinic
	c.User = nil
	s.clinics[clinic.ID] = &c
}

// roles

type roleRepo struct{ s *Store }

func (r *roleRepo) nameTaken(name string, except uuid.UUID) bool {
	for id, role := range r.s.roles {
		if id != except && strings.EqualFold(strings.TrimSpace(role.Name), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

func (r *roleRepo) Create(_ context.Context, role *model.Role, permissionIDs []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("roles.Create"); err != nil {
		return err
	}
	if r.nameTaken(role.Name, uuid.Nil) {
		return duplicate("create role")
	}
	for _, id := range permissionIDs {
		if _, ok := r.s.permissions[id]; !ok {
			return fmt.Errorf("add role permission: unknown permission %s", id)
		}
	}
	stamp(&role.Base)
	c := *role
	c.Permissions = nil
	r.s.roles[role.ID] = &c
	r.s.rolePerms[role.ID] = permissionSet(permissionIDs)
	return nil
}

func permissionSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (r *roleRepo) EnsureSystem(_ context.Context, role *model.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role.IsSystem = true
	if r.nameTaken(role.Name, uuid.Nil) {
		return nil
	}
	stamp(&role.Base)
	c := *role
	r.s.roles[role.ID] = &c
	return nil
}

func (r *roleRepo) Get(_ context.Context, id uuid.UUID) (*model.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[id]
	if !ok {
		return nil, notFound("get role")
	}
	c := *role
	return &c, nil
}

func (r *roleRepo) GetByName(_ context.Context, name string) (*model.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, role := range r.s.roles {
		if strings.EqualFold(role.Name, strings.TrimSpace(name)) {
			c := *role
			return &c, nil
		}
	}
	return nil, notFound("get role by name")
}

func (r *roleRepo) List(_ context.Context) ([]*model.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		c := *role
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsSystem != out[j].IsSystem {
			return out[i].IsSystem
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *roleRepo) Update(_ context.Context, role *model.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.roles[role.ID]
	if !ok || existing.IsSystem {
		return notFound("update role")
	}
	if r.nameTaken(role.Name, role.ID) {
		return duplicate("update role")
	}
	existing.Name = role.Name
	existing.DisplayName = role.DisplayName
	existing.Description = role.Description
	existing.UpdatedAt = time.Now().UTC()
	role.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r *roleRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.roles[id]
	if !ok || existing.IsSystem {
		return notFound("delete role")
	}
	delete(r.s.roles, id)
	delete(r.s.rolePerms, id)
	for _, u := range r.s.users {
		if u.RoleID != nil && *u.RoleID == id {
			u.RoleID = nil
		}
	}
	return nil
}

func (r *roleRepo) SetPermissions(_ context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("roles.SetPermissions"); err != nil {
		return err
	}
	if _, ok := r.s.roles[roleID]; !ok {
		return notFound("set role permissions")
	}
	r.s.rolePerms[roleID] = permissionSet(permissionIDs)
	return nil
}

func (r *roleRepo) ListPermissions(_ context.Context, roleID uuid.UUID) ([]*model.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("roles.ListPermissions"); err != nil {
		return nil, err
	}
	var out []*model.Permission
	for pid := range r.s.rolePerms[roleID] {
		if p, ok := r.s.permissions[pid]; ok {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Statement().String() < out[j].Statement().String() })
	return out, nil
}

func (r *roleRepo) HasPermission(_ context.Context, roleID uuid.UUID, resource, action string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("roles.HasPermission"); err != nil {
		return false, err
	}
	for pid := range r.s.rolePerms[roleID] {
		if p, ok := r.s.permissions[pid]; ok && p.Resource == resource && p.Action == action {
			return true, nil
		}
	}
	return false, nil
}

// permissions

type permissionRepo struct{ s *Store }

func (r *permissionRepo) Upsert(_ context.Context, p *model.Permission) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.permissions {
		if existing.Resource == p.Resource && existing.Action == p.Action {
			return false, nil
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	c := *p
	r.s.permissions[p.ID] = &c
	return true, nil
}

func (r *permissionRepo) Find(_ context.Context, resource, action string) (*model.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.permissions {
		if p.Resource == resource && p.Action == action {
			c := *p
			return &c, nil
		}
	}
	return nil, notFound("find permission")
}

func (r *permissionRepo) List(_ context.Context) ([]*model.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Permission, 0, len(r.s.permissions))
	for _, p := range r.s.permissions {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Statement().String() < out[j].Statement().String() })
	return out, nil
}

// approvals

type approvalRepo struct{ s *Store }

func sameClinic(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *approvalRepo) CreateOrRefresh(_ context.Context, req *model.ApprovalRequest, stage model.OnboardingStage) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("approvals.CreateOrRefresh"); err != nil {
		return false, err
	}
	if !req.RequestType.Valid() {
		return false, fmt.Errorf("invalid request type %q", req.RequestType)
	}
	if req.ClinicID != nil && req.RequestType != model.RequestTypeDoctor {
		return false, fmt.Errorf("clinic-scoped approval request must be of type %s", model.RequestTypeDoctor)
	}
	user, ok := r.s.users[req.UserID]
	if !ok {
		return false, notFound("create or refresh approval request")
	}
	var doctor *model.Doctor
	var clinic *model.Clinic
	switch e := req.Entity.(type) {
	case model.DoctorEntity:
		doctor = e.Doctor
	case model.ClinicEntity:
		clinic = e.Clinic
	}
	if doctor != nil {
		if err := r.s.checkDoctor(doctor); err != nil {
			return false, err
		}
	}
	if clinic != nil {
		if _, ok := r.s.clinics[clinic.ID]; !ok {
			return false, notFound("update clinic")
		}
	}
	if req.RequestData == nil {
		req.RequestData = model.JSONMap{}
	}

	entity := req.Entity
	now := time.Now().UTC()
	refreshed := false
	var stored *model.ApprovalRequest
	for _, a := range r.s.approvals {
		if a.Status == model.ApprovalStatusPending && a.UserID == req.UserID && a.EntityID == req.EntityID &&
			a.RequestType == req.RequestType && sameClinic(a.ClinicID, req.ClinicID) {
			stored = a
			break
		}
	}
	if stored != nil {
		stored.RequestData = req.RequestData
		stored.UpdatedAt = now
		refreshed = true
	} else {
		stored = &model.ApprovalRequest{
			Base:        model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			RequestType: req.RequestType,
			UserID:      req.UserID,
			EntityID:    req.EntityID,
			ClinicID:    req.ClinicID,
			Status:      model.ApprovalStatusPending,
			RequestData: req.RequestData,
		}
		r.s.approvals[stored.ID] = stored
	}
	if doctor != nil {
		r.s.putDoctor(doctor)
	}
	if clinic != nil {
		r.s.putClinic(clinic)
	}
	user.OnboardingStage = string(stage)
	user.UpdatedAt = now

	*req = *stored
	req.Entity = entity
	return refreshed, nil
}

func (r *approvalRepo) Get(_ context.Context, id uuid.UUID, scope model.ApprovalScope) (*model.ApprovalRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.approvals[id]
	if !ok || !scope.Admits(a) {
		return nil, notFound("get approval request")
	}
	c := *a
	return &c, nil
}

func (r *approvalRepo) List(_ context.Context, filter repository.ApprovalFilter) ([]*model.ApprovalRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("approvals.List"); err != nil {
		return nil, err
	}
	var out []*model.ApprovalRequest
	for _, a := range r.s.approvals {
		if !filter.Scope.Admits(a) {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *approvalRepo) ListByUser(_ context.Context, userID uuid.UUID, status *model.ApprovalStatus) ([]*model.ApprovalRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ApprovalRequest
	for _, a := range r.s.approvals {
		if a.UserID != userID || (status != nil && a.Status != *status) {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *approvalRepo) Decide(_ context.Context, d *model.Decision) (*model.ApprovalRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("approvals.Decide"); err != nil {
		return nil, err
	}
	if d.Status != model.ApprovalStatusApproved && d.Status != model.ApprovalStatusRejected {
		return nil, fmt.Errorf("invalid decision status %q", d.Status)
	}
	a, ok := r.s.approvals[d.RequestID]
	if !ok || a.Status != model.ApprovalStatusPending || !d.Scope.Admits(a) {
		return nil, notFound("decide approval request")
	}
	if d.ReviewedAt.IsZero() {
		d.ReviewedAt = time.Now().UTC()
	}
	reviewer := d.ReviewerID
	reviewedAt := d.ReviewedAt
	a.Status = d.Status
	a.RejectionReason = d.RejectionReason
	a.ReviewedBy = &reviewer
	a.ReviewedAt = &reviewedAt
	if d.RenewalDate != nil {
		a.RenewalDate = d.RenewalDate
	}
	a.UpdatedAt = reviewedAt
	if u, ok := r.s.users[a.UserID]; ok {
		u.OnboardingStage = string(d.NextStage)
		u.UpdatedAt = reviewedAt
	}
	c := *a
	return &c, nil
}

// outbox

type outboxRepo struct{ s *Store }

func (r *outboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("outbox.Create"); err != nil {
		return err
	}
	event.ID = uuid.New()
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending
	c := *event
	r.s.outbox[event.ID] = &c
	return nil
}

func (r *outboxRepo) ClaimPending(_ context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	var due []*model.OutboxEvent
	for _, e := range r.s.outbox {
		if e.Status != model.OutboxStatusPending && e.Status != model.OutboxStatusRetry {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(now) {
			continue
		}
		due = append(due, e)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	until := now.Add(lease)
	out := make([]*model.OutboxEvent, 0, len(due))
	for _, e := range due {
		e.RetryAt = &until
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

func (r *outboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.outbox[id]
	if !ok {
		return notFound("mark outbox event processed")
	}
	now := time.Now().UTC()
	e.Status = model.OutboxStatusProcessed
	e.ErrorMessage = nil
	e.ProcessedAt = &now
	return nil
}

func (r *outboxRepo) MarkRetry(_ context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.outbox[id]
	if !ok {
		return notFound("schedule outbox retry")
	}
	e.Status = model.OutboxStatusRetry
	e.ErrorMessage = &errMsg
	e.RetryAt = &retryAt
	e.RetryCount++
	return nil
}

func (r *outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.outbox[id]
	if !ok {
		return notFound("mark outbox event failed")
	}
	e.Status = model.OutboxStatusFailed
	e.ErrorMessage = &errMsg
	e.RetryCount++
	return nil
}

func (r *outboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.s.outbox, id)
			n++
		}
	}
	return n, nil
}

// audit

type auditRepo struct{ s *Store }

func (r *auditRepo) Create(_ context.Context, log *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("audit.Create"); err != nil {
		return err
	}
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	c := *log
	r.s.audit = append(r.s.audit, &c)
	return nil
}

func (r *auditRepo) List(_ context.Context, filter *model.AuditFilter) ([]*model.AuditLog, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if filter == nil {
		filter = &model.AuditFilter{}
	}
	var matched []*model.AuditLog
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		l := r.s.audit[i]
		if filter.UserID != "" && (l.UserID == nil || l.UserID.String() != filter.UserID) {
			continue
		}
		if filter.EntityType != "" && l.EntityType != filter.EntityType {
			continue
		}
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		matched = append(matched, l)
	}
	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return []*model.AuditLog{}, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (r *auditRepo) Cleanup(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.audit[:0]
	var n int64
	for _, l := range r.s.audit {
		if l.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.s.audit = kept
	return n, nil
}
