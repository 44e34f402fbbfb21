package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/bookspot/bookspot_backend/internal/policy"
	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/pkg/authorize"
	"github.com/bookspot/bookspot_backend/pkg/events"
	"github.com/bookspot/bookspot_backend/pkg/util/password"
)

const minPasswordLength = 8

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreateRequest struct {
	Name     string
	Email    string
	Password string
	Role     schema.Role
	Timezone string
}

type ListRequest struct {
	Role   *schema.Role
	Limit  int
	Offset int
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// Create registers an account. A zero actor is an anonymous sign-up and
	// may create clients and service providers; providers may create
	// clients; admins may create anything.
	Create(ctx context.Context, actor policy.Actor, req CreateRequest) (*schema.User, error)
	Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*schema.User, error)
	GetByEmail(ctx context.Context, email string) (*schema.User, error)
	List(ctx context.Context, actor policy.Actor, req ListRequest) ([]*schema.User, error)
	// Delete removes an account and everything that references it.
	Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type UserService struct {
	db        *gorm.DB
	clock     clockwork.Clock
	events    events.Publisher
	authorize authorize.IAuthorization
	params    *password.Params
}

// New builds the user registry. authz may be nil, in which case no casbin
// roles are granted or revoked; params nil means the package default.
func New(db *gorm.DB, clock clockwork.Clock, pub events.Publisher, authz authorize.IAuthorization, params *password.Params) *UserService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if params == nil {
		params = password.DefaultParams()
	}
	return &UserService{db: db, clock: clock, events: pub, authorize: authz, params: params}
}

// NewAccount validates req and returns an unsaved user with the password
// hashed under params.
func NewAccount(req CreateRequest, params *password.Params) (*schema.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > 255 {
		return nil, ErrInvalidName
	}
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if !req.Role.Valid() {
		return nil, ErrInvalidRole
	}
	tz := strings.TrimSpace(req.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, ErrInvalidTimezone
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	hash, err := password.Hash(req.Password, params)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &schema.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         req.Role,
		Timezone:     tz,
	}, nil
}

// NormalizeEmail lower-cases a bare address and rejects anything else.
func NormalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

func canCreate(actor policy.Actor, role schema.Role) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.IsProvider():
		return role == schema.RoleClient
	case actor.ID == uuid.Nil:
		return role == schema.RoleClient || role == schema.RoleServiceProvider
	}
	return false
}

func (s *UserService) Create(ctx context.Context, actor policy.Actor, req CreateRequest) (*schema.User, error) {
	u, err := NewAccount(req, s.params)
	if err != nil {
		return nil, err
	}
	if !canCreate(actor, u.Role) {
		return nil, ErrForbidden
	}

	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	if err := s.GrantRoles(ctx, u); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "user created", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// GrantRoles records the account's role in the permission store.
func (s *UserService) GrantRoles(ctx context.Context, u *schema.User) error {
	if s.authorize == nil {
		return nil
	}
	if err := authorize.AssignAccountRoles(ctx, s.authorize, u.ID.String(), string(u.Role)); err != nil {
		return fmt.Errorf("assign roles: %w", err)
	}
	return nil
}

func (s *UserService) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*schema.User, error) {
	if !policy.CanViewUser(actor, id) {
		return nil, ErrForbidden
	}
	return s.load(s.db.WithContext(ctx), id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*schema.User, error) {
	addr, err := NormalizeEmail(email)
	if err != nil {
		return nil, ErrUserNotFound
	}
	var u schema.User
	if err := s.db.WithContext(ctx).Where("email = ?", addr).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

func (s *UserService) load(db *gorm.DB, id uuid.UUID) (*schema.User, error) {
	var u schema.User
	if err := db.Where("id = ?", id).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *UserService) List(ctx context.Context, actor policy.Actor, req ListRequest) ([]*schema.User, error) {
	if !policy.CanManageUsers(actor) {
		return nil, ErrForbidden
	}
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	q := s.db.WithContext(ctx).Model(&schema.User{})
	if req.Role != nil {
		if !req.Role.Valid() {
			return nil, ErrInvalidRole
		}
		q = q.Where("role = ?", *req.Role)
	}

	var users []*schema.User
	if err := q.Order("created_at ASC").Order("id ASC").Limit(req.Limit).Offset(req.Offset).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Delete keeps the booked-client invariant: a deleted provider takes their
// timeslots and links along, a deleted client's bookings return to
// available.
func (s *UserService) Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	if !policy.CanManageUsers(actor) {
		return ErrForbidden
	}
	if actor.ID == id {
		return fmt.Errorf("%w: %w", ErrForbidden, errSelfDelete)
	}

	var (
		u        *schema.User
		affected []schema.Timeslot
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if u, err = s.load(tx, id); err != nil {
			return err
		}

		switch u.Role {
		case schema.RoleServiceProvider:
			if err := tx.Where("provider_id = ?", id).Find(&affected).Error; err != nil {
				return fmt.Errorf("load provider timeslots: %w", err)
			}
			if err := tx.Where("provider_id = ?", id).Delete(&schema.Timeslot{}).Error; err != nil {
				return fmt.Errorf("delete provider timeslots: %w", err)
			}
			if err := tx.Where("provider_id = ?", id).Delete(&schema.ProviderClientLink{}).Error; err != nil {
				return fmt.Errorf("delete provider links: %w", err)
			}

		case schema.RoleClient:
			if err := tx.Where("client_id = ? AND status = ?", id, schema.StatusBooked).Find(&affected).Error; err != nil {
				return fmt.Errorf("load client bookings: %w", err)
			}
			err := tx.Model(&schema.Timeslot{}).
				Where("client_id = ? AND status = ?", id, schema.StatusBooked).
				Updates(map[string]any{"status": schema.StatusAvailable, "client_id": nil}).Error
			if err != nil {
				return fmt.Errorf("release client bookings: %w", err)
			}
			// Completed slots keep their history but lose the reference.
			if err := tx.Model(&schema.Timeslot{}).Where("client_id = ?", id).Update("client_id", nil).Error; err != nil {
				return fmt.Errorf("detach client timeslots: %w", err)
			}
			if err := tx.Where("client_id = ?", id).Delete(&schema.ProviderClientLink{}).Error; err != nil {
				return fmt.Errorf("delete client links: %w", err)
			}
		}

		if err := tx.Delete(&schema.User{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.authorize != nil {
		if err := authorize.RevokeAccountRoles(ctx, s.authorize, id.String()); err != nil {
			slog.WarnContext(ctx, "revoke roles of deleted user failed", "user_id", id, "err", err)
		}
	}

	kind := events.KindDeleted
	if u.Role == schema.RoleClient {
		kind = events.KindCancelled
	}
	actorID := actor.ID
	for i := range affected {
		slot := &affected[i]
		status := slot.Status
		if kind == events.KindCancelled {
			status = schema.StatusAvailable
		}
		e := events.TimeslotEvent{
			Kind:       kind,
			TimeslotID: slot.ID,
			ProviderID: slot.ProviderID,
			ClientID:   slot.ClientID,
			ActorID:    &actorID,
			Status:     string(status),
			OccurredAt: s.clock.Now().UTC(),
		}
		if err := s.events.Publish(ctx, e); err != nil {
			slog.WarnContext(ctx, "publish timeslot event failed", "kind", kind, "timeslot_id", slot.ID, "err", err)
		}
	}

	slog.InfoContext(ctx, "user deleted", "user_id", id, "role", u.Role, "timeslots", len(affected))
	return nil
}
