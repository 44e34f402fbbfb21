package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bookspot/bookspot_backend/internal/policy"
	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/internal/service/scheduling"
	"github.com/bookspot/bookspot_backend/internal/service/user"
	"github.com/bookspot/bookspot_backend/pkg/authorize"
	"github.com/bookspot/bookspot_backend/pkg/events"
	"github.com/bookspot/bookspot_backend/pkg/util/password"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type NewClientRequest struct {
	Name     string
	Email    string
	Password string
	Timezone string
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

// Service manages which clients may book which providers. Every operation is
// limited to the provider itself or an admin.
type Service interface {
	AddNewClient(ctx context.Context, actor policy.Actor, providerID uuid.UUID, req NewClientRequest) (*schema.ProviderClientLink, error)
	AddExistingClient(ctx context.Context, actor policy.Actor, providerID uuid.UUID, clientEmail string) (*schema.ProviderClientLink, error)
	SetLinkStatus(ctx context.Context, actor policy.Actor, providerID, clientID uuid.UUID, status schema.LinkStatus) (*schema.ProviderClientLink, error)
	// RemoveClient deletes the link and returns how many of the client's
	// future bookings with the provider were cancelled along with it.
	RemoveClient(ctx context.Context, actor policy.Actor, providerID, clientID uuid.UUID) (int64, error)
	ListClients(ctx context.Context, actor policy.Actor, providerID uuid.UUID) ([]*schema.ProviderClientLink, error)
	ListProviders(ctx context.Context, actor policy.Actor, clientID uuid.UUID) ([]*schema.ProviderClientLink, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type linkService struct {
	db        *gorm.DB
	clock     clockwork.Clock
	events    events.Publisher
	authorize authorize.IAuthorization
	params    *password.Params
}

func New(db *gorm.DB, clock clockwork.Clock, pub events.Publisher, authz authorize.IAuthorization, params *password.Params) Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &linkService{db: db, clock: clock, events: pub, authorize: authz, params: params}
}

func requireProvider(tx *gorm.DB, providerID uuid.UUID) error {
	var u schema.User
	if err := tx.Select("id", "role").Where("id = ?", providerID).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return scheduling.ErrProviderNotFound
		}
		return fmt.Errorf("get provider: %w", err)
	}
	if u.Role != schema.RoleServiceProvider {
		return ErrNotAProvider
	}
	return nil
}

func findLink(tx *gorm.DB, providerID, clientID uuid.UUID) (*schema.ProviderClientLink, error) {
	var l schema.ProviderClientLink
	err := tx.Where("provider_id = ? AND client_id = ?", providerID, clientID).Take(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("get link: %w", err)
	}
	return &l, nil
}

func (s *linkService) AddNewClient(ctx context.Context, actor policy.Actor, providerID uuid.UUID, req NewClientRequest) (*schema.ProviderClientLink, error) {
	if !policy.CanManageClients(actor, providerID) {
		return nil, ErrForbidden
	}
	client, err := user.NewAccount(user.CreateRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     schema.RoleClient,
		Timezone: req.Timezone,
	}, s.params)
	if err != nil {
		return nil, err
	}

	link := &schema.ProviderClientLink{CreatedByProvider: true, Status: schema.LinkActive}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireProvider(tx, providerID); err != nil {
			return err
		}
		if err := tx.Create(client).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return user.ErrEmailAlreadyExists
			}
			return fmt.Errorf("create client: %w", err)
		}
		link.ProviderID = providerID
		link.ClientID = client.ID
		if err := tx.Create(link).Error; err != nil {
			return fmt.Errorf("create link: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.authorize != nil {
		if err := authorize.AssignAccountRoles(ctx, s.authorize, client.ID.String(), string(schema.RoleClient)); err != nil {
			return nil, fmt.Errorf("assign roles: %w", err)
		}
	}

	link.Client = client
	slog.InfoContext(ctx, "client created and linked",
		"provider_id", providerID, "client_id", client.ID)
	return link, nil
}

// AddExistingClient links an existing client account. An inactive link is
// reactivated; an active one is reported as a duplicate.
func (s *linkService) AddExistingClient(ctx context.Context, actor policy.Actor, providerID uuid.UUID, clientEmail string) (*schema.ProviderClientLink, error) {
	if !policy.CanManageClients(actor, providerID) {
		return nil, ErrForbidden
	}

	email, err := user.NormalizeEmail(clientEmail)
	if err != nil {
		return nil, err
	}

	var link *schema.ProviderClientLink
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireProvider(tx, providerID); err != nil {
			return err
		}

		var client schema.User
		if err := tx.Where("email = ?", email).Take(&client).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClientNotFound
			}
			return fmt.Errorf("get client: %w", err)
		}
		if client.Role != schema.RoleClient {
			return ErrNotAClient
		}

		existing, err := findLink(tx.Clauses(clause.Locking{Strength: "UPDATE"}), providerID, client.ID)
		switch {
		case err == nil && existing.IsActive():
			return ErrAlreadyLinked
		case err == nil:
			existing.Status = schema.LinkActive
			if err := tx.Model(existing).Update("status", schema.LinkActive).Error; err != nil {
				return fmt.Errorf("reactivate link: %w", err)
			}
			link = existing
		case errors.Is(err, ErrLinkNotFound):
			link = &schema.ProviderClientLink{
				ProviderID: providerID,
				ClientID:   client.ID,
				Status:     schema.LinkActive,
			}
			if err := tx.Create(link).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrAlreadyLinked
				}
				return fmt.Errorf("create link: %w", err)
			}
		default:
			return err
		}
		link.Client = &client
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "client linked",
		"provider_id", providerID, "client_id", link.ClientID)
	return link, nil
}

func (s *linkService) SetLinkStatus(ctx context.Context, actor policy.Actor, providerID, clientID uuid.UUID, status schema.LinkStatus) (*schema.ProviderClientLink, error) {
	if !policy.CanManageClients(actor, providerID) {
		return nil, ErrForbidden
	}
	if status != schema.LinkActive && status != schema.LinkInactive {
		return nil, ErrInvalidStatus
	}

	db := s.db.WithContext(ctx)
	link, err := findLink(db, providerID, clientID)
	if err != nil {
		return nil, err
	}
	if link.Status == status {
		return link, nil
	}
	if err := db.Model(link).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("update link status: %w", err)
	}
	link.Status = status

	slog.InfoContext(ctx, "client link status changed",
		"provider_id", providerID, "client_id", clientID, "status", status)
	return link, nil
}

func (s *linkService) RemoveClient(ctx context.Context, actor policy.Actor, providerID, clientID uuid.UUID) (int64, error) {
	if !policy.CanManageClients(actor, providerID) {
		return 0, ErrForbidden
	}

	now := s.clock.Now().UTC()
	var cancelled []schema.Timeslot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		link, err := findLink(tx, providerID, clientID)
		if err != nil {
			return err
		}

		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider_id = ? AND client_id = ? AND status = ? AND start_time > ?",
				providerID, clientID, schema.StatusBooked, now).
			Order("start_time ASC").
			Find(&cancelled).Error
		if err != nil {
			return fmt.Errorf("lock future bookings: %w", err)
		}
		if len(cancelled) > 0 {
			ids := make([]uuid.UUID, len(cancelled))
			for i := range cancelled {
				ids[i] = cancelled[i].ID
			}
			err := tx.Model(&schema.Timeslot{}).
				Where("id IN ?", ids).
				Updates(map[string]any{"status": schema.StatusAvailable, "client_id": nil}).Error
			if err != nil {
				return fmt.Errorf("cancel future bookings: %w", err)
			}
		}

		if err := tx.Delete(link).Error; err != nil {
			return fmt.Errorf("delete link: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	actorID := actor.ID
	for i := range cancelled {
		e := events.TimeslotEvent{
			Kind:       events.KindCancelled,
			TimeslotID: cancelled[i].ID,
			ProviderID: providerID,
			ClientID:   &clientID,
			ActorID:    &actorID,
			Status:     string(schema.StatusAvailable),
			OccurredAt: now,
		}
		if err := s.events.Publish(ctx, e); err != nil {
			slog.WarnContext(ctx, "publish timeslot event failed",
				"kind", e.Kind, "timeslot_id", e.TimeslotID, "err", err)
		}
	}

	slog.InfoContext(ctx, "client unlinked",
		"provider_id", providerID, "client_id", clientID, "count", len(cancelled))
	return int64(len(cancelled)), nil
}

func (s *linkService) ListClients(ctx context.Context, actor policy.Actor, providerID uuid.UUID) ([]*schema.ProviderClientLink, error) {
	if !policy.CanManageClients(actor, providerID) {
		return nil, ErrForbidden
	}
	var links []*schema.ProviderClientLink
	err := s.db.WithContext(ctx).
		Preload("Client").
		Where("provider_id = ?", providerID).
		Order("created_at ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return links, nil
}

// ListProviders returns the links of a client, visible to the client and to
// admins.
func (s *linkService) ListProviders(ctx context.Context, actor policy.Actor, clientID uuid.UUID) ([]*schema.ProviderClientLink, error) {
	if !actor.IsAdmin() && !(actor.IsClient() && actor.ID == clientID) {
		return nil, ErrForbidden
	}
	var links []*schema.ProviderClientLink
	err := s.db.WithContext(ctx).
		Preload("Provider").
		Where("client_id = ?", clientID).
		Order("created_at ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return links, nil
}
