package authorize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	casbin "github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/google/uuid"

	"github.com/bookspot/bookspot_backend/internal/policy"
)

// createTestEnforcer builds an enforcer over the shipped model file and an
// empty file-backed policy.
func createTestEnforcer(t *testing.T) *casbin.DistributedEnforcer {
	t.Helper()

	policyPath := filepath.Join(t.TempDir(), "policy.csv")
	if err := os.WriteFile(policyPath, []byte(""), 0644); err != nil {
		t.Fatalf("failed to write policy file: %v", err)
	}

	e, err := casbin.NewDistributedEnforcer("../../config/casbin_model.conf", fileadapter.NewAdapter(policyPath))
	if err != nil {
		t.Fatalf("failed to create enforcer: %v", err)
	}

	e.EnableAutoSave(false)
	e.EnableEnforce(true)

	return e
}

func seededAuth(t *testing.T, opts ...Option) IAuthorization {
	t.Helper()
	auth, err := NewAuthorization(createTestEnforcer(t), opts...)
	if err != nil {
		t.Fatalf("NewAuthorization() error = %v", err)
	}
	if err := SeedDefaultPolicies(context.Background(), auth); err != nil {
		t.Fatalf("SeedDefaultPolicies() error = %v", err)
	}
	return auth
}

func TestNewAuthorization(t *testing.T) {
	t.Run("returns error for nil enforcer", func(t *testing.T) {
		_, err := NewAuthorization(nil)
		if err == nil {
			t.Error("Expected error for nil enforcer")
		}
	})

	t.Run("succeeds with valid enforcer", func(t *testing.T) {
		auth, err := NewAuthorization(createTestEnforcer(t))
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
		if auth == nil {
			t.Error("Expected non-nil authorization")
		}
	})
}

func TestEnforceDefaultPolicies(t *testing.T) {
	auth := seededAuth(t)
	ctx := context.Background()

	provider := uuid.NewString()
	client := uuid.NewString()
	admin := uuid.NewString()
	for id, role := range map[string]string{
		provider: AccountRoleServiceProvider,
		client:   AccountRoleClient,
		admin:    AccountRoleAdmin,
	} {
		if err := AssignAccountRoles(ctx, auth, id, role); err != nil {
			t.Fatalf("AssignAccountRoles(%s) error = %v", role, err)
		}
	}

	tests := []struct {
		name     string
		subject  string
		domain   Domain
		resource Resource
		action   Action
		want     bool
	}{
		{"provider creates timeslots through manage", provider, DomainSys, ResourceTimeslot, ActionCreate, true},
		{"provider completes bookings", provider, DomainSys, ResourceBooking, ActionComplete, true},
		{"provider manages client links", provider, DomainSys, ResourceClientLink, ActionCreate, true},
		{"provider cannot run the sweep", provider, DomainSys, ResourceSweep, ActionExecute, false},
		{"client books", client, DomainSys, ResourceBooking, ActionBook, true},
		{"client cancels", client, DomainSys, ResourceBooking, ActionCancel, true},
		{"client cannot complete", client, DomainSys, ResourceBooking, ActionComplete, false},
		{"client cannot create timeslots", client, DomainSys, ResourceTimeslot, ActionCreate, false},
		{"client reads self in own domain", client, UserDomain(client), ResourceUser, ActionRead, true},
		{"client cannot read self in another domain", client, UserDomain(provider), ResourceUser, ActionRead, false},
		{"admin runs the sweep", admin, DomainSys, ResourceSweep, ActionExecute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.Enforce(ctx, GroupSubject(tt.subject), tt.domain, tt.resource, tt.action)
			if err != nil {
				t.Fatalf("Enforce() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Enforce() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnforceRejectsBadArguments(t *testing.T) {
	auth := seededAuth(t)
	ctx := context.Background()
	subject := GroupSubject(uuid.NewString())

	tests := []struct {
		name     string
		subject  GroupSubject
		domain   Domain
		resource Resource
		action   Action
	}{
		{"empty subject", "", DomainSys, ResourceTimeslot, ActionRead},
		{"invalid domain", subject, Domain("invalid"), ResourceTimeslot, ActionRead},
		{"unknown resource", subject, DomainSys, Resource("invoice"), ActionRead},
		{"unknown action", subject, DomainSys, ResourceTimeslot, Action("teleport")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Enforce(ctx, tt.subject, tt.domain, tt.resource, tt.action)
			if !errors.Is(err, ErrInvalidArgs) {
				t.Errorf("Enforce() error = %v, want ErrInvalidArgs", err)
			}
		})
	}
}

func TestMustEnforce(t *testing.T) {
	auth := seededAuth(t)
	ctx := context.Background()
	client := uuid.NewString()
	if err := AssignAccountRoles(ctx, auth, client, AccountRoleClient); err != nil {
		t.Fatalf("AssignAccountRoles() error = %v", err)
	}

	if err := auth.MustEnforce(ctx, GroupSubject(client), DomainSys, ResourceBooking, ActionBook); err != nil {
		t.Errorf("MustEnforce() allowed case error = %v", err)
	}
	if err := auth.MustEnforce(ctx, GroupSubject(client), DomainSys, ResourceAudit, ActionRead); !errors.Is(err, ErrForbidden) {
		t.Errorf("MustEnforce() denied case error = %v, want ErrForbidden", err)
	}
}

func TestAdminBypass(t *testing.T) {
	ctx := context.Background()
	admin := uuid.NewString()

	// No policies at all: only the bypass can allow.
	auth, _ := NewAuthorization(createTestEnforcer(t))
	if _, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(admin), RoleAdmin, DomainSys); err != nil {
		t.Fatalf("AddRoleForUserInDomain() error = %v", err)
	}
	if ok, _ := auth.Enforce(ctx, GroupSubject(admin), DomainSys, ResourceUser, ActionDelete); !ok {
		t.Error("admin denied with bypass enabled")
	}

	strict, _ := NewAuthorization(createTestEnforcer(t), WithoutAdminBypass())
	if _, err := strict.AddRoleForUserInDomain(ctx, GroupSubject(admin), RoleAdmin, DomainSys); err != nil {
		t.Fatalf("AddRoleForUserInDomain() error = %v", err)
	}
	if ok, _ := strict.Enforce(ctx, GroupSubject(admin), DomainSys, ResourceUser, ActionDelete); ok {
		t.Error("admin allowed without policy and without bypass")
	}
}

func TestRoleManagement(t *testing.T) {
	auth, _ := NewAuthorization(createTestEnforcer(t))
	ctx := context.Background()
	userID := uuid.NewString()

	if err := AssignAccountRoles(ctx, auth, userID, AccountRoleServiceProvider); err != nil {
		t.Fatalf("AssignAccountRoles() error = %v", err)
	}

	roles, err := auth.GetRolesForUserInDomain(ctx, GroupSubject(userID), DomainSys)
	if err != nil {
		t.Fatalf("GetRolesForUserInDomain() error = %v", err)
	}
	if len(roles) != 1 || roles[0] != RoleServiceProvider {
		t.Errorf("sys roles = %v, want [%s]", roles, RoleServiceProvider)
	}

	if err := RevokeAccountRoles(ctx, auth, userID); err != nil {
		t.Fatalf("RevokeAccountRoles() error = %v", err)
	}
	for _, d := range []Domain{DomainSys, UserDomain(userID)} {
		roles, _ := auth.GetRolesForUserInDomain(ctx, GroupSubject(userID), d)
		if len(roles) != 0 {
			t.Errorf("roles in %s after revoke = %v, want none", d, roles)
		}
	}

	if err := AssignAccountRoles(ctx, auth, userID, "superuser"); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("AssignAccountRoles(unknown) error = %v, want ErrInvalidArgs", err)
	}
	if _, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(userID), Role("invalid-role"), DomainSys); err == nil {
		t.Error("Expected error for invalid role")
	}
}

func TestPermissionManagement(t *testing.T) {
	auth, _ := NewAuthorization(createTestEnforcer(t))
	ctx := context.Background()

	added, err := auth.AddPermission(ctx, RoleClient, DomainSys, ResourceAudit, ActionRead, EffectAllow)
	if err != nil || !added {
		t.Fatalf("AddPermission() = %v, %v", added, err)
	}
	removed, err := auth.RemovePermission(ctx, RoleClient, DomainSys, ResourceAudit, ActionRead, EffectAllow)
	if err != nil || !removed {
		t.Fatalf("RemovePermission() = %v, %v", removed, err)
	}

	if _, err := auth.AddPermission(ctx, RoleAdmin, DomainSys, ResourceUser, ActionRead, PolicyEffect("invalid")); err == nil {
		t.Error("Expected error for invalid effect")
	}
}

func TestClaimsFor(t *testing.T) {
	auth := seededAuth(t)
	ctx := context.Background()

	provider := uuid.NewString()
	client := uuid.NewString()
	_ = AssignAccountRoles(ctx, auth, provider, AccountRoleServiceProvider)
	_ = AssignAccountRoles(ctx, auth, client, AccountRoleClient)

	pc, err := ClaimsFor(ctx, auth, provider)
	if err != nil {
		t.Fatalf("ClaimsFor(provider) error = %v", err)
	}
	if !pc.Has(policy.PermTimeslotCreate) {
		t.Error("provider claims lack timeslot:create")
	}

	cc, err := ClaimsFor(ctx, auth, client)
	if err != nil {
		t.Fatalf("ClaimsFor(client) error = %v", err)
	}
	if cc == nil {
		t.Fatal("client claims are nil, which would allow everything")
	}
	if cc.Has(policy.PermTimeslotCreate) {
		t.Error("client claims include timeslot:create")
	}
	if !cc.Has(policy.Permission("booking:book")) {
		t.Error("client claims lack booking:book")
	}
}
