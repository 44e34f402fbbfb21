package authorize

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultPolicies is the baseline permission table. Providers and clients are
// granted coarse rights here; ownership and link checks happen in the
// scheduling predicates.
func DefaultPolicies() []PermissionPolicy {
	return []PermissionPolicy{
		{RoleAdmin, DomainSys, WildcardResource, WildcardAction, EffectAllow},

		{RoleServiceProvider, DomainSys, ResourceTimeslot, ActionManage, EffectAllow},
		{RoleServiceProvider, DomainSys, ResourceBooking, ActionManage, EffectAllow},
		{RoleServiceProvider, DomainSys, ResourceClientLink, ActionManage, EffectAllow},
		{RoleServiceProvider, DomainSys, ResourceUser, ActionRead, EffectAllow},
		{RoleServiceProvider, DomainSys, ResourceAudit, ActionRead, EffectAllow},

		{RoleClient, DomainSys, ResourceTimeslot, ActionRead, EffectAllow},
		{RoleClient, DomainSys, ResourceTimeslot, ActionList, EffectAllow},
		{RoleClient, DomainSys, ResourceBooking, ActionBook, EffectAllow},
		{RoleClient, DomainSys, ResourceBooking, ActionCancel, EffectAllow},
		{RoleClient, DomainSys, ResourceBooking, ActionList, EffectAllow},
		{RoleClient, DomainSys, ResourceClientLink, ActionList, EffectAllow},

		{RoleUserSelf, WildcardDomain, ResourceUser, ActionRead, EffectAllow},
		{RoleUserSelf, WildcardDomain, ResourceAuthSession, ActionManage, EffectAllow},
	}
}

// SeedDefaultPolicies writes DefaultPolicies through auth. Existing rows are
// left alone, so seeding twice is harmless.
func SeedDefaultPolicies(ctx context.Context, auth IAuthorization) error {
	logger := slog.Default()
	policies := DefaultPolicies()

	for _, p := range policies {
		added, err := auth.AddPermission(ctx, p.Subject, p.Domain, p.Object, p.Action, p.Effect)
		if err != nil {
			logger.Error("failed to add policy", "policy", p, "error", err)
			return err
		}
		if added {
			logger.Debug("added policy", "role", p.Subject, "domain", p.Domain, "resource", p.Object, "action", p.Action)
		}
	}

	logger.Info("seeded default RBAC policies", "count", len(policies))
	return nil
}

// AssignAccountRoles grants the Casbin role matching the user's account role
// in the sys domain plus user:self in the user's own domain. Call it when a
// user is created.
func AssignAccountRoles(ctx context.Context, auth IAuthorization, userID, accountRole string) error {
	role, ok := AccountRoleToRBACRole[accountRole]
	if !ok {
		return fmt.Errorf("%w: unknown account role %q", ErrInvalidArgs, accountRole)
	}
	subject := GroupSubject(userID)
	if _, err := auth.AddRoleForUserInDomain(ctx, subject, role, DomainSys); err != nil {
		return err
	}
	_, err := auth.AddRoleForUserInDomain(ctx, subject, RoleUserSelf, UserDomain(userID))
	return err
}

// RevokeAccountRoles removes every role the user holds. Call it when a user is
// deleted.
func RevokeAccountRoles(ctx context.Context, auth IAuthorization, userID string) error {
	return auth.DeleteSubject(ctx, GroupSubject(userID))
}
