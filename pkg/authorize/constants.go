package authorize

import (
	"fmt"
	"regexp"
	"strings"
)

type Action string
type Resource string
type Role string
type Domain string

// ----------------------------
// Actions
// ----------------------------

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"

	// Manage stands for every action on a resource.
	ActionManage  Action = "manage"
	ActionExecute Action = "execute"

	// Booking lifecycle
	ActionBook     Action = "book"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"

	ActionGrant  Action = "grant"
	ActionRevoke Action = "revoke"
)

const (
	WildcardAction Action = "*"
)

var KnownActions = map[Action]struct{}{
	ActionCreate: {}, ActionRead: {}, ActionUpdate: {}, ActionDelete: {}, ActionList: {},
	ActionManage: {}, ActionExecute: {},
	ActionBook: {}, ActionCancel: {}, ActionComplete: {},
	ActionGrant: {}, ActionRevoke: {},
}

// ----------------------------
// Resources
// ----------------------------

const (
	WildcardResource Resource = "*"

	ResourceUser        Resource = "user"
	ResourceAuthSession Resource = "auth_session"

	ResourceTimeslot   Resource = "timeslot"
	ResourceBooking    Resource = "booking"
	ResourceClientLink Resource = "client_link"

	ResourceSweep Resource = "sweep"
	ResourceAudit Resource = "audit"
	ResourceRBAC  Resource = "rbac"
)

var KnownResources = map[Resource]struct{}{
	ResourceUser: {}, ResourceAuthSession: {},
	ResourceTimeslot: {}, ResourceBooking: {}, ResourceClientLink: {},
	ResourceSweep: {}, ResourceAudit: {}, ResourceRBAC: {},
}

// ----------------------------
// Roles
// ----------------------------
//
// Account roles are granted in the sys domain; RoleUserSelf lives in the
// user's private domain.

const (
	WildcardRole Role = "*"

	RoleAdmin           Role = "role:admin"
	RoleServiceProvider Role = "role:service_provider"
	RoleClient          Role = "role:client"

	RoleUserSelf Role = "role:user:self"
)

var KnownRoles = map[Role]struct{}{
	RoleAdmin:           {},
	RoleServiceProvider: {},
	RoleClient:          {},
	RoleUserSelf:        {},
}

// Account role strings as stored in users.role.
const (
	AccountRoleAdmin           = "admin"
	AccountRoleServiceProvider = "service_provider"
	AccountRoleClient          = "client"
)

// AccountRoleToRBACRole maps users.role values to Casbin roles.
var AccountRoleToRBACRole = map[string]Role{
	AccountRoleAdmin:           RoleAdmin,
	AccountRoleServiceProvider: RoleServiceProvider,
	AccountRoleClient:          RoleClient,
}

// ----------------------------
// Domains
// ----------------------------

const (
	DomainSys Domain = "sys"
)

const (
	DomainPrefixUser Domain = "user:"
)

const (
	WildcardDomain Domain = "*"
)

var (
	reUUID = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)
)

func UserDomain(userID string) Domain {
	return Domain(fmt.Sprintf("%s%s", DomainPrefixUser, userID))
}

// IsValidDomain checks whether d is a recognised domain string.
func IsValidDomain(d Domain) bool {
	if d == DomainSys || d == WildcardDomain {
		return true
	}
	id, ok := strings.CutPrefix(string(d), string(DomainPrefixUser))
	return ok && reUUID.MatchString(id)
}

// ----------------------------
// Casbin tuple helpers
// ----------------------------

type PolicyEffect string

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

// GroupSubject is the g.sub in Casbin: a concrete user id.
type GroupSubject string

// Grouping rows: g, user_id, role, domain
type GroupingPolicy struct {
	Subject GroupSubject
	Role    Role
	Domain  Domain
}

// Permission rows: p, role, domain, resource, action, eft
type PermissionPolicy struct {
	Subject Role
	Domain  Domain
	Object  Resource
	Action  Action
	Effect  PolicyEffect
}
