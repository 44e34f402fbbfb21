// Package policy holds the capability predicates consulted before every
// timeslot and client-relationship transition. Predicates are pure: they read
// the actor's role and claims and the target's ownership fields, nothing else.
package policy

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bookspot/bookspot_backend/internal/schema"
)

// Permission is a fine-grained claim, written as "<resource>:<action>".
type Permission string

const (
	PermTimeslotCreate Permission = "timeslot:create"
)

// Claims is the set of permissions granted to an actor. A nil Claims means no
// claim system is in use and only the role decides.
type Claims map[Permission]struct{}

// NewClaims builds a claim set from resource/action pairs.
func NewClaims(pairs ...[2]string) Claims {
	c := make(Claims, len(pairs))
	for _, p := range pairs {
		c[Permission(p[0]+":"+p[1])] = struct{}{}
	}
	return c
}

// Has reports whether p is granted, honouring "*" for resource or action.
func (c Claims) Has(p Permission) bool {
	if c == nil {
		return true
	}
	if _, ok := c[p]; ok {
		return true
	}
	res, act, _ := strings.Cut(string(p), ":")
	for _, alt := range []Permission{
		Permission(res + ":*"),
		Permission("*:" + act),
		"*:*",
	} {
		if _, ok := c[alt]; ok {
			return true
		}
	}
	return false
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID       uuid.UUID
	Role     schema.Role
	Timezone string
	Claims   Claims
}

func (a Actor) IsAdmin() bool    { return a.Role == schema.RoleAdmin }
func (a Actor) IsProvider() bool { return a.Role == schema.RoleServiceProvider }
func (a Actor) IsClient() bool   { return a.Role == schema.RoleClient }

// System is the actor used for time-driven transitions such as the sweep.
var System = Actor{Role: schema.RoleAdmin}

func (a Actor) owns(t *schema.Timeslot) bool {
	return a.IsProvider() && t.ProviderID == a.ID
}

// ---------------------------------------------------------------------------
// Timeslots
// ---------------------------------------------------------------------------

func CanViewTimeslot(a Actor, t *schema.Timeslot) bool {
	return a.IsAdmin() || a.owns(t)
}

// CanViewBooking lets the booked client read the slot they hold.
func CanViewBooking(a Actor, t *schema.Timeslot) bool {
	return a.IsClient() && t.BookedBy(a.ID)
}

func CanCreateTimeslot(a Actor) bool {
	return (a.IsProvider() || a.IsAdmin()) && a.Claims.Has(PermTimeslotCreate)
}

// CanUpdateTimeslot covers duration changes and deletion: the owner while the
// slot is not booked, an admin always.
func CanUpdateTimeslot(a Actor, t *schema.Timeslot) bool {
	if a.IsAdmin() {
		return true
	}
	return a.owns(t) && !t.IsBooked()
}

func CanDeleteTimeslot(a Actor, t *schema.Timeslot) bool {
	return CanUpdateTimeslot(a, t)
}

// CanBook covers booking by the target client, assignment or reassignment by
// the owning provider, and admin action. The link requirement is checked
// separately because it fails with a different error.
func CanBook(a Actor, t *schema.Timeslot, clientID uuid.UUID) bool {
	switch {
	case a.IsAdmin():
		return true
	case a.IsClient():
		return a.ID == clientID
	default:
		return a.owns(t)
	}
}

// CanCancel lets the booked client cancel only while the slot is still in the
// future; the owning provider and admins may cancel at any time.
func CanCancel(a Actor, t *schema.Timeslot, now time.Time) bool {
	if a.IsAdmin() || a.owns(t) {
		return true
	}
	return a.IsClient() && t.BookedBy(a.ID) && t.StartTime.After(now)
}

func CanComplete(a Actor, t *schema.Timeslot) bool {
	return a.IsAdmin() || a.owns(t)
}

// ---------------------------------------------------------------------------
// Client relationships
// ---------------------------------------------------------------------------

// CanManageClients covers viewing, creating, deleting and assigning a
// provider's client links.
func CanManageClients(a Actor, providerID uuid.UUID) bool {
	return a.IsAdmin() || (a.IsProvider() && a.ID == providerID)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func CanManageUsers(a Actor) bool {
	return a.IsAdmin()
}

func CanViewUser(a Actor, userID uuid.UUID) bool {
	return a.IsAdmin() || a.ID == userID
}

func CanRunSweep(a Actor) bool {
	return a.IsAdmin()
}
