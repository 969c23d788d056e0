// Package policy decides whether an actor may perform an action on a
// resource. Decisions are pure functions of the actor's role, whether the
// actor is authenticated, the action and, for owned resources, the owner id.
//
// Catalog resources (categories, genres, titles) use a single gate for every
// write: create, update and delete all require the administer capability.
// There is no separate object-level delete rule.
package policy

import (
	"net/http"

	"review-service/internal/domain"
)

// Capability is a bit in the set of things an actor can do.
type Capability uint8

const (
	// CapAuthenticated is held by every logged-in account.
	CapAuthenticated Capability = 1 << iota
	// CapModerate allows editing and deleting reviews and comments of others.
	CapModerate
	// CapAdminister allows catalog writes and account management.
	CapAdminister
)

// Has reports whether every bit of c is set.
func (s Capability) Has(c Capability) bool {
	return s&c == c
}

// Actor is the caller of a request. The zero value is an anonymous caller.
type Actor struct {
	ID        string
	Username  string
	Role      domain.Role
	Superuser bool
}

// ActorFromUser builds the actor for an authenticated account.
func ActorFromUser(u *domain.User) Actor {
	if u == nil {
		return Actor{}
	}
	return Actor{ID: u.ID, Username: u.Username, Role: u.Role, Superuser: u.IsSuperuser}
}

// Authenticated reports whether the actor is a logged-in account.
func (a Actor) Authenticated() bool {
	return a.ID != ""
}

// Capabilities maps an actor onto its capability set. Superusers hold
// every capability regardless of role.
func Capabilities(a Actor) Capability {
	if !a.Authenticated() {
		return 0
	}
	caps := CapAuthenticated
	if a.Superuser {
		return caps | CapModerate | CapAdminister
	}
	switch a.Role {
	case domain.RoleAdmin:
		caps |= CapModerate | CapAdminister
	case domain.RoleModerator:
		caps |= CapModerate
	}
	return caps
}

// Action is what the actor wants to do.
type Action int

const (
	ActionRead Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

// ActionFromMethod maps an HTTP method to an action. Safe methods read.
func ActionFromMethod(method string) Action {
	switch method {
	case http.MethodPost:
		return ActionCreate
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionRead
	}
}

// Resource is the kind of object being acted on.
type Resource int

const (
	ResourceCategory Resource = iota
	ResourceGenre
	ResourceTitle
	ResourceReview
	ResourceComment
	ResourceAccount
	ResourceProfile
)

func (r Resource) String() string {
	switch r {
	case ResourceCategory:
		return "category"
	case ResourceGenre:
		return "genre"
	case ResourceTitle:
		return "title"
	case ResourceReview:
		return "review"
	case ResourceComment:
		return "comment"
	case ResourceAccount:
		return "account"
	case ResourceProfile:
		return "profile"
	}
	return "unknown"
}

// Decision is the outcome of an evaluation.
type Decision int

const (
	Allow Decision = iota
	// DenyUnauthenticated means the action needs a logged-in caller.
	DenyUnauthenticated
	// DenyForbidden means the caller is known but lacks permission.
	DenyForbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "deny_unauthenticated"
	case DenyForbidden:
		return "deny_forbidden"
	}
	return "unknown"
}

// Request is the input of Evaluate. OwnerID is the author id of a review
// or comment for update and delete; it is ignored elsewhere.
type Request struct {
	Actor    Actor
	Action   Action
	Resource Resource
	OwnerID  string
}

// Evaluate decides req.
func Evaluate(req Request) Decision {
	caps := Capabilities(req.Actor)

	switch req.Resource {
	case ResourceCategory, ResourceGenre, ResourceTitle:
		if req.Action == ActionRead {
			return Allow
		}
		return require(caps, CapAdminister)

	case ResourceReview, ResourceComment:
		switch req.Action {
		case ActionRead:
			return Allow
		case ActionCreate:
			return require(caps, CapAuthenticated)
		default:
			if !caps.Has(CapAuthenticated) {
				return DenyUnauthenticated
			}
			if caps.Has(CapModerate) || (req.OwnerID != "" && req.OwnerID == req.Actor.ID) {
				return Allow
			}
			return DenyForbidden
		}

	case ResourceAccount:
		return require(caps, CapAdminister)

	case ResourceProfile:
		switch req.Action {
		case ActionRead, ActionUpdate:
			return require(caps, CapAuthenticated)
		default:
			if !caps.Has(CapAuthenticated) {
				return DenyUnauthenticated
			}
			return DenyForbidden
		}
	}
	return DenyForbidden
}

// CanAssignRole reports whether an update issued through the given resource
// may change the stored role. Self-service profile updates never can.
func CanAssignRole(actor Actor, resource Resource) bool {
	return resource == ResourceAccount && Capabilities(actor).Has(CapAdminister)
}

func require(caps, need Capability) Decision {
	if caps.Has(need) {
		return Allow
	}
	if !caps.Has(CapAuthenticated) {
		return DenyUnauthenticated
	}
	return DenyForbidden
}
