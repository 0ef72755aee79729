package auth

import (
	"strings"

	apperrors "github.com/Togather-Foundation/eventplus/internal/errors"
)

// Role is a user's type. Immutable reference data mirrored by the user_types table.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleOrganizer     Role = "organizer"
	RoleAttendee      Role = "attendee"
)

// Roles lists every user type in display order.
func Roles() []Role {
	return []Role{RoleAdministrator, RoleOrganizer, RoleAttendee}
}

// ParseRole parses a role name, reporting whether it names a known user type.
func ParseRole(role string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(role))) {
	case RoleAdministrator:
		return RoleAdministrator, true
	case RoleOrganizer:
		return RoleOrganizer, true
	case RoleAttendee:
		return RoleAttendee, true
	default:
		return "", false
	}
}

func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Action is a mutating operation subject to the role gate.
type Action string

const (
	ActionCreateEvent     Action = "create_event"
	ActionModifyEvent     Action = "modify_event"
	ActionDeleteEvent     Action = "delete_event"
	ActionJoinEvent       Action = "join_event"
	ActionLeaveEvent      Action = "leave_event"
	ActionPostComment     Action = "post_comment"
	ActionModerateComment Action = "moderate_comment"
	ActionChangeUserType  Action = "change_user_type"
)

// Actions lists every gated action.
func Actions() []Action {
	return []Action{
		ActionCreateEvent,
		ActionModifyEvent,
		ActionDeleteEvent,
		ActionJoinEvent,
		ActionLeaveEvent,
		ActionPostComment,
		ActionModerateComment,
		ActionChangeUserType,
	}
}

func (a Action) valid() bool {
	for _, known := range Actions() {
		if a == known {
			return true
		}
	}
	return false
}

// Principal is the authenticated identity making a request.
type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) Authenticated() bool {
	return strings.TrimSpace(p.UserID) != "" && p.Role.Valid()
}

func (p Principal) IsAdmin() bool {
	return p.Authenticated() && p.Role == RoleAdministrator
}

// Target carries the ownership metadata of the entity an action applies to.
type Target struct {
	OwnerID string
}

// Reason explains a denial.
type Reason string

const (
	ReasonUnauthenticated  Reason = "unauthenticated"
	ReasonRoleNotPermitted Reason = "role_not_permitted"
	ReasonNotOwner         Reason = "not_owner"
	ReasonUnknownAction    Reason = "unknown_action"
)

// Decision is the outcome of Authorize. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  Reason
}

var (
	ErrPermissionDenied = apperrors.New(apperrors.CodePermissionDenied, "operation not permitted")
	ErrUnauthenticated  = apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
)

// Err converts a denial into a domain error; nil when the decision allows the action.
func (d Decision) Err(action Action) error {
	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonUnauthenticated {
		return ErrUnauthenticated
	}
	return ErrPermissionDenied.WithMetadata("action", string(action), "reason", string(d.Reason))
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Authorize is the single decision table for role-scoped operations.
//
//	administrator: every action
//	organizer:     create_event; modify_event and delete_event on events it owns
//	attendee:      join_event, leave_event, post_comment on any event
//
// Anything not listed is denied.
func Authorize(p Principal, action Action, target Target) Decision {
	if !p.Authenticated() {
		return deny(ReasonUnauthenticated)
	}
	if !action.valid() {
		return deny(ReasonUnknownAction)
	}

	switch p.Role {
	case RoleAdministrator:
		return allow()
	case RoleOrganizer:
		switch action {
		case ActionCreateEvent:
			return allow()
		case ActionModifyEvent, ActionDeleteEvent:
			if target.OwnerID != "" && target.OwnerID == p.UserID {
				return allow()
			}
			return deny(ReasonNotOwner)
		default:
			return deny(ReasonRoleNotPermitted)
		}
	case RoleAttendee:
		switch action {
		case ActionJoinEvent, ActionLeaveEvent, ActionPostComment:
			return allow()
		default:
			return deny(ReasonRoleNotPermitted)
		}
	default:
		return deny(ReasonRoleNotPermitted)
	}
}

// CanAudit reports whether p may see non-published content of an entity owned by target:
// administrators always, organizers for what they own.
func CanAudit(p Principal, target Target) bool {
	if !p.Authenticated() {
		return false
	}
	if p.Role == RoleAdministrator {
		return true
	}
	return p.Role == RoleOrganizer && target.OwnerID != "" && target.OwnerID == p.UserID
}
