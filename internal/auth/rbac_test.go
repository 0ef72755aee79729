package auth

import (
	"context"
	"testing"

	apperrors "github.com/Togather-Foundation/eventplus/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeMatrix(t *testing.T) {
	admin := Principal{UserID: "admin-1", Role: RoleAdministrator}
	organizer := Principal{UserID: "organizer-1", Role: RoleOrganizer}
	attendee := Principal{UserID: "attendee-1", Role: RoleAttendee}
	foreign := Target{OwnerID: "organizer-2"}

	// allowed marks a permitted cell; any other value is the expected denial reason.
	const allowed Reason = ""
	everything := map[Action]Reason{
		ActionCreateEvent: allowed, ActionModifyEvent: allowed, ActionDeleteEvent: allowed,
		ActionJoinEvent: allowed, ActionLeaveEvent: allowed, ActionPostComment: allowed,
		ActionModerateComment: allowed, ActionChangeUserType: allowed,
	}
	attendeeCells := map[Action]Reason{
		ActionCreateEvent:     ReasonRoleNotPermitted,
		ActionModifyEvent:     ReasonRoleNotPermitted,
		ActionDeleteEvent:     ReasonRoleNotPermitted,
		ActionJoinEvent:       allowed,
		ActionLeaveEvent:      allowed,
		ActionPostComment:     allowed,
		ActionModerateComment: ReasonRoleNotPermitted,
		ActionChangeUserType:  ReasonRoleNotPermitted,
	}

	rows := []struct {
		name      string
		principal Principal
		target    Target
		cells     map[Action]Reason
	}{
		{"administrator on own event", admin, Target{OwnerID: admin.UserID}, everything},
		{"administrator on foreign event", admin, foreign, everything},
		{"organizer on own event", organizer, Target{OwnerID: organizer.UserID}, map[Action]Reason{
			ActionCreateEvent:     allowed,
			ActionModifyEvent:     allowed,
			ActionDeleteEvent:     allowed,
			ActionJoinEvent:       ReasonRoleNotPermitted,
			ActionLeaveEvent:      ReasonRoleNotPermitted,
			ActionPostComment:     ReasonRoleNotPermitted,
			ActionModerateComment: ReasonRoleNotPermitted,
			ActionChangeUserType:  ReasonRoleNotPermitted,
		}},
		{"organizer on foreign event", organizer, foreign, map[Action]Reason{
			ActionCreateEvent:     allowed,
			ActionModifyEvent:     ReasonNotOwner,
			ActionDeleteEvent:     ReasonNotOwner,
			ActionJoinEvent:       ReasonRoleNotPermitted,
			ActionLeaveEvent:      ReasonRoleNotPermitted,
			ActionPostComment:     ReasonRoleNotPermitted,
			ActionModerateComment: ReasonRoleNotPermitted,
			ActionChangeUserType:  ReasonRoleNotPermitted,
		}},
		{"attendee on own event", attendee, Target{OwnerID: attendee.UserID}, attendeeCells},
		{"attendee on foreign event", attendee, foreign, attendeeCells},
	}

	for _, r := range rows {
		require.Len(t, r.cells, len(Actions()), r.name)
		for _, action := range Actions() {
			t.Run(r.name+"/"+string(action), func(t *testing.T) {
				want, listed := r.cells[action]
				require.True(t, listed)

				decision := Authorize(r.principal, action, r.target)
				if want == allowed {
					require.True(t, decision.Allowed)
					require.Empty(t, decision.Reason)
					require.NoError(t, decision.Err(action))
					return
				}
				require.False(t, decision.Allowed)
				require.Equal(t, want, decision.Reason)
				require.True(t, apperrors.IsCode(decision.Err(action), apperrors.CodePermissionDenied))
			})
		}
	}
}

func TestAuthorizeOrganizerOwnership(t *testing.T) {
	organizer := Principal{UserID: "organizer-1", Role: RoleOrganizer}

	for _, action := range []Action{ActionModifyEvent, ActionDeleteEvent} {
		decision := Authorize(organizer, action, Target{OwnerID: "organizer-2"})
		require.False(t, decision.Allowed)
		require.Equal(t, ReasonNotOwner, decision.Reason)

		decision = Authorize(organizer, action, Target{})
		require.False(t, decision.Allowed, "missing owner never matches")
		require.Equal(t, ReasonNotOwner, decision.Reason)
	}

	require.True(t, Authorize(organizer, ActionCreateEvent, Target{}).Allowed)
}

func TestAuthorizeUnauthenticated(t *testing.T) {
	for _, p := range []Principal{{}, {UserID: "u1"}, {Role: RoleAdministrator}, {UserID: "u1", Role: "root"}} {
		decision := Authorize(p, ActionJoinEvent, Target{})
		require.False(t, decision.Allowed)
		require.Equal(t, ReasonUnauthenticated, decision.Reason)
		require.True(t, apperrors.IsCode(decision.Err(ActionJoinEvent), apperrors.CodeUnauthenticated))
	}
}

func TestAuthorizeUnknownAction(t *testing.T) {
	decision := Authorize(Principal{UserID: "admin-1", Role: RoleAdministrator}, Action("launch_rockets"), Target{})
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonUnknownAction, decision.Reason)
}

func TestCanAudit(t *testing.T) {
	target := Target{OwnerID: "organizer-1"}
	require.True(t, CanAudit(Principal{UserID: "admin-1", Role: RoleAdministrator}, target))
	require.True(t, CanAudit(Principal{UserID: "organizer-1", Role: RoleOrganizer}, target))
	require.False(t, CanAudit(Principal{UserID: "organizer-2", Role: RoleOrganizer}, target))
	require.False(t, CanAudit(Principal{UserID: "organizer-1", Role: RoleAttendee}, target))
	require.False(t, CanAudit(Principal{}, target))
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" Organizer ")
	require.True(t, ok)
	require.Equal(t, RoleOrganizer, role)

	_, ok = ParseRole("admin")
	require.False(t, ok)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	require.False(t, ok)

	p := Principal{UserID: "u1", Role: RoleAttendee}
	got, ok := PrincipalFrom(WithPrincipal(context.Background(), p))
	require.True(t, ok)
	require.Equal(t, p, got)
}
