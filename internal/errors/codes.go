// Package errors provides the typed error taxonomy shared by the domain and transport layers.
package errors

import "net/http"

// Code is a machine-readable reason code.
type Code string

const (
	CodeUnknown Code = "unknown"

	// Validation
	CodeInvalidInput    Code = "invalid_input"
	CodeInvalidSchedule Code = "invalid_schedule"
	CodeInvalidCapacity Code = "invalid_capacity"
	CodeInvalidComment  Code = "invalid_comment"
	CodeInvalidJSON     Code = "invalid_json"

	// Policy
	CodePermissionDenied       Code = "permission_denied"
	CodeCapacityBelowConfirmed Code = "capacity_below_confirmed"
	CodeHasActiveAttendees     Code = "has_active_attendees"

	// Conflict
	CodeAlreadyConfirmed Code = "already_confirmed"
	CodeEventFull        Code = "event_full"
	CodeNotRegistered    Code = "not_registered"
	CodeCommentFinalized Code = "comment_finalized"
	CodeEmailTaken       Code = "email_taken"
	CodeUsernameTaken    Code = "username_taken"

	// Unavailable
	CodeModerationUnavailable Code = "moderation_unavailable"
	CodeStoreUnavailable      Code = "store_unavailable"
	CodeRateLimited           Code = "rate_limited"

	// Not found
	CodeNotFound Code = "not_found"

	// Authentication
	CodeUnauthenticated    Code = "unauthenticated"
	CodeInvalidCredentials Code = "invalid_credentials"
)

// Kind groups codes by how callers are expected to react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindPolicy
	KindConflict
	KindUnavailable
	KindNotFound
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPolicy:
		return "policy"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	default:
		return "internal"
	}
}

// Kind maps a code onto its taxonomy bucket.
func (c Code) Kind() Kind {
	switch c {
	case CodeInvalidInput,
		CodeInvalidSchedule,
		CodeInvalidCapacity,
		CodeInvalidComment,
		CodeInvalidJSON:
		return KindValidation

	case CodePermissionDenied,
		CodeCapacityBelowConfirmed,
		CodeHasActiveAttendees:
		return KindPolicy

	case CodeAlreadyConfirmed,
		CodeEventFull,
		CodeNotRegistered,
		CodeCommentFinalized,
		CodeEmailTaken,
		CodeUsernameTaken:
		return KindConflict

	case CodeModerationUnavailable,
		CodeStoreUnavailable,
		CodeRateLimited:
		return KindUnavailable

	case CodeNotFound:
		return KindNotFound

	case CodeUnauthenticated,
		CodeInvalidCredentials:
		return KindAuth

	default:
		return KindInternal
	}
}

// HTTPStatus maps a code onto the HTTP status used in problem responses.
func (c Code) HTTPStatus() int {
	switch c.Kind() {
	case KindValidation:
		return http.StatusBadRequest
	case KindPolicy:
		// Authorization denials are 403; policy refusals about the event's state are conflicts.
		if c == CodePermissionDenied {
			return http.StatusForbidden
		}
		return http.StatusConflict
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		if c == CodeRateLimited {
			return http.StatusTooManyRequests
		}
		return http.StatusServiceUnavailable
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
