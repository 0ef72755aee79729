package events

import (
	apperrors "github.com/Togather-Foundation/eventplus/internal/errors"
)

var (
	ErrNotFound        = apperrors.New(apperrors.CodeNotFound, "event not found")
	ErrTypeNotFound    = apperrors.New(apperrors.CodeNotFound, "event type not found")
	ErrCommentNotFound = apperrors.New(apperrors.CodeNotFound, "comment not found")

	ErrInvalidSchedule = apperrors.New(apperrors.CodeInvalidSchedule, "event must end after it starts")
	ErrInvalidCapacity = apperrors.New(apperrors.CodeInvalidCapacity, "capacity must be zero (unlimited) or positive")
	ErrInvalidTitle    = apperrors.New(apperrors.CodeInvalidInput, "title is required and must be at most 200 characters").WithMetadata("field", "title")
	ErrInvalidComment  = apperrors.New(apperrors.CodeInvalidComment, "comment must be between 1 and 2000 characters")

	ErrCapacityBelowConfirmed = apperrors.New(apperrors.CodeCapacityBelowConfirmed, "capacity is below the number of confirmed attendees")
	ErrHasActiveAttendees     = apperrors.New(apperrors.CodeHasActiveAttendees, "event has confirmed attendees")

	ErrAlreadyConfirmed = apperrors.New(apperrors.CodeAlreadyConfirmed, "already attending this event")
	ErrEventFull        = apperrors.New(apperrors.CodeEventFull, "event is full")
	ErrNotRegistered    = apperrors.New(apperrors.CodeNotRegistered, "not attending this event")
	ErrCommentFinalized = apperrors.New(apperrors.CodeCommentFinalized, "comment has already been moderated")

	ErrModerationUnavailable = apperrors.New(apperrors.CodeModerationUnavailable, "moderation is temporarily unavailable")
	ErrStoreUnavailable      = apperrors.New(apperrors.CodeStoreUnavailable, "storage is temporarily unavailable")
)
