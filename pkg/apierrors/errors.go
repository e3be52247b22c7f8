// Package apierrors defines the typed errors returned by campus services.
//
// Every error carries a stable numeric code and the HTTP status the request
// layer should answer with. Services return these values; only pkg/api turns
// them into responses.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups errors by how callers are expected to react
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthorization  Kind = "authorization"
	KindAuthentication Kind = "authentication"
	KindInvariant      Kind = "invariant"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindConsistency    Kind = "consistency"
	KindInternal       Kind = "internal"
)

// Error is a coded service error
type Error struct {
	Kind    Kind        `json:"-"`
	Code    int         `json:"errorCode"`
	Status  int         `json:"-"`
	Message string      `json:"message"`
	Raw     interface{} `json:"raw,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d | %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%d | %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on the error code so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithRaw returns a copy of e carrying raw detail for the response body
func (e *Error) WithRaw(raw interface{}) *Error {
	cp := *e
	cp.Raw = raw
	return &cp
}

// Wrap returns a copy of e that records cause
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

func newError(kind Kind, code, status int, message string) *Error {
	return &Error{Kind: kind, Code: code, Status: status, Message: message}
}

// Sentinels. Compare with errors.Is; derive response copies with WithRaw or Wrap.
var (
	ErrUnknown                    = newError(KindInternal, 1, http.StatusInternalServerError, "Unknown error")
	ErrServiceUnavailable         = newError(KindInternal, 2, http.StatusServiceUnavailable, "Service unavailable")
	ErrTooManyRequests            = newError(KindAuthentication, 3, http.StatusTooManyRequests, "Too many requests")
	ErrRequiredParametersMissing  = newError(KindValidation, 100, http.StatusBadRequest, "Required parameters missing")
	ErrNoUniversityIDMatch        = newError(KindValidation, 101, http.StatusBadRequest, "University id does not match")
	ErrUserNotAuthenticated       = newError(KindAuthentication, 102, http.StatusForbidden, "User is not authenticated")
	ErrInvalidPermissionForAction = newError(KindAuthorization, 103, http.StatusForbidden, "Invalid permission for action")
	ErrAuthTokenExpired           = newError(KindAuthentication, 104, http.StatusUnauthorized, "Auth token expired")

	ErrFailedToLogin               = newError(KindAuthentication, 200, http.StatusUnauthorized, "Failed to login")
	ErrFailedToSignup              = newError(KindInternal, 201, http.StatusBadRequest, "Failed to signup")
	ErrUserExistsWithEmail         = newError(KindConflict, 202, http.StatusBadRequest, "User exists with email")
	ErrNoUniversitySpecifiedToJoin = newError(KindValidation, 203, http.StatusBadRequest, "No university specified to join")

	ErrUniversityRecordNotFound      = newError(KindNotFound, 300, http.StatusBadRequest, "University record not found")
	ErrUniversityExistsWithName      = newError(KindConflict, 301, http.StatusBadRequest, "University exists with name")
	ErrInvalidUserCreatingUniversity = newError(KindValidation, 302, http.StatusBadRequest, "Invalid user creating university")
	ErrFailedToCreateUniversity      = newError(KindInternal, 303, http.StatusBadRequest, "Failed to create university")

	ErrDuplicateOrganizationMembership = newError(KindInvariant, 400, http.StatusBadRequest, "Already have active university membership")
	ErrInvalidGroupTier                = newError(KindInvariant, 401, http.StatusBadRequest, "Invalid rso permission level")
	ErrInvalidOrganizationTier         = newError(KindInvariant, 402, http.StatusBadRequest, "Invalid university permission level")
	ErrFailedToCreateMembership        = newError(KindInternal, 403, http.StatusBadRequest, "Failed to create membership")

	ErrInvalidUserSpecifiedForCreation = newError(KindValidation, 500, http.StatusBadRequest, "Invalid user specified for creation")
	ErrNotEnoughMembersInRso           = newError(KindValidation, 501, http.StatusBadRequest, "Not enough members in rso")
	ErrNoRsoInUniversity               = newError(KindNotFound, 502, http.StatusBadRequest, "No rso in university")

	ErrNoEventInRso            = newError(KindNotFound, 600, http.StatusBadRequest, "No event in rso")
	ErrEventPrivacyRestriction = newError(KindAuthorization, 601, http.StatusForbidden, "Event privacy restriction")
	ErrUserNotInRso            = newError(KindAuthorization, 602, http.StatusForbidden, "User not in rso")

	ErrUserRecordNotFound         = newError(KindNotFound, 700, http.StatusBadRequest, "User record not found")
	ErrUserAlreadySubscribedToRso = newError(KindConflict, 701, http.StatusBadRequest, "User already subscribed to rso")
	ErrSubscriptionNotFound       = newError(KindNotFound, 702, http.StatusBadRequest, "Subscription not found")
	ErrCommentNotFound            = newError(KindNotFound, 703, http.StatusBadRequest, "Comment not found")

	ErrConsistency = newError(KindConsistency, 900, http.StatusInternalServerError, "Storage consistency failure")
)

// InvalidUserSpecifiedForCreation reports, per candidate email, whether the
// email resolved to an active member of the organization.
func InvalidUserSpecifiedForCreation(results map[string]bool) *Error {
	return ErrInvalidUserSpecifiedForCreation.WithRaw(results)
}

// Missing returns a RequiredParametersMissing error naming the fields
func Missing(fields ...string) *Error {
	return ErrRequiredParametersMissing.WithRaw(fields)
}

// From extracts an *Error from err, falling back to ErrUnknown
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrUnknown.Wrap(err)
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
