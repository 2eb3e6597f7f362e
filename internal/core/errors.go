package core

import "errors"

// Error codes for domain errors. They are sent verbatim as ERROR:<code>.
const (
	ErrCodeUnknownUser      = "UNKNOWN_USER"
	ErrCodeNotFriends       = "NOT_FRIENDS"
	ErrCodeBlocked          = "BLOCKED"
	ErrCodeNotLoggedIn      = "NOT_LOGGED_IN"
	ErrCodeNotMember        = "NOT_MEMBER"
	ErrCodeOwnerCannotLeave = "OWNER_CANNOT_LEAVE"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeBadFormat        = "BAD_FORMAT"
	ErrCodeAuthFailed       = "AUTH_FAILED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyOnline    = "ALREADY_ONLINE"
	ErrCodeSelfTarget       = "SELF_TARGET"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeUnknownCommand   = "UNKNOWN_COMMAND"
	ErrCodeInternal         = "INTERNAL"
)

var (
	ErrUnknownUser      = coreError(ErrCodeUnknownUser, "unknown user")
	ErrNotFriends       = coreError(ErrCodeNotFriends, "users are not friends")
	ErrBlocked          = coreError(ErrCodeBlocked, "blocked")
	ErrNotLoggedIn      = coreError(ErrCodeNotLoggedIn, "not logged in")
	ErrNotMember        = coreError(ErrCodeNotMember, "not a channel member")
	ErrOwnerCannotLeave = coreError(ErrCodeOwnerCannotLeave, "owner cannot leave channel")
	ErrAlreadyExists    = coreError(ErrCodeAlreadyExists, "channel already exists")
	ErrBadFormat        = coreError(ErrCodeBadFormat, "bad format")
	ErrNotFound         = coreError(ErrCodeNotFound, "channel not found")
	ErrAlreadyOnline    = coreError(ErrCodeAlreadyOnline, "user already online")
	ErrSelfTarget       = coreError(ErrCodeSelfTarget, "cannot target yourself")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// Is matches errors by code so wrapped internal errors compare equal to their sentinel.
func (e *CoreError) Is(target error) bool {
	var t *CoreError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// internalError marks a persistence failure. The cause is kept for logging only.
func internalError(msg string, err error) *CoreError {
	return &CoreError{Code: ErrCodeInternal, Message: msg, Err: err}
}

// ErrorCode extracts the protocol code of err, falling back to INTERNAL.
func ErrorCode(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeInternal
}
