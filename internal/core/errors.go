package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeNotAMember         = "not_a_member"
	ErrCodeMessageTooLarge    = "message_too_large"
	ErrCodeInvalidContentType = "invalid_content_type"
	ErrCodeRoomNotFound       = "room_not_found"
	ErrCodeDuplicateJoin      = "duplicate_join"
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeRoomClosed         = "room_closed"
	ErrCodeSessionClosed      = "session_closed"
	ErrCodeInternal           = "internal"
)

var (
	ErrNotAMember         = errors.New("not a member of the room")
	ErrMessageTooLarge    = errors.New("message too large")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrRoomNotFound       = errors.New("room not found")
	ErrDuplicateJoin      = errors.New("duplicate join")
	ErrBadRequest         = errors.New("bad request")
	ErrRoomClosed         = errors.New("room closed")
	ErrSessionClosed      = errors.New("session closed")
)

// Severity grades a notification sent to a single session.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code     string
	Message  string
	Severity Severity
	err      error
}

func (e *CoreError) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel so callers can use errors.Is.
func (e *CoreError) Unwrap() error {
	return e.err
}

func coreError(sentinel error, code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg, Severity: SeverityError, err: sentinel}
}

func errNotAMember(userID string) *CoreError {
	return coreError(ErrNotAMember, ErrCodeNotAMember, "user "+userID+" is not a member of the room")
}

func errDuplicateJoin(userID string) *CoreError {
	e := coreError(ErrDuplicateJoin, ErrCodeDuplicateJoin, "user "+userID+" already joined the room")
	e.Severity = SeverityWarning
	return e
}

func errBadRequest(msg string) *CoreError {
	return coreError(ErrBadRequest, ErrCodeBadRequest, msg)
}

// AsCoreError converts any error into a CoreError suitable for a notification.
func AsCoreError(err error) *CoreError {
	if err == nil {
		return nil
	}
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, ErrRoomClosed):
		return coreError(ErrRoomClosed, ErrCodeRoomClosed, "room is closed")
	case errors.Is(err, ErrSessionClosed):
		return coreError(ErrSessionClosed, ErrCodeSessionClosed, "session is closed")
	}
	return &CoreError{Code: ErrCodeInternal, Message: err.Error(), Severity: SeverityError, err: err}
}
