package model

import "errors"

// Store-level sentinels. The store translates driver errors into these;
// services wrap them into RequestError at the edge.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrMessageNotFound   = errors.New("message not found")
	ErrEnvelopeNotFound  = errors.New("dm envelope not found")
	ErrSessionNotFound   = errors.New("device session not found")
	ErrKeyNotFound       = errors.New("public key not found")
	ErrBackupNotFound    = errors.New("crypto backup not found")
	ErrNoSubscription    = errors.New("push subscription not found")
	ErrDuplicateSequence = errors.New("sequence already logged")
	ErrDuplicateReaction = errors.New("reaction already present")
	ErrSessionRevoked    = errors.New("device session revoked")
)

// RequestError is a client-visible rejection: Code follows HTTP status
// semantics on both the REST edge and inside WS error frames.
type RequestError struct {
	Code   int
	Detail string
}

func (e *RequestError) Error() string { return e.Detail }

// Reject builds a RequestError with an explicit code.
func Reject(code int, detail string) *RequestError {
	return &RequestError{Code: code, Detail: detail}
}

// Validation is a 400 rejection for malformed or missing input.
func Validation(detail string) *RequestError { return Reject(400, detail) }

// AuthRequired is a 401 rejection for missing or invalid credentials.
func AuthRequired(detail string) *RequestError { return Reject(401, detail) }

// Forbidden is a 403 rejection for an authenticated but unauthorized actor.
func Forbidden(detail string) *RequestError { return Reject(403, detail) }

// NotFound is a 404 rejection for a missing entity.
func NotFound(detail string) *RequestError { return Reject(404, detail) }

// ContentPolicy is a 422 rejection for content the filter refuses.
func ContentPolicy(detail string) *RequestError { return Reject(422, detail) }

// AsRequestError unwraps err into a RequestError, or wraps it as an
// internal 500 when it is not one.
func AsRequestError(err error) *RequestError {
	var re *RequestError
	if errors.As(err, &re) {
		return re
	}
	return Reject(500, "Internal server error")
}
