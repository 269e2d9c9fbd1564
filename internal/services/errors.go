package services

import (
	"errors"

	petaverse_errors "petaverse-chat/pkg/errors"
)

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, petaverse_errors.ErrValidation):
		return 400
	case errors.Is(err, petaverse_errors.ErrUnauthorized):
		return 401
	case errors.Is(err, petaverse_errors.ErrAccessDenied):
		return 403
	case errors.Is(err, petaverse_errors.ErrNotFound):
		return 404
	case errors.Is(err, petaverse_errors.ErrAlreadyExists):
		return 409
	case errors.Is(err, petaverse_errors.ErrRateLimited):
		return 429
	default:
		return 500
	}
}

// ErrorCode is the stable machine readable code sent in error envelopes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, petaverse_errors.ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, petaverse_errors.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, petaverse_errors.ErrAccessDenied):
		return "ACCESS_DENIED"
	case errors.Is(err, petaverse_errors.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, petaverse_errors.ErrAlreadyExists):
		return "ALREADY_EXISTS"
	case errors.Is(err, petaverse_errors.ErrRateLimited):
		return "RATE_LIMITED"
	default:
		return "INTERNAL_ERROR"
	}
}

// PublicMessage hides internal error text from clients.
func PublicMessage(err error) string {
	if HTTPStatus(err) == 500 {
		return "internal server error"
	}
	return err.Error()
}
