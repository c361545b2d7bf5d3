package http

import (
	"errors"
	"net/http"

	appErrors "github.com/vogiaan1904/ticketbottle-ticketlink/internal/errors"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/service"
	pkgErrors "github.com/vogiaan1904/ticketbottle-ticketlink/pkg/errors"
)

// Error codes returned in Resp.ErrorCode.
const (
	codeInvalidRequest     = 10001
	codeUserAlreadyExists  = 10002
	codeInvalidCredentials = 10003
	codeInvalidRole        = 10004
	codeQueueUnavailable   = 10005
	codeReservedUsername   = 10006
	codePasswordTooLong    = 10007
)

func errInvalidRequest(msg string) error {
	return pkgErrors.NewHTTPError(codeInvalidRequest, msg).WithStatus(http.StatusBadRequest)
}

func (h *HTTPHandler) mapHTTPError(err error) error {
	switch {
	case errors.Is(err, appErrors.ErrUserAlreadyExists):
		return pkgErrors.NewHTTPError(codeUserAlreadyExists, "Username already registered").
			WithStatus(http.StatusBadRequest)
	case errors.Is(err, appErrors.ErrReservedUsername):
		return pkgErrors.NewHTTPError(codeReservedUsername, "Username is reserved").
			WithStatus(http.StatusBadRequest)
	case errors.Is(err, appErrors.ErrPasswordTooLong):
		return pkgErrors.NewHTTPError(codePasswordTooLong, "Password must be at most 72 bytes").
			WithStatus(http.StatusBadRequest)
	case errors.Is(err, appErrors.ErrInvalidCredentials):
		return pkgErrors.NewHTTPError(codeInvalidCredentials, "Incorrect username or password").
			WithStatus(http.StatusUnauthorized).
			WithHeader("WWW-Authenticate", "Bearer")
	case errors.Is(err, appErrors.ErrInvalidRole):
		return pkgErrors.NewHTTPError(codeInvalidRole, "invalid role").
			WithStatus(http.StatusBadRequest)
	case errors.Is(err, service.ErrPublishFailed):
		return pkgErrors.NewHTTPError(codeQueueUnavailable, "ticket link request could not be queued, please retry").
			WithStatus(http.StatusServiceUnavailable)
	default:
		return err
	}
}
