package errors

import "errors"

var (
	ErrUserAlreadyExists  = errors.New("username already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrReservedUsername   = errors.New("username is reserved")
	ErrPasswordTooLong    = errors.New("password exceeds 72 bytes")
)
