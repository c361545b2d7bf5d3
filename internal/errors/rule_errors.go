package errors

import (
	"errors"
	"fmt"
)

var ErrInvalidRole = errors.New("invalid role")

// InvalidRoleError is a malformed request: the role has no availability policy.
// It matches ErrInvalidRole under errors.Is.
type InvalidRoleError struct {
	Role string
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("invalid role: %q", e.Role)
}

func (e *InvalidRoleError) Is(target error) bool {
	return target == ErrInvalidRole
}
