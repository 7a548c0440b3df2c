package directory

import "errors"

var (
	ErrUserNotFound       = errors.New("directory: user not found")
	ErrDepartmentNotFound = errors.New("directory: department not found")
	ErrInvalidID          = errors.New("directory: invalid id")
	ErrInvalidRole        = errors.New("directory: invalid role")
)
