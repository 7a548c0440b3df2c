package supervision

import "errors"

var (
	ErrLinkNotFound           = errors.New("supervision: link not found")
	ErrLinkAlreadyExists      = errors.New("supervision: link already exists")
	ErrInvalidID              = errors.New("supervision: invalid id")
	ErrInvalidVicePresident   = errors.New("supervision: user is not an active vice president")
	ErrDepartmentNotFound     = errors.New("supervision: department not found")
	ErrDefaultAlreadyAssigned = errors.New("supervision: department already has a default supervisor")
)
