package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrCompanyMismatch indicates an entity referenced across company boundaries.
	ErrCompanyMismatch = errors.New("entity belongs to another company")
)
