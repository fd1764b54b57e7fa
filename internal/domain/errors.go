package domain

import "errors"

// Sentinel errors for the application.
//
// Authorization denials are deliberately surfaced as ErrNotFound: a caller
// must not be able to distinguish a row that does not exist from a row they
// are not allowed to see.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrConflict         = errors.New("resource already exists")
	ErrDuplicate        = errors.New("duplicate row")
	ErrInvalidReference = errors.New("referenced row does not exist")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal server error")
)
