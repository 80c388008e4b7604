package domain

import "errors"

var (
	ErrInvalidURL          = errors.New("invalid URL")
	ErrInvalidCustomCode   = errors.New("invalid custom code")
	ErrCodeAlreadyTaken    = errors.New("custom code already taken")
	ErrAllocationExhausted = errors.New("could not allocate a free short code")
	ErrDuplicateCode       = errors.New("duplicate short code")
	ErrNotFound            = errors.New("not found")

	ErrValidation         = errors.New("validation failed")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbidden          = errors.New("access denied")
)
