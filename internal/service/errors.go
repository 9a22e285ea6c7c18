package service

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidInput       = errors.New("invalid input")
	ErrGuardViolation     = errors.New("transition guard violated")
	ErrReadingNotEligible = errors.New("reading not eligible for billing")
	ErrAlreadyResolved    = errors.New("request already resolved")
	ErrInvalidState       = errors.New("invalid invoice state")
)
