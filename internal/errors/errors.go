package errors

import (
	"errors"
)

// Authentication-decision errors are deliberately coarse: callers must not
// be able to tell which underlying check failed.
var (
	ErrInvalidCredentials        = errors.New("invalid credentials")
	ErrInvalidOrExpiredChallenge = errors.New("invalid or expired challenge")
	ErrWeakPassword              = errors.New("password must be at least 8 characters long and contain a letter and a number")
	ErrEmailAlreadyInUse         = errors.New("email or username already in use")
	ErrDeliveryFailure           = errors.New("failed to deliver verification code")
)
