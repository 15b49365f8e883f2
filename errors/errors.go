package errors

import "fmt"

var (
	ErrAlreadyPaired        = fmt.Errorf("seeker is already in an active conversation")
	ErrNoResponderAvailable = fmt.Errorf("no responder available")
	ErrMalformedEvent       = fmt.Errorf("malformed event")
	ErrWorkerPanic          = fmt.Errorf("worker panic")

	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
)
