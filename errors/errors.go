package errors

import "errors"

// Sentinel errors for common error conditions
var (
	// ErrJobNotFound indicates that a requested evaluation job does not exist
	ErrJobNotFound = errors.New("evaluation job not found")

	// ErrJobNotFinished indicates that a result was requested before the job completed
	ErrJobNotFinished = errors.New("evaluation not yet completed")

	// ErrJobNotCancellable indicates the job is no longer pending or running
	ErrJobNotCancellable = errors.New("evaluation can no longer be cancelled")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")
)
