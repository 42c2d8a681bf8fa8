package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every layer. Callers wrap these with context via
// fmt.Errorf("%w: ...") and match them with errors.Is.
var (
	// ErrConfig is a missing or malformed OTP configuration.
	ErrConfig = errors.New("invalid otp configuration")

	// ErrAuth covers wrong credentials and undecodable vault bytes.
	ErrAuth = errors.New("authentication failed")

	// ErrIO is a storage backend read or write failure.
	ErrIO = errors.New("storage i/o failed")

	// ErrState means the operation requires a lock state that does not hold.
	ErrState = errors.New("vault must be unlocked")

	// ErrNotFound is a uuid, field or index miss.
	ErrNotFound = errors.New("not found")

	// ErrType means a field is not of the expected variant.
	ErrType = errors.New("unexpected field type")

	// ErrEncoding is protected cleartext that is not valid UTF-8.
	ErrEncoding = errors.New("invalid utf-8")

	// ErrInvalidInput is a malformed request argument such as a bad uuid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIndexOutOfRange is a registry position miss.
	ErrIndexOutOfRange = fmt.Errorf("%w: index out of range", ErrNotFound)
)
