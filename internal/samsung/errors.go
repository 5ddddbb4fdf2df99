package samsung

import "errors"

// Configuration errors. They are fatal at startup.
var (
	ErrDuplicateAddress = errors.New("samsung: duplicate device address")
	ErrDuplicateBinding = errors.New("samsung: duplicate binding")
)

// Runtime conditions. Routing treats the first two as results, not failures.
var (
	ErrUnknownDevice = errors.New("samsung: unknown device")
	ErrNoBinding     = errors.New("samsung: no binding")
	ErrInvalidOption = errors.New("samsung: invalid option")
	ErrOutOfRange    = errors.New("samsung: value out of range")
	ErrWrongKind     = errors.New("samsung: value kind does not match role")
	ErrReadOnly      = errors.New("samsung: entity is read-only")
	ErrOutboxFull    = errors.New("samsung: outbox full")
)
