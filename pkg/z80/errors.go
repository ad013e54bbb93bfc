package z80

import "github.com/pkg/errors"

var (
	// ErrInvalidArgument is returned when a value is outside the domain an
	// accessor accepts, e.g. a bit position larger than the word.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfRange is returned by bulk transfers that exceed the backing store.
	ErrOutOfRange = errors.New("out of range")

	// ErrConfiguration is returned when a configuration value is rejected.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrInvalidOperation is raised when an agent method is invoked outside
	// the window where it is allowed.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrProtocolViolation is raised when an instruction handler breaks the
	// fetch-finished handshake.
	ErrProtocolViolation = errors.New("instruction protocol violation")

	// ErrStackOverflow is raised when SP moves below the configured lower
	// limit and fail-fast is enabled for overflows.
	ErrStackOverflow = errors.New("stack overflow")

	// ErrStackUnderflow is raised when SP moves above the start of the stack
	// and fail-fast is enabled for underflows.
	ErrStackUnderflow = errors.New("stack underflow")
)
