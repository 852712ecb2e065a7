package node

import "errors"

var (
	// ErrMissingID indicates a node config without a client id.
	ErrMissingID = errors.New("node: missing client id")

	// ErrInvalidInterval indicates a non-positive publish interval.
	ErrInvalidInterval = errors.New("node: publish interval must be positive")

	// ErrInvalidPayload indicates a non-positive payload size.
	ErrInvalidPayload = errors.New("node: payload size must be positive")
)
