package bitcoin

import "errors"

var (
	// ErrInvalidAddress indicates an address that does not decode for the configured network
	ErrInvalidAddress = errors.New("invalid Bitcoin address")

	// ErrUnknownNetwork indicates an unsupported network name
	ErrUnknownNetwork = errors.New("unknown Bitcoin network")
)
