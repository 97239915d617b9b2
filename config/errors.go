package config

import "errors"

var (
	// ErrNoListen is returned when the listen address is empty.
	ErrNoListen = errors.New("config: listen address must not be empty")

	// ErrInvalidKey is returned when a key entry is incomplete or its file
	// does not hold a key usable with its algorithm.
	ErrInvalidKey = errors.New("config: invalid key")
)
