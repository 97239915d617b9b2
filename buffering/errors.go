package buffering

import "errors"

// Configuration errors.
var (
	// ErrInvalidThreshold is returned when Config.Threshold is negative.
	ErrInvalidThreshold = errors.New("buffering: threshold must not be negative")

	// ErrInvalidBlockSize is returned when Config.ProduceBlockSize is negative.
	ErrInvalidBlockSize = errors.New("buffering: produce block size must not be negative")

	// ErrInvalidBufferLimit is returned when Config.BufferLimit is negative.
	ErrInvalidBufferLimit = errors.New("buffering: buffer limit must not be negative")
)

// Buffer state errors.
var (
	// ErrOverflow is returned when a write would grow the buffer beyond
	// Config.BufferLimit.
	ErrOverflow = errors.New("buffering: buffer limit exceeded")

	// ErrWriteAfterRead is returned when writing to a buffer after its first
	// read pass has started.
	ErrWriteAfterRead = errors.New("buffering: write after read")

	// ErrClosed is returned when using a buffer after Close.
	ErrClosed = errors.New("buffering: buffer closed")
)
