package jws

import "errors"

// Token errors.
var (
	// ErrMalformedToken is returned when a compact JWS cannot be split,
	// base64url-decoded or its protected header is not a JSON object.
	ErrMalformedToken = errors.New("jws: malformed token")

	// ErrNotDetached is returned when the payload segment of a token is not
	// empty.
	ErrNotDetached = errors.New("jws: payload segment must be empty")

	// ErrUnsupportedCritical is returned when the protected header lists a
	// critical parameter this package does not understand.
	ErrUnsupportedCritical = errors.New("jws: unsupported critical header parameter")
)

// Algorithm errors.
var (
	// ErrUnsupportedAlgorithm is returned when the alg header is missing,
	// unknown, or no verifier could be resolved for it.
	ErrUnsupportedAlgorithm = errors.New("jws: unsupported algorithm")

	// ErrAlgorithmMismatch is returned when a signer or verifier is used
	// with an alg value other than its own.
	ErrAlgorithmMismatch = errors.New("jws: algorithm mismatch")
)

// Signing and verification errors.
var (
	// ErrNoSigner is returned when a sign writer is created without a signer.
	ErrNoSigner = errors.New("jws: signer must not be nil")

	// ErrSigningFailed wraps errors returned by the signing primitive.
	ErrSigningFailed = errors.New("jws: signing failed")

	// ErrSignatureInvalid is returned when the signature does not match the
	// payload.
	ErrSignatureInvalid = errors.New("jws: signature verification failed")

	// ErrFinished is returned when a digest writer is written to or
	// finished after Finish has already been called.
	ErrFinished = errors.New("jws: writer already finished")
)

// Key material errors.
var (
	// ErrInvalidKey is returned when key material is invalid (nil, wrong
	// curve, insufficient size, etc.).
	ErrInvalidKey = errors.New("jws: invalid key material")
)
