package jwshttp

import (
	"errors"
	"fmt"
)

// Configuration errors.
var (
	// ErrNoPolicy is returned when VerifyConfig has no Policy configured.
	ErrNoPolicy = errors.New("jwshttp: policy must not be nil")

	// ErrNoSigner is returned when SignConfig or TransportConfig has no
	// Signer configured.
	ErrNoSigner = errors.New("jwshttp: signer source must not be nil")

	// ErrNoVerifiers is returned by NewKeyPolicy without verifiers.
	ErrNoVerifiers = errors.New("jwshttp: at least one verifier is required")

	// ErrInvalidHeaderName is returned when a configured header name is not
	// a valid HTTP field name.
	ErrInvalidHeaderName = errors.New("jwshttp: invalid header name")
)

// Verification errors.
var (
	// ErrHeaderMissing is wrapped by a KindHeaderMissing VerifyError.
	ErrHeaderMissing = errors.New("jwshttp: signature header not found")

	// ErrResponseVerification is returned by Transport when a response
	// signature cannot be verified.
	ErrResponseVerification = errors.New("jwshttp: response verification failed")
)

// Kind classifies a verification rejection.
type Kind int

const (
	// KindHeaderMissing means the signature header is absent.
	KindHeaderMissing Kind = iota + 1

	// KindSignatureMismatch means the signature does not match the body.
	KindSignatureMismatch

	// KindMalformed means the token could not be parsed or its algorithm
	// could not be served.
	KindMalformed

	// KindOverflow means the body exceeded the buffer limit.
	KindOverflow
)

// String returns a snake_case name suitable for logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindHeaderMissing:
		return "header_missing"
	case KindSignatureMismatch:
		return "signature_mismatch"
	case KindMalformed:
		return "malformed"
	case KindOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// VerifyError is a classified verification rejection. Errors that are not
// a *VerifyError (transport and spill-file I/O) are fatal.
type VerifyError struct {
	Kind Kind
	Err  error
}

func (e *VerifyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("jwshttp: verification rejected: %s", e.Kind)
	}

	return fmt.Sprintf("jwshttp: verification rejected: %s: %v", e.Kind, e.Err)
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}
