package jws

import (
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"io"
	"slices"
)

// signingInput feeds "protected." followed by the payload into a hash. The
// payload goes through a base64url encoder unless the header asks for an
// unencoded payload.
type signingInput struct {
	hash    hash.Hash
	payload io.WriteCloser
	written int64
}

func newSigningInput(h hash.Hash, protected string, unencoded bool) *signingInput {
	h.Write([]byte(protected))
	h.Write([]byte{'.'})

	in := &signingInput{hash: h}
	if unencoded {
		in.payload = nopWriteCloser{h}
	} else {
		in.payload = base64.NewEncoder(base64.RawURLEncoding, h)
	}

	return in
}

func (in *signingInput) Write(p []byte) (int, error) {
	n, err := in.payload.Write(p)
	in.written += int64(n)

	return n, err
}

// sum flushes the encoder and returns the hash of the whole signing input.
func (in *signingInput) sum() ([]byte, error) {
	if err := in.payload.Close(); err != nil {
		return nil, err
	}

	return in.hash.Sum(nil), nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// SignWriter computes a detached JWS over everything written to it.
// It is not safe for concurrent use.
type SignWriter struct {
	signer    Signer
	protected string
	input     *signingInput
	finished  bool
}

// NewSignWriter starts a detached signature for alg. The header is copied;
// alg is always set from the argument and kid from the signer when the
// header does not carry one. A header with "b64": false gets "b64" added to
// crit as RFC 7797 requires.
func NewSignWriter(alg Algorithm, header Header, signer Signer) (*SignWriter, error) {
	if signer == nil {
		return nil, ErrNoSigner
	}

	if signer.Algorithm() != alg {
		return nil, fmt.Errorf("%w: signer is %s, header is %s", ErrAlgorithmMismatch, signer.Algorithm(), alg)
	}

	h := header.Clone()
	h[HeaderAlgorithm] = string(alg)

	if _, ok := h[HeaderKeyID]; !ok && signer.KeyID() != "" {
		h[HeaderKeyID] = signer.KeyID()
	}

	if _, ok := h[HeaderBase64]; ok {
		crit, err := h.critical()
		if err != nil {
			return nil, err
		}

		if !slices.Contains(crit, HeaderBase64) {
			crit = append(crit, HeaderBase64)
		}

		h[HeaderCritical] = crit
	}

	if err := roundTripValidate(h); err != nil {
		return nil, err
	}

	protected, err := h.encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	return &SignWriter{
		signer:    signer,
		protected: protected,
		input:     newSigningInput(signer.NewHash(), protected, h.Unencoded()),
	}, nil
}

// Write feeds payload bytes into the signature.
func (w *SignWriter) Write(p []byte) (int, error) {
	if w.finished {
		return 0, ErrFinished
	}

	return w.input.Write(p)
}

// Written returns the number of payload bytes written so far.
func (w *SignWriter) Written() int64 {
	return w.input.written
}

// Finish signs the accumulated input and returns the compact detached
// token "protected..signature". It may be called once.
func (w *SignWriter) Finish() ([]byte, error) {
	if w.finished {
		return nil, ErrFinished
	}

	w.finished = true

	sum, err := w.input.sum()
	if err != nil {
		return nil, err
	}

	sig, err := w.signer.Sign(sum)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	encodedSig := base64.RawURLEncoding.EncodeToString(sig)

	out := make([]byte, 0, len(w.protected)+2+len(encodedSig))
	out = append(out, w.protected...)
	out = append(out, '.', '.')
	out = append(out, encodedSig...)

	return out, nil
}

// Resolver selects a Verifier from the protected header of a token. It
// returns false when no verifier applies.
type Resolver func(h Header) (Verifier, bool)

// VerifyWriter checks a detached JWS against everything written to it.
// It is not safe for concurrent use.
type VerifyWriter struct {
	verifier  Verifier
	header    Header
	signature []byte
	input     *signingInput
	finished  bool
}

// NewVerifyWriter parses a compact detached token and resolves its
// verifier. Parse errors wrap ErrMalformedToken or ErrNotDetached; an alg
// the resolver cannot serve is ErrUnsupportedAlgorithm.
func NewVerifyWriter(raw []byte, resolve Resolver) (*VerifyWriter, error) {
	t, err := parseToken(string(raw))
	if err != nil {
		return nil, err
	}

	alg := t.header.Algorithm()
	if _, err := alg.KeyType(); err != nil {
		return nil, err
	}

	if resolve == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}

	verifier, ok := resolve(t.header)
	if !ok || verifier == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}

	if verifier.Algorithm() != alg {
		return nil, fmt.Errorf("%w: verifier is %s, token is %s", ErrUnsupportedAlgorithm, verifier.Algorithm(), alg)
	}

	return &VerifyWriter{
		verifier:  verifier,
		header:    t.header,
		signature: t.signature,
		input:     newSigningInput(verifier.NewHash(), t.protected, t.header.Unencoded()),
	}, nil
}

// Header returns the decoded protected header.
func (w *VerifyWriter) Header() Header {
	return w.header
}

// Write feeds payload bytes into the verification.
func (w *VerifyWriter) Write(p []byte) (int, error) {
	if w.finished {
		return 0, ErrFinished
	}

	return w.input.Write(p)
}

// Written returns the number of payload bytes written so far.
func (w *VerifyWriter) Written() int64 {
	return w.input.written
}

// Finish verifies the signature over the accumulated input. A mismatch is
// reported as ErrSignatureInvalid. It may be called once.
func (w *VerifyWriter) Finish() error {
	if w.finished {
		return ErrFinished
	}

	w.finished = true

	sum, err := w.input.sum()
	if err != nil {
		return err
	}

	if err := w.verifier.Verify(sum, w.signature); err != nil {
		if errors.Is(err, ErrSignatureInvalid) {
			return err
		}

		return fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	}

	return nil
}

// Sign reads r to the end and returns a detached token over its bytes.
func Sign(alg Algorithm, header Header, r io.Reader, signer Signer) ([]byte, error) {
	w, err := NewSignWriter(alg, header, signer)
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(w, r); err != nil {
		return nil, err
	}

	return w.Finish()
}

// Verify reads r to the end and checks it against a detached token. It
// returns the protected header on success.
func Verify(raw []byte, r io.Reader, resolve Resolver) (Header, error) {
	w, err := NewVerifyWriter(raw, resolve)
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(w, r); err != nil {
		return nil, err
	}

	if err := w.Finish(); err != nil {
		return nil, err
	}

	return w.Header(), nil
}

// roundTripValidate validates h as a verifier would see it after JSON
// decoding, so a header that signs always parses.
func roundTripValidate(h Header) error {
	encoded, err := h.encode()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	_, err = decodeHeader(encoded)

	return err
}
