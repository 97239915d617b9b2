package jwshttp

import (
	"net/http"

	"github.com/vitalvas/detachedjws/jws"
)

// Policy decides whether a request is verified, which verifier checks it,
// and how rejections are answered.
type Policy interface {
	// ShouldVerify is called once per request before the body is
	// verified. Reading r.Body here is allowed: the body is already
	// buffered and will be replayed from the first byte.
	ShouldVerify(r *http.Request) bool

	// ResolveVerifier selects the verifier for the token's protected
	// header. Returning false rejects the request as KindMalformed.
	ResolveVerifier(r *http.Request, h jws.Header) (jws.Verifier, bool)

	// HandleError writes the response for a rejected request.
	HandleError(w http.ResponseWriter, r *http.Request, err *VerifyError)
}

// BasePolicy verifies any request that carries the signature header,
// resolves no verifiers, and answers rejections with DefaultErrorHandler.
// Embed it to override only what differs.
type BasePolicy struct {
	// Header is the signature header name. Defaults to SignatureHeader.
	Header string
}

func (p BasePolicy) ShouldVerify(r *http.Request) bool {
	name := p.Header
	if name == "" {
		name = SignatureHeader
	}

	return r.Header.Get(name) != ""
}

func (BasePolicy) ResolveVerifier(*http.Request, jws.Header) (jws.Verifier, bool) {
	return nil, false
}

func (BasePolicy) HandleError(w http.ResponseWriter, r *http.Request, err *VerifyError) {
	DefaultErrorHandler(w, r, err)
}

// DefaultErrorHandler answers 403 for a missing header or bad signature,
// 400 for a malformed token and 413 for an oversized body.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err *VerifyError) {
	switch err.Kind {
	case KindHeaderMissing:
		http.Error(w, "Header Not Found", http.StatusForbidden)
	case KindSignatureMismatch:
		http.Error(w, "Incorrect Signature", http.StatusForbidden)
	case KindOverflow:
		http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
	default:
		http.Error(w, "Malformed Signature", http.StatusBadRequest)
	}
}

// KeyPolicy resolves verifiers from a fixed set by alg and, when the token
// names one, by kid.
type KeyPolicy struct {
	BasePolicy

	// Require verifies every request, so a missing header is rejected
	// instead of skipped.
	Require bool

	verifiers []jws.Verifier
}

// NewKeyPolicy returns a policy over the given verifiers.
func NewKeyPolicy(verifiers ...jws.Verifier) (*KeyPolicy, error) {
	if len(verifiers) == 0 {
		return nil, ErrNoVerifiers
	}

	for _, v := range verifiers {
		if v == nil {
			return nil, ErrNoVerifiers
		}
	}

	return &KeyPolicy{verifiers: verifiers}, nil
}

func (p *KeyPolicy) ShouldVerify(r *http.Request) bool {
	return p.Require || p.BasePolicy.ShouldVerify(r)
}

func (p *KeyPolicy) ResolveVerifier(_ *http.Request, h jws.Header) (jws.Verifier, bool) {
	alg := h.Algorithm()
	kid := h.KeyID()

	for _, v := range p.verifiers {
		if v.Algorithm() != alg {
			continue
		}

		if kid != "" && v.KeyID() != kid {
			continue
		}

		return v, true
	}

	return nil, false
}

// PolicyFuncs adapts plain functions to Policy. Nil fields fall back to
// BasePolicy.
type PolicyFuncs struct {
	ShouldVerifyFunc    func(r *http.Request) bool
	ResolveVerifierFunc func(r *http.Request, h jws.Header) (jws.Verifier, bool)
	HandleErrorFunc     func(w http.ResponseWriter, r *http.Request, err *VerifyError)
}

func (p PolicyFuncs) ShouldVerify(r *http.Request) bool {
	if p.ShouldVerifyFunc == nil {
		return BasePolicy{}.ShouldVerify(r)
	}

	return p.ShouldVerifyFunc(r)
}

func (p PolicyFuncs) ResolveVerifier(r *http.Request, h jws.Header) (jws.Verifier, bool) {
	if p.ResolveVerifierFunc == nil {
		return nil, false
	}

	return p.ResolveVerifierFunc(r, h)
}

func (p PolicyFuncs) HandleError(w http.ResponseWriter, r *http.Request, err *VerifyError) {
	if p.HandleErrorFunc == nil {
		DefaultErrorHandler(w, r, err)
		return
	}

	p.HandleErrorFunc(w, r, err)
}
