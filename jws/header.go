package jws

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Protected header parameter names used by this package.
const (
	HeaderAlgorithm = "alg"
	HeaderKeyID     = "kid"
	HeaderType      = "typ"
	HeaderCritical  = "crit"
	HeaderBase64    = "b64"
)

// Header is the JWS protected header. Values are kept as decoded from JSON
// so that caller-defined parameters survive a round trip.
type Header map[string]any

// NewHeader returns an empty protected header.
func NewHeader() Header {
	return Header{}
}

// Clone returns a shallow copy of h. A nil header clones to an empty one.
func (h Header) Clone() Header {
	out := make(Header, len(h))
	maps.Copy(out, h)

	return out
}

// Algorithm returns the alg parameter, or an empty Algorithm when absent
// or not a string.
func (h Header) Algorithm() Algorithm {
	s, _ := h[HeaderAlgorithm].(string)
	return Algorithm(s)
}

// KeyID returns the kid parameter, or an empty string.
func (h Header) KeyID() string {
	s, _ := h[HeaderKeyID].(string)
	return s
}

// Get returns the raw value of a header parameter.
func (h Header) Get(name string) (any, bool) {
	v, ok := h[name]
	return v, ok
}

// Set assigns a header parameter and returns h for chaining.
func (h Header) Set(name string, value any) Header {
	h[name] = value
	return h
}

// Unencoded reports whether the payload is signed without base64url
// encoding (RFC 7797, "b64": false).
func (h Header) Unencoded() bool {
	v, ok := h[HeaderBase64].(bool)
	return ok && !v
}

// critical returns the crit parameter as a string list.
func (h Header) critical() ([]string, error) {
	raw, ok := h[HeaderCritical]
	if !ok {
		return nil, nil
	}

	if names, ok := raw.([]string); ok && len(names) > 0 {
		return slices.Clone(names), nil
	}

	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("%w: crit must be a non-empty array", ErrMalformedToken)
	}

	names := make([]string, 0, len(list))
	for _, item := range list {
		name, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: crit entries must be strings", ErrMalformedToken)
		}

		names = append(names, name)
	}

	return names, nil
}

// validate checks the parameters that govern how the payload is processed.
func (h Header) validate() error {
	crit, err := h.critical()
	if err != nil {
		return err
	}

	for _, name := range crit {
		if name != HeaderBase64 {
			return fmt.Errorf("%w: %q", ErrUnsupportedCritical, name)
		}

		if _, ok := h[name]; !ok {
			return fmt.Errorf("%w: critical parameter %q is absent", ErrMalformedToken, name)
		}
	}

	if raw, ok := h[HeaderBase64]; ok {
		if _, isBool := raw.(bool); !isBool {
			return fmt.Errorf("%w: b64 must be a boolean", ErrMalformedToken)
		}

		if !slices.Contains(crit, HeaderBase64) {
			return fmt.Errorf("%w: b64 must be listed in crit", ErrMalformedToken)
		}
	}

	return nil
}

// encode returns base64url(JSON(h)). encoding/json sorts map keys, so the
// output is deterministic for equal headers.
func (h Header) encode() (string, error) {
	raw, err := json.Marshal(h)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// decodeHeader parses a base64url protected header segment.
func decodeHeader(segment string) (Header, error) {
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64url in protected header", ErrMalformedToken)
	}

	var h Header
	if err := json.Unmarshal(raw, &h); err != nil || h == nil {
		return nil, fmt.Errorf("%w: protected header is not a JSON object", ErrMalformedToken)
	}

	if err := h.validate(); err != nil {
		return nil, err
	}

	return h, nil
}

// token is a parsed compact detached JWS.
type token struct {
	protected string
	header    Header
	signature []byte
}

// parseToken splits a compact serialization "header..signature" and
// decodes its parts. The payload segment must be empty.
func parseToken(raw string) (*token, error) {
	raw = strings.TrimSpace(raw)

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	if parts[1] != "" {
		return nil, ErrNotDetached
	}

	h, err := decodeHeader(parts[0])
	if err != nil {
		return nil, err
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || len(sig) == 0 {
		return nil, fmt.Errorf("%w: invalid base64url in signature", ErrMalformedToken)
	}

	return &token{protected: parts[0], header: h, signature: sig}, nil
}

// ParseHeader returns the protected header of a compact detached JWS
// without verifying it.
func ParseHeader(raw string) (Header, error) {
	t, err := parseToken(raw)
	if err != nil {
		return nil, err
	}

	return t.header, nil
}
