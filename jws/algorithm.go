package jws

import (
	"crypto"
	"crypto/rsa"
	"fmt"
	"hash"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm identifies the JWS signature algorithm per RFC 7518
// Section 3.1.
type Algorithm string

const (
	// RS256 is RSASSA-PKCS1-v1_5 using SHA-256.
	RS256 Algorithm = "RS256"
	// RS384 is RSASSA-PKCS1-v1_5 using SHA-384.
	RS384 Algorithm = "RS384"
	// RS512 is RSASSA-PKCS1-v1_5 using SHA-512.
	RS512 Algorithm = "RS512"

	// PS256 is RSASSA-PSS using SHA-256 and MGF1 with SHA-256.
	PS256 Algorithm = "PS256"
	// PS384 is RSASSA-PSS using SHA-384 and MGF1 with SHA-384.
	PS384 Algorithm = "PS384"
	// PS512 is RSASSA-PSS using SHA-512 and MGF1 with SHA-512.
	PS512 Algorithm = "PS512"

	// ES256 is ECDSA using P-256 and SHA-256.
	ES256 Algorithm = "ES256"
	// ES384 is ECDSA using P-384 and SHA-384.
	ES384 Algorithm = "ES384"
	// ES512 is ECDSA using P-521 and SHA-512.
	ES512 Algorithm = "ES512"

	// HS256 is HMAC using SHA-256.
	HS256 Algorithm = "HS256"
	// HS384 is HMAC using SHA-384.
	HS384 Algorithm = "HS384"
	// HS512 is HMAC using SHA-512.
	HS512 Algorithm = "HS512"
)

// String returns the alg header value.
func (a Algorithm) String() string {
	return string(a)
}

// KeyType is the family of key material an algorithm operates on.
type KeyType int

const (
	KeyTypeUnknown KeyType = iota
	KeyTypeRSA
	KeyTypeEC
	KeyTypeOctet
)

// KeyType reports which key family the algorithm needs. Algorithms that
// cannot be computed incrementally (EdDSA, none) are reported as
// unsupported.
func (a Algorithm) KeyType() (KeyType, error) {
	switch jwt.GetSigningMethod(string(a)).(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
		return KeyTypeRSA, nil
	case *jwt.SigningMethodECDSA:
		return KeyTypeEC, nil
	case *jwt.SigningMethodHMAC:
		return KeyTypeOctet, nil
	default:
		return KeyTypeUnknown, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(a))
	}
}

// Hash returns the hash function used by the algorithm.
func (a Algorithm) Hash() (crypto.Hash, error) {
	switch m := jwt.GetSigningMethod(string(a)).(type) {
	case *jwt.SigningMethodRSA:
		return m.Hash, nil
	case *jwt.SigningMethodRSAPSS:
		return m.Hash, nil
	case *jwt.SigningMethodECDSA:
		return m.Hash, nil
	case *jwt.SigningMethodHMAC:
		return m.Hash, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(a))
	}
}

// pssOptions returns the signing and verification PSS options registered
// for a PS* algorithm, or nil for every other algorithm.
func (a Algorithm) pssOptions() (sign, verify *rsa.PSSOptions) {
	m, ok := jwt.GetSigningMethod(string(a)).(*jwt.SigningMethodRSAPSS)
	if !ok {
		return nil, nil
	}

	return m.Options, m.VerifyOptions
}

// ecdsaSize returns the coordinate size in bytes and the curve size in bits
// for an ES* algorithm.
func (a Algorithm) ecdsaSize() (keySize, curveBits int, ok bool) {
	m, ok := jwt.GetSigningMethod(string(a)).(*jwt.SigningMethodECDSA)
	if !ok {
		return 0, 0, false
	}

	return m.KeySize, m.CurveBits, true
}

// Signer produces JWS signatures incrementally. The signing input is
// written to the hash returned by NewHash; its Sum is then passed to Sign.
type Signer interface {
	// Algorithm returns the alg header value for this signer.
	Algorithm() Algorithm

	// KeyID returns the kid header value, or an empty string.
	KeyID() string

	// NewHash returns a fresh hash for one signing input.
	NewHash() hash.Hash

	// Sign produces the signature over the hash sum of the signing input.
	Sign(sum []byte) ([]byte, error)
}

// Verifier validates JWS signatures incrementally, mirroring Signer.
type Verifier interface {
	// Algorithm returns the alg header value this verifier accepts.
	Algorithm() Algorithm

	// KeyID returns the kid this verifier is bound to, or an empty string.
	KeyID() string

	// NewHash returns a fresh hash for one signing input.
	NewHash() hash.Hash

	// Verify checks signature against the hash sum of the signing input.
	// Returns nil on success, ErrSignatureInvalid on mismatch.
	Verify(sum, signature []byte) error
}
