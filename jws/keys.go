package jws

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha256" // registers SHA-256 for crypto.Hash.New
	_ "crypto/sha512" // registers SHA-384 and SHA-512 for crypto.Hash.New
	"fmt"
	"hash"
	"math/big"
)

// Minimum RSA key size in bits.
const minRSAKeyBits = 2048

// --- RSA (RS*, PS*) ---

type rsaSigner struct {
	alg   Algorithm
	hash  crypto.Hash
	pss   *rsa.PSSOptions
	key   *rsa.PrivateKey
	keyID string
}

// NewRSASigner creates a Signer for one of RS256, RS384, RS512, PS256,
// PS384 or PS512.
func NewRSASigner(alg Algorithm, keyID string, key *rsa.PrivateKey) (Signer, error) {
	h, err := algorithmFor(alg, KeyTypeRSA)
	if err != nil {
		return nil, err
	}

	if key == nil {
		return nil, fmt.Errorf("%w: rsa private key must not be nil", ErrInvalidKey)
	}

	if key.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", ErrInvalidKey, minRSAKeyBits)
	}

	pss, _ := alg.pssOptions()

	return &rsaSigner{alg: alg, hash: h, pss: pss, key: key, keyID: keyID}, nil
}

func (s *rsaSigner) Sign(sum []byte) ([]byte, error) {
	if s.pss != nil {
		return rsa.SignPSS(rand.Reader, s.key, s.hash, sum, s.pss)
	}

	return rsa.SignPKCS1v15(rand.Reader, s.key, s.hash, sum)
}

func (s *rsaSigner) Algorithm() Algorithm { return s.alg }
func (s *rsaSigner) KeyID() string        { return s.keyID }
func (s *rsaSigner) NewHash() hash.Hash   { return s.hash.New() }

type rsaVerifier struct {
	alg   Algorithm
	hash  crypto.Hash
	pss   *rsa.PSSOptions
	key   *rsa.PublicKey
	keyID string
}

// NewRSAVerifier creates a Verifier for one of RS256, RS384, RS512, PS256,
// PS384 or PS512.
func NewRSAVerifier(alg Algorithm, keyID string, key *rsa.PublicKey) (Verifier, error) {
	h, err := algorithmFor(alg, KeyTypeRSA)
	if err != nil {
		return nil, err
	}

	if key == nil {
		return nil, fmt.Errorf("%w: rsa public key must not be nil", ErrInvalidKey)
	}

	if key.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", ErrInvalidKey, minRSAKeyBits)
	}

	_, pss := alg.pssOptions()

	return &rsaVerifier{alg: alg, hash: h, pss: pss, key: key, keyID: keyID}, nil
}

func (v *rsaVerifier) Verify(sum, signature []byte) error {
	var err error
	if v.pss != nil {
		err = rsa.VerifyPSS(v.key, v.hash, sum, signature, v.pss)
	} else {
		err = rsa.VerifyPKCS1v15(v.key, v.hash, sum, signature)
	}

	if err != nil {
		return ErrSignatureInvalid
	}

	return nil
}

func (v *rsaVerifier) Algorithm() Algorithm { return v.alg }
func (v *rsaVerifier) KeyID() string        { return v.keyID }
func (v *rsaVerifier) NewHash() hash.Hash   { return v.hash.New() }

// --- ECDSA (ES*) ---

type ecdsaSigner struct {
	alg     Algorithm
	hash    crypto.Hash
	keySize int
	key     *ecdsa.PrivateKey
	keyID   string
}

// NewECDSASigner creates a Signer for ES256 (P-256), ES384 (P-384) or
// ES512 (P-521). Signatures use the fixed-width R||S encoding of RFC 7518
// Section 3.4.
func NewECDSASigner(alg Algorithm, keyID string, key *ecdsa.PrivateKey) (Signer, error) {
	h, err := algorithmFor(alg, KeyTypeEC)
	if err != nil {
		return nil, err
	}

	if key == nil {
		return nil, fmt.Errorf("%w: ecdsa private key must not be nil", ErrInvalidKey)
	}

	keySize, err := checkCurve(alg, &key.PublicKey)
	if err != nil {
		return nil, err
	}

	return &ecdsaSigner{alg: alg, hash: h, keySize: keySize, key: key, keyID: keyID}, nil
}

func (s *ecdsaSigner) Sign(sum []byte) ([]byte, error) {
	r, sv, err := ecdsa.Sign(rand.Reader, s.key, sum)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 2*s.keySize)
	r.FillBytes(out[:s.keySize])
	sv.FillBytes(out[s.keySize:])

	return out, nil
}

func (s *ecdsaSigner) Algorithm() Algorithm { return s.alg }
func (s *ecdsaSigner) KeyID() string        { return s.keyID }
func (s *ecdsaSigner) NewHash() hash.Hash   { return s.hash.New() }

type ecdsaVerifier struct {
	alg     Algorithm
	hash    crypto.Hash
	keySize int
	key     *ecdsa.PublicKey
	keyID   string
}

// NewECDSAVerifier creates a Verifier for ES256, ES384 or ES512.
func NewECDSAVerifier(alg Algorithm, keyID string, key *ecdsa.PublicKey) (Verifier, error) {
	h, err := algorithmFor(alg, KeyTypeEC)
	if err != nil {
		return nil, err
	}

	if key == nil {
		return nil, fmt.Errorf("%w: ecdsa public key must not be nil", ErrInvalidKey)
	}

	keySize, err := checkCurve(alg, key)
	if err != nil {
		return nil, err
	}

	return &ecdsaVerifier{alg: alg, hash: h, keySize: keySize, key: key, keyID: keyID}, nil
}

func (v *ecdsaVerifier) Verify(sum, signature []byte) error {
	if len(signature) != 2*v.keySize {
		return ErrSignatureInvalid
	}

	r := new(big.Int).SetBytes(signature[:v.keySize])
	s := new(big.Int).SetBytes(signature[v.keySize:])

	if !ecdsa.Verify(v.key, sum, r, s) {
		return ErrSignatureInvalid
	}

	return nil
}

func (v *ecdsaVerifier) Algorithm() Algorithm { return v.alg }
func (v *ecdsaVerifier) KeyID() string        { return v.keyID }
func (v *ecdsaVerifier) NewHash() hash.Hash   { return v.hash.New() }

func checkCurve(alg Algorithm, key *ecdsa.PublicKey) (int, error) {
	keySize, curveBits, _ := alg.ecdsaSize()
	if key.Curve == nil || key.Curve.Params().BitSize != curveBits {
		return 0, fmt.Errorf("%w: %s requires a %d-bit curve", ErrInvalidKey, alg, curveBits)
	}

	return keySize, nil
}

// --- HMAC (HS*) ---

type hmacKey struct {
	alg   Algorithm
	hash  crypto.Hash
	key   []byte
	keyID string
}

// NewHMACSigner creates a Signer for HS256, HS384 or HS512. The key must
// be at least as long as the hash output (RFC 7518 Section 3.2).
func NewHMACSigner(alg Algorithm, keyID string, key []byte) (Signer, error) {
	return newHMACKey(alg, keyID, key)
}

// NewHMACVerifier creates a Verifier for HS256, HS384 or HS512.
func NewHMACVerifier(alg Algorithm, keyID string, key []byte) (Verifier, error) {
	return newHMACKey(alg, keyID, key)
}

func newHMACKey(alg Algorithm, keyID string, key []byte) (*hmacKey, error) {
	h, err := algorithmFor(alg, KeyTypeOctet)
	if err != nil {
		return nil, err
	}

	if len(key) < h.Size() {
		return nil, fmt.Errorf("%w: hmac key must be at least %d bytes", ErrInvalidKey, h.Size())
	}

	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)

	return &hmacKey{alg: alg, hash: h, key: keyCopy, keyID: keyID}, nil
}

// Sign returns the MAC itself: the keyed hash already is the signature.
func (k *hmacKey) Sign(sum []byte) ([]byte, error) {
	return sum, nil
}

func (k *hmacKey) Verify(sum, signature []byte) error {
	if !hmac.Equal(sum, signature) {
		return ErrSignatureInvalid
	}

	return nil
}

func (k *hmacKey) Algorithm() Algorithm { return k.alg }
func (k *hmacKey) KeyID() string        { return k.keyID }
func (k *hmacKey) NewHash() hash.Hash   { return hmac.New(k.hash.New, k.key) }

// algorithmFor checks that alg belongs to the expected key family and
// returns its hash.
func algorithmFor(alg Algorithm, want KeyType) (crypto.Hash, error) {
	kt, err := alg.KeyType()
	if err != nil {
		return 0, err
	}

	if kt != want {
		return 0, fmt.Errorf("%w: %s does not use this key type", ErrAlgorithmMismatch, alg)
	}

	return alg.Hash()
}
