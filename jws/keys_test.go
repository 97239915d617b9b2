package jws

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSAKeys(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	t.Run("sign and verify sum", func(t *testing.T) {
		for _, alg := range []Algorithm{RS256, PS384} {
			signer, err := NewRSASigner(alg, "rsa-key", key)
			require.NoError(t, err)

			verifier, err := NewRSAVerifier(alg, "rsa-key", &key.PublicKey)
			require.NoError(t, err)

			h := signer.NewHash()
			h.Write([]byte("message"))
			sum := h.Sum(nil)

			sig, err := signer.Sign(sum)
			require.NoError(t, err)

			assert.NoError(t, verifier.Verify(sum, sig))
			assert.Equal(t, alg, signer.Algorithm())
			assert.Equal(t, "rsa-key", verifier.KeyID())
		}
	})

	t.Run("wrong sum fails verification", func(t *testing.T) {
		signer, err := NewRSASigner(RS256, "k", key)
		require.NoError(t, err)

		verifier, err := NewRSAVerifier(RS256, "k", &key.PublicKey)
		require.NoError(t, err)

		sum := make([]byte, 32)
		sig, err := signer.Sign(sum)
		require.NoError(t, err)

		sum[0] ^= 0xff
		assert.ErrorIs(t, verifier.Verify(sum, sig), ErrSignatureInvalid)
	})

	t.Run("nil key", func(t *testing.T) {
		_, err := NewRSASigner(RS256, "k", nil)
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = NewRSAVerifier(RS256, "k", nil)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("small key", func(t *testing.T) {
		small, err := rsa.GenerateKey(rand.Reader, 1024)
		require.NoError(t, err)

		_, err = NewRSASigner(RS256, "k", small)
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = NewRSAVerifier(RS256, "k", &small.PublicKey)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("algorithm of another key family", func(t *testing.T) {
		_, err := NewRSASigner(ES256, "k", key)
		assert.ErrorIs(t, err, ErrAlgorithmMismatch)

		_, err = NewRSAVerifier("EdDSA", "k", &key.PublicKey)
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})
}

func TestECDSAKeys(t *testing.T) {
	tests := []struct {
		alg   Algorithm
		curve elliptic.Curve
		size  int
	}{
		{ES256, elliptic.P256(), 64},
		{ES384, elliptic.P384(), 96},
		{ES512, elliptic.P521(), 132},
	}

	for _, tt := range tests {
		t.Run(tt.alg.String(), func(t *testing.T) {
			key, err := ecdsa.GenerateKey(tt.curve, rand.Reader)
			require.NoError(t, err)

			signer, err := NewECDSASigner(tt.alg, "ec", key)
			require.NoError(t, err)

			verifier, err := NewECDSAVerifier(tt.alg, "ec", &key.PublicKey)
			require.NoError(t, err)

			h := signer.NewHash()
			h.Write([]byte("message"))
			sum := h.Sum(nil)

			sig, err := signer.Sign(sum)
			require.NoError(t, err)
			assert.Len(t, sig, tt.size)

			assert.NoError(t, verifier.Verify(sum, sig))
			assert.ErrorIs(t, verifier.Verify(sum, sig[1:]), ErrSignatureInvalid)
		})
	}

	t.Run("curve mismatch", func(t *testing.T) {
		key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		require.NoError(t, err)

		_, err = NewECDSASigner(ES256, "k", key)
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = NewECDSAVerifier(ES512, "k", &key.PublicKey)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("nil key", func(t *testing.T) {
		_, err := NewECDSASigner(ES256, "k", nil)
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = NewECDSAVerifier(ES256, "k", nil)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestHMACKeys(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	t.Run("sign and verify", func(t *testing.T) {
		signer, err := NewHMACSigner(HS256, "hmac", secret)
		require.NoError(t, err)

		verifier, err := NewHMACVerifier(HS256, "hmac", secret)
		require.NoError(t, err)

		h := signer.NewHash()
		h.Write([]byte("message"))
		sum := h.Sum(nil)

		sig, err := signer.Sign(sum)
		require.NoError(t, err)

		vh := verifier.NewHash()
		vh.Write([]byte("message"))
		assert.NoError(t, verifier.Verify(vh.Sum(nil), sig))

		vh = verifier.NewHash()
		vh.Write([]byte("tampered"))
		assert.ErrorIs(t, verifier.Verify(vh.Sum(nil), sig), ErrSignatureInvalid)
	})

	t.Run("key is copied", func(t *testing.T) {
		key := append([]byte(nil), secret...)

		signer, err := NewHMACSigner(HS256, "hmac", key)
		require.NoError(t, err)

		before := signer.NewHash()
		before.Write([]byte("m"))

		key[0] ^= 0xff

		after := signer.NewHash()
		after.Write([]byte("m"))

		assert.Equal(t, before.Sum(nil), after.Sum(nil))
	})

	t.Run("short key", func(t *testing.T) {
		_, err := NewHMACSigner(HS256, "k", secret[:31])
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = NewHMACVerifier(HS512, "k", secret)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("wrong family", func(t *testing.T) {
		_, err := NewHMACSigner(RS256, "k", secret)
		assert.ErrorIs(t, err, ErrAlgorithmMismatch)
	})
}
