package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/detachedjws/buffering"
	"github.com/vitalvas/detachedjws/jws"
	"github.com/vitalvas/detachedjws/jwshttp"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func writePEM(t *testing.T, dir, name, blockType string, der []byte) string {
	t.Helper()

	return writeFile(t, dir, name, string(pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})))
}

func TestLoad(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Listen)
		assert.Equal(t, jwshttp.SignatureHeader, cfg.Verify.Header)
		assert.Equal(t, jwshttp.ResponseSignatureHeader, cfg.Sign.Header)
	})

	t.Run("yaml file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "config.yaml", strings.Join([]string{
			"listen: 127.0.0.1:9000",
			"buffering:",
			"  tmp_dir: /var/tmp",
			"  threshold: 1024",
			"  buffer_limit: 1048576",
			"verify:",
			"  require: true",
			"  keys:",
			"    - alg: HS256",
			"      kid: client",
			"      file: /etc/keys/client.key",
		}, "\n"))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
		assert.Equal(t, "/var/tmp", cfg.Buffering.TmpDir)
		assert.Equal(t, 1024, cfg.Buffering.Threshold)
		assert.EqualValues(t, 1048576, cfg.Buffering.BufferLimit)
		assert.True(t, cfg.Verify.Require)
		assert.Equal(t, []Key{{Algorithm: "HS256", KeyID: "client", File: "/etc/keys/client.key"}}, cfg.Verify.Keys)
		assert.Equal(t, jwshttp.SignatureHeader, cfg.Verify.Header)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "config.yaml", "listen: :7000\n")

		t.Setenv("DETACHEDJWS_LISTEN", ":7001")
		t.Setenv("DETACHEDJWS_BUFFERING_THRESHOLD", "2048")
		t.Setenv("DETACHEDJWS_SIGN_KEY_ALG", "HS512")
		t.Setenv("DETACHEDJWS_SIGN_KEY_FILE", "/run/secrets/sign.key")
		t.Setenv("DETACHEDJWS_VERIFY_HEADER", "X-Signature")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, ":7001", cfg.Listen)
		assert.Equal(t, 2048, cfg.Buffering.Threshold)
		assert.Equal(t, Key{Algorithm: "HS512", File: "/run/secrets/sign.key"}, cfg.Sign.Key)
		assert.Equal(t, "X-Signature", cfg.Verify.Header)
	})

	t.Run("unknown field", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "config.yaml", "listne: :7000\n")

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("empty file keeps defaults", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "config.yaml", "")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Listen)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		err    error
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }, ErrNoListen},
		{"invalid header", func(c *Config) { c.Verify.Header = "bad header" }, jwshttp.ErrInvalidHeaderName},
		{"negative threshold", func(c *Config) { c.Buffering.Threshold = -1 }, buffering.ErrInvalidThreshold},
		{"key without file", func(c *Config) { c.Verify.Keys = []Key{{Algorithm: "HS256"}} }, ErrInvalidKey},
		{"unsupported alg", func(c *Config) { c.Sign.Key = Key{Algorithm: "EdDSA", File: "k"} }, jws.ErrUnsupportedAlgorithm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			assert.ErrorIs(t, cfg.Validate(), tt.err)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestKeys(t *testing.T) {
	dir := t.TempDir()

	t.Run("rsa", func(t *testing.T) {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		priv, err := x509.MarshalPKCS8PrivateKey(key)
		require.NoError(t, err)

		pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		require.NoError(t, err)

		signKey := Key{Algorithm: "PS256", KeyID: "rsa", File: writePEM(t, dir, "rsa.pem", "PRIVATE KEY", priv)}
		verifyKey := Key{Algorithm: "PS256", KeyID: "rsa", File: writePEM(t, dir, "rsa.pub", "PUBLIC KEY", pub)}

		signer, err := signKey.Signer()
		require.NoError(t, err)
		assert.Equal(t, jws.PS256, signer.Algorithm())

		verifier, err := verifyKey.Verifier()
		require.NoError(t, err)
		assert.Equal(t, "rsa", verifier.KeyID())

		_, err = verifyKey.Signer()
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("ecdsa", func(t *testing.T) {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)

		priv, err := x509.MarshalECPrivateKey(key)
		require.NoError(t, err)

		pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		require.NoError(t, err)

		signer, err := Key{Algorithm: "ES256", File: writePEM(t, dir, "ec.pem", "EC PRIVATE KEY", priv)}.Signer()
		require.NoError(t, err)
		assert.Equal(t, jws.ES256, signer.Algorithm())

		verifier, err := Key{Algorithm: "ES256", File: writePEM(t, dir, "ec.pub", "PUBLIC KEY", pub)}.Verifier()
		require.NoError(t, err)
		assert.Equal(t, jws.ES256, verifier.Algorithm())

		_, err = Key{Algorithm: "ES384", File: filepath.Join(dir, "ec.pem")}.Signer()
		assert.ErrorIs(t, err, jws.ErrInvalidKey)
	})

	t.Run("hmac secret is trimmed", func(t *testing.T) {
		secret := strings.Repeat("s", 32)
		path := writeFile(t, dir, "hmac.key", secret+"\n")

		signer, err := Key{Algorithm: "HS256", File: path}.Signer()
		require.NoError(t, err)

		verifier, err := Key{Algorithm: "HS256", File: path}.Verifier()
		require.NoError(t, err)

		token, err := jws.Sign(jws.HS256, nil, strings.NewReader("body"), signer)
		require.NoError(t, err)

		_, err = jws.Verify(token, strings.NewReader("body"), func(jws.Header) (jws.Verifier, bool) {
			return verifier, true
		})
		assert.NoError(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Key{Algorithm: "HS256", File: filepath.Join(dir, "absent")}.Verifier()
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("verifiers", func(t *testing.T) {
		path := writeFile(t, dir, "v.key", strings.Repeat("v", 48))

		cfg := Default()
		cfg.Verify.Keys = []Key{{Algorithm: "HS384", KeyID: "a", File: path}, {Algorithm: "HS256", KeyID: "b", File: path}}

		verifiers, err := cfg.Verifiers()
		require.NoError(t, err)
		require.Len(t, verifiers, 2)
		assert.Equal(t, "b", verifiers[1].KeyID())

		cfg.Verify.Keys = append(cfg.Verify.Keys, Key{Algorithm: "HS512", File: path})
		_, err = cfg.Verifiers()
		assert.ErrorIs(t, err, jws.ErrInvalidKey)
	})
}
