// Package config loads the settings of a detached JWS server from a YAML
// file with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"
	"gopkg.in/yaml.v3"

	"github.com/vitalvas/detachedjws/buffering"
	"github.com/vitalvas/detachedjws/jws"
	"github.com/vitalvas/detachedjws/jwshttp"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DETACHEDJWS_"

// Config is the server configuration.
type Config struct {
	Listen    string    `yaml:"listen" env:"LISTEN"`
	Buffering Buffering `yaml:"buffering" envPrefix:"BUFFERING_"`
	Sign      Sign      `yaml:"sign" envPrefix:"SIGN_"`
	Verify    Verify    `yaml:"verify" envPrefix:"VERIFY_"`
}

// Buffering mirrors buffering.Config. Zero values select the defaults.
type Buffering struct {
	TmpDir           string `yaml:"tmp_dir" env:"TMP_DIR"`
	Threshold        int    `yaml:"threshold" env:"THRESHOLD"`
	ProduceBlockSize int    `yaml:"produce_block_size" env:"PRODUCE_BLOCK_SIZE"`
	BufferLimit      int64  `yaml:"buffer_limit" env:"BUFFER_LIMIT"`
}

// Sign configures response signing. Signing is off when Key.File is empty.
type Sign struct {
	Header string `yaml:"header" env:"HEADER"`
	Key    Key    `yaml:"key" envPrefix:"KEY_"`
}

// Verify configures request verification. Indexed variables such as
// DETACHEDJWS_VERIFY_KEYS_0_FILE replace the whole key list.
type Verify struct {
	Header  string `yaml:"header" env:"HEADER"`
	Require bool   `yaml:"require" env:"REQUIRE"`
	Keys    []Key  `yaml:"keys" envPrefix:"KEYS_"`
}

// Key points at a PEM file (RSA and EC) or a raw secret file (HMAC).
type Key struct {
	Algorithm string `yaml:"alg" env:"ALG"`
	KeyID     string `yaml:"kid" env:"KID"`
	File      string `yaml:"file" env:"FILE"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Listen: ":8080",
		Sign: Sign{
			Header: jwshttp.ResponseSignatureHeader,
		},
		Verify: Verify{
			Header: jwshttp.SignatureHeader,
		},
	}
}

// Load reads path over Default, applies DETACHEDJWS_ environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: open: %w", err)
		}
		defer f.Close()

		if err := decode(f, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode: %w", err)
	}

	return nil
}

// Validate checks addresses, header names, buffer sizes and key entries.
// Key files are not read.
func (c Config) Validate() error {
	if c.Listen == "" {
		return ErrNoListen
	}

	for _, name := range []string{c.Sign.Header, c.Verify.Header} {
		if name != "" && !httpguts.ValidHeaderFieldName(name) {
			return fmt.Errorf("%w: %q", jwshttp.ErrInvalidHeaderName, name)
		}
	}

	if err := c.BufferingConfig(nil).Validate(); err != nil {
		return err
	}

	if c.Sign.Key.File != "" {
		if err := c.Sign.Key.validate(); err != nil {
			return fmt.Errorf("sign: %w", err)
		}
	}

	for i, k := range c.Verify.Keys {
		if err := k.validate(); err != nil {
			return fmt.Errorf("verify key %d: %w", i, err)
		}
	}

	return nil
}

// BufferingConfig converts the buffering section for the middleware.
func (c Config) BufferingConfig(logger *zap.Logger) buffering.Config {
	return buffering.Config{
		TmpDir:           c.Buffering.TmpDir,
		Threshold:        c.Buffering.Threshold,
		ProduceBlockSize: c.Buffering.ProduceBlockSize,
		BufferLimit:      c.Buffering.BufferLimit,
		Logger:           logger,
	}
}

func (k Key) validate() error {
	if k.File == "" {
		return fmt.Errorf("%w: file is required", ErrInvalidKey)
	}

	if _, err := jws.Algorithm(k.Algorithm).KeyType(); err != nil {
		return err
	}

	return nil
}

// Signer reads the key file and builds a signer for the key's algorithm.
func (k Key) Signer() (jws.Signer, error) {
	alg, kt, data, err := k.read()
	if err != nil {
		return nil, err
	}

	switch kt {
	case jws.KeyTypeRSA:
		key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidKey, k.File, err)
		}

		return jws.NewRSASigner(alg, k.KeyID, key)
	case jws.KeyTypeEC:
		key, err := jwt.ParseECPrivateKeyFromPEM(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidKey, k.File, err)
		}

		return jws.NewECDSASigner(alg, k.KeyID, key)
	default:
		return jws.NewHMACSigner(alg, k.KeyID, data)
	}
}

// Verifier reads the key file and builds a verifier for the key's
// algorithm. RSA and EC files hold a PEM public key.
func (k Key) Verifier() (jws.Verifier, error) {
	alg, kt, data, err := k.read()
	if err != nil {
		return nil, err
	}

	switch kt {
	case jws.KeyTypeRSA:
		key, err := jwt.ParseRSAPublicKeyFromPEM(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidKey, k.File, err)
		}

		return jws.NewRSAVerifier(alg, k.KeyID, key)
	case jws.KeyTypeEC:
		key, err := jwt.ParseECPublicKeyFromPEM(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidKey, k.File, err)
		}

		return jws.NewECDSAVerifier(alg, k.KeyID, key)
	default:
		return jws.NewHMACVerifier(alg, k.KeyID, data)
	}
}

func (k Key) read() (jws.Algorithm, jws.KeyType, []byte, error) {
	if err := k.validate(); err != nil {
		return "", jws.KeyTypeUnknown, nil, err
	}

	alg := jws.Algorithm(k.Algorithm)

	kt, err := alg.KeyType()
	if err != nil {
		return "", jws.KeyTypeUnknown, nil, err
	}

	data, err := os.ReadFile(k.File)
	if err != nil {
		return "", jws.KeyTypeUnknown, nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	if kt == jws.KeyTypeOctet {
		data = bytes.TrimSpace(data)
	}

	return alg, kt, data, nil
}

// Verifiers builds a verifier for every configured verify key.
func (c Config) Verifiers() ([]jws.Verifier, error) {
	verifiers := make([]jws.Verifier, 0, len(c.Verify.Keys))

	for i, k := range c.Verify.Keys {
		v, err := k.Verifier()
		if err != nil {
			return nil, fmt.Errorf("verify key %d: %w", i, err)
		}

		verifiers = append(verifiers, v)
	}

	return verifiers, nil
}
