package jwshttp

import (
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vitalvas/detachedjws/buffering"
	"github.com/vitalvas/detachedjws/jws"
)

// TransportConfig configures the client-side signing transport.
type TransportConfig struct {
	// Signer supplies the signing key per request. Required.
	Signer SignerSource

	// Header is the request header receiving the detached JWS. Defaults
	// to SignatureHeader.
	Header string

	// ResponseHeader is the response header holding the server's detached
	// JWS. Defaults to ResponseSignatureHeader.
	ResponseHeader string

	// ResponseResolver, when set, enables response verification. A
	// response whose signature is missing or does not verify fails the
	// round trip with ErrResponseVerification.
	ResponseResolver jws.Resolver

	// Buffering configures the spill buffers for request and response
	// bodies.
	Buffering buffering.Config

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics, when set, records sign results, response verification
	// outcomes and spills.
	Metrics *Metrics

	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer
}

// Transport is an http.RoundTripper that signs outgoing request bodies
// with a detached JWS and optionally verifies signed responses.
//
// Use NewTransport to create a Transport with a configured *http.Transport
// for proxy, TLS, and timeout settings.
type Transport struct {
	base           http.RoundTripper
	source         SignerSource
	header         string
	responseHeader string
	resolve        jws.Resolver
	buffering      buffering.Config
	logger         *zap.Logger
	metrics        *Metrics
	tracer         trace.Tracer
}

// NewTransport creates a signing Transport that delegates to base after
// signing each request. When base is nil, a clone of http.DefaultTransport
// is used, giving an independent connection pool with default proxy, TLS,
// and timeout settings.
//
//	base := &http.Transport{
//	    Proxy:           http.ProxyFromEnvironment,
//	    TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS13},
//	    IdleConnTimeout: 90 * time.Second,
//	}
//	transport, err := jwshttp.NewTransport(base, jwshttp.TransportConfig{
//	    Signer: jwshttp.StaticSigner(signer, nil),
//	})
//
// It returns ErrNoSigner if Signer is nil.
func NewTransport(base *http.Transport, cfg TransportConfig) (*Transport, error) {
	if cfg.Signer == nil {
		return nil, ErrNoSigner
	}

	header, err := headerName(cfg.Header, SignatureHeader)
	if err != nil {
		return nil, err
	}

	responseHeader, err := headerName(cfg.ResponseHeader, ResponseSignatureHeader)
	if err != nil {
		return nil, err
	}

	logger := loggerOrNop(cfg.Logger)

	bufCfg, err := bufferingConfig(cfg.Buffering, logger, cfg.Metrics)
	if err != nil {
		return nil, err
	}

	var rt http.RoundTripper
	if base != nil {
		rt = base
	} else {
		rt = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &Transport{
		base:           rt,
		source:         cfg.Signer,
		header:         header,
		responseHeader: responseHeader,
		resolve:        cfg.ResponseResolver,
		buffering:      bufCfg,
		logger:         logger,
		metrics:        cfg.Metrics,
		tracer:         tracerOrDefault(cfg.Tracer),
	}, nil
}

// RoundTrip signs the request and then delegates to the base transport.
// The original request is cloned before signing to avoid mutation.
// When GetBody is available, the clone receives its own body copy so
// that buffering does not consume the caller's body. The request body is
// always closed, as http.RoundTripper requires.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := t.tracer.Start(req.Context(), "jws.transport")
	defer span.End()

	clone := req.Clone(ctx)

	if clone.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		req.Body.Close()

		if err != nil {
			return nil, err
		}

		clone.Body = body
	}

	if err := t.signRequest(clone, span); err != nil {
		t.metrics.observeSign(false)
		recordError(span, err)

		return nil, err
	}

	t.metrics.observeSign(true)

	resp, err := t.base.RoundTrip(clone)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	if t.resolve == nil {
		return resp, nil
	}

	if err := t.verifyResponse(resp, span); err != nil {
		recordError(span, err)
		t.logger.Debug("reject response",
			zap.String("url", req.URL.Redacted()),
			zap.Error(err),
		)

		return nil, err
	}

	return resp, nil
}

// signRequest buffers the request body, signs it and replaces the body
// with a read pass that closes the buffer when the base transport is done
// with it.
func (t *Transport) signRequest(req *http.Request, span trace.Span) error {
	buf, err := buffering.New(t.buffering)
	if err != nil {
		closeBody(req)
		return err
	}

	if req.Body != nil {
		_, err := buf.ReadFrom(req.Body)
		closeBody(req)

		if err != nil {
			buf.Close()
			return err
		}
	}

	signer, h, err := t.source.Signer(req)
	if err == nil && signer == nil {
		err = jws.ErrNoSigner
	}

	if err != nil {
		buf.Close()
		return err
	}

	span.SetAttributes(attribute.String("jws.alg", signer.Algorithm().String()))

	token, err := signBuffer(buf, signer, h)
	if err != nil {
		buf.Close()
		return err
	}

	req.Header.Set(t.header, string(token))
	req.ContentLength = buf.Size()
	req.GetBody = nil

	if buf.Size() == 0 {
		buf.Close()
		req.Body = http.NoBody

		return nil
	}

	req.Body = buf.NewReadCloser()

	return nil
}

// verifyResponse verifies the response body against its signature header
// and replaces resp.Body with the buffered copy. On failure the response
// body is closed.
func (t *Transport) verifyResponse(resp *http.Response, span trace.Span) error {
	buf, err := buffering.New(t.buffering)
	if err != nil {
		resp.Body.Close()
		return err
	}

	body := buffering.NewBody(resp.Body, buf)

	h, err := verifyBody(body, resp.Header.Get(t.responseHeader), t.resolve)
	if h != nil {
		span.SetAttributes(attribute.String("jws.alg", h.Algorithm().String()))
	}

	if err != nil {
		body.Close()

		var verr *VerifyError
		if errors.As(err, &verr) {
			t.metrics.observeVerify(OutcomeFailed, verr.Kind)
		}

		return fmt.Errorf("%w: %w", ErrResponseVerification, err)
	}

	t.metrics.observeVerify(OutcomeSucceeded, 0)
	t.metrics.observeBuffered(buf.Size())

	resp.Body = body
	resp.ContentLength = buf.Size()

	return nil
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}
